package app

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// ServerConfig defines how the gateway backend should run.
type ServerConfig struct {
	Addr   string
	Path   string
	DBPath string

	// FlushInterval is the cadence of the online-seconds flush into the
	// store; ResetCheckInterval is how often the daily-reset condition is
	// checked. TimeZone names the reference zone whose midnight triggers
	// the reset.
	FlushInterval      time.Duration
	ResetCheckInterval time.Duration
	TimeZone           string
}

// ClientConfig defines the parameters the terminal client needs.
type ClientConfig struct {
	ServerURL string
	Nick      string
	Server    string
}

const (
	defaultFlushInterval      = 10 * time.Second
	defaultResetCheckInterval = time.Hour
	defaultTimeZone           = "Europe/Moscow"
)

// DefaultDBPath returns a per-user data path for the bundled SQLite file.
func DefaultDBPath() string {
	if env := os.Getenv("SQUADCHAT_DB_PATH"); env != "" {
		return env
	}
	if env := os.Getenv("SQUADCHAT_DATA_DIR"); env != "" {
		return filepath.Join(env, "squadchat.db")
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "squadchat", "squadchat.db")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Squadchat", "squadchat.db")
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, "Library", "Application Support", "Squadchat", "squadchat.db")
		}
		return filepath.Join(home, ".local", "share", "squadchat", "squadchat.db")
	}
	return filepath.Join(".", ".squadchat", "squadchat.db")
}

// NormalizeChatPath guarantees the websocket route starts with '/' and falls
// back to /chat when empty.
func NormalizeChatPath(path string) string {
	if path == "" {
		return "/chat"
	}
	if path[0] != '/' {
		return "/" + path
	}
	return path
}

func (cfg *ServerConfig) applyDefaults() {
	cfg.Path = NormalizeChatPath(cfg.Path)
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	if cfg.ResetCheckInterval <= 0 {
		cfg.ResetCheckInterval = defaultResetCheckInterval
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = defaultTimeZone
	}
}
