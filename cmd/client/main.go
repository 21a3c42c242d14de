package main

import (
	"flag"
	"log"
	"os"

	intrnl "squadchat/internal"
	"squadchat/internal/app"
)

func main() {
	serverURL := flag.String("server-url", getEnv("SQUADCHAT_SERVER", "ws://localhost:8080/chat"), "server websocket URL")
	nick := flag.String("nick", getEnv("SQUADCHAT_NICK", ""), "nick to declare on connect (prompted when empty)")
	serverTag := flag.String("server", getEnv("SQUADCHAT_SERVER_TAG", ""), "server label shown in the roster")
	flag.Parse()

	cfg := app.ClientConfig{
		ServerURL: *serverURL,
		Nick:      *nick,
		Server:    *serverTag,
	}
	if err := intrnl.RunClient(cfg.ServerURL, cfg.Nick, cfg.Server); err != nil {
		log.Fatalf("client error: %v", err)
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
