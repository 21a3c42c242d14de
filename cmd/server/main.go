package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"squadchat/internal/app"
)

func main() {
	addr := flag.String("addr", getEnv("SQUADCHAT_ADDR", ":8080"), "server listen address")
	path := flag.String("path", getEnv("SQUADCHAT_PATH", "/chat"), "websocket chat path")
	db := flag.String("db", getEnv("SQUADCHAT_DB_PATH", ""), "sqlite database path (defaults to a per-user path)")
	tz := flag.String("tz", getEnv("SQUADCHAT_TZ", ""), "reference time zone for the daily online reset")
	flag.Parse()

	cfg := app.ServerConfig{
		Addr:     *addr,
		Path:     app.NormalizeChatPath(*path),
		DBPath:   *db,
		TimeZone: *tz,
	}
	if cfg.DBPath == "" {
		cfg.DBPath = app.DefaultDBPath()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handle, err := app.RunServer(ctx, cfg)
	if err != nil {
		log.Fatalf("server error: %v", err)
	}
	log.Printf("squadchat server listening on %s%s", handle.Addr(), cfg.Path)

	<-ctx.Done()
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := handle.Stop(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	if err := handle.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
