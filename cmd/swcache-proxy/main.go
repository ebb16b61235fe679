// Package main starts the caching proxy in front of an application origin.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/unkn0wn-root/swcache/internal/config"
	"github.com/unkn0wn-root/swcache/internal/proxy"
)

func main() {
	cfg, err := config.LoadProxy()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	log.SetPrefix("[SWCACHE] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := proxy.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
