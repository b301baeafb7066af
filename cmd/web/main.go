package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"sansfit/internal"
	"sansfit/internal/config"
	"sansfit/internal/container"
	"sansfit/ui"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config: ", err)
	}

	logger := internal.NewDefaultLogger()
	c, err := container.New(cfg, logger)
	if err != nil {
		log.Fatal("container: ", err)
	}
	defer c.Close()

	app, err := ui.NewApp(c)
	if err != nil {
		log.Fatal("ui: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.Serve(ctx) })

	if err := g.Wait(); err != nil {
		log.Fatal("server: ", err)
	}
}
