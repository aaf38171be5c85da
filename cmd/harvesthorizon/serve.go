package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/lox/harvesthorizon/internal/api"
	"github.com/lox/harvesthorizon/internal/imagegen"
	"github.com/lox/harvesthorizon/internal/ingest"
	"github.com/lox/harvesthorizon/internal/scenario"
)

type ServeCmd struct {
	Port            string `help:"HTTP server port." default:"8080" env:"PORT"`
	NoRefresh       bool   `help:"Disable the scheduled climate refresh (server only, for local dev)."`
	RefreshSchedule string `help:"Cron schedule for climate refresh." default:"0 5 * * *" env:"REFRESH_SCHEDULE"`
	RetentionDays   int    `help:"Days to keep archived NASA POWER payloads." default:"90" env:"RETENTION_DAYS"`
	ImageDir        string `help:"Directory for generated scenario banners." default:"data/images" env:"IMAGE_DIR"`
	NoImages        bool   `help:"Disable banner generation even when OPENAI_API_KEY is set."`
}

func (c *ServeCmd) Run(g *Globals) error {
	st, err := g.openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	log.Println("database migrated")

	provider := g.provider(st)

	game, err := g.game()
	if err != nil {
		return err
	}

	var painter imagegen.Painter
	if !c.NoImages {
		if gen, err := imagegen.NewGenerator(); err != nil {
			log.Printf("image generation disabled: %v", err)
		} else {
			painter = gen
		}
	}
	images := imagegen.NewService(painter, imagegen.NewCache(c.ImageDir, 0))

	server := api.NewServer(api.Config{
		Port:       c.Port,
		Store:      st,
		Climate:    provider,
		Game:       game,
		Images:     images,
		WindowDays: g.WindowDays,
	})

	sigCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	eg, ctx := errgroup.WithContext(sigCtx)

	if !c.NoRefresh {
		scheduler := ingest.NewScheduler(provider, st, scenario.All(), ingest.Config{
			RefreshSchedule: c.RefreshSchedule,
			RetentionDays:   c.RetentionDays,
			WindowDays:      g.WindowDays,
		})
		scheduler.SetImageService(images)
		eg.Go(func() error {
			if err := scheduler.Run(ctx); err != nil {
				return fmt.Errorf("scheduler: %w", err)
			}
			return nil
		})
	} else {
		log.Println("climate refresh disabled (--no-refresh)")
	}

	eg.Go(func() error {
		if err := server.Run(ctx); err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	return eg.Wait()
}
