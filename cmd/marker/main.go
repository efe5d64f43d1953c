// Package main starts the marker service: it drains the submission spool
// through the privacy-gated marking pipeline, journaling every step.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/louisbranch/tutormark/internal/marking/app"
	"github.com/louisbranch/tutormark/internal/marking/feedback"
	"github.com/louisbranch/tutormark/internal/marking/jail"
	"github.com/louisbranch/tutormark/internal/marking/security"
	"github.com/louisbranch/tutormark/internal/marking/storage/sqlite"
	platformcmd "github.com/louisbranch/tutormark/internal/platform/cmd"
	"github.com/louisbranch/tutormark/internal/platform/config"
)

type markerConfig struct {
	DBPath          string        `env:"TUTORMARK_DB_PATH" envDefault:"tutormark.db"`
	SpoolDir        string        `env:"TUTORMARK_SPOOL_DIR" envDefault:"spool"`
	JailCommand     string        `env:"TUTORMARK_JAIL_COMMAND" envDefault:"firejail"`
	JailArgs        []string      `env:"TUTORMARK_JAIL_ARGS" envSeparator:" "`
	JailEntrypoint  string        `env:"TUTORMARK_JAIL_ENTRYPOINT"`
	AnonSalt        string        `env:"TUTORMARK_ANON_SALT"`
	FeedbackTimeout time.Duration `env:"TUTORMARK_FEEDBACK_TIMEOUT" envDefault:"120s"`
}

func main() {
	var cfg markerConfig
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		config.Exitf("parse config: %v", err)
	}

	log.SetPrefix("[MARKER] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceMarker, func(ctx context.Context) error {
		return run(ctx, cfg)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("marker: %v", err)
	}
}

func run(ctx context.Context, cfg markerConfig) error {
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	gate := security.NewGate()
	opts := []feedback.Option{
		feedback.WithSalt(cfg.AnonSalt),
		feedback.WithTimeout(cfg.FeedbackTimeout),
	}

	if cfg.JailEntrypoint != "" {
		builder := jail.NewBuilder(cfg.JailEntrypoint).Command(cfg.JailCommand)
		if len(cfg.JailArgs) > 0 {
			builder = builder.Args(cfg.JailArgs)
		}
		client, err := builder.Build()
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := client.Shutdown(shutdownCtx); err != nil {
				log.Printf("shutdown jail: %v", err)
			}
		}()

		if err := client.Ping(ctx); err != nil {
			return err
		}
		log.Printf("jail ready: %s %s", cfg.JailCommand, cfg.JailEntrypoint)
		opts = append(opts, feedback.WithJail(client))
	} else {
		log.Print("no jail entrypoint configured; producing placeholder feedback")
	}

	service := feedback.NewService(gate, store, opts...)
	worker, err := app.NewWorker(cfg.SpoolDir, service)
	if err != nil {
		return err
	}

	log.Printf("watching spool at %s", cfg.SpoolDir)
	return worker.Run(ctx)
}
