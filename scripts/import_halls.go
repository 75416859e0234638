package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"halltime/internal/database"
	"halltime/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type HallsConfig struct {
	Halls []models.Hall `yaml:"halls"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		hallsPath = flag.String("halls", "configs/halls.yaml", "path to halls.yaml")
		dbPath    = flag.String("db", "./data/halltime.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*hallsPath)
	if err != nil {
		return fmt.Errorf("read halls: %w", err)
	}
	var cfg HallsConfig
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse halls: %w", err)
	}
	if len(cfg.Halls) == 0 {
		return fmt.Errorf("no halls in yaml")
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created := 0
	updated := 0
	for i := range cfg.Halls {
		hall := cfg.Halls[i]
		if hall.ID == 0 || hall.Name == "" {
			continue
		}
		_, err = db.GetHall(ctx, hall.ID)
		if err == nil {
			if err = db.UpdateHall(ctx, &hall); err != nil {
				return fmt.Errorf("update %s: %w", hall.Name, err)
			}
			updated++
			continue
		}
		if !errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("get %s: %w", hall.Name, err)
		}
		if err = db.SeedHalls(ctx, []models.Hall{hall}); err != nil {
			return fmt.Errorf("create %s: %w", hall.Name, err)
		}
		created++
	}

	fmt.Printf("done: created=%d updated=%d\n", created, updated)
	return nil
}
