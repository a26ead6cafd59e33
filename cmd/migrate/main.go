package main

import (
	"context"
	"flag"
	"os"

	"go.uber.org/zap"

	"github.com/noah-isme/lingua-api/migrations"
	"github.com/noah-isme/lingua-api/pkg/config"
	"github.com/noah-isme/lingua-api/pkg/database"
	"github.com/noah-isme/lingua-api/pkg/logger"
)

func main() {
	flag.Parse()
	command := "up"
	args := flag.Args()
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := migrations.Run(ctx, db.DB, command, args...); err != nil {
		log.Error("migration failed", zap.String("command", command), zap.Error(err))
		os.Exit(1)
	}
	log.Info("migration finished", zap.String("command", command))
}
