package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/insaansher/sherpos-terminal/pkg/config"
	"github.com/insaansher/sherpos-terminal/pkg/db"
	"github.com/insaansher/sherpos-terminal/pkg/logger"
	"github.com/insaansher/sherpos-terminal/pkg/migrate"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(context.Background(), map[string]any{
		"cmd":  *cmd,
		"path": cfg.Store.Path,
	})

	dbClient, err := db.New(ctx, cfg.Store, logg)
	requireResource(ctx, logg, "local store", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)

	switch *cmd {
	case "version":
		version, err := migrate.Version(sqlDB)
		requireResource(ctx, logg, "schema version", err)
		fmt.Println("schema version:", version)
	default:
		err = migrate.Run(ctx, sqlDB, *cmd)
		requireResource(ctx, logg, "migration run", err)
		logg.Info(ctx, "migration command completed")
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "failed to initialize "+name, err)
	os.Exit(1)
}
