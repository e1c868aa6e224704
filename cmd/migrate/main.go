package main

import (
	"flag"
	"log"
	"os"

	"github.com/damoang/angple-collab/internal/config"
	"github.com/damoang/angple-collab/internal/database"
	"github.com/damoang/angple-collab/internal/migration"
	pkglogger "github.com/damoang/angple-collab/pkg/logger"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "config file path (default configs/config.<APP_ENV>.yaml)")
	verbose := flag.Bool("verbose", false, "verbose SQL logging")
	flag.Parse()

	config.LoadDotEnv()
	pkglogger.InitStructured("local")

	path := *configPath
	if path == "" {
		path = config.ConfigPath(os.Getenv("APP_ENV"))
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *verbose {
		cfg.Database.LogSQL = true
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := migration.Run(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	pkglogger.Info("Migration complete (%s)", cfg.Database.Driver)

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
