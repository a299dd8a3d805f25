package main

import (
	"flag"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/aabaaiaaa/SourceNet-sub005/internal/bank"
	"github.com/aabaaiaaa/SourceNet-sub005/internal/config"
	"github.com/aabaaiaaa/SourceNet-sub005/internal/game"
	"github.com/aabaaiaaa/SourceNet-sub005/internal/save"
	"github.com/aabaaiaaa/SourceNet-sub005/internal/serverapp"
)

func main() {
	configPath := flag.String("config", "", "path to a yaml config file")
	flag.Parse()

	// .env is optional; real env still wins over file values.
	_ = godotenv.Load()

	logger := log.New(os.Stdout, "", 0)

	var cfg *config.Config
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Fatalf("load config: %v", err)
		}
		cfg = loaded
	} else {
		cfg = config.FromEnv()
	}

	store, err := save.OpenStore(cfg.Data.SaveDBPath)
	if err != nil {
		logger.Fatalf("open save store: %v", err)
	}
	defer store.Close()

	var archive bank.Archive
	if cfg.Data.LedgerArchive {
		sqlArchive, err := bank.OpenSQLiteArchive(cfg.Data.LedgerDBPath)
		if err != nil {
			logger.Fatalf("open ledger archive: %v", err)
		}
		defer sqlArchive.Close()
		archive = sqlArchive
	}

	engine, err := game.New(game.Options{
		Config:  cfg,
		Store:   store,
		Archive: archive,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatalf("build engine: %v", err)
	}
	defer engine.Stop()
	engine.Begin()

	handler, err := serverapp.NewHandler(serverapp.Options{
		Engine: engine,
		Logger: logger,
	})
	if err != nil {
		logger.Fatalf("build server: %v", err)
	}

	logger.Printf("sourcenet listening on %s", cfg.Server.Addr)
	logger.Fatal(http.ListenAndServe(cfg.Server.Addr, handler))
}
