// medtrackd is the health tracking backend: it stores reminders,
// medications, vitals, and appointments, and serves the REST API and
// change feed the medremind agent consumes.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/AAs6395/medremind/internal/config"
	"github.com/AAs6395/medremind/internal/server"
	"github.com/AAs6395/medremind/internal/store"
)

var (
	configPath = flag.String("config", "", "Path to config file")
	dataDir    = flag.String("data", "", "Path to data directory")
	version    = "dev"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			fmt.Printf("medtrackd version %s\n", version)
			return
		case "config":
			runConfigCommand(os.Args[2:])
			return
		case "help", "--help", "-h":
			printHelp()
			return
		}
	}

	flag.Parse()
	runServer()
}

func runServer() {
	if err := config.LoadEnvFiles(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load env files: %v\n", err)
	}

	cfg, err := config.Load(*configPath, *dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger := buildLogger(cfg)
	defer logger.Sync()

	st, err := store.New(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Fatal("Failed to open store",
			zap.String("path", cfg.Storage.DatabasePath),
			zap.Error(err),
		)
	}
	defer st.Close()

	srv := server.New(cfg, st, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting medtrackd",
			zap.String("version", version),
			zap.String("listen", cfg.ListenAddr()),
			zap.String("database", cfg.Storage.DatabasePath),
			zap.Bool("auth_enabled", cfg.Server.AuthEnabled),
		)
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	case sig := <-quit:
		logger.Info("Shutting down...", zap.String("signal", sig.String()))
		if err := srv.Shutdown(); err != nil {
			logger.Error("Shutdown failed", zap.Error(err))
		}
	}
}

func buildLogger(cfg *config.Config) *zap.Logger {
	var zc zap.Config
	if cfg.Log.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	if level, err := zap.ParseAtomicLevel(cfg.Log.Level); err == nil {
		zc.Level = level
	}
	logger, err := zc.Build()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	return logger
}

func runConfigCommand(args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: medtrackd config [init|show|path]")
		return
	}

	path := *configPath
	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, ".config", "medremind", "medremind.yaml")
	}

	switch args[0] {
	case "init":
		if err := config.WriteDefault(path); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote default config to %s\n", path)

	case "show", "view":
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("Error reading config: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(string(data))

	case "path":
		fmt.Println(path)

	default:
		fmt.Println("Usage: medtrackd config [init|show|path]")
	}
}

func printHelp() {
	fmt.Print(`medtrackd - health tracking backend for medremind

Usage:
  medtrackd                           Run the server (default)
  medtrackd config [init|show|path]   Manage the config file
  medtrackd version                   Show version

Flags:
  --config <path>   Path to config file
  --data <path>     Path to data directory
`)
}
