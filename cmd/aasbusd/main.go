package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/veesix-networks/aasbus/pkg/component"
	"github.com/veesix-networks/aasbus/pkg/config"
	"github.com/veesix-networks/aasbus/pkg/journal"
	"github.com/veesix-networks/aasbus/pkg/journal/sqlite"
	"github.com/veesix-networks/aasbus/pkg/logger"
	"github.com/veesix-networks/aasbus/pkg/version"
	_ "github.com/veesix-networks/aasbus/plugins/all"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (built-in defaults when empty)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("aasbusd", version.Full())
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	components := make(map[string]logger.LogLevel, len(cfg.Logging.Components))
	for name, level := range cfg.Logging.Components {
		components[name] = logger.LogLevel(level)
	}
	logger.Configure(cfg.Logging.Format, logger.LogLevel(cfg.Logging.Level), components)

	mainLog := logger.Get(logger.Main)
	mainLog.Info("Starting aasbus", "version", version.Version, "bus_type", cfg.MessageBus.Type)

	bus, err := newBus(cfg)
	if err != nil {
		log.Fatalf("Failed to create message bus: %v", err)
	}

	orch := component.NewOrchestrator()
	orch.Register(newBusComponent(bus))

	deps := component.Dependencies{
		EventBus: bus,
		Config:   cfg,
	}

	var store journal.Store
	if cfg.Journal.Enabled {
		store, err = sqlite.Open(cfg.Journal.Path)
		if err != nil {
			log.Fatalf("Failed to open journal: %v", err)
		}
		recorder := journal.NewRecorder(bus, store)
		orch.Register(recorder)
		deps.Journal = recorder
		mainLog.Info("Journal enabled", "path", cfg.Journal.Path)
	}

	pluginComponents, err := component.LoadAll(deps)
	if err != nil {
		log.Fatalf("Failed to load plugin components: %v", err)
	}
	for _, comp := range pluginComponents {
		mainLog.Info("Loaded plugin component", "name", comp.Name())
		orch.Register(comp)
	}

	ctx := context.Background()
	if err := orch.Start(ctx); err != nil {
		log.Fatalf("Failed to start components: %v", err)
	}

	mainLog.Info("aasbus started successfully", "components", orch.Names())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	mainLog.Info("Shutting down aasbus...")

	if err := orch.Stop(ctx); err != nil {
		mainLog.Error("Error stopping components", "error", err)
	}

	if store != nil {
		if err := store.Close(); err != nil {
			mainLog.Error("Error closing journal", "error", err)
		}
	}

	mainLog.Info("aasbus stopped")
}
