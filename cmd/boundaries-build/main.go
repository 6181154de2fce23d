// Package main implements the boundaries-build binary. One invocation runs
// one full build: fetch every upstream registry export, assemble the spatial
// database, write the checksum manifest, and optionally publish both.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/boundaries-lt/boundaries/internal/config"
	berrors "github.com/boundaries-lt/boundaries/internal/errors"
	"github.com/boundaries-lt/boundaries/internal/pipeline"
	"github.com/boundaries-lt/boundaries/internal/storage"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		dataDir     string
		output      string
		manifest    string
		publish     bool
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for staging and output files")
	flag.StringVar(&output, "output", "", "Finished database path")
	flag.StringVar(&manifest, "manifest", "", "Checksum manifest path")
	flag.BoolVar(&publish, "publish", false, "Publish the finished artifacts")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "boundaries-build - Lithuanian administrative boundary and address database builder\n\n")
		fmt.Fprintf(os.Stderr, "Usage: boundaries-build [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  boundaries-build --data-dir /data/boundaries\n")
		fmt.Fprintf(os.Stderr, "  boundaries-build --config /etc/boundaries/config.yaml --publish\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  BOUNDARIES_DATA_DIR         Base directory for staging and output files\n")
		fmt.Fprintf(os.Stderr, "  BOUNDARIES_SOURCE_*         Upstream source URL overrides\n")
		fmt.Fprintf(os.Stderr, "  BOUNDARIES_FETCH_*          Download retry and timeout tuning\n")
		fmt.Fprintf(os.Stderr, "  BOUNDARIES_REGIONS_CONCURRENCY  Parallel per-region downloads\n")
		fmt.Fprintf(os.Stderr, "  BOUNDARIES_PUBLISH_*        Artifact publication settings\n")
		fmt.Fprintf(os.Stderr, "  BOUNDARIES_S3_*             S3 publication settings\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("boundaries-build version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := loadConfig(configFile, dataDir, output, manifest, publish)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	printBanner(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A build aborted by signal must not promote anything.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal: %v, aborting run", sig)
		cancel()
	}()

	store, err := buildStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to configure publication store: %v", err)
	}

	p, err := pipeline.New(cfg, store)
	if err != nil {
		log.Fatalf("Failed to create pipeline: %v", err)
	}

	result, err := p.Run(ctx)
	if err != nil {
		if cat := berrors.GetCategory(err); cat != "" {
			log.Printf("Build failed [%s:%s]: %v", cat, berrors.GetCode(err), err)
		} else {
			log.Printf("Build failed: %v", err)
		}
		os.Exit(1)
	}

	log.Printf("Build complete:")
	log.Printf("  Database: %s", result.DatabasePath)
	log.Printf("  Manifest: %s", result.ManifestPath)
	for _, t := range []string{
		"counties", "municipalities", "elderships", "residential_areas",
		"streets", "addresses", "rooms", "purpose_groups", "purpose_types",
		"status_types", "parcels",
	} {
		log.Printf("  %-18s %d rows", t, result.Tables[t])
	}
	if cfg.Publish.Enabled && cfg.Publish.ComparePrior {
		if result.ManifestChanged {
			log.Printf("  Sources changed since last publication")
		} else {
			log.Printf("  Sources unchanged since last publication")
		}
	}
}

// loadConfig loads configuration from file, environment, and command line flags.
func loadConfig(configFile, dataDir, output, manifest string, publish bool) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	// Command line flags win.
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if output != "" {
		cfg.Output.DatabasePath = output
	}
	if manifest != "" {
		cfg.Output.ManifestPath = manifest
	}
	if publish {
		cfg.Publish.Enabled = true
	}

	cfg.Resolve()
	return cfg, nil
}

func buildStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if !cfg.Publish.Enabled {
		return nil, nil
	}
	if cfg.Publish.Type == "s3" {
		return storage.NewS3Store(ctx, cfg.Publish.S3.Bucket, storage.S3Options{
			Region:   cfg.Publish.S3.Region,
			Endpoint: cfg.Publish.S3.Endpoint,
			Prefix:   cfg.Publish.S3.Prefix,
		})
	}
	return storage.NewLocalStore(cfg.Publish.Path)
}

// printBanner prints the startup banner with configuration summary.
func printBanner(cfg *config.Config) {
	log.Printf("boundaries-build %s", version)
	log.Printf("Configuration:")
	log.Printf("  Data Dir: %s", cfg.DataDir)
	log.Printf("  Database: %s", cfg.Output.DatabasePath)
	log.Printf("  Manifest: %s", cfg.Output.ManifestPath)
	if cfg.Publish.Enabled {
		log.Printf("  Publish:  %s", cfg.Publish.Type)
	}
}
