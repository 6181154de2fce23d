// Package config provides unified configuration for the boundaries build
// pipeline.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full build pipeline configuration.
type Config struct {
	// DataDir is the base directory for staging and output files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Sources holds the upstream source URLs
	Sources SourcesConfig `json:"sources" yaml:"sources"`

	// Fetch holds download tuning
	Fetch FetchConfig `json:"fetch" yaml:"fetch"`

	// Regions holds per-region fragment fetch tuning
	Regions RegionsConfig `json:"regions" yaml:"regions"`

	// Sentinel is the reserved integer substituted for null during typed
	// loads. It must sit outside the legal domain of every coded column.
	Sentinel int64 `json:"sentinel" yaml:"sentinel"`

	// Output holds output artifact locations
	Output OutputConfig `json:"output" yaml:"output"`

	// Publish holds optional artifact publication configuration
	Publish PublishConfig `json:"publish" yaml:"publish"`
}

// SourcesConfig holds the upstream source URLs. Templates carry one %s
// placeholder for the region identifier.
type SourcesConfig struct {
	// Counties is the national county boundaries export (GeoJSON)
	Counties string `json:"counties" yaml:"counties"`

	// Municipalities is the national municipality boundaries export (GeoJSON)
	Municipalities string `json:"municipalities" yaml:"municipalities"`

	// Elderships is the national eldership boundaries export (GeoJSON)
	Elderships string `json:"elderships" yaml:"elderships"`

	// ResidentialAreas is the national residential area boundaries export (GeoJSON)
	ResidentialAreas string `json:"residential_areas" yaml:"residential_areas"`

	// Streets is the national street geometry export (GeoJSON)
	Streets string `json:"streets" yaml:"streets"`

	// AddressRegionIndex lists the regions addresses are published under
	AddressRegionIndex string `json:"address_region_index" yaml:"address_region_index"`

	// AddressPointsTemplate is the per-region address point export (GeoJSON)
	AddressPointsTemplate string `json:"address_points_template" yaml:"address_points_template"`

	// AddressAttributes is the national address attribute export (delimited)
	AddressAttributes string `json:"address_attributes" yaml:"address_attributes"`

	// Rooms is the national room export (delimited)
	Rooms string `json:"rooms" yaml:"rooms"`

	// PurposeGroups is the parcel purpose group classification (delimited)
	PurposeGroups string `json:"purpose_groups" yaml:"purpose_groups"`

	// PurposeTypes is the parcel purpose classification (delimited)
	PurposeTypes string `json:"purpose_types" yaml:"purpose_types"`

	// StatusTypes is the parcel status classification (delimited)
	StatusTypes string `json:"status_types" yaml:"status_types"`

	// ParcelsTemplate is the per-region parcel export (zipped GeoJSON)
	ParcelsTemplate string `json:"parcels_template" yaml:"parcels_template"`

	// Delimiter separates fields in the delimited exports
	Delimiter string `json:"delimiter" yaml:"delimiter"`
}

// FetchConfig holds download tuning.
type FetchConfig struct {
	// Retries is the number of additional attempts after the first failure
	Retries int `json:"retries" yaml:"retries"`

	// RetryDelay is the fixed delay between attempts
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay"`

	// Timeout bounds each individual request
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// MaxRedirects bounds redirect following per request
	MaxRedirects int `json:"max_redirects" yaml:"max_redirects"`
}

// RegionsConfig holds per-region fragment fetch tuning.
type RegionsConfig struct {
	// Concurrency is the number of parallel fragment downloads
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// OutputConfig holds output artifact locations.
type OutputConfig struct {
	// DatabasePath is the finished database location
	DatabasePath string `json:"database_path" yaml:"database_path"`

	// ManifestPath is the source checksum manifest location
	ManifestPath string `json:"manifest_path" yaml:"manifest_path"`

	// StagingDir holds fetched and intermediate artifacts during a run
	StagingDir string `json:"staging_dir" yaml:"staging_dir"`
}

// PublishConfig holds optional artifact publication configuration.
type PublishConfig struct {
	// Enabled controls whether finished artifacts are published
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Type is the publication storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local publication path (for local type)
	Path string `json:"path" yaml:"path"`

	// ComparePrior controls diffing the manifest against the previously
	// published one
	ComparePrior bool `json:"compare_prior" yaml:"compare_prior"`

	// KeepRuns bounds how many archived run manifests stay in the store
	KeepRuns int `json:"keep_runs" yaml:"keep_runs"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 publication configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// Prefix is prepended to every published object key
	Prefix string `json:"prefix" yaml:"prefix"`
}

// DefaultConfig returns the default configuration pointing at the public
// registry exports.
func DefaultConfig() *Config {
	return &Config{
		DataDir:  "./data/boundaries",
		Sentinel: -1,
		Sources: SourcesConfig{
			Counties:              "https://www.registrucentras.lt/aduomenys/?byla=adr_gra_apskritys.json",
			Municipalities:        "https://www.registrucentras.lt/aduomenys/?byla=adr_gra_savivaldybes.json",
			Elderships:            "https://www.registrucentras.lt/aduomenys/?byla=adr_gra_seniunijos.json",
			ResidentialAreas:      "https://www.registrucentras.lt/aduomenys/?byla=adr_gra_gyvenvietes.json",
			Streets:               "https://www.registrucentras.lt/aduomenys/?byla=adr_gra_gatves.json",
			AddressRegionIndex:    "https://www.registrucentras.lt/aduomenys/?byla=adr_savivaldybes.csv",
			AddressPointsTemplate: "https://www.registrucentras.lt/aduomenys/?byla=adr_gra_adresai_%s.json",
			AddressAttributes:     "https://www.registrucentras.lt/aduomenys/?byla=adr_adresai.csv",
			Rooms:                 "https://www.registrucentras.lt/aduomenys/?byla=adr_patalpos.csv",
			PurposeGroups:         "https://www.registrucentras.lt/aduomenys/?byla=ntr_paskirciu_grupes.csv",
			PurposeTypes:          "https://www.registrucentras.lt/aduomenys/?byla=ntr_paskirtys.csv",
			StatusTypes:           "https://www.registrucentras.lt/aduomenys/?byla=ntr_statusai.csv",
			ParcelsTemplate:       "https://www.registrucentras.lt/aduomenys/?byla=kad_sklypai_%s.zip",
			Delimiter:             "|",
		},
		Fetch: FetchConfig{
			Retries:      4,
			RetryDelay:   5 * time.Second,
			Timeout:      2 * time.Minute,
			MaxRedirects: 10,
		},
		Regions: RegionsConfig{
			Concurrency: 4,
		},
		Publish: PublishConfig{
			Enabled:      false,
			Type:         "local",
			ComparePrior: true,
			KeepRuns:     10,
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/boundaries"
	}

	if c.Output.StagingDir == "" {
		c.Output.StagingDir = filepath.Join(c.DataDir, "staging")
	}
	if c.Output.DatabasePath == "" {
		c.Output.DatabasePath = filepath.Join(c.DataDir, "boundaries.sqlite")
	}
	if c.Output.ManifestPath == "" {
		c.Output.ManifestPath = filepath.Join(c.DataDir, "data-sources-checksums.txt")
	}
	if c.Publish.Path == "" {
		c.Publish.Path = filepath.Join(c.DataDir, "published")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Regions.Concurrency < 1 {
		return fmt.Errorf("regions.concurrency must be at least 1, got %d", c.Regions.Concurrency)
	}

	if len(c.Sources.Delimiter) != 1 {
		return fmt.Errorf("sources.delimiter must be a single character, got %q", c.Sources.Delimiter)
	}

	if !strings.Contains(c.Sources.AddressPointsTemplate, "%s") {
		return fmt.Errorf("sources.address_points_template must carry a %%s region placeholder")
	}
	if !strings.Contains(c.Sources.ParcelsTemplate, "%s") {
		return fmt.Errorf("sources.parcels_template must carry a %%s region placeholder")
	}

	if c.Publish.Type != "local" && c.Publish.Type != "s3" {
		return fmt.Errorf("invalid publish type: %s (must be local or s3)", c.Publish.Type)
	}
	if c.Publish.Enabled && c.Publish.Type == "s3" && c.Publish.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when publish type is s3")
	}
	if c.Publish.Enabled && c.Publish.KeepRuns < 1 {
		return fmt.Errorf("publish.keep_runs must be at least 1, got %d", c.Publish.KeepRuns)
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the BOUNDARIES_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("BOUNDARIES_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Source URLs
	if v := os.Getenv("BOUNDARIES_SOURCE_COUNTIES"); v != "" {
		cfg.Sources.Counties = v
	}
	if v := os.Getenv("BOUNDARIES_SOURCE_MUNICIPALITIES"); v != "" {
		cfg.Sources.Municipalities = v
	}
	if v := os.Getenv("BOUNDARIES_SOURCE_ELDERSHIPS"); v != "" {
		cfg.Sources.Elderships = v
	}
	if v := os.Getenv("BOUNDARIES_SOURCE_RESIDENTIAL_AREAS"); v != "" {
		cfg.Sources.ResidentialAreas = v
	}
	if v := os.Getenv("BOUNDARIES_SOURCE_STREETS"); v != "" {
		cfg.Sources.Streets = v
	}
	if v := os.Getenv("BOUNDARIES_SOURCE_ADDRESS_REGION_INDEX"); v != "" {
		cfg.Sources.AddressRegionIndex = v
	}
	if v := os.Getenv("BOUNDARIES_SOURCE_ADDRESS_POINTS_TEMPLATE"); v != "" {
		cfg.Sources.AddressPointsTemplate = v
	}
	if v := os.Getenv("BOUNDARIES_SOURCE_ADDRESS_ATTRIBUTES"); v != "" {
		cfg.Sources.AddressAttributes = v
	}
	if v := os.Getenv("BOUNDARIES_SOURCE_ROOMS"); v != "" {
		cfg.Sources.Rooms = v
	}
	if v := os.Getenv("BOUNDARIES_SOURCE_PURPOSE_GROUPS"); v != "" {
		cfg.Sources.PurposeGroups = v
	}
	if v := os.Getenv("BOUNDARIES_SOURCE_PURPOSE_TYPES"); v != "" {
		cfg.Sources.PurposeTypes = v
	}
	if v := os.Getenv("BOUNDARIES_SOURCE_STATUS_TYPES"); v != "" {
		cfg.Sources.StatusTypes = v
	}
	if v := os.Getenv("BOUNDARIES_SOURCE_PARCELS_TEMPLATE"); v != "" {
		cfg.Sources.ParcelsTemplate = v
	}

	// Fetch configuration
	if v := os.Getenv("BOUNDARIES_FETCH_RETRIES"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Fetch.Retries)
	}
	if v := os.Getenv("BOUNDARIES_FETCH_RETRY_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Fetch.RetryDelay = d
		}
	}
	if v := os.Getenv("BOUNDARIES_FETCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Fetch.Timeout = d
		}
	}

	// Region configuration
	if v := os.Getenv("BOUNDARIES_REGIONS_CONCURRENCY"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Regions.Concurrency)
	}

	// Sentinel
	if v := os.Getenv("BOUNDARIES_SENTINEL"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Sentinel)
	}

	// Publication configuration
	if v := os.Getenv("BOUNDARIES_PUBLISH_ENABLED"); v != "" {
		cfg.Publish.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("BOUNDARIES_PUBLISH_TYPE"); v != "" {
		cfg.Publish.Type = v
	}
	if v := os.Getenv("BOUNDARIES_PUBLISH_PATH"); v != "" {
		cfg.Publish.Path = v
	}
	if v := os.Getenv("BOUNDARIES_PUBLISH_KEEP_RUNS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Publish.KeepRuns)
	}
	if v := os.Getenv("BOUNDARIES_S3_BUCKET"); v != "" {
		cfg.Publish.S3.Bucket = v
	}
	if v := os.Getenv("BOUNDARIES_S3_REGION"); v != "" {
		cfg.Publish.S3.Region = v
	}
	if v := os.Getenv("BOUNDARIES_S3_ENDPOINT"); v != "" {
		cfg.Publish.S3.Endpoint = v
	}
	if v := os.Getenv("BOUNDARIES_S3_PREFIX"); v != "" {
		cfg.Publish.S3.Prefix = v
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.Output.StagingDir,
		filepath.Dir(c.Output.DatabasePath),
		filepath.Dir(c.Output.ManifestPath),
	}
	if c.Publish.Enabled && c.Publish.Type == "local" {
		dirs = append(dirs, c.Publish.Path)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
