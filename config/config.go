// Package config loads the service configuration from a YAML file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendDynamoDB = "dynamodb"

	ViewsNone = "none"
	ViewsDir  = "dir"
	ViewsS3   = "s3"
)

type Config struct {
	Addr string `yaml:"addr"`

	// Mode is the gin mode: debug, release or test.
	Mode string `yaml:"mode"`

	Log     LogConfig     `yaml:"log"`
	Storage StorageConfig `yaml:"storage"`
	Views   ViewsConfig   `yaml:"views"`
	AWS     AWSConfig     `yaml:"aws"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"`

	// DataDir holds the journal of the memory backend.
	// The memory backend keeps nothing across restarts without it.
	DataDir          string        `yaml:"data_dir"`
	CompactInterval  time.Duration `yaml:"compact_interval"`
	CompactThreshold int           `yaml:"compact_threshold"`

	SQLitePath string `yaml:"sqlite_path"`

	DynamoDB DynamoDBConfig `yaml:"dynamodb"`
}

type DynamoDBConfig struct {
	Table        string `yaml:"table"`
	AgeIndex     string `yaml:"age_index"`
	SeqTable     string `yaml:"seq_table"`
	Endpoint     string `yaml:"endpoint"`
	CreateTables bool   `yaml:"create_tables"`
}

type ViewsConfig struct {
	Source string `yaml:"source"`
	Dir    string `yaml:"dir"`

	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

type AWSConfig struct {
	Region string `yaml:"region"`
}

func Default() *Config {
	return &Config{
		Addr: ":6090",
		Mode: "release",
		Log: LogConfig{
			Level: "info",
		},
		Storage: StorageConfig{
			Backend:          BackendMemory,
			CompactInterval:  30 * time.Second,
			CompactThreshold: 1000,
			SQLitePath:       "rockstars.db",
		},
		Views: ViewsConfig{
			Source: ViewsDir,
			Dir:    "web",
		},
	}
}

// Load reads the file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.applyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if port := getenv("PORT"); port != "" {
		c.Addr = ":" + port
	}
	if backend := getenv("ROCKSTARS_BACKEND"); backend != "" {
		c.Storage.Backend = backend
	}
	if region := getenv("AWS_REGION"); region != "" && c.AWS.Region == "" {
		c.AWS.Region = region
	}
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Mode {
	case "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("unknown mode %q", c.Mode))
	}

	switch c.Storage.Backend {
	case BackendMemory, BackendSQLite, BackendDynamoDB:
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}

	switch c.Views.Source {
	case ViewsNone, "":
	case ViewsDir:
		if c.Views.Dir == "" {
			errs = append(errs, errors.New("views.dir is required for dir views"))
		}
	case ViewsS3:
		if c.Views.Bucket == "" {
			errs = append(errs, errors.New("views.bucket is required for s3 views"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown views source %q", c.Views.Source))
	}

	if c.Storage.Backend == BackendSQLite && c.Storage.SQLitePath == "" {
		errs = append(errs, errors.New("storage.sqlite_path is required for the sqlite backend"))
	}

	return errors.Join(errs...)
}
