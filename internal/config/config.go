package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr      string `yaml:"http_addr"`
	MySQLDSN      string `yaml:"mysql_dsn"`
	RedisAddr     string `yaml:"redis_addr"`
	Denominations []int  `yaml:"denominations"`
	SyncWorkers   int    `yaml:"sync_workers"`
	SyncQueueSize int    `yaml:"sync_queue_size"`
}

func Default() Config {
	return Config{
		HTTPAddr:      ":8080",
		MySQLDSN:      "root:root@tcp(localhost:3306)/vending?parseTime=true",
		RedisAddr:     "localhost:6379",
		Denominations: []int{1, 5, 10, 25},
		SyncWorkers:   4,
		SyncQueueSize: 1024,
	}
}

// Load reads the YAML config at path (defaults apply when path is empty),
// applies MYSQL_DSN / REDIS_ADDR environment overrides, and validates the
// denomination set before anything else can depend on it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if dsn := os.Getenv("MYSQL_DSN"); dsn != "" {
		cfg.MySQLDSN = dsn
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.RedisAddr = addr
	}

	if cfg.SyncWorkers <= 0 {
		return Config{}, fmt.Errorf("sync_workers must be positive, got %d", cfg.SyncWorkers)
	}
	if cfg.SyncQueueSize <= 0 {
		return Config{}, fmt.Errorf("sync_queue_size must be positive, got %d", cfg.SyncQueueSize)
	}
	if err := ValidateDenominations(cfg.Denominations); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ValidateDenominations enforces the greedy-change precondition up front:
// every value positive and unique, and a unit denomination present so the
// greedy split always reaches exactly zero remainder.
func ValidateDenominations(denominations []int) error {
	if len(denominations) == 0 {
		return errors.New("denominations: empty set")
	}

	seen := make(map[int]bool, len(denominations))
	hasUnit := false
	for _, d := range denominations {
		if d <= 0 {
			return fmt.Errorf("denominations: %d is not positive", d)
		}
		if seen[d] {
			return fmt.Errorf("denominations: %d appears more than once", d)
		}
		seen[d] = true
		if d == 1 {
			hasUnit = true
		}
	}
	if !hasUnit {
		return errors.New("denominations: must include a unit denomination of 1")
	}

	return nil
}
