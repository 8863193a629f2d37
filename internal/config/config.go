// Package config loads the server configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Storage backends selectable via DEBTCOLLECTOR_STORE_BACKEND.
const (
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

type Config struct {
	Server ServerConfig
	Store  StoreConfig
	JWT    JWTConfig
	Log    LogConfig
}

type ServerConfig struct {
	Addr         string        `envconfig:"DEBTCOLLECTOR_ADDR" default:":8080"`
	ReadTimeout  time.Duration `envconfig:"DEBTCOLLECTOR_READ_TIMEOUT" default:"10s"`
	WriteTimeout time.Duration `envconfig:"DEBTCOLLECTOR_WRITE_TIMEOUT" default:"10s"`
}

type StoreConfig struct {
	Backend       string `envconfig:"DEBTCOLLECTOR_STORE_BACKEND" default:"sqlite"`
	SQLitePath    string `envconfig:"DEBTCOLLECTOR_SQLITE_PATH" default:"./data/debts.db"`
	MongoURI      string `envconfig:"DEBTCOLLECTOR_MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDatabase string `envconfig:"DEBTCOLLECTOR_MONGO_DATABASE" default:"debtcollector"`
}

type JWTConfig struct {
	Secret string        `envconfig:"DEBTCOLLECTOR_JWT_SECRET" required:"true"`
	TTL    time.Duration `envconfig:"DEBTCOLLECTOR_JWT_TTL" default:"24h"`
}

type LogConfig struct {
	Level  string `envconfig:"DEBTCOLLECTOR_LOG_LEVEL" default:"info"`
	Format string `envconfig:"DEBTCOLLECTOR_LOG_FORMAT" default:"text"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	switch cfg.Store.Backend {
	case BackendSQLite, BackendMongo:
	default:
		return nil, fmt.Errorf("unknown store backend %q, want %q or %q",
			cfg.Store.Backend, BackendSQLite, BackendMongo)
	}

	return &cfg, nil
}
