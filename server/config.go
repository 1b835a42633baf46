package server

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Config holds the API server settings, loaded from the environment.
type Config struct {
	Port       string `env:"FOLIO_PORT" envDefault:"8080"`
	CORSOrigin string `env:"FOLIO_CORS_ORIGIN" envDefault:"*"`
	StoreKind  string `env:"FOLIO_STORE" envDefault:"file"`
	StorePath  string `env:"FOLIO_STORE_PATH" envDefault:"folio.jsonl"`
	Currency   string `env:"FOLIO_CURRENCY" envDefault:"EUR"`
	TrackCash  bool   `env:"FOLIO_TRACK_CASH" envDefault:"false"`
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing server config: %w", err)
	}
	return cfg, nil
}
