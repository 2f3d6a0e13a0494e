package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config is the service configuration, parsed from the environment. All
// optimizer tuning lives here and is handed to the driver at construction;
// nothing is read from package-level state at request time.
type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
		RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"60s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Optimizer struct {
		// Workers caps parallel objective evaluation per request.
		Workers int `env:"OPT_WORKERS" envDefault:"4"`
		// PopulationSize, MaxGenerations and PlateauWindow are the
		// evolutionary-strategy defaults for requests that do not set them.
		PopulationSize int `env:"OPT_POPULATION_SIZE" envDefault:"200"`
		MaxGenerations int `env:"OPT_MAX_GENERATIONS" envDefault:"120"`
		PlateauWindow  int `env:"OPT_PLATEAU_WINDOW" envDefault:"15"`
	}
}

// Load parses the configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}

	return cfg, nil
}
