package janitor

import (
	"time"

	"github.com/caarlos0/env/v6"
)

// Config is read from the environment.
type Config struct {
	Schedule  string        `env:"TEMPMAIL_JANITOR_SCHEDULE" envDefault:"0 */30 * * * *"`
	Retention time.Duration `env:"TEMPMAIL_CREATION_RETENTION" envDefault:"48h"`
}

// LoadConfig parses Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
