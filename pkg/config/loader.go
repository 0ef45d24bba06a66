package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load fills cfg from environment variables described by `env` struct tags.
//
//	type Config struct {
//	    Port      int    `env:"CART_HTTP_PORT" envDefault:"8003"`
//	    SlotStore string `env:"CART_SLOT_BACKEND" envDefault:"redis"`
//	}
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// LoadWithPrefix is Load with every tag name prefixed, so two instances of the
// same struct can be read from distinct variable sets.
func LoadWithPrefix(cfg any, prefix string) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: prefix}); err != nil {
		return fmt.Errorf("parse config with prefix %q: %w", prefix, err)
	}
	return nil
}
