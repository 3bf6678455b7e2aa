package crmleadcreate

import (
	"fmt"
	"time"

	"estate-assistant/internal/common/config"
)

type Config struct {
	Enabled bool
	Timeout time.Duration
	// LeadSource overrides the inbound platform as the Zoho Lead_Source.
	LeadSource string
}

func DefaultConfig() *Config {
	return &Config{
		Enabled: false,
		Timeout: 5 * time.Second,
	}
}

func LoadConfig(c config.IntegrationConfig) *Config {
	cfg := DefaultConfig()
	cfg.Enabled = c.Zoho.Enabled
	cfg.LeadSource = c.Zoho.LeadSource
	if c.Zoho.Timeout > 0 {
		cfg.Timeout = config.GetDuration(c.Zoho.Timeout)
	}
	return cfg
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}
