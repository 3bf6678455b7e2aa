package processenquiry

import (
	"fmt"
	"time"
)

type Config struct {
	// FollowUpTimeout caps the CRM lead and staff alert steps together.
	FollowUpTimeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{FollowUpTimeout: 10 * time.Second}
}

func (c *Config) Validate() error {
	if c.FollowUpTimeout <= 0 {
		return fmt.Errorf("follow-up timeout must be positive")
	}
	return nil
}
