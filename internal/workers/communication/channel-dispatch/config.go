// internal/workers/communication/channel-dispatch/config.go
package channeldispatch

import (
	"fmt"
	"strings"
	"time"

	"estate-assistant/internal/common/config"
	"estate-assistant/internal/models"
)

const defaultAttemptTimeout = 10 * time.Second

type Config struct {
	// AttemptTimeout bounds every single send, not the whole dispatch.
	AttemptTimeout time.Duration
	// TestRecipient, when set, replaces the recipient of every send.
	TestRecipient models.PhoneNumber
}

func DefaultConfig() *Config {
	return &Config{AttemptTimeout: defaultAttemptTimeout}
}

func LoadConfig(c config.MessagingConfig) (*Config, error) {
	cfg := DefaultConfig()
	if c.Timeout > 0 {
		cfg.AttemptTimeout = config.GetDuration(c.Timeout)
	}
	if raw := strings.TrimSpace(c.TestRecipient); raw != "" {
		p, err := models.NewPhoneNumber(raw)
		if err != nil {
			return nil, fmt.Errorf("messaging.test_recipient: %w", err)
		}
		cfg.TestRecipient = p
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.AttemptTimeout <= 0 {
		return fmt.Errorf("attempt timeout must be positive")
	}
	return nil
}
