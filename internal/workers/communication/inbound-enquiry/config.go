// internal/workers/communication/inbound-enquiry/config.go
package inboundenquiry

import (
	"fmt"
	"strings"

	"estate-assistant/internal/common/config"
	"estate-assistant/internal/models"
)

type Config struct {
	// PlatformChannels maps a lower-case platform name to its preferred channel.
	PlatformChannels map[string]models.Channel
	DefaultChannel   models.Channel
}

func DefaultConfig() *Config {
	cfg := &Config{
		PlatformChannels: make(map[string]models.Channel, len(config.DefaultPlatformChannels)),
		DefaultChannel:   models.ChannelSMS,
	}
	for p, c := range config.DefaultPlatformChannels {
		cfg.PlatformChannels[p] = models.Channel(c)
	}
	return cfg
}

// FromAppConfig builds the adapter config from the messaging section.
func FromAppConfig(m config.MessagingConfig) (*Config, error) {
	cfg := &Config{PlatformChannels: make(map[string]models.Channel, len(m.PlatformChannels))}

	def, err := models.ParseChannel(m.DefaultChannel)
	if err != nil {
		return nil, fmt.Errorf("default channel: %w", err)
	}
	cfg.DefaultChannel = def

	for platform, channel := range m.PlatformChannels {
		c, err := models.ParseChannel(channel)
		if err != nil {
			return nil, fmt.Errorf("platform %s: %w", platform, err)
		}
		cfg.PlatformChannels[strings.ToLower(strings.TrimSpace(platform))] = c
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if !c.DefaultChannel.Valid() {
		return fmt.Errorf("default channel %q is not valid", c.DefaultChannel)
	}
	for p, ch := range c.PlatformChannels {
		if !ch.Valid() {
			return fmt.Errorf("platform %s maps to invalid channel %q", p, ch)
		}
	}
	return nil
}
