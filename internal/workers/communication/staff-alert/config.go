package staffalert

import (
	"fmt"
	"strings"
	"time"

	"estate-assistant/internal/common/config"
)

const (
	defaultSubject = "Enquiry {{enquiryId}} could not be answered"
	defaultBody    = "An enquiry received via {{platform}} could not be answered on any channel.\n\n" +
		"Enquiry: {{enquiryId}}\n" +
		"Customer: {{recipient}}\n" +
		"Question: {{query}}\n" +
		"Attempted: {{attemptedChannel}} ({{attempts}} attempts)\n" +
		"Error: {{errorCode}} {{errorDetails}}\n\n" +
		"Please contact the customer directly."
)

type Config struct {
	Enabled         bool
	FromEmail       string
	Recipients      []string
	SubjectTemplate string
	BodyTemplate    string
	Timeout         time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		SubjectTemplate: defaultSubject,
		BodyTemplate:    defaultBody,
		Timeout:         5 * time.Second,
	}
}

func LoadConfig(c config.IntegrationConfig) *Config {
	cfg := DefaultConfig()
	cfg.Enabled = c.AWS.SES.Enabled
	cfg.FromEmail = strings.TrimSpace(c.AWS.SES.FromEmail)
	for _, r := range c.AWS.SES.AlertRecipients {
		if r = strings.TrimSpace(r); r != "" {
			cfg.Recipients = append(cfg.Recipients, r)
		}
	}
	return cfg
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if !c.Enabled {
		return nil
	}
	if c.FromEmail == "" {
		return fmt.Errorf("from_email is required")
	}
	if len(c.Recipients) == 0 {
		return fmt.Errorf("at least one alert recipient is required")
	}
	return nil
}
