// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Messaging     MessagingConfig     `mapstructure:"messaging"`
	KnowledgeBase KnowledgeBaseConfig `mapstructure:"knowledge_base"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Integrations  IntegrationConfig   `mapstructure:"integrations"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig holds the webhook listener settings. Timeouts are milliseconds.
type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`
	WriteTimeout    int    `mapstructure:"write_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64  `mapstructure:"max_body_bytes"`
	// Status code returned when the reply went out on the fallback channel.
	FallbackStatusCode int      `mapstructure:"fallback_status_code"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// LLMConfig configures the reply composer.
type LLMConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Timeout     int     `mapstructure:"timeout"` // milliseconds
	MaxRetries  int     `mapstructure:"max_retries"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
	// FallbackMessage is sent when composition fails, unless FailOnError is set.
	FallbackMessage string `mapstructure:"fallback_message"`
	FailOnError     bool   `mapstructure:"fail_on_error"`
	CacheTTL        int    `mapstructure:"cache_ttl"` // seconds, 0 disables
}

// MessagingConfig configures the outbound channels.
type MessagingConfig struct {
	Timeout          int               `mapstructure:"timeout"` // milliseconds, per delivery attempt
	SMSProvider      string            `mapstructure:"sms_provider"`
	DefaultChannel   string            `mapstructure:"default_channel"`
	PlatformChannels map[string]string `mapstructure:"platform_channels"`
	TestRecipient    string            `mapstructure:"test_recipient"`
	Twilio           TwilioConfig      `mapstructure:"twilio"`
	SNS              SNSConfig         `mapstructure:"sns"`
}

type TwilioConfig struct {
	AccountSID   string `mapstructure:"account_sid"`
	AuthToken    string `mapstructure:"auth_token"`
	BaseURL      string `mapstructure:"base_url"`
	SMSFrom      string `mapstructure:"sms_from"`
	WhatsAppFrom string `mapstructure:"whatsapp_from"`
}

type SNSConfig struct {
	Region   string `mapstructure:"region"`
	SenderID string `mapstructure:"sender_id"`
	SMSType  string `mapstructure:"sms_type"`
}

// KnowledgeBaseConfig selects where the canned answers are loaded from at start.
type KnowledgeBaseConfig struct {
	Source   string            `mapstructure:"source"`
	Entries  map[string]string `mapstructure:"entries"`
	RedisKey string            `mapstructure:"redis_key"`
	Table    string            `mapstructure:"table"`
	Index    string            `mapstructure:"index"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
}

// GetURL returns the URL field or the first address
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// IntegrationConfig holds settings for CRM and staff alerting.
type IntegrationConfig struct {
	Zoho struct {
		Enabled    bool   `mapstructure:"enabled"`
		AuthToken  string `mapstructure:"oauth_token"`
		BaseURL    string `mapstructure:"base_url"`
		Timeout    int    `mapstructure:"timeout"` // milliseconds
		LeadSource string `mapstructure:"lead_source"`
	} `mapstructure:"zoho"`

	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			Enabled         bool     `mapstructure:"enabled"`
			FromEmail       string   `mapstructure:"from_email"`
			AlertRecipients []string `mapstructure:"alert_recipients"`
		} `mapstructure:"ses"`
	} `mapstructure:"aws"`
}

type ObservabilityConfig struct {
	ServiceName string `mapstructure:"service_name"`
	Tracing     struct {
		Enabled     bool    `mapstructure:"enabled"`
		Endpoint    string  `mapstructure:"endpoint"`
		Insecure    bool    `mapstructure:"insecure"`
		SampleRatio float64 `mapstructure:"sample_ratio"`
	} `mapstructure:"tracing"`
}
