// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ChannelWhatsApp = "whatsapp"
	ChannelSMS      = "sms"

	SMSProviderTwilio = "twilio"
	SMSProviderSNS    = "sns"

	SourceStatic        = "static"
	SourceRedis         = "redis"
	SourcePostgres      = "postgres"
	SourceElasticsearch = "elasticsearch"
)

// DefaultPlatformChannels maps known enquiry platforms onto a delivery channel.
// Property portals only hand over a phone number, so they get SMS.
var DefaultPlatformChannels = map[string]string{
	"whatsapp":    ChannelWhatsApp,
	"sms":         ChannelSMS,
	"zoopla":      ChannelSMS,
	"rightmove":   ChannelSMS,
	"onthemarket": ChannelSMS,
	"website":     ChannelSMS,
}

const defaultFallbackMessage = "Thanks for your enquiry. One of our team will get back to you shortly."

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top,
// expands ${VAR} placeholders and applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")
	if root := findProjectRoot(); root != "" {
		v.AddConfigPath(filepath.Join(root, "configs"))
	}
	bindEnv(v)

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return finish(v)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// loadEnvFile loads the first .env found walking up from the working directory.
func loadEnvFile() string {
	possiblePaths := []string{".env", "../.env", "../../.env", "../../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// findProjectRoot walks up looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets from their conventional variable names
// when neither the file nor the key-derived env var set them.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.LLM.APIKey, "OPENAI_API_KEY")
	setIfEmpty(&cfg.Messaging.Twilio.AccountSID, "TWILIO_ACCOUNT_SID")
	setIfEmpty(&cfg.Messaging.Twilio.AuthToken, "TWILIO_AUTH_TOKEN")
	setIfEmpty(&cfg.Messaging.Twilio.SMSFrom, "TWILIO_FROM_NUMBER")
	setIfEmpty(&cfg.Messaging.Twilio.WhatsAppFrom, "TWILIO_WHATSAPP_FROM")
	setIfEmpty(&cfg.Messaging.TestRecipient, "TEST_RECIPIENT_NUMBER")
	setIfEmpty(&cfg.Integrations.Zoho.AuthToken, "ZOHO_CRM_OAUTH_TOKEN")
	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	setIfEmpty(&cfg.Database.Redis.Password, "REDIS_PASSWORD")
}

func setIfEmpty(dst *string, envKey string) {
	if *dst != "" {
		return
	}
	if val := os.Getenv(envKey); val != "" {
		*dst = val
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "estate-assistant"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	// Server
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":5000"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 45000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 64 << 10
	}
	if cfg.Server.FallbackStatusCode == 0 {
		cfg.Server.FallbackStatusCode = 200
	}
	if len(cfg.Server.CORSAllowedOrigins) == 0 {
		cfg.Server.CORSAllowedOrigins = []string{"*"}
	}

	// Logging
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	// LLM
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.openai.com"
	}
	cfg.LLM.BaseURL = strings.TrimRight(cfg.LLM.BaseURL, "/")
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 10000
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 300
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.3
	}
	if cfg.LLM.FallbackMessage == "" {
		cfg.LLM.FallbackMessage = defaultFallbackMessage
	}

	// Messaging
	if cfg.Messaging.Timeout == 0 {
		cfg.Messaging.Timeout = 10000
	}
	cfg.Messaging.SMSProvider = strings.ToLower(strings.TrimSpace(cfg.Messaging.SMSProvider))
	if cfg.Messaging.SMSProvider == "" {
		cfg.Messaging.SMSProvider = SMSProviderTwilio
	}
	cfg.Messaging.DefaultChannel = strings.ToLower(strings.TrimSpace(cfg.Messaging.DefaultChannel))
	if cfg.Messaging.DefaultChannel == "" {
		cfg.Messaging.DefaultChannel = ChannelSMS
	}
	merged := make(map[string]string, len(DefaultPlatformChannels)+len(cfg.Messaging.PlatformChannels))
	for k, v := range DefaultPlatformChannels {
		merged[k] = v
	}
	for k, v := range cfg.Messaging.PlatformChannels {
		merged[strings.ToLower(strings.TrimSpace(k))] = strings.ToLower(strings.TrimSpace(v))
	}
	cfg.Messaging.PlatformChannels = merged
	if cfg.Messaging.Twilio.BaseURL == "" {
		cfg.Messaging.Twilio.BaseURL = "https://api.twilio.com/2010-04-01"
	}
	if cfg.Messaging.SNS.SMSType == "" {
		cfg.Messaging.SNS.SMSType = "Transactional"
	}

	// Knowledge base
	cfg.KnowledgeBase.Source = strings.ToLower(strings.TrimSpace(cfg.KnowledgeBase.Source))
	if cfg.KnowledgeBase.Source == "" {
		cfg.KnowledgeBase.Source = SourceStatic
	}
	if cfg.KnowledgeBase.RedisKey == "" {
		cfg.KnowledgeBase.RedisKey = "knowledge_base"
	}
	if cfg.KnowledgeBase.Table == "" {
		cfg.KnowledgeBase.Table = "knowledge_base"
	}
	if cfg.KnowledgeBase.Index == "" {
		cfg.KnowledgeBase.Index = "knowledge-base"
	}

	// Database
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 2
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}
	if len(cfg.Database.Elasticsearch.Addresses) == 0 && cfg.Database.Elasticsearch.URL != "" {
		cfg.Database.Elasticsearch.Addresses = []string{cfg.Database.Elasticsearch.URL}
	}

	// Integrations
	if cfg.Integrations.Zoho.BaseURL == "" {
		cfg.Integrations.Zoho.BaseURL = "https://www.zohoapis.com/crm/v3"
	}
	if cfg.Integrations.Zoho.Timeout == 0 {
		cfg.Integrations.Zoho.Timeout = 5000
	}
	if cfg.Integrations.Zoho.LeadSource == "" {
		cfg.Integrations.Zoho.LeadSource = "Enquiry Assistant"
	}
	if cfg.Integrations.AWS.Region == "" {
		cfg.Integrations.AWS.Region = "eu-west-2"
	}
	if cfg.Messaging.SNS.Region == "" {
		cfg.Messaging.SNS.Region = cfg.Integrations.AWS.Region
	}

	// Observability
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = cfg.App.Name
	}
	if cfg.Observability.Tracing.SampleRatio == 0 {
		cfg.Observability.Tracing.SampleRatio = 1
	}
}

func isChannel(s string) bool {
	return s == ChannelWhatsApp || s == ChannelSMS
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	if cfg.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must not be negative")
	}

	if cfg.Server.FallbackStatusCode < 200 || cfg.Server.FallbackStatusCode > 599 {
		return fmt.Errorf("server.fallback_status_code %d is not a valid HTTP status", cfg.Server.FallbackStatusCode)
	}

	if !isChannel(cfg.Messaging.DefaultChannel) {
		return fmt.Errorf("messaging.default_channel must be %q or %q", ChannelWhatsApp, ChannelSMS)
	}
	for platform, channel := range cfg.Messaging.PlatformChannels {
		if !isChannel(channel) {
			return fmt.Errorf("messaging.platform_channels.%s: unknown channel %q", platform, channel)
		}
	}

	tw := cfg.Messaging.Twilio
	if tw.AccountSID == "" || tw.AuthToken == "" {
		return fmt.Errorf("messaging.twilio.account_sid and messaging.twilio.auth_token are required")
	}
	if tw.WhatsAppFrom == "" {
		return fmt.Errorf("messaging.twilio.whatsapp_from is required")
	}
	switch cfg.Messaging.SMSProvider {
	case SMSProviderTwilio:
		if tw.SMSFrom == "" {
			return fmt.Errorf("messaging.twilio.sms_from is required when sms_provider is twilio")
		}
	case SMSProviderSNS:
		if cfg.Messaging.SNS.Region == "" {
			return fmt.Errorf("messaging.sns.region is required when sms_provider is sns")
		}
	default:
		return fmt.Errorf("messaging.sms_provider %q is not supported", cfg.Messaging.SMSProvider)
	}

	switch cfg.KnowledgeBase.Source {
	case SourceStatic:
		if len(cfg.KnowledgeBase.Entries) == 0 {
			return fmt.Errorf("knowledge_base.entries is required when source is static")
		}
	case SourceRedis:
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required when knowledge_base.source is redis")
		}
	case SourcePostgres:
		pg := cfg.Database.Postgres
		if pg.Host == "" || pg.Database == "" || pg.User == "" {
			return fmt.Errorf("database.postgres host, database and user are required when knowledge_base.source is postgres")
		}
	case SourceElasticsearch:
		if cfg.Database.Elasticsearch.GetURL() == "" {
			return fmt.Errorf("database.elasticsearch.addresses or url is required when knowledge_base.source is elasticsearch")
		}
	default:
		return fmt.Errorf("knowledge_base.source %q is not supported", cfg.KnowledgeBase.Source)
	}

	if cfg.LLM.CacheTTL > 0 && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required when llm.cache_ttl is set")
	}

	if cfg.Integrations.Zoho.Enabled && cfg.Integrations.Zoho.AuthToken == "" {
		return fmt.Errorf("integrations.zoho.oauth_token is required when zoho is enabled")
	}
	ses := cfg.Integrations.AWS.SES
	if ses.Enabled && (ses.FromEmail == "" || len(ses.AlertRecipients) == 0) {
		return fmt.Errorf("integrations.aws.ses.from_email and alert_recipients are required when ses is enabled")
	}

	if cfg.Observability.Tracing.Enabled && cfg.Observability.Tracing.Endpoint == "" {
		return fmt.Errorf("observability.tracing.endpoint is required when tracing is enabled")
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
