// Package config loads application configuration and initializes logging.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	OpenPhone OpenPhoneConfig `yaml:"openphone" mapstructure:"openphone"`
	Monday    MondayConfig    `yaml:"monday" mapstructure:"monday"`
	Exports   ExportsConfig   `yaml:"exports" mapstructure:"exports"`
	Gmail     GmailConfig     `yaml:"gmail" mapstructure:"gmail"`
	Collect   CollectConfig   `yaml:"collect" mapstructure:"collect"`
	RunLog    RunLogConfig    `yaml:"runlog" mapstructure:"runlog"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// OpenPhoneConfig holds OpenPhone API settings.
type OpenPhoneConfig struct {
	APIKey    string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	PageSize  int     `yaml:"page_size" mapstructure:"page_size"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// MondayConfig holds Monday.com API credentials and the board layout.
type MondayConfig struct {
	APIKey  string        `yaml:"api_key" mapstructure:"api_key"`
	APIURL  string        `yaml:"api_url" mapstructure:"api_url"`
	BoardID string        `yaml:"board_id" mapstructure:"board_id"`
	Columns ColumnsConfig `yaml:"columns" mapstructure:"columns"`
}

// ColumnsConfig maps the board's fixed column identifiers.
type ColumnsConfig struct {
	Phone1       string `yaml:"phone1" mapstructure:"phone1"`
	Phone2       string `yaml:"phone2" mapstructure:"phone2"`
	DateCreated  string `yaml:"date_created" mapstructure:"date_created"`
	LastActivity string `yaml:"last_activity" mapstructure:"last_activity"`
}

// ExportsConfig locates OpenPhone data exports on disk.
type ExportsConfig struct {
	Dir               string `yaml:"dir" mapstructure:"dir"`
	FormattedContacts string `yaml:"formatted_contacts" mapstructure:"formatted_contacts"`
}

// GmailConfig holds the inbox-polling credentials.
type GmailConfig struct {
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`
	TokenFile       string `yaml:"token_file" mapstructure:"token_file"`
}

// CollectConfig configures the API snapshot job.
type CollectConfig struct {
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
	OutputDir   string `yaml:"output_dir" mapstructure:"output_dir"`
}

// RunLogConfig configures the local run log.
type RunLogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OPSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("openphone.base_url", "https://api.openphone.com/v1")
	v.SetDefault("openphone.page_size", 100)
	v.SetDefault("openphone.rate_limit", 10)
	v.SetDefault("monday.api_url", "https://api.monday.com/v2")
	v.SetDefault("monday.board_id", "9551098786")
	v.SetDefault("monday.columns.phone1", "phone_mkt3jq7b")
	v.SetDefault("monday.columns.phone2", "phone_mkt347kq")
	v.SetDefault("monday.columns.date_created", "date_mkt4rd5k")
	v.SetDefault("monday.columns.last_activity", "date_mkt4rfsf")
	v.SetDefault("exports.dir", "openphone_exports")
	v.SetDefault("exports.formatted_contacts", "formatted_contacts.csv")
	v.SetDefault("gmail.credentials_file", "credentials.json")
	v.SetDefault("gmail.token_file", "token.json")
	v.SetDefault("collect.concurrency", 8)
	v.SetDefault("collect.output_dir", "outputs")
	v.SetDefault("runlog.path", "opsync.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// RequireOpenPhone fails fast when the OpenPhone credential is missing.
func (c *Config) RequireOpenPhone() error {
	if c.OpenPhone.APIKey == "" {
		return eris.New("config: OPSYNC_OPENPHONE_API_KEY not set")
	}
	return nil
}

// RequireMonday fails fast when the Monday credential is missing.
func (c *Config) RequireMonday() error {
	if c.Monday.APIKey == "" {
		return eris.New("config: OPSYNC_MONDAY_API_KEY not set")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
