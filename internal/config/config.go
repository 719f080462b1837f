// Package config loads application configuration from file and environment
// and initializes the global logger.
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
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Policy  PolicyConfig  `yaml:"policy" mapstructure:"policy"`
	Rules   RulesConfig   `yaml:"rules" mapstructure:"rules"`
	Archive ArchiveConfig `yaml:"archive" mapstructure:"archive"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the validation store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PolicyConfig configures eligibility and escalation policy.
type PolicyConfig struct {
	MinExperienceYearsCritical      int  `yaml:"min_experience_years_critical" mapstructure:"min_experience_years_critical"`
	RequireDoubleValidationCritical bool `yaml:"require_double_validation_critical" mapstructure:"require_double_validation_critical"`
}

// RulesConfig configures automated rule execution.
type RulesConfig struct {
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ArchiveConfig configures the audit archive backend.
type ArchiveConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	Root   string `yaml:"root" mapstructure:"root"`

	S3Bucket          string `yaml:"s3_bucket" mapstructure:"s3_bucket"`
	S3Region          string `yaml:"s3_region" mapstructure:"s3_region"`
	S3Endpoint        string `yaml:"s3_endpoint" mapstructure:"s3_endpoint"`
	S3AccessKeyID     string `yaml:"s3_access_key_id" mapstructure:"s3_access_key_id"`
	S3SecretAccessKey string `yaml:"s3_secret_access_key" mapstructure:"s3_secret_access_key"`
	S3PathStyle       bool   `yaml:"s3_path_style" mapstructure:"s3_path_style"`
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
	v.SetEnvPrefix("CLINICORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "clinicore.db")
	v.SetDefault("policy.min_experience_years_critical", 10)
	v.SetDefault("policy.require_double_validation_critical", true)
	v.SetDefault("rules.timeout_secs", 0)
	v.SetDefault("archive.driver", "fs")
	v.SetDefault("archive.root", "./archivedata")
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
