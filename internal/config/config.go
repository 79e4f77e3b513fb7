// Package config loads service configuration from a YAML file with
// environment-variable overrides (LOSTFOUND_*).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jongsul/lostfound/internal/model"
)

// Config is the full service configuration.
type Config struct {
	Addr    string `mapstructure:"addr"`
	DBPath  string `mapstructure:"db_path"`
	LogPath string `mapstructure:"log_path"`

	// JWTSecret overrides the auto-generated secret persisted in the
	// settings table. Leave empty outside of multi-instance deployments.
	JWTSecret string `mapstructure:"jwt_secret"`

	// ClaimFrom is the item status claims are accepted from: "stored"
	// (kiosk-ingestion flow) or "lost" (self-report flow). Exactly one.
	ClaimFrom string `mapstructure:"claim_from"`

	// CodeTTL is the pickup code validity window.
	CodeTTL time.Duration `mapstructure:"code_ttl"`

	AWS  AWSConfig  `mapstructure:"aws"`
	SMTP SMTPConfig `mapstructure:"smtp"`
}

// AWSConfig holds the AWS collaborator settings.
type AWSConfig struct {
	Region            string `mapstructure:"region"`
	PhotoBucket       string `mapstructure:"photo_bucket"`
	LockerTopicPrefix string `mapstructure:"locker_topic_prefix"`
	IngestQueueURL    string `mapstructure:"ingest_queue_url"`
	VerificationTable string `mapstructure:"verification_table"`
}

// SMTPConfig holds the verification-mail account.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// Load reads config.yaml from the given path (or the working directory when
// empty) and applies defaults and env overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	} else {
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("lostfound")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("addr", ":8080")
	v.SetDefault("db_path", "lostfound.sqlite3")
	v.SetDefault("claim_from", model.ItemStatusStored)
	v.SetDefault("code_ttl", 7*24*time.Hour)
	v.SetDefault("aws.region", "ap-northeast-2")
	v.SetDefault("aws.locker_topic_prefix", "locker")
	v.SetDefault("smtp.port", 465)

	if err := v.ReadInConfig(); err != nil {
		// Running purely on defaults and env is fine; a malformed file is not.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if cfg.ClaimFrom != model.ItemStatusStored && cfg.ClaimFrom != model.ItemStatusLost {
		return nil, fmt.Errorf("claim_from must be %q or %q, got %q",
			model.ItemStatusStored, model.ItemStatusLost, cfg.ClaimFrom)
	}

	return &cfg, nil
}
