// Package configpkg provides parsing functionality for environment variables.
package configpkg

import (
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
//
// The values are read by viper from a config file or environment variables.
type Config struct {
	DBDriver             string        `mapstructure:"DB_DRIVER"`
	DBSource             string        `mapstructure:"DB_SOURCE"`
	MigrationURL         string        `mapstructure:"MIGRATION_URL"`
	ServerAddress        string        `mapstructure:"SERVER_ADDRESS"`
	TokenType            string        `mapstructure:"TOKEN_TYPE"`
	TokenSymmetricKey    string        `mapstructure:"TOKEN_SYMMETRIC_KEY"`
	AccessTokenDuration  time.Duration `mapstructure:"ACCESS_TOKEN_DURATION"`
	RefreshTokenDuration time.Duration `mapstructure:"REFRESH_TOKEN_DURATION"`
	Environment          string        `mapstructure:"GO_ENV"`
	LockTimeout          time.Duration `mapstructure:"LOCK_TIMEOUT"`
	MaxCommitAttempts    int           `mapstructure:"MAX_COMMIT_ATTEMPTS"`
}

// Defaults applied when the config file and environment leave a value unset.
const (
	DefaultLockTimeout       = 5 * time.Second
	DefaultMaxCommitAttempts = 3
	DefaultTokenType         = "paseto"
)

// Load read configuration from file or environment variables.
func Load(path string) (Config, error) {
	var c Config

	viper.AddConfigPath(path)
	viper.SetConfigName("app")
	viper.SetConfigType("env")

	viper.SetDefault("TOKEN_TYPE", DefaultTokenType)
	viper.SetDefault("LOCK_TIMEOUT", DefaultLockTimeout)
	viper.SetDefault("MAX_COMMIT_ATTEMPTS", DefaultMaxCommitAttempts)

	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err != nil {
		return c, err
	}

	err = viper.Unmarshal(&c)
	if err != nil {
		return c, err
	}

	return c, nil
}
