package config

import (
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/swapboard/swapboard/src/data"
	"gorm.io/gorm"
)

// Bootstrap loads the configuration sources that exist before a database
// connection does: an optional .env file, an optional config.yaml, and the
// process environment. Environment variables override file values.
func Bootstrap() {
	if err := godotenv.Load(); err != nil {
		log.Printf("config: no .env file, relying on the environment")
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("config: no config.yaml, relying on the environment")
		} else {
			log.Fatalf("config: parse config.yaml: %v", err)
		}
	}
}

// MySQLDSN and RedisURL are needed to open the stores, so they only come
// from the bootstrap sources.
func MySQLDSN() string { return viper.GetString("mysql_dsn") }
func RedisURL() string { return viper.GetString("redis_url") }

// Config resolves every remaining knob through three layers: the settings
// table (live, cached), then viper (environment or config.yaml), then a
// built-in default.
type Config struct {
	settings *data.Settings
}

func New(db *gorm.DB) *Config {
	return &Config{settings: data.NewSettings(db, 0)}
}

// Settings exposes the underlying cache so moderator tooling can
// invalidate it after a write.
func (c *Config) Settings() *data.Settings { return c.settings }

// Get resolves a single knob. The settings-table key and the viper key are
// the same name.
func (c *Config) Get(name, defaultValue string) string {
	if val := c.settings.Get(name); val != "" {
		return val
	}
	if val := viper.GetString(name); val != "" {
		return val
	}
	return defaultValue
}

func (c *Config) getInt(name string, defaultValue int) int {
	raw := c.Get(name, "")
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config: %s=%q is not a number, using %d", name, raw, defaultValue)
		return defaultValue
	}
	return n
}

func (c *Config) Token() string   { return c.Get("discord_token", "") }
func (c *Config) GuildID() string { return c.Get("guild_id", "") }

// ModeratorRoleID gates the force commands. Empty means Manage Messages
// only.
func (c *Config) ModeratorRoleID() string { return c.Get("moderator_role_id", "") }

// DaysInactive is the staleness threshold for the auto-bump sweep.
func (c *Config) DaysInactive() int { return c.getInt("bump_days_inactive", 7) }

// BumpCron is the sweep schedule in cron syntax.
func (c *Config) BumpCron() string { return c.Get("bump_cron", "@hourly") }

// ClaimTTL is how long a pending claim stays resolvable.
func (c *Config) ClaimTTL() time.Duration {
	return time.Duration(c.getInt("claim_ttl_minutes", 5)) * time.Minute
}

// TokenTTL is how long a modal payload token stays redeemable.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.getInt("token_ttl_minutes", 5)) * time.Minute
}
