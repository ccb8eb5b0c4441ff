// Package rconfig loads the named option set that governs a rangedb store:
// where it persists to, how big its page cache is, and whether writes are
// forwarded through the store-and-forward daemon.
package rconfig

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
)

// Config is the full set of named options from the external interface.
type Config struct {
	// DBHome is the directory bbolt databases are created under.
	DBHome string
	// CacheSize bounds the bbolt page cache, in bytes.
	CacheSize int64
	// UseStored routes writes through the forwarding daemon instead of
	// committing locally.
	UseStored bool
	// StoredMQName names the daemon's request queue.
	StoredMQName string
	// StoredRequestTimeout bounds how long a forwarded write waits for an ack.
	StoredRequestTimeout time.Duration
	// ReaderAckTimeout bounds how long a reader waits to observe a new
	// range version after being notified of one.
	ReaderAckTimeout time.Duration
	// RangeSymbolTable names the environment whose tags seed the builtin
	// function registry's defaults (empty disables this).
	RangeSymbolTable string
}

// Default returns the option set a fresh, single-process store should use.
func Default() Config {
	return Config{
		DBHome:               "./var/rangedb",
		CacheSize:            64 << 20, // 64MiB
		UseStored:            false,
		StoredMQName:         "rangedb_stored",
		StoredRequestTimeout: 5 * time.Second,
		ReaderAckTimeout:     2 * time.Second,
	}
}

// Load reads the option set from configFile (if non-empty), environment
// variables prefixed RANGEDB_, and finally falls back to Default.
func Load(configFile string) (Config, error) {
	v := viper.New()
	cfg := Default()

	v.SetDefault("db_home", cfg.DBHome)
	v.SetDefault("cache_size", cfg.CacheSize)
	v.SetDefault("use_stored", cfg.UseStored)
	v.SetDefault("stored_mq_name", cfg.StoredMQName)
	v.SetDefault("stored_request_timeout", cfg.StoredRequestTimeout.String())
	v.SetDefault("reader_ack_timeout", cfg.ReaderAckTimeout.String())
	v.SetDefault("range_symbol_table", cfg.RangeSymbolTable)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("rangedb")
	}

	v.SetEnvPrefix("rangedb")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if configFile != "" {
			return Config{}, fmt.Errorf("reading config file %s: %w", configFile, err)
		}
		// No config file is fine; defaults + env vars still apply.
	}

	reqTimeout, err := time.ParseDuration(v.GetString("stored_request_timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("stored_request_timeout: %w", err)
	}
	ackTimeout, err := time.ParseDuration(v.GetString("reader_ack_timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("reader_ack_timeout: %w", err)
	}

	cfg = Config{
		DBHome:               v.GetString("db_home"),
		CacheSize:            v.GetInt64("cache_size"),
		UseStored:            v.GetBool("use_stored"),
		StoredMQName:         v.GetString("stored_mq_name"),
		StoredRequestTimeout: reqTimeout,
		ReaderAckTimeout:     ackTimeout,
		RangeSymbolTable:     v.GetString("range_symbol_table"),
	}

	return cfg, cfg.Validate()
}

// Validator accumulates configuration errors, in the same style used
// elsewhere in this codebase for request and option validation.
type Validator struct {
	errors []string
}

// NewValidator returns an empty Validator.
func NewValidator() *Validator { return &Validator{} }

func (v *Validator) RequireString(field, value string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
	}
}

func (v *Validator) RequirePositiveInt64(field string, value int64) {
	if value <= 0 {
		v.errors = append(v.errors, fmt.Sprintf("%s must be positive, got %s", field, humanize.Bytes(uint64(max(value, 0)))))
	}
}

func (v *Validator) RequirePositiveDuration(field string, value time.Duration) {
	if value <= 0 {
		v.errors = append(v.errors, fmt.Sprintf("%s must be a positive duration, got %s", field, value))
	}
}

func (v *Validator) IsValid() bool { return len(v.errors) == 0 }

func (v *Validator) Error() error {
	if v.IsValid() {
		return nil
	}
	return fmt.Errorf("configuration validation failed: %s", strings.Join(v.errors, "; "))
}

// Validate checks the loaded Config for internal consistency.
func (c Config) Validate() error {
	v := NewValidator()
	v.RequireString("db_home", c.DBHome)
	v.RequirePositiveInt64("cache_size", c.CacheSize)
	v.RequirePositiveDuration("stored_request_timeout", c.StoredRequestTimeout)
	v.RequirePositiveDuration("reader_ack_timeout", c.ReaderAckTimeout)
	if c.UseStored {
		v.RequireString("stored_mq_name", c.StoredMQName)
	}
	return v.Error()
}

func max(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
