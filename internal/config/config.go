// Package config loads pinauth settings from defaults, an optional YAML file
// and PINAUTH_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/harrylevesque/pinauth/internal/crypto"
	"github.com/harrylevesque/pinauth/internal/utils"
)

const envPrefix = "PINAUTH"

// Pepper backend names.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendSSM    = "ssm"
	BackendMemory = "memory"
)

type Config struct {
	PinCodeSize int          `mapstructure:"pin_code_size" yaml:"pin_code_size"`
	MaxAttempts int          `mapstructure:"max_attempts" yaml:"max_attempts"`
	Algorithm   string       `mapstructure:"algorithm" yaml:"algorithm"`
	DataDir     string       `mapstructure:"data_dir" yaml:"data_dir"`
	Database    string       `mapstructure:"database" yaml:"database"`
	Pepper      PepperConfig `mapstructure:"pepper" yaml:"pepper"`
	Log         LogConfig    `mapstructure:"log" yaml:"log"`
	Server      ServerConfig `mapstructure:"server" yaml:"server"`
}

type PepperConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	// Dir is used by the file backend; defaults to <data_dir>/pepper.
	Dir string `mapstructure:"dir" yaml:"dir"`
	// Label keys the SQLite row; defaults to the device label.
	Label string `mapstructure:"label" yaml:"label"`
	// Generate creates pepper material on first use.
	Generate  bool   `mapstructure:"generate" yaml:"generate"`
	SSMPrefix string `mapstructure:"ssm_prefix" yaml:"ssm_prefix"`
	SSMRegion string `mapstructure:"ssm_region" yaml:"ssm_region"`
	KMSKeyID  string `mapstructure:"kms_key_id" yaml:"kms_key_id"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("pin_code_size", 6)
	v.SetDefault("max_attempts", 5)
	v.SetDefault("algorithm", string(crypto.DefaultAlgorithm))
	v.SetDefault("data_dir", utils.GetDataDir())
	v.SetDefault("database", "")
	v.SetDefault("pepper.backend", BackendFile)
	v.SetDefault("pepper.dir", "")
	v.SetDefault("pepper.label", "")
	v.SetDefault("pepper.generate", true)
	v.SetDefault("pepper.ssm_prefix", "/pinauth")
	v.SetDefault("pepper.ssm_region", "")
	v.SetDefault("pepper.kms_key_id", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("server.addr", "127.0.0.1:8081")
}

// New returns a viper instance with defaults and env binding. If file is
// non-empty it must exist; otherwise pinauth.yaml is searched in the working
// directory and the data directory.
func New(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
		return v, nil
	}

	v.SetConfigName("pinauth")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(utils.GetDataDir())
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Load builds a validated Config.
func Load(file string) (*Config, error) {
	v, err := New(file)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper decodes and validates the settings held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	c.applyDerived()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDerived() {
	if c.Database == "" {
		c.Database = filepath.Join(c.DataDir, "pinauth.db")
	}
	if c.Pepper.Dir == "" {
		c.Pepper.Dir = filepath.Join(c.DataDir, "pepper")
	}
	if c.Pepper.Label == "" {
		c.Pepper.Label = utils.DeviceLabel()
	}
}

// Validate rejects settings the rest of the program cannot run with.
func (c *Config) Validate() error {
	if c.PinCodeSize < 1 {
		return fmt.Errorf("pin_code_size must be positive, got %d", c.PinCodeSize)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be positive, got %d", c.MaxAttempts)
	}
	if _, err := crypto.ParseAlgorithm(c.Algorithm); err != nil {
		return err
	}
	switch c.Pepper.Backend {
	case BackendFile, BackendSQLite, BackendMemory:
	case BackendSSM:
		if c.Pepper.SSMPrefix == "" {
			return errors.New("pepper.ssm_prefix is required for the ssm backend")
		}
	default:
		return fmt.Errorf("unknown pepper backend %q", c.Pepper.Backend)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// AlgorithmValue returns the parsed AEAD algorithm. Call after Validate.
func (c *Config) AlgorithmValue() crypto.Algorithm {
	alg, _ := crypto.ParseAlgorithm(c.Algorithm)
	return alg
}
