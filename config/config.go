package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type (
	StorageConfig struct {
		Type     string // memory, filesystem, sqlite, s3 or remote
		Path     string
		DSN      string
		Bucket   string
		Endpoint string
		URL      string
		Token    string
	}

	PersistConfig struct {
		SaveDelay    time.Duration
		ReadyTimeout time.Duration
		SaveTimeout  time.Duration
		FailSilently bool
	}

	HistoryConfig struct {
		Limit int
	}

	ShareConfig struct {
		Secret   string
		BaseURL  string
		TokenTTL time.Duration
	}

	Config struct {
		LogLevel    string
		Listen      string
		CORSOrigins []string
		Storage     StorageConfig
		Persist     PersistConfig
		History     HistoryConfig
		Share       ShareConfig
	}
)

const envPrefix = "SCENE"

// legacyEnv maps keys to the unprefixed variable names older deployments use.
var legacyEnv = map[string]string{
	"storage.type":     "STORAGE_TYPE",
	"storage.path":     "LOCAL_STORAGE_PATH",
	"storage.dsn":      "DATA_SOURCE_NAME",
	"storage.bucket":   "S3_BUCKET_NAME",
	"storage.endpoint": "S3_ENDPOINT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("listen", ":3002")
	v.SetDefault("cors.origins", []string{"http://localhost:*", "http://127.0.0.1:*"})

	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.path", "./data")
	v.SetDefault("storage.dsn", "scenes.db")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.url", "http://localhost:3002")
	v.SetDefault("storage.token", "")

	v.SetDefault("persist.save_delay", 800*time.Millisecond)
	v.SetDefault("persist.ready_timeout", 5*time.Second)
	v.SetDefault("persist.save_timeout", 10*time.Second)
	v.SetDefault("persist.fail_silently", true)

	v.SetDefault("history.limit", 0)

	v.SetDefault("share.secret", "")
	v.SetDefault("share.base_url", "http://localhost:3002")
	v.SetDefault("share.token_ttl", 30*24*time.Hour)
}

// Load reads configuration from defaults, an optional .env file, SCENE_* environment
// variables and, when configFile is not empty, a config file (JSON, YAML or TOML).
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found")
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		LogLevel:    v.GetString("log.level"),
		Listen:      v.GetString("listen"),
		CORSOrigins: v.GetStringSlice("cors.origins"),
		Storage: StorageConfig{
			Type:     strings.ToLower(v.GetString("storage.type")),
			Path:     v.GetString("storage.path"),
			DSN:      v.GetString("storage.dsn"),
			Bucket:   v.GetString("storage.bucket"),
			Endpoint: v.GetString("storage.endpoint"),
			URL:      v.GetString("storage.url"),
			Token:    v.GetString("storage.token"),
		},
		Persist: PersistConfig{
			SaveDelay:    v.GetDuration("persist.save_delay"),
			ReadyTimeout: v.GetDuration("persist.ready_timeout"),
			SaveTimeout:  v.GetDuration("persist.save_timeout"),
			FailSilently: v.GetBool("persist.fail_silently"),
		},
		History: HistoryConfig{
			Limit: v.GetInt("history.limit"),
		},
		Share: ShareConfig{
			Secret:   v.GetString("share.secret"),
			BaseURL:  v.GetString("share.base_url"),
			TokenTTL: v.GetDuration("share.token_ttl"),
		},
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	if cfg.Persist.SaveDelay <= 0 {
		return nil, fmt.Errorf("persist.save_delay must be positive, got %s", cfg.Persist.SaveDelay)
	}
	if cfg.History.Limit < 0 {
		return nil, fmt.Errorf("history.limit must not be negative, got %d", cfg.History.Limit)
	}
	return cfg, nil
}

// Default returns the configuration built from defaults alone.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := fromViper(v)
	if err != nil {
		panic(err)
	}
	return cfg
}

// ApplyLogging configures the global logrus logger the way every binary expects.
func (c *Config) ApplyLogging() {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}
