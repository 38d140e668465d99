package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// Remote insights endpoint
	APIKey       string `mapstructure:"api_key" yaml:"api_key"`
	InsightsURL  string `mapstructure:"insights_url" yaml:"insights_url"`
	InsightsTask string `mapstructure:"insights_task" yaml:"insights_task"`

	// Chat-completion credential check
	ChatAPIKey    string `mapstructure:"chat_api_key" yaml:"chat_api_key"`
	ChatURL       string `mapstructure:"chat_url" yaml:"chat_url"`
	ChatModel     string `mapstructure:"chat_model" yaml:"chat_model"`
	ChatMaxTokens int    `mapstructure:"chat_max_tokens" yaml:"chat_max_tokens"`

	HTTPTimeoutSec int    `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	OutputDir      string `mapstructure:"output_dir" yaml:"output_dir"`

	// Upload service
	ListenAddr  string `mapstructure:"listen_addr" yaml:"listen_addr"`
	MaxUploadMB int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	MaxSessions int    `mapstructure:"max_sessions" yaml:"max_sessions"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" yaml:"log_json"`
}

// Keys lists the settable configuration keys in display order.
var Keys = []string{
	"api_key", "insights_url", "insights_task",
	"chat_api_key", "chat_url", "chat_model", "chat_max_tokens",
	"http_timeout_sec", "output_dir",
	"listen_addr", "max_upload_mb", "max_sessions",
	"log_level", "log_json",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_key", "")
	v.SetDefault("insights_url", "https://api.deepseek.com/v1/analyze")
	v.SetDefault("insights_task", "exploratory_data_analysis")
	v.SetDefault("chat_api_key", "")
	v.SetDefault("chat_url", "https://api.openai.com/v1")
	v.SetDefault("chat_model", "gpt-3.5-turbo")
	v.SetDefault("chat_max_tokens", 50)
	v.SetDefault("http_timeout_sec", 120)
	v.SetDefault("output_dir", ".")
	v.SetDefault("listen_addr", "127.0.0.1:8501")
	v.SetDefault("max_upload_mb", 50)
	v.SetDefault("max_sessions", 32)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// Dir returns ~/.edaloom.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".edaloom"), nil
}

// Path resolves the config file: cfgFile when set, else ~/.edaloom/config.yaml.
func Path(cfgFile string) (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Save writes c as YAML to Path(cfgFile), creating the parent directory.
func Save(c *Global, cfgFile string) error {
	path, err := Path(cfgFile)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	// The file holds credentials.
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("EDALOOM")
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		// Missing files fall back to env and defaults; malformed ones do not.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// HTTPTimeout returns the configured HTTP timeout, defaulting to 120s.
func (c *Global) HTTPTimeout() time.Duration {
	if c.HTTPTimeoutSec <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Global) MaxUploadBytes() int64 {
	if c.MaxUploadMB <= 0 {
		return 50 << 20
	}
	return int64(c.MaxUploadMB) << 20
}

// Set validates value and assigns it to key.
func (c *Global) Set(key, val string) error {
	switch key {
	case "api_key":
		c.APIKey = val
	case "insights_url":
		if err := checkURL(val); err != nil {
			return fmt.Errorf("invalid insights_url: %w", err)
		}
		c.InsightsURL = val
	case "insights_task":
		if strings.TrimSpace(val) == "" {
			return fmt.Errorf("insights_task cannot be empty")
		}
		c.InsightsTask = val
	case "chat_api_key":
		c.ChatAPIKey = val
	case "chat_url":
		if err := checkURL(val); err != nil {
			return fmt.Errorf("invalid chat_url: %w", err)
		}
		c.ChatURL = val
	case "chat_model":
		if strings.TrimSpace(val) == "" {
			return fmt.Errorf("chat_model cannot be empty")
		}
		c.ChatModel = val
	case "chat_max_tokens":
		i, err := positiveInt(val)
		if err != nil {
			return fmt.Errorf("invalid int for chat_max_tokens: %v", val)
		}
		c.ChatMaxTokens = i
	case "http_timeout_sec":
		i, err := positiveInt(val)
		if err != nil {
			return fmt.Errorf("invalid int for http_timeout_sec: %v", val)
		}
		c.HTTPTimeoutSec = i
	case "output_dir":
		c.OutputDir = val
	case "listen_addr":
		if !strings.Contains(val, ":") {
			return fmt.Errorf("invalid listen_addr: %s (use host:port)", val)
		}
		c.ListenAddr = val
	case "max_upload_mb":
		i, err := positiveInt(val)
		if err != nil {
			return fmt.Errorf("invalid int for max_upload_mb: %v", val)
		}
		c.MaxUploadMB = i
	case "max_sessions":
		i, err := positiveInt(val)
		if err != nil {
			return fmt.Errorf("invalid int for max_sessions: %v", val)
		}
		c.MaxSessions = i
	case "log_level":
		switch strings.ToLower(val) {
		case "debug", "info", "warn", "error":
			c.LogLevel = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_level: %s (use debug, info, warn or error)", val)
		}
	case "log_json":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for log_json: %v", val)
		}
		c.LogJSON = b
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

// Get returns the display value of key. Credentials are masked.
func (c *Global) Get(key string) (string, error) {
	switch key {
	case "api_key":
		return Mask(c.APIKey), nil
	case "insights_url":
		return c.InsightsURL, nil
	case "insights_task":
		return c.InsightsTask, nil
	case "chat_api_key":
		return Mask(c.ChatAPIKey), nil
	case "chat_url":
		return c.ChatURL, nil
	case "chat_model":
		return c.ChatModel, nil
	case "chat_max_tokens":
		return strconv.Itoa(c.ChatMaxTokens), nil
	case "http_timeout_sec":
		return strconv.Itoa(c.HTTPTimeoutSec), nil
	case "output_dir":
		return c.OutputDir, nil
	case "listen_addr":
		return c.ListenAddr, nil
	case "max_upload_mb":
		return strconv.Itoa(c.MaxUploadMB), nil
	case "max_sessions":
		return strconv.Itoa(c.MaxSessions), nil
	case "log_level":
		return c.LogLevel, nil
	case "log_json":
		return strconv.FormatBool(c.LogJSON), nil
	}
	return "", fmt.Errorf("unknown key: %s", key)
}

// Mask hides all but the first and last three characters of a credential.
func Mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}

func positiveInt(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if i <= 0 {
		return 0, fmt.Errorf("must be positive")
	}
	return i, nil
}

func checkURL(s string) error {
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return fmt.Errorf("%s: scheme must be http or https", s)
	}
	return nil
}
