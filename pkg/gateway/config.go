package gateway

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/harunnryd/parley/pkg/llm"
	"github.com/harunnryd/parley/pkg/logging"
	"github.com/harunnryd/parley/pkg/redact"
	"github.com/harunnryd/parley/pkg/session"
	"github.com/harunnryd/parley/pkg/transports/websocket"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const EnvPrefix = "PARLEY"

type Config struct {
	Server          websocket.Config `mapstructure:"server"`
	Session         session.Config   `mapstructure:"session"`
	Vendors         VendorsConfig    `mapstructure:"vendors"`
	Dialogue        DialogueConfig   `mapstructure:"dialogue"`
	Metrics         MetricsConfig    `mapstructure:"metrics"`
	Privacy         PrivacyConfig    `mapstructure:"privacy"`
	Environment     string           `mapstructure:"environment"`
	LogLevel        string           `mapstructure:"log_level"`
	LogFormat       string           `mapstructure:"log_format"`
	ShutdownTimeout time.Duration    `mapstructure:"shutdown_timeout"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	STT VendorConfig `mapstructure:"stt"`
	TTS VendorConfig `mapstructure:"tts"`
	LLM VendorConfig `mapstructure:"llm"`
}

// DialogueConfig shapes text on its way into and out of the generator.
type DialogueConfig struct {
	TranscriptReplacements map[string]string `mapstructure:"transcript_replacements"`
	llm.LimitConfig        `mapstructure:",squash"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	// LogEvents mirrors every metrics event into the debug log.
	LogEvents  bool    `mapstructure:"log_events"`
	SampleRate float64 `mapstructure:"sample_rate"`
	Buffer     int     `mapstructure:"buffer"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("shutdown_timeout", "10s")

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.ws_path", "/ws/chat")
	v.SetDefault("server.static_dir", "static")
	v.SetDefault("server.read_limit_bytes", 1<<20)
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.metrics_path", "/metrics")

	v.SetDefault("session.context_window", 5)
	v.SetDefault("session.heartbeat_interval", "30s")
	v.SetDefault("session.audio_chunk_size", 4096)
	v.SetDefault("session.coalesce_window", "200ms")
	v.SetDefault("session.max_audio_bytes", 4<<20)
	v.SetDefault("session.transcribe_timeout", "30s")
	v.SetDefault("session.generate_timeout", "60s")
	v.SetDefault("session.synthesize_timeout", "30s")

	v.SetDefault("vendors.stt.provider", "mock")
	v.SetDefault("vendors.tts.provider", "mock")
	v.SetDefault("vendors.llm.provider", "mock")

	v.SetDefault("dialogue.max_reply_chars", 0)
	v.SetDefault("dialogue.max_reply_sentences", 0)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "parley")
	v.SetDefault("metrics.log_events", false)
	v.SetDefault("metrics.sample_rate", 1.0)
	v.SetDefault("metrics.buffer", 1024)

	v.SetDefault("privacy.redact_pii", true)
}

// LoadConfig reads the YAML file at path. An empty path runs on defaults and
// environment alone. Dotenv files are loaded first and never override
// variables already present in the environment.
func LoadConfig(path string) (Config, error) {
	if err := loadDotEnv(path); err != nil {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := newViper()
	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, unmarshalOpts()); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	applyBareEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func loadDotEnv(path string) error {
	candidates := []string{".env"}
	if strings.TrimSpace(path) != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(path), "..", ".env"))
	}
	seen := make(map[string]bool, len(candidates))
	for _, file := range candidates {
		abs, err := filepath.Abs(file)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true
		if err := godotenv.Load(abs); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("%s: %w", file, err)
		}
	}
	return nil
}

// applyBareEnv honors the unprefixed variable names deployments already use.
// Prefixed variables have been applied by viper and take precedence.
func applyBareEnv(cfg *Config) {
	host, hasHost := lookupEnv("HOST")
	port, hasPort := lookupEnv("PORT")
	if _, prefixed := lookupEnv(EnvPrefix + "_SERVER_ADDR"); !prefixed && (hasHost || hasPort) {
		curHost, curPort, err := net.SplitHostPort(cfg.Server.Addr)
		if err != nil {
			curHost, curPort = "", "8000"
		}
		if hasHost {
			curHost = host
		}
		if hasPort {
			curPort = port
		}
		cfg.Server.Addr = net.JoinHostPort(curHost, curPort)
	}
	if lvl, ok := lookupEnv("LOG_LEVEL"); ok {
		if _, prefixed := lookupEnv(EnvPrefix + "_LOG_LEVEL"); !prefixed {
			cfg.LogLevel = lvl
		}
	}
	if key, ok := lookupEnv("LLM_API_KEY"); ok {
		cfg.Vendors.LLM.Settings = setIfMissing(cfg.Vendors.LLM.Settings, "api_key", key)
	}
	if url, ok := lookupEnv("LLM_API_URL"); ok {
		cfg.Vendors.LLM.Settings = setIfMissing(cfg.Vendors.LLM.Settings, "base_url", url)
	}
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func setIfMissing(settings map[string]any, key string, value any) map[string]any {
	if settings == nil {
		settings = make(map[string]any)
	}
	if cur, ok := settings[key]; ok {
		if s, isStr := cur.(string); !isStr || strings.TrimSpace(s) != "" {
			return settings
		}
	}
	settings[key] = value
	return settings
}

func (c *Config) Validate() error {
	var errs []error
	for _, v := range []struct {
		role     string
		provider string
	}{
		{"stt", c.Vendors.STT.Provider},
		{"llm", c.Vendors.LLM.Provider},
		{"tts", c.Vendors.TTS.Provider},
	} {
		if strings.TrimSpace(v.provider) == "" {
			errs = append(errs, fmt.Errorf("vendors.%s.provider is required", v.role))
		}
	}
	if !strings.HasPrefix(c.Server.WebsocketPath, "/") {
		errs = append(errs, fmt.Errorf("server.ws_path must start with /: %q", c.Server.WebsocketPath))
	}
	if c.Session.ContextWindow < 0 {
		errs = append(errs, errors.New("session.context_window must not be negative"))
	}
	if c.Session.MaxAudioBytes < 0 {
		errs = append(errs, errors.New("session.max_audio_bytes must not be negative"))
	}
	if c.Dialogue.MaxChars < 0 || c.Dialogue.MaxSentences < 0 {
		errs = append(errs, errors.New("dialogue reply limits must not be negative"))
	}
	if c.Metrics.SampleRate < 0 || c.Metrics.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("metrics.sample_rate must be within [0,1]: %v", c.Metrics.SampleRate))
	}
	return errors.Join(errs...)
}

// ApplyReloadable pushes the fields that may change at runtime into the
// process-wide switches.
func ApplyReloadable(cfg Config) {
	logging.SetLevel(cfg.LogLevel)
	redact.SetEnabled(cfg.Privacy.RedactPII)
}

// WatchConfig reloads path whenever it changes on disk and hands the new
// config to fn. Reloads that fail to parse or validate are logged and
// skipped.
func WatchConfig(path string, fn func(Config)) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("watch config: no config file")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	log := logging.NewComponentLogger(slog.Default(), "config")
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := LoadConfig(path)
		if err != nil {
			log.Warn("config_reload_failed", slog.String("file", e.Name), slog.String("error", err.Error()))
			return
		}
		log.Info("config_reloaded",
			slog.String("file", e.Name),
			slog.String("log_level", cfg.LogLevel),
			slog.Bool("redact_pii", cfg.Privacy.RedactPII))
		fn(cfg)
	})
	v.WatchConfig()
	return nil
}

// unmarshalOpts decodes with ${VAR} expansion applied to every string before
// the duration and slice hooks see it, including strings nested inside
// vendor settings maps.
func unmarshalOpts() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		expandEnvHook,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
}

func expandEnvHook(_ reflect.Type, _ reflect.Type, data any) (any, error) {
	return expandEnv(data), nil
}

func expandEnv(data any) any {
	switch x := data.(type) {
	case string:
		return os.ExpandEnv(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = expandEnv(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = expandEnv(e)
		}
		return out
	default:
		return data
	}
}
