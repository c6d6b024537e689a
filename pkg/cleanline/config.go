package cleanline

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/viper"

	"github.com/harunnryd/cleanline/pkg/quote"
)

type Config struct {
	Environment   string              `mapstructure:"environment"`
	LogLevel      string              `mapstructure:"log_level"`
	LogFormat     string              `mapstructure:"log_format"`
	Business      BusinessConfig      `mapstructure:"business"`
	Completion    CompletionConfig    `mapstructure:"completion"`
	Audio         AudioConfig         `mapstructure:"audio"`
	SMS           SMSConfig           `mapstructure:"sms"`
	Voice         VoiceConfig         `mapstructure:"voice"`
	Broadcast     BroadcastConfig     `mapstructure:"broadcast"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Privacy       PrivacyConfig       `mapstructure:"privacy"`
	Vendors       VendorsConfig       `mapstructure:"vendors"`
	Transports    TransportsConfig    `mapstructure:"transports"`
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

type TransportsConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type BusinessConfig struct {
	Name          string                    `mapstructure:"name"`
	DefaultRegion string                    `mapstructure:"default_region"`
	Regions       map[string]map[string]int `mapstructure:"regions"`
	HandoffNumber string                    `mapstructure:"handoff_number"`
}

type CompletionConfig struct {
	TimeoutMS         int     `mapstructure:"timeout_ms"`
	SMSMaxTokens      int     `mapstructure:"sms_max_tokens"`
	VoiceMaxTokens    int     `mapstructure:"voice_max_tokens"`
	Temperature       float64 `mapstructure:"temperature"`
	VoiceMaxSentences int     `mapstructure:"voice_max_sentences"`
	VoiceMaxChars     int     `mapstructure:"voice_max_chars"`
	RetryAttempts     int     `mapstructure:"retry_attempts"`
	CircuitThreshold  int     `mapstructure:"circuit_threshold"`
	CircuitCooldownMS int     `mapstructure:"circuit_cooldown_ms"`
}

type AudioConfig struct {
	Store       string `mapstructure:"store"`
	Dir         string `mapstructure:"dir"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
	TimeoutMS   int    `mapstructure:"timeout_ms"`
}

type SMSConfig struct {
	SendTimeoutMS int `mapstructure:"send_timeout_ms"`
}

type VoiceConfig struct {
	Greeting            string `mapstructure:"greeting"`
	SpeechLanguage      string `mapstructure:"speech_language"`
	TranscribeTimeoutMS int    `mapstructure:"transcribe_timeout_ms"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type BroadcastConfig struct {
	ObserverBuffer int         `mapstructure:"observer_buffer"`
	Kafka          KafkaConfig `mapstructure:"kafka"`
}

type ObservabilityConfig struct {
	Metrics          bool    `mapstructure:"metrics"`
	ServiceName      string  `mapstructure:"service_name"`
	EventsFile       string  `mapstructure:"events_file"`
	EventsSampleRate float64 `mapstructure:"events_sample_rate"` // failure events are never sampled out
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("business.name", "HyperClean")
	v.SetDefault("business.default_region", quote.DefaultRegion)
	v.SetDefault("completion.timeout_ms", 10000)
	v.SetDefault("completion.sms_max_tokens", 160)
	v.SetDefault("completion.voice_max_tokens", 150)
	v.SetDefault("completion.temperature", 0.7)
	v.SetDefault("completion.voice_max_sentences", 3)
	v.SetDefault("completion.voice_max_chars", 420)
	v.SetDefault("completion.retry_attempts", 1)
	v.SetDefault("completion.circuit_threshold", 0)
	v.SetDefault("completion.circuit_cooldown_ms", 30000)
	v.SetDefault("audio.store", "fs")
	v.SetDefault("audio.dir", "./audio-cache")
	v.SetDefault("audio.timeout_ms", 8000)
	v.SetDefault("sms.send_timeout_ms", 10000)
	v.SetDefault("voice.speech_language", "en-US")
	v.SetDefault("voice.transcribe_timeout_ms", 15000)
	v.SetDefault("broadcast.observer_buffer", 64)
	v.SetDefault("broadcast.kafka.topic", "cleanline.events")
	v.SetDefault("observability.metrics", true)
	v.SetDefault("observability.service_name", "cleanline")
	v.SetDefault("observability.events_sample_rate", 1.0)
	v.SetDefault("privacy.redact_pii", true)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Transports.Provider) == "" {
		return fmt.Errorf("transports.provider is required")
	}
	if strings.TrimSpace(c.Vendors.LLM.Provider) == "" {
		return fmt.Errorf("vendors.llm.provider is required")
	}
	switch c.Audio.Store {
	case "fs", "":
	case "postgres":
		if strings.TrimSpace(c.Audio.PostgresDSN) == "" {
			return fmt.Errorf("audio.postgres_dsn is required for the postgres store")
		}
	default:
		return fmt.Errorf("audio.store must be fs or postgres, got %q", c.Audio.Store)
	}
	if len(c.Broadcast.Kafka.Brokers) > 0 && strings.TrimSpace(c.Broadcast.Kafka.Topic) == "" {
		return fmt.Errorf("broadcast.kafka.topic is required when brokers are set")
	}
	if r := c.Observability.EventsSampleRate; r < 0 || r > 1 {
		return fmt.Errorf("observability.events_sample_rate must be within [0, 1]")
	}
	for region, prices := range c.Business.Regions {
		for service, amount := range prices {
			st := quote.ServiceType(strings.ToLower(service))
			if st != quote.Standard && st != quote.Deep {
				return fmt.Errorf("business.regions.%s: unknown service %q", region, service)
			}
			if amount <= 0 {
				return fmt.Errorf("business.regions.%s.%s must be positive", region, service)
			}
		}
	}
	return nil
}

// Prices merges configured regions over the built-in table.
func (c Config) Prices() quote.PriceTable {
	table := quote.DefaultPrices()
	for region, prices := range c.Business.Regions {
		row := make(map[quote.ServiceType]int, len(prices))
		for service, amount := range prices {
			row[quote.ServiceType(strings.ToLower(service))] = amount
		}
		table[strings.ToLower(region)] = row
	}
	return table
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Vendors.STT.Settings = expandSettings(cfg.Vendors.STT.Settings)
	cfg.Vendors.TTS.Settings = expandSettings(cfg.Vendors.TTS.Settings)
	cfg.Vendors.LLM.Settings = expandSettings(cfg.Vendors.LLM.Settings)
	cfg.Transports.Settings = expandSettings(cfg.Transports.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = expandAny(v)
		}
		return out
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	}
}
