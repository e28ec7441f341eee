// Package config loads ema-persona settings from a YAML file and EMA_
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	orchestration "github.com/koscakluka/ema-persona/core"
	"github.com/koscakluka/ema-persona/core/llms"
	"github.com/koscakluka/ema-persona/core/llms/gemini"
	"github.com/koscakluka/ema-persona/core/llms/groq"
	"github.com/koscakluka/ema-persona/core/texttospeech"
	"github.com/spf13/viper"
)

const envPrefix = "EMA"

type Config struct {
	Chat   ChatConfig   `mapstructure:"chat"`
	Speech SpeechConfig `mapstructure:"speech"`
	Proxy  ProxyConfig  `mapstructure:"proxy"`
}

type ChatConfig struct {
	// Provider is gemini (through the proxy) or groq.
	Provider string `mapstructure:"provider"`
	// Endpoint is the chat proxy the client talks to.
	Endpoint        string        `mapstructure:"endpoint"`
	Persona         string        `mapstructure:"persona"`
	HistoryPairs    int           `mapstructure:"history_pairs"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxOutputTokens int           `mapstructure:"max_output_tokens"`
	TopP            float64       `mapstructure:"top_p"`
	RevealInterval  time.Duration `mapstructure:"reveal_interval"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Groq            GroqConfig    `mapstructure:"groq"`
}

type GroqConfig struct {
	URL    string `mapstructure:"url"`
	Model  string `mapstructure:"model"`
	APIKey string `mapstructure:"api_key"`
}

const (
	ProviderGemini = "gemini"
	ProviderGroq   = "groq"
)

type SpeechConfig struct {
	InputEnabled  bool   `mapstructure:"input_enabled"`
	OutputEnabled bool   `mapstructure:"output_enabled"`
	Language      string `mapstructure:"language"`
	// CaptureBackend is miniaudio or portaudio.
	CaptureBackend   string        `mapstructure:"capture_backend"`
	VoicePattern     string        `mapstructure:"voice_pattern"`
	Pitch            float64       `mapstructure:"pitch"`
	Rate             float64       `mapstructure:"rate"`
	Volume           float64       `mapstructure:"volume"`
	NoSpeechTimeout  time.Duration `mapstructure:"no_speech_timeout"`
	WatchdogInterval time.Duration `mapstructure:"watchdog_interval"`
	DeepgramAPIKey   string        `mapstructure:"deepgram_api_key"`
}

type ProxyConfig struct {
	Addr        string        `mapstructure:"addr"`
	UpstreamURL string        `mapstructure:"upstream_url"`
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func Default() *Config {
	params := llms.DefaultGenerationParams()
	speech := texttospeech.DefaultSpeechParams()
	return &Config{
		Chat: ChatConfig{
			Provider:        ProviderGemini,
			Endpoint:        gemini.DefaultEndpoint,
			Persona:         orchestration.DefaultPersona,
			HistoryPairs:    orchestration.DefaultHistoryWindow,
			Temperature:     params.Temperature,
			MaxOutputTokens: params.MaxOutputTokens,
			TopP:            params.TopP,
			RevealInterval:  orchestration.DefaultRevealInterval,
			Timeout:         60 * time.Second,
			Groq: GroqConfig{
				URL:   groq.DefaultURL,
				Model: groq.DefaultModel,
			},
		},
		Speech: SpeechConfig{
			InputEnabled:     true,
			OutputEnabled:    true,
			Language:         speech.Language,
			CaptureBackend:   "miniaudio",
			VoicePattern:     texttospeech.DefaultVoicePattern,
			Pitch:            speech.Pitch,
			Rate:             speech.Rate,
			Volume:           speech.Volume,
			NoSpeechTimeout:  8 * time.Second,
			WatchdogInterval: texttospeech.DefaultWatchdogInterval,
		},
		Proxy: ProxyConfig{
			Addr:        ":8788",
			UpstreamURL: "https://generativelanguage.googleapis.com/v1beta/models",
			Model:       "gemini-2.5-flash",
			Timeout:     60 * time.Second,
		},
	}
}

// Load reads path, or config.yaml from the working directory and
// ~/.ema-persona when path is empty. A missing default file is not an error.
// EMA_<SECTION>_<KEY> variables override the file; the API keys also come
// from DEEPGRAM_API_KEY, GROQ_API_KEY and GEMINI_API_KEY.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if homeDir, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".ema-persona"))
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("speech.deepgram_api_key", "EMA_SPEECH_DEEPGRAM_API_KEY", "DEEPGRAM_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind deepgram api key: %w", err)
	}
	if err := v.BindEnv("chat.groq.api_key", "EMA_CHAT_GROQ_API_KEY", "GROQ_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind groq api key: %w", err)
	}
	if err := v.BindEnv("proxy.api_key", "EMA_PROXY_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind gemini api key: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so environment overrides apply to keys
// missing from the file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("chat.provider", cfg.Chat.Provider)
	v.SetDefault("chat.endpoint", cfg.Chat.Endpoint)
	v.SetDefault("chat.persona", cfg.Chat.Persona)
	v.SetDefault("chat.history_pairs", cfg.Chat.HistoryPairs)
	v.SetDefault("chat.temperature", cfg.Chat.Temperature)
	v.SetDefault("chat.max_output_tokens", cfg.Chat.MaxOutputTokens)
	v.SetDefault("chat.top_p", cfg.Chat.TopP)
	v.SetDefault("chat.reveal_interval", cfg.Chat.RevealInterval)
	v.SetDefault("chat.timeout", cfg.Chat.Timeout)
	v.SetDefault("chat.groq.url", cfg.Chat.Groq.URL)
	v.SetDefault("chat.groq.model", cfg.Chat.Groq.Model)
	v.SetDefault("chat.groq.api_key", cfg.Chat.Groq.APIKey)

	v.SetDefault("speech.input_enabled", cfg.Speech.InputEnabled)
	v.SetDefault("speech.output_enabled", cfg.Speech.OutputEnabled)
	v.SetDefault("speech.language", cfg.Speech.Language)
	v.SetDefault("speech.capture_backend", cfg.Speech.CaptureBackend)
	v.SetDefault("speech.voice_pattern", cfg.Speech.VoicePattern)
	v.SetDefault("speech.pitch", cfg.Speech.Pitch)
	v.SetDefault("speech.rate", cfg.Speech.Rate)
	v.SetDefault("speech.volume", cfg.Speech.Volume)
	v.SetDefault("speech.no_speech_timeout", cfg.Speech.NoSpeechTimeout)
	v.SetDefault("speech.watchdog_interval", cfg.Speech.WatchdogInterval)
	v.SetDefault("speech.deepgram_api_key", cfg.Speech.DeepgramAPIKey)

	v.SetDefault("proxy.addr", cfg.Proxy.Addr)
	v.SetDefault("proxy.upstream_url", cfg.Proxy.UpstreamURL)
	v.SetDefault("proxy.model", cfg.Proxy.Model)
	v.SetDefault("proxy.api_key", cfg.Proxy.APIKey)
	v.SetDefault("proxy.timeout", cfg.Proxy.Timeout)
}

func (c ChatConfig) GenerationParams() llms.GenerationParams {
	return llms.GenerationParams{
		Temperature:     c.Temperature,
		MaxOutputTokens: c.MaxOutputTokens,
		TopP:            c.TopP,
	}
}

func (c SpeechConfig) SpeechParams() texttospeech.SpeechParams {
	return texttospeech.SpeechParams{
		Language: c.Language,
		Pitch:    c.Pitch,
		Rate:     c.Rate,
		Volume:   c.Volume,
	}
}
