// Package config loads the gateway configuration from an optional YAML file,
// a .env file and the environment, in that order of increasing precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
)

const (
	ModeMock = "mock"
	ModeLive = "live"
)

var (
	sttProviders = []string{"deepgram", "openai", "groq", "assemblyai"}
	llmProviders = []string{"openai", "groq", "anthropic", "gemini"}
	ttsProviders = []string{"lokutor", "openai"}
)

type Config struct {
	Addr      string `yaml:"addr"`
	PublicURL string `yaml:"public_url"`
	MediaPath string `yaml:"media_path"`
	LogLevel  string `yaml:"log_level"`
	// Mode selects mock or live engines.
	Mode string `yaml:"mode"`

	STT      STTConfig      `yaml:"stt"`
	LLM      LLMConfig      `yaml:"llm"`
	TTS      TTSConfig      `yaml:"tts"`
	Keys     Keys           `yaml:"keys"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Actions  ActionsConfig  `yaml:"actions"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Mock     MockConfig     `yaml:"mock"`
}

type STTConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	// Batch recognizers are segmented with an RMS endpointer.
	VADThreshold   float64       `yaml:"vad_threshold"`
	VADSilence     time.Duration `yaml:"vad_silence"`
	MaxUtteranceMs int           `yaml:"max_utterance_ms"`
}

type LLMConfig struct {
	Provider     string `yaml:"provider"`
	Model        string `yaml:"model"`
	SystemPrompt string `yaml:"system_prompt"`
	BusinessName string `yaml:"business_name"`
}

type TTSConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	Voice    string `yaml:"voice"`
}

type Keys struct {
	OpenAI     string `yaml:"openai"`
	Groq       string `yaml:"groq"`
	Anthropic  string `yaml:"anthropic"`
	Google     string `yaml:"google"`
	Deepgram   string `yaml:"deepgram"`
	AssemblyAI string `yaml:"assemblyai"`
	Lokutor    string `yaml:"lokutor"`
}

type PipelineConfig struct {
	// Greeting nil means the default greeting; an empty string disables it.
	Greeting        *string       `yaml:"greeting"`
	Language        string        `yaml:"language"`
	MaxBufferMs     int           `yaml:"max_buffer_ms"`
	MaxSegmentChars int           `yaml:"max_segment_chars"`
	LatencyTarget   time.Duration `yaml:"latency_target"`
	PipelineGrace   time.Duration `yaml:"pipeline_grace"`
	EgressGrace     time.Duration `yaml:"egress_grace"`
	LLMTimeout      time.Duration `yaml:"llm_timeout"`
	TTSTimeout      time.Duration `yaml:"tts_timeout"`
	ActionTimeout   time.Duration `yaml:"action_timeout"`
}

type ActionsConfig struct {
	// SQLitePath enables the SQLite recorder when set.
	SQLitePath string `yaml:"sqlite_path"`
}

type WebhookConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

type MockConfig struct {
	Utterances []string      `yaml:"utterances"`
	Interval   time.Duration `yaml:"interval"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	d := orchestrator.DefaultConfig()
	return Config{
		Addr:      ":8080",
		MediaPath: "/media",
		LogLevel:  "info",
		Mode:      ModeMock,
		STT: STTConfig{
			Provider:       "deepgram",
			VADThreshold:   0.02,
			VADSilence:     500 * time.Millisecond,
			MaxUtteranceMs: 15000,
		},
		LLM: LLMConfig{Provider: "openai"},
		TTS: TTSConfig{Provider: "lokutor", Voice: string(d.Voice)},
		Pipeline: PipelineConfig{
			Language:        string(d.Language),
			MaxBufferMs:     d.MaxBufferMs,
			MaxSegmentChars: d.MaxSegmentChars,
			LatencyTarget:   d.LatencyTarget,
			PipelineGrace:   d.PipelineGrace,
			EgressGrace:     d.EgressGrace,
			LLMTimeout:      d.LLMTimeout,
			TTSTimeout:      d.TTSTimeout,
			ActionTimeout:   d.ActionTimeout,
		},
		Webhook: WebhookConfig{RequestsPerMinute: 60},
		Mock: MockConfig{
			Utterances: []string{
				"Hi, what are your opening hours?",
				"I'd like to book an appointment",
				"My name is Priya",
				"My number is 98765 43210",
			},
			Interval: 3 * time.Second,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// non-empty), then .env and process environment overrides. The result is validated.
func Load(path string) (Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	// #nosec G304 -- configuration file paths are provided by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(&c.Addr, "CALLSTREAM_ADDR")
	set(&c.PublicURL, "PUBLIC_URL")
	set(&c.LogLevel, "LOG_LEVEL")
	set(&c.Mode, "PROVIDER_MODE")
	set(&c.STT.Provider, "STT_PROVIDER")
	set(&c.LLM.Provider, "LLM_PROVIDER")
	set(&c.TTS.Provider, "TTS_PROVIDER")
	set(&c.TTS.Voice, "AGENT_VOICE")
	set(&c.Pipeline.Language, "AGENT_LANGUAGE")
	set(&c.LLM.BusinessName, "BUSINESS_NAME")
	set(&c.Actions.SQLitePath, "SQLITE_PATH")

	set(&c.Keys.OpenAI, "OPENAI_API_KEY")
	set(&c.Keys.Groq, "GROQ_API_KEY")
	set(&c.Keys.Anthropic, "ANTHROPIC_API_KEY")
	set(&c.Keys.Google, "GOOGLE_API_KEY")
	set(&c.Keys.Deepgram, "DEEPGRAM_API_KEY")
	set(&c.Keys.AssemblyAI, "ASSEMBLYAI_API_KEY")
	set(&c.Keys.Lokutor, "LOKUTOR_API_KEY")
}

// Validate rejects unknown provider names, non-positive durations and, in
// live mode, missing API keys for the selected providers.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must be set"))
	}
	if !strings.HasPrefix(c.MediaPath, "/") {
		errs = append(errs, fmt.Errorf("media_path %q must start with /", c.MediaPath))
	}
	if c.Mode != ModeMock && c.Mode != ModeLive {
		errs = append(errs, fmt.Errorf("mode %q must be %q or %q", c.Mode, ModeMock, ModeLive))
	}
	if !slices.Contains(sttProviders, c.STT.Provider) {
		errs = append(errs, fmt.Errorf("unknown stt provider %q", c.STT.Provider))
	}
	if !slices.Contains(llmProviders, c.LLM.Provider) {
		errs = append(errs, fmt.Errorf("unknown llm provider %q", c.LLM.Provider))
	}
	if !slices.Contains(ttsProviders, c.TTS.Provider) {
		errs = append(errs, fmt.Errorf("unknown tts provider %q", c.TTS.Provider))
	}

	durations := map[string]time.Duration{
		"pipeline.latency_target": c.Pipeline.LatencyTarget,
		"pipeline.pipeline_grace": c.Pipeline.PipelineGrace,
		"pipeline.egress_grace":   c.Pipeline.EgressGrace,
		"pipeline.llm_timeout":    c.Pipeline.LLMTimeout,
		"pipeline.tts_timeout":    c.Pipeline.TTSTimeout,
		"pipeline.action_timeout": c.Pipeline.ActionTimeout,
		"stt.vad_silence":         c.STT.VADSilence,
		"mock.interval":           c.Mock.Interval,
	}
	for _, name := range slices.Sorted(maps.Keys(durations)) {
		if durations[name] <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.Pipeline.MaxBufferMs <= 0 {
		errs = append(errs, errors.New("pipeline.max_buffer_ms must be positive"))
	}
	if c.Webhook.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("webhook.requests_per_minute must be positive"))
	}

	if c.Mode == ModeLive {
		errs = append(errs, c.validateKeys()...)
	}
	return errors.Join(errs...)
}

func (c Config) validateKeys() []error {
	var errs []error
	require := func(provider, key, env string) {
		if key == "" {
			errs = append(errs, fmt.Errorf("%s must be set for provider %s", env, provider))
		}
	}

	switch c.STT.Provider {
	case "deepgram":
		require("deepgram", c.Keys.Deepgram, "DEEPGRAM_API_KEY")
	case "openai":
		require("openai", c.Keys.OpenAI, "OPENAI_API_KEY")
	case "groq":
		require("groq", c.Keys.Groq, "GROQ_API_KEY")
	case "assemblyai":
		require("assemblyai", c.Keys.AssemblyAI, "ASSEMBLYAI_API_KEY")
	}
	switch c.LLM.Provider {
	case "openai":
		require("openai", c.Keys.OpenAI, "OPENAI_API_KEY")
	case "groq":
		require("groq", c.Keys.Groq, "GROQ_API_KEY")
	case "anthropic":
		require("anthropic", c.Keys.Anthropic, "ANTHROPIC_API_KEY")
	case "gemini":
		require("gemini", c.Keys.Google, "GOOGLE_API_KEY")
	}
	switch c.TTS.Provider {
	case "lokutor":
		require("lokutor", c.Keys.Lokutor, "LOKUTOR_API_KEY")
	case "openai":
		require("openai", c.Keys.OpenAI, "OPENAI_API_KEY")
	}
	return errs
}

// Pipeline maps the configuration onto the orchestrator's settings.
func (c Config) Pipeline() orchestrator.Config {
	oc := orchestrator.DefaultConfig()
	if c.Pipeline.Greeting != nil {
		oc.Greeting = *c.Pipeline.Greeting
	}
	if c.Pipeline.Language != "" {
		oc.Language = orchestrator.Language(c.Pipeline.Language)
	}
	if c.TTS.Voice != "" {
		oc.Voice = orchestrator.Voice(c.TTS.Voice)
	}
	oc.MaxBufferMs = c.Pipeline.MaxBufferMs
	if c.Pipeline.MaxSegmentChars > 0 {
		oc.MaxSegmentChars = c.Pipeline.MaxSegmentChars
	}
	oc.LatencyTarget = c.Pipeline.LatencyTarget
	oc.PipelineGrace = c.Pipeline.PipelineGrace
	oc.EgressGrace = c.Pipeline.EgressGrace
	oc.LLMTimeout = c.Pipeline.LLMTimeout
	oc.TTSTimeout = c.Pipeline.TTSTimeout
	oc.ActionTimeout = c.Pipeline.ActionTimeout
	return oc
}
