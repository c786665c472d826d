package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "BARUN_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.token", typ: kString, env: "BARUN_SERVER_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Token },
	},
	{
		key: "providers.anthropic_api_key", typ: kString, env: "BARUN_ANTHROPIC_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Providers.AnthropicAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Providers.AnthropicAPIKey },
	},
	{
		key: "providers.anthropic_model", typ: kString, env: "BARUN_ANTHROPIC_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Providers.AnthropicModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Providers.AnthropicModel },
	},
	{
		key: "providers.openai_api_key", typ: kString, env: "BARUN_OPENAI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Providers.OpenAIAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Providers.OpenAIAPIKey },
	},
	{
		key: "providers.openai_model", typ: kString, env: "BARUN_OPENAI_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Providers.OpenAIModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Providers.OpenAIModel },
	},
	{
		key: "providers.gemini_api_key", typ: kString, env: "BARUN_GEMINI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Providers.GeminiAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Providers.GeminiAPIKey },
	},
	{
		key: "providers.gemini_model", typ: kString, env: "BARUN_GEMINI_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Providers.GeminiModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Providers.GeminiModel },
	},
	{
		key: "storage.data_dir", typ: kString, env: "BARUN_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "check.chunk_size", typ: kInt, env: "BARUN_CHECK_CHUNK_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Check.ChunkSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Check.ChunkSize },
	},
	{
		key: "check.worker_poll_seconds", typ: kInt, env: "BARUN_CHECK_WORKER_POLL_SECONDS",
		apply:   func(cfg *Config, v any) { cfg.Check.WorkerPollSecs = v.(int) },
		extract: func(cfg Config) any { return cfg.Check.WorkerPollSecs },
	},
	{
		key: "check.stale_job_cutoff_minutes", typ: kInt, env: "BARUN_CHECK_STALE_JOB_CUTOFF_MINUTES",
		apply:   func(cfg *Config, v any) { cfg.Check.StaleJobCutoffM = v.(int) },
		extract: func(cfg Config) any { return cfg.Check.StaleJobCutoffM },
	},
	{
		key: "log.level", typ: kString, env: "BARUN_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
