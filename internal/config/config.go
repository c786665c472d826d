package config

import (
	"strings"
)

type Config struct {
	Server    ServerConfig
	Providers ProvidersConfig
	Storage   StorageConfig
	Check     CheckConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port  int
	Token string
}

type ProvidersConfig struct {
	AnthropicAPIKey string
	AnthropicModel  string
	OpenAIAPIKey    string
	OpenAIModel     string
	GeminiAPIKey    string
	GeminiModel     string
}

type StorageConfig struct {
	DataDir string
}

type CheckConfig struct {
	ChunkSize       int
	WorkerPollSecs  int
	StaleJobCutoffM int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4780,
		},
		Providers: ProvidersConfig{
			AnthropicModel: "claude-sonnet-4-5",
			OpenAIModel:    "gpt-4o",
			GeminiModel:    "gemini-2.0-flash",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Check: CheckConfig{
			ChunkSize:       8000,
			WorkerPollSecs:  3,
			StaleJobCutoffM: 60,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and the platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.barun.app) and API keys
// fall back to the macOS Keychain (service: barun). On Linux the backend is
// a JSON file at $XDG_CONFIG_HOME/barun/config.json and keys come from the
// secrets file or environment.
//
// Environment variables (BARUN_*) override backend values on all platforms.
// No provider key is required at load time; a daemon with no keys simply
// reports every provider unavailable.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts secret lookup for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	// Fill still-empty secrets from the platform secret store.
	fillSecret(kc, "token", &cfg.Server.Token)
	fillSecret(kc, "anthropic_api_key", &cfg.Providers.AnthropicAPIKey)
	fillSecret(kc, "openai_api_key", &cfg.Providers.OpenAIAPIKey)
	fillSecret(kc, "gemini_api_key", &cfg.Providers.GeminiAPIKey)

	return cfg, nil
}

func fillSecret(kc keychain, account string, dst *string) {
	if *dst != "" {
		return
	}
	if v, err := kc.Get("barun", account); err == nil && v != "" {
		*dst = v
	}
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
