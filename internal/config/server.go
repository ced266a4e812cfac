package config

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. MARKUP_LSP_LOG_LEVEL.
const EnvPrefix = "MARKUP_LSP"

type ServerConfig struct {
	AddonPaths       []string               `mapstructure:"addon_paths"`
	LogLevel         string                 `mapstructure:"log_level"`
	Addons           AddonsConfig           `mapstructure:"addons"`
	Server           SessionConfig          `mapstructure:"server"`
	Completion       CompletionConfig       `mapstructure:"completion"`
	DocumentSelector DocumentSelectorConfig `mapstructure:"document_selector"`
	Wasm             WasmConfig             `mapstructure:"wasm"`
}

// AddonsConfig controls add-on discovery.
type AddonsConfig struct {
	// Reload add-ons when files under addon_paths change.
	Watch bool `mapstructure:"watch"`
	// Quiet period before a reload fires (milliseconds).
	DebounceMS int `mapstructure:"debounce_ms"`
}

// SessionConfig holds per-connection settings.
type SessionConfig struct {
	// Maximum concurrently served completion/resolve requests.
	Workers int `mapstructure:"workers"`
	// Buffered tasks waiting for the document owner.
	OwnerQueueSize int `mapstructure:"owner_queue_size"`
}

// CompletionConfig holds completion feature settings.
type CompletionConfig struct {
	// Documents larger than this (bytes) are not analyzed.
	MaxDocumentSize int `mapstructure:"max_document_size"`
	// Number of rendered documentation entries to memoize.
	DocumentationCacheSize int `mapstructure:"documentation_cache_size"`
}

// DocumentSelectorConfig selects the documents the completion feature applies to.
type DocumentSelectorConfig struct {
	Language string `mapstructure:"language"`
	Pattern  string `mapstructure:"pattern"`
}

// WasmConfig holds Wasm runtime configuration.
type WasmConfig struct {
	// Memory limit per module (in pages, 64KB each).
	MemoryPages uint32 `mapstructure:"memory_pages"`
	// Enable debug logging.
	Debug bool `mapstructure:"debug"`
	// Compilation cache directory.
	CacheDir string `mapstructure:"cache_dir"`
	// Maximum concurrent instances.
	MaxInstances int `mapstructure:"max_instances"`
	// Module execution timeout (seconds).
	ExecutionTimeout int `mapstructure:"execution_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addon_paths", []string{"./addons"})
	v.SetDefault("log_level", "info")

	v.SetDefault("addons.watch", false)
	v.SetDefault("addons.debounce_ms", 100)

	v.SetDefault("server.workers", 8)
	v.SetDefault("server.owner_queue_size", 64)

	v.SetDefault("completion.max_document_size", 1<<20) // 1MB
	v.SetDefault("completion.documentation_cache_size", 256)

	v.SetDefault("document_selector.language", "markup")
	v.SetDefault("document_selector.pattern", "**/*.mkup")

	// Wasm defaults
	v.SetDefault("wasm.memory_pages", 256) // 16MB
	v.SetDefault("wasm.debug", false)
	v.SetDefault("wasm.cache_dir", "")
	v.SetDefault("wasm.max_instances", 100)
	v.SetDefault("wasm.execution_timeout", 30)
}

func LoadServerConfig(configPath string) (*ServerConfig, error) {
	return Load(configPath, nil)
}

// Load reads configuration from defaults, the optional config file,
// MARKUP_LSP_* environment variables and, when given, command-line flags.
// Flags are looked up by key name ("log_level", "addon_paths", ...).
func Load(configPath string, flags *pflag.FlagSet) (*ServerConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for _, key := range []string{"log_level", "addon_paths"} {
			if f := flags.Lookup(strings.ReplaceAll(key, "_", "-")); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
