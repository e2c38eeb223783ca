package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

// FileConfig is the optional TOML configuration file. Environment variables
// take precedence over every value in it.
type FileConfig struct {
	Server struct {
		Host     string   `toml:"host"`
		Origins  []string `toml:"origins"`
		MaxInput uint     `toml:"max_input"`
	} `toml:"server"`

	Build struct {
		Sequential bool `toml:"sequential"`
		Workers    uint `toml:"workers"`
	} `toml:"build"`

	Logging struct {
		Debug string `toml:"debug"`
	} `toml:"logging"`
}

var (
	configOnce sync.Once
	config     *FileConfig
	configPath string
)

// ConfigPaths returns the candidate configuration file paths in search
// order. SUBWORD_CONFIG replaces the search entirely.
func ConfigPaths() []string {
	if path := clean("SUBWORD_CONFIG"); path != "" {
		return []string{path}
	}

	var paths []string
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			paths = append(paths, filepath.Join(appData, "subword", "config.toml"))
		}
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			paths = append(paths, filepath.Join(xdgConfig, "subword", "config.toml"))
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "subword", "config.toml"),
			filepath.Join(home, ".subword", "config.toml"),
		)
	}

	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/subword/config.toml")
	}

	return paths
}

func loadConfig() (*FileConfig, string, error) {
	for _, path := range ConfigPaths() {
		if _, err := os.Stat(path); err != nil {
			continue
		}

		var cfg FileConfig
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, "", fmt.Errorf("error parsing config file %s: %w", path, err)
		}
		return &cfg, path, nil
	}

	return nil, "", nil
}

// Reload forgets the loaded configuration file so the next lookup searches
// again.
func Reload() {
	configOnce = sync.Once{}
	config, configPath = nil, ""
}

// ConfigPath returns the configuration file in use, if any.
func ConfigPath() string {
	fileConfig()
	return configPath
}

func fileConfig() *FileConfig {
	configOnce.Do(func() {
		var err error
		config, configPath, err = loadConfig()
		if err != nil {
			slog.Warn("failed to load config file", "error", err)
		} else if config != nil {
			slog.Debug("loaded config file", "path", configPath)
		}
	})

	return config
}

// fileValue maps an environment variable to its configuration file value.
func fileValue(key string) string {
	cfg := fileConfig()
	if cfg == nil {
		return ""
	}

	switch key {
	case "SUBWORD_HOST":
		return cfg.Server.Host
	case "SUBWORD_ORIGINS":
		return strings.Join(cfg.Server.Origins, ",")
	case "SUBWORD_MAX_INPUT":
		if cfg.Server.MaxInput > 0 {
			return strconv.FormatUint(uint64(cfg.Server.MaxInput), 10)
		}
	case "SUBWORD_SEQUENTIAL_BUILD":
		if cfg.Build.Sequential {
			return "true"
		}
	case "SUBWORD_BUILD_WORKERS":
		if cfg.Build.Workers > 0 {
			return strconv.FormatUint(uint64(cfg.Build.Workers), 10)
		}
	case "SUBWORD_DEBUG":
		return cfg.Logging.Debug
	}

	return ""
}

// ExampleConfig returns a commented example configuration file.
func ExampleConfig() string {
	return `# subword configuration file
# Environment variables override every value here.

[server]
# Network binding address (default: "127.0.0.1:11500")
host = "127.0.0.1:11500"
# Allowed CORS origins
origins = ["http://localhost:3000"]
# Maximum request body size in bytes (default: 1048576)
max_input = 1048576

[build]
# Build tokenizer structures without fan-out (default: false)
sequential = false
# Maximum concurrent construction steps (default: 0 = unbounded)
workers = 0

[logging]
# "1" for debug, "2" for trace
debug = "0"
`
}
