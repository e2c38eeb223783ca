package envconfig

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
)

const defaultPort = "11500"

var ErrInvalidHostPort = errors.New("invalid port specified in SUBWORD_HOST")

// Var returns the environment variable key with quotes and spaces trimmed,
// falling back to the configuration file.
func Var(key string) string {
	if s := clean(key); s != "" {
		return s
	}

	return fileValue(key)
}

// Clean quotes and spaces from the value
func clean(key string) string {
	return strings.Trim(os.Getenv(key), "\"' ")
}

// Host returns the scheme and host the server listens on and the client
// connects to. SUBWORD_HOST may omit the scheme, the host or the port.
// Default is http://127.0.0.1:11500.
func Host() (*url.URL, error) {
	defaultScheme, defaultHost, fallbackPort := "http", "127.0.0.1", defaultPort

	s := strings.TrimSpace(strings.Trim(Var("SUBWORD_HOST"), "\"'"))
	scheme, hostport, ok := strings.Cut(s, "://")
	switch {
	case !ok:
		scheme, hostport = defaultScheme, s
	case scheme == "http":
		fallbackPort = "80"
	case scheme == "https":
		fallbackPort = "443"
	}

	hostport, path, _ := strings.Cut(hostport, "/")
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = defaultHost, fallbackPort
		if ip := net.ParseIP(strings.Trim(hostport, "[]")); ip != nil {
			host = ip.String()
		} else if hostport != "" {
			host = hostport
		}
	}

	if n, err := strconv.ParseInt(port, 10, 32); err != nil || n > 65535 || n < 0 {
		return nil, ErrInvalidHostPort
	}

	return &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, port),
		Path:   path,
	}, nil
}

// AllowedOrigins returns the CORS origins accepted by the server.
// SUBWORD_ORIGINS is a comma separated list added to the local defaults.
func AllowedOrigins() (origins []string) {
	if s := Var("SUBWORD_ORIGINS"); s != "" {
		origins = strings.Split(s, ",")
	}

	for _, origin := range []string{"localhost", "127.0.0.1", "0.0.0.0"} {
		origins = append(origins,
			fmt.Sprintf("http://%s", origin),
			fmt.Sprintf("https://%s", origin),
			fmt.Sprintf("http://%s", net.JoinHostPort(origin, "*")),
			fmt.Sprintf("https://%s", net.JoinHostPort(origin, "*")),
		)
	}

	return origins
}

// LogLevel returns the log level. SUBWORD_DEBUG may be a boolean or a
// verbosity where 1 is debug and 2 is trace.
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("SUBWORD_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

func Bool(k string) func() bool {
	return func() bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}

			return b
		}

		return false
	}
}

var (
	// SequentialBuild builds tokenizer structures on a single goroutine.
	SequentialBuild = Bool("SUBWORD_SEQUENTIAL_BUILD")
)

func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}

		return defaultValue
	}
}

var (
	// BuildWorkers bounds concurrent construction steps. Zero is unbounded.
	BuildWorkers = Uint("SUBWORD_BUILD_WORKERS", 0)
	// MaxInputBytes limits the size of a request body accepted by the server.
	MaxInputBytes = Uint("SUBWORD_MAX_INPUT", 1<<20)
)

type EnvVar struct {
	Name        string
	Value       any
	Description string
}

func AsMap() map[string]EnvVar {
	host, err := Host()
	hostValue := any(err)
	if err == nil {
		hostValue = host.String()
	}

	return map[string]EnvVar{
		"SUBWORD_BUILD_WORKERS":    {"SUBWORD_BUILD_WORKERS", BuildWorkers(), "Maximum concurrent construction steps (default 0 = unbounded)"},
		"SUBWORD_CONFIG":           {"SUBWORD_CONFIG", clean("SUBWORD_CONFIG"), "Path to the configuration file"},
		"SUBWORD_DEBUG":            {"SUBWORD_DEBUG", LogLevel(), "Show additional debug information (e.g. SUBWORD_DEBUG=1)"},
		"SUBWORD_HOST":             {"SUBWORD_HOST", hostValue, "IP Address for the subword server (default 127.0.0.1:11500)"},
		"SUBWORD_MAX_INPUT":        {"SUBWORD_MAX_INPUT", MaxInputBytes(), "Maximum request body size in bytes (default 1048576)"},
		"SUBWORD_ORIGINS":          {"SUBWORD_ORIGINS", AllowedOrigins(), "A comma separated list of allowed origins"},
		"SUBWORD_SEQUENTIAL_BUILD": {"SUBWORD_SEQUENTIAL_BUILD", SequentialBuild(), "Build tokenizer structures without fan-out"},
	}
}

func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
