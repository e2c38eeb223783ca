package envconfig

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setTestConfig points the configuration file search at a temporary file
// holding contents. Empty contents leave the file absent.
func setTestConfig(t *testing.T, contents string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	if contents != "" {
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	}

	t.Setenv("SUBWORD_CONFIG", path)
	Reload()
	t.Cleanup(Reload)
}

func TestLogLevel(t *testing.T) {
	setTestConfig(t, "")

	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"false": slog.LevelInfo,
		"t":     slog.LevelDebug,
		"1":     slog.LevelDebug,
		"2":     -8,
		"0":     slog.LevelInfo,
	}

	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv("SUBWORD_DEBUG", k)
			assert.Equal(t, v, LogLevel())
		})
	}
}

func TestHost(t *testing.T) {
	setTestConfig(t, "")

	cases := map[string]struct {
		value  string
		expect string
		err    error
	}{
		"empty":               {value: "", expect: "127.0.0.1:11500"},
		"only address":        {value: "1.2.3.4", expect: "1.2.3.4:11500"},
		"only port":           {value: ":1234", expect: ":1234"},
		"address and port":    {value: "1.2.3.4:1234", expect: "1.2.3.4:1234"},
		"hostname":            {value: "example.com", expect: "example.com:11500"},
		"hostname and port":   {value: "example.com:1234", expect: "example.com:1234"},
		"zero port":           {value: ":0", expect: ":0"},
		"too large port":      {value: ":66000", err: ErrInvalidHostPort},
		"too small port":      {value: ":-1", err: ErrInvalidHostPort},
		"ipv6 localhost":      {value: "[::1]", expect: "[::1]:11500"},
		"ipv6 world open":     {value: "[::]", expect: "[::]:11500"},
		"ipv6 no brackets":    {value: "::1", expect: "[::1]:11500"},
		"ipv6 + port":         {value: "[::1]:1337", expect: "[::1]:1337"},
		"extra space":         {value: " 1.2.3.4 ", expect: "1.2.3.4:11500"},
		"extra quotes":        {value: "\"1.2.3.4\"", expect: "1.2.3.4:11500"},
		"extra space+quotes":  {value: " \" 1.2.3.4 \" ", expect: "1.2.3.4:11500"},
		"extra single quotes": {value: "'1.2.3.4'", expect: "1.2.3.4:11500"},
		"http":                {value: "http://1.2.3.4", expect: "1.2.3.4:80"},
		"https":               {value: "https://1.2.3.4", expect: "1.2.3.4:443"},
	}

	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv("SUBWORD_HOST", v.value)

			host, err := Host()
			require.ErrorIs(t, err, v.err)
			if err == nil {
				assert.Equal(t, v.expect, host.Host)
			}
		})
	}
}

func TestAllowedOrigins(t *testing.T) {
	setTestConfig(t, "")

	t.Setenv("SUBWORD_ORIGINS", "")
	origins := AllowedOrigins()
	assert.Len(t, origins, 12)
	assert.Contains(t, origins, "http://localhost:*")

	t.Setenv("SUBWORD_ORIGINS", "http://10.0.0.1,https://example.com")
	origins = AllowedOrigins()
	require.Len(t, origins, 14)
	assert.Equal(t, []string{"http://10.0.0.1", "https://example.com"}, origins[:2])
}

func TestBool(t *testing.T) {
	setTestConfig(t, "")

	cases := map[string]bool{
		"":       false,
		"true":   true,
		"false":  false,
		"1":      true,
		"0":      false,
		"random": true,
	}

	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv("SUBWORD_SEQUENTIAL_BUILD", k)
			assert.Equal(t, v, SequentialBuild())
		})
	}
}

func TestUint(t *testing.T) {
	setTestConfig(t, "")

	cases := map[string]uint{
		"":       1 << 20,
		"0":      0,
		"4096":   4096,
		"-1":     1 << 20,
		"random": 1 << 20,
	}

	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv("SUBWORD_MAX_INPUT", k)
			assert.Equal(t, v, MaxInputBytes())
		})
	}
}

func TestFileConfig(t *testing.T) {
	setTestConfig(t, `
[server]
host = "0.0.0.0:9000"
origins = ["http://example.com"]
max_input = 2048

[build]
sequential = true
workers = 3

[logging]
debug = "1"
`)

	for _, key := range []string{"SUBWORD_HOST", "SUBWORD_ORIGINS", "SUBWORD_MAX_INPUT", "SUBWORD_SEQUENTIAL_BUILD", "SUBWORD_BUILD_WORKERS", "SUBWORD_DEBUG"} {
		t.Setenv(key, "")
	}

	host, err := Host()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", host.Host)
	assert.Equal(t, "http://example.com", AllowedOrigins()[0])
	assert.Equal(t, uint(2048), MaxInputBytes())
	assert.True(t, SequentialBuild())
	assert.Equal(t, uint(3), BuildWorkers())
	assert.Equal(t, slog.LevelDebug, LogLevel())
	assert.NotEmpty(t, ConfigPath())

	t.Run("environment wins", func(t *testing.T) {
		t.Setenv("SUBWORD_BUILD_WORKERS", "7")
		assert.Equal(t, uint(7), BuildWorkers())
	})
}

func TestFileConfigInvalid(t *testing.T) {
	setTestConfig(t, "[server\nhost = ")
	t.Setenv("SUBWORD_HOST", "")

	host, err := Host()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:11500", host.Host)
	assert.Empty(t, ConfigPath())
}

func TestExampleConfig(t *testing.T) {
	setTestConfig(t, ExampleConfig())
	t.Setenv("SUBWORD_HOST", "")
	t.Setenv("SUBWORD_MAX_INPUT", "")

	host, err := Host()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:11500", host.Host)
	assert.Equal(t, uint(1<<20), MaxInputBytes())
}
