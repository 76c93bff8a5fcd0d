package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()

	assert.True(t, c.IsDefault())
	assert.Equal(t, DefaultTimeout, c.GetTimeout())
	assert.True(t, c.GetLogEnabled())
	assert.True(t, c.GetFollowRedirects())
	assert.True(t, c.GetValidateSSL())
	assert.False(t, c.GetStrictMultipart())
	assert.Equal(t, DefaultMaxRetries, c.GetMaxRetries())
}

func TestGettersOnZeroConfig(t *testing.T) {
	var c Config

	assert.Equal(t, DefaultTimeout, c.GetTimeout())
	assert.Equal(t, DefaultMaxRedirects, c.GetMaxRedirects())
	assert.Equal(t, DefaultMaxRetries, c.GetMaxRetries())
	assert.True(t, c.GetLogEnabled())

	code, message, ctx := c.ErrorPaths()
	assert.Equal(t, "error.code", code)
	assert.Equal(t, "error.message", message)
	assert.Equal(t, "error.context", ctx)
}

func TestLoadConfig_YAML(t *testing.T) {
	t.Setenv("WEBSVC_TEST_TOKEN", "abc")
	dir := t.TempDir()
	path := writeFile(t, dir, "websvc.config.yaml", `
baseAddress: https://api.x.test
timeout: 2500
logEnabled: false
headers:
  Authorization: Bearer ${WEBSVC_TEST_TOKEN}
  X-Request-Id: "{{uuid()}}"
rateLimit: 5
errorCodePath: err.code
strictMultipart: true
maxRetries: 0
history: history.db
`)

	c, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.x.test", c.BaseAddress)
	assert.Equal(t, 2500*time.Millisecond, c.GetTimeout())
	assert.False(t, c.GetLogEnabled())
	assert.Equal(t, "Bearer abc", c.Headers["Authorization"])
	assert.Equal(t, "{{uuid()}}", c.Headers["X-Request-Id"])
	assert.Equal(t, 5.0, c.RateLimit)
	assert.True(t, c.GetStrictMultipart())
	assert.Equal(t, 0, c.GetMaxRetries())
	assert.Equal(t, "history.db", c.History)
	assert.True(t, c.GetFollowRedirects(), "unset fields keep defaults")

	code, message, _ := c.ErrorPaths()
	assert.Equal(t, "err.code", code)
	assert.Equal(t, DefaultErrorMessagePath, message)
}

func TestLoadConfig_JSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".websvcrc", `{"baseAddress":"http://localhost:8080","validateSSL":false}`)

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", c.BaseAddress)
	assert.False(t, c.GetValidateSSL())
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeFile(t, dir, "bad.json", `{"timeout":`))
	assert.ErrorContains(t, err, "bad.json")
}

func TestFindAndLoadConfig(t *testing.T) {
	dir := t.TempDir()

	c, err := FindAndLoadConfig(dir)
	require.NoError(t, err)
	assert.True(t, c.IsDefault())

	writeFile(t, dir, "websvc.config.json", `{"baseAddress":"http://json.test"}`)
	writeFile(t, dir, ".websvc.yaml", `baseAddress: http://yaml.test`)

	c, err = FindAndLoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://yaml.test", c.BaseAddress, "search order prefers .websvc.yaml")
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	base.Headers = map[string]string{"A": "1", "B": "1"}

	other := &Config{
		BaseAddress: "http://override.test",
		LogEnabled:  BoolPtr(false),
		MaxRetries:  IntPtr(3),
		Headers:     map[string]string{"B": "2"},
	}

	merged := base.Merge(other)

	assert.Equal(t, "http://override.test", merged.BaseAddress)
	assert.False(t, merged.GetLogEnabled())
	assert.Equal(t, 3, merged.GetMaxRetries())
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, merged.Headers)
	assert.Equal(t, map[string]string{"A": "1", "B": "1"}, base.Headers, "base is not mutated")
	assert.Same(t, base, base.Merge(nil))
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := DefaultConfig()
	c.BaseAddress = "http://saved.test"

	for _, name := range []string{"out.yaml", "out.json"} {
		path := filepath.Join(dir, name)
		require.NoError(t, c.SaveConfig(path))

		loaded, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "http://saved.test", loaded.BaseAddress, name)
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	WatchDebounceDelay = 20 * time.Millisecond
	t.Cleanup(func() { WatchDebounceDelay = 300 * time.Millisecond })

	dir := t.TempDir()
	path := writeFile(t, dir, "websvc.config.yaml", "baseAddress: http://one.test\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) {
			select {
			case changes <- c:
			default:
			}
		}, nil)
	}()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "websvc.config.yaml", "baseAddress: http://two.test\n")
	writeFile(t, dir, "unrelated.txt", "noise")

	timeout := time.After(5 * time.Second)
	for observed := false; !observed; {
		select {
		case c := <-changes:
			// a truncated intermediate write may be observed first
			observed = c.BaseAddress == "http://two.test"
		case <-timeout:
			t.Fatal("config change not observed")
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatch_ReportsInvalidConfig(t *testing.T) {
	WatchDebounceDelay = 20 * time.Millisecond
	t.Cleanup(func() { WatchDebounceDelay = 300 * time.Millisecond })

	dir := t.TempDir()
	path := writeFile(t, dir, "websvc.config.json", `{}`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errs := make(chan error, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Watch(ctx, path, func(*Config) {}, func(err error) {
			select {
			case errs <- err:
			default:
			}
		})
	}()
	defer func() {
		cancel()
		<-done
	}()

	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "websvc.config.json", `{"timeout":`)

	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("reload error not reported")
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("WEBSVC_TEST_HOST", "api.x.test")

	got := ExpandEnv([]byte("https://${WEBSVC_TEST_HOST}/{{$WEBSVC_TEST_HOST}} ${WEBSVC_TEST_UNSET}"))
	assert.Equal(t, "https://api.x.test/{{$WEBSVC_TEST_HOST}} ", string(got))
}

func TestWatch_MissingDirectory(t *testing.T) {
	err := Watch(context.Background(), "/nonexistent/dir/websvc.yaml", func(*Config) {}, nil)
	assert.Error(t, err)
}
