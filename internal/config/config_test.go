package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "./src/pages", cfg.Pages.Root)
	assert.Equal(t, []string{".html", ".md"}, cfg.Pages.Extensions)
	assert.Equal(t, "$", cfg.Pages.CollectionPrefix)
	assert.Equal(t, "./src/layouts", cfg.Pages.Layouts)
	assert.Equal(t, "./src/data", cfg.Pages.Data)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "./public", cfg.Server.Public)
	assert.Equal(t, "./dist", cfg.Build.OutDir)
	assert.Empty(t, cfg.Build.Site)
	assert.True(t, cfg.Build.Sitemap)
	assert.False(t, cfg.Build.Clean)
	assert.Equal(t, 10, cfg.Collections.DefaultPageSize)
	assert.True(t, cfg.Development.LiveReload)
	assert.Equal(t, 300*time.Millisecond, cfg.Development.Debounce)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "localhost:3000", cfg.Server.Addr())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".pagemill.yml")
	content := `pages:
  root: ./site/pages
  extensions: [.html]
server:
  port: 8080
build:
  out_dir: ./public_html
  site: https://example.com
  sitemap: false
collections:
  default_page_size: 5
development:
  live_reload: false
  debounce: 1s
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, "./site/pages", cfg.Pages.Root)
	assert.Equal(t, []string{".html"}, cfg.Pages.Extensions)
	assert.Equal(t, "$", cfg.Pages.CollectionPrefix)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "./public_html", cfg.Build.OutDir)
	assert.Equal(t, "https://example.com", cfg.Build.Site)
	assert.False(t, cfg.Build.Sitemap)
	assert.Equal(t, 5, cfg.Collections.DefaultPageSize)
	assert.False(t, cfg.Development.LiveReload)
	assert.Equal(t, time.Second, cfg.Development.Debounce)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PAGEMILL_SERVER_PORT", "4000")
	t.Setenv("PAGEMILL_BUILD_SITE", "https://docs.example.com")

	v := viper.New()
	BindEnv(v)

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, "https://docs.example.com", cfg.Build.Site)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value interface{}
		field string
	}{
		{"negative port", "server.port", -1, "server.port"},
		{"port too large", "server.port", 70000, "server.port"},
		{"dangerous host", "server.host", "localhost;rm", "server.host"},
		{"empty root", "pages.root", "", "pages.root"},
		{"root traversal", "pages.root", "../outside", "pages.root"},
		{"layouts traversal", "pages.layouts", "src/../../x", "pages.layouts"},
		{"extension without dot", "pages.extensions", []string{"html"}, "pages.extensions"},
		{"no extensions", "pages.extensions", []string{}, "pages.extensions"},
		{"long prefix", "pages.collection_prefix", "$$", "pages.collection_prefix"},
		{"separator prefix", "pages.collection_prefix", "/", "pages.collection_prefix"},
		{"zero page size", "collections.default_page_size", 0, "collections.default_page_size"},
		{"relative site", "build.site", "example.com", "build.site"},
		{"ftp site", "build.site", "ftp://example.com", "build.site"},
		{"out dir is project", "build.out_dir", ".", "build.out_dir"},
		{"bad log level", "log.level", "loud", "log.level"},
		{"bad log format", "log.format", "xml", "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set(tt.key, tt.value)

			cfg, err := LoadFrom(v)
			require.Error(t, err)
			assert.Nil(t, cfg)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestLoadDecodeError(t *testing.T) {
	v := viper.New()
	v.Set("server.port", "not-a-port")

	_, err := LoadFrom(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode configuration")
}

func TestValidatePath(t *testing.T) {
	assert.NoError(t, validatePath("./src/pages"))
	assert.NoError(t, validatePath("/srv/site"))
	assert.NoError(t, validatePath("a..b"))
	assert.Error(t, validatePath(""))
	assert.Error(t, validatePath(".."))
	assert.Error(t, validatePath("pages|rm"))
}
