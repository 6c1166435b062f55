// Package config provides configuration management for pagemill using Viper
// for loading from files, environment variables and command-line flags.
//
// Values come from a YAML file (.pagemill.yml by default), PAGEMILL_
// prefixed environment variables and flags bound by the CLI. Load fills
// defaults for anything left unset and validates the result.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Pages       PagesConfig       `mapstructure:"pages" yaml:"pages"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Build       BuildConfig       `mapstructure:"build" yaml:"build"`
	Collections CollectionsConfig `mapstructure:"collections" yaml:"collections"`
	Development DevelopmentConfig `mapstructure:"development" yaml:"development"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
}

type PagesConfig struct {
	Root             string   `mapstructure:"root" yaml:"root"`
	Extensions       []string `mapstructure:"extensions" yaml:"extensions"`
	CollectionPrefix string   `mapstructure:"collection_prefix" yaml:"collection_prefix"`
	Layouts          string   `mapstructure:"layouts" yaml:"layouts"`
	Data             string   `mapstructure:"data" yaml:"data"`
}

type ServerConfig struct {
	Host   string `mapstructure:"host" yaml:"host"`
	Port   int    `mapstructure:"port" yaml:"port"`
	Public string `mapstructure:"public" yaml:"public"`
}

type BuildConfig struct {
	OutDir  string `mapstructure:"out_dir" yaml:"out_dir"`
	Site    string `mapstructure:"site" yaml:"site"`
	Sitemap bool   `mapstructure:"sitemap" yaml:"sitemap"`
	Clean   bool   `mapstructure:"clean" yaml:"clean"`
}

type CollectionsConfig struct {
	DefaultPageSize int `mapstructure:"default_page_size" yaml:"default_page_size"`
}

type DevelopmentConfig struct {
	LiveReload bool          `mapstructure:"live_reload" yaml:"live_reload"`
	Debounce   time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Defaults holds the value of every key Load fills when it is unset.
var Defaults = map[string]interface{}{
	"pages.root":                    "./src/pages",
	"pages.extensions":              []string{".html", ".md"},
	"pages.collection_prefix":       "$",
	"pages.layouts":                 "./src/layouts",
	"pages.data":                    "./src/data",
	"server.host":                   "localhost",
	"server.port":                   3000,
	"server.public":                 "./public",
	"build.out_dir":                 "./dist",
	"build.site":                    "",
	"build.sitemap":                 true,
	"build.clean":                   false,
	"collections.default_page_size": 10,
	"development.live_reload":       true,
	"development.debounce":          "300ms",
	"log.level":                     "info",
	"log.format":                    "text",
}

// EnvPrefix prefixes every environment variable read by pagemill, e.g.
// PAGEMILL_SERVER_PORT for server.port.
const EnvPrefix = "PAGEMILL"

var envKeyReplacer = strings.NewReplacer(".", "_")

// BindEnv makes v read PAGEMILL_<SECTION>_<KEY> environment variables.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()
}

// Load reads the global viper instance into a Config.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads v into a Config, registering defaults for unset keys.
func LoadFrom(v *viper.Viper) (*Config, error) {
	for key, value := range Defaults {
		v.SetDefault(key, value)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Addr returns the host:port the development server listens on.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
