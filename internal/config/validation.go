package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/conneroisu/pagemill/internal/logging"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

func invalid(field string, value interface{}, message string, suggestions ...string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions}
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validatePagesConfig(&config.Pages); err != nil {
		return fmt.Errorf("pages config: %w", err)
	}
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := validateBuildConfig(&config.Build); err != nil {
		return fmt.Errorf("build config: %w", err)
	}
	if config.Collections.DefaultPageSize < 1 {
		return fmt.Errorf("collections config: %w", invalid("collections.default_page_size",
			config.Collections.DefaultPageSize, "must be at least 1"))
	}
	if config.Development.Debounce < 0 {
		return fmt.Errorf("development config: %w", invalid("development.debounce",
			config.Development.Debounce, "must not be negative", "debounce: 300ms"))
	}
	if err := validateLogConfig(&config.Log); err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	return nil
}

func validatePagesConfig(config *PagesConfig) error {
	if config.Root == "" {
		return invalid("pages.root", config.Root, "must not be empty", "root: ./src/pages")
	}
	paths := map[string]string{
		"pages.root":    config.Root,
		"pages.layouts": config.Layouts,
		"pages.data":    config.Data,
	}
	for field, path := range paths {
		if path == "" {
			continue
		}
		if err := validatePath(path); err != nil {
			return invalid(field, path, err.Error())
		}
	}

	if len(config.Extensions) == 0 {
		return invalid("pages.extensions", config.Extensions, "at least one extension is required",
			"extensions: [.html, .md]")
	}
	for _, ext := range config.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return invalid("pages.extensions", ext, "extensions must start with a dot",
				fmt.Sprintf("use .%s", strings.TrimPrefix(ext, ".")))
		}
	}

	prefix := config.CollectionPrefix
	if utf8.RuneCountInString(prefix) != 1 {
		return invalid("pages.collection_prefix", prefix, "must be a single character",
			"collection_prefix: $")
	}
	if strings.ContainsAny(prefix, `/\.`) {
		return invalid("pages.collection_prefix", prefix, "must not be a path separator or a dot")
	}
	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// 0 lets the system pick a port
	if config.Port < 0 || config.Port > 65535 {
		return invalid("server.port", config.Port,
			fmt.Sprintf("port %d is not in valid range 0-65535", config.Port))
	}

	if config.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\", "/"}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				return invalid("server.host", config.Host, "host contains dangerous character: "+char)
			}
		}
	}

	if config.Public != "" {
		if err := validatePath(config.Public); err != nil {
			return invalid("server.public", config.Public, err.Error())
		}
	}
	return nil
}

// validateBuildConfig validates build configuration values
func validateBuildConfig(config *BuildConfig) error {
	if config.OutDir == "" {
		return invalid("build.out_dir", config.OutDir, "must not be empty", "out_dir: ./dist")
	}
	if err := validatePath(config.OutDir); err != nil {
		return invalid("build.out_dir", config.OutDir, err.Error())
	}
	if filepath.Clean(config.OutDir) == "." {
		return invalid("build.out_dir", config.OutDir, "must not be the project directory")
	}

	if config.Site != "" {
		u, err := url.Parse(config.Site)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return invalid("build.site", config.Site, "must be an absolute http(s) URL",
				"site: https://example.com")
		}
	}
	return nil
}

func validateLogConfig(config *LogConfig) error {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		return invalid("log.level", config.Level, err.Error(), "level: debug|info|warn|error")
	}
	switch config.Format {
	case "text", "json":
		return nil
	default:
		return invalid("log.format", config.Format, "unknown log format", "format: text|json")
	}
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)

	if cleanPath == ".." || strings.HasPrefix(cleanPath, "../") || strings.Contains(cleanPath, "/../") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "`", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
