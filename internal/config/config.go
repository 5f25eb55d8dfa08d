package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/mcp-pdf-forms/internal/form"
	"github.com/a3tai/mcp-pdf-forms/internal/geometry"
	"github.com/a3tai/mcp-pdf-forms/internal/session"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB
	DefaultMaxSessions = 16

	// Directory permissions
	DefaultDirPerm = 0o750

	// EnvPrefix is prepended to every environment variable.
	EnvPrefix = "MCP_PDF_FORMS"
)

// Config holds all configuration for the form authoring server
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Directory is the workspace; every opened and saved file must be inside it.
	Directory string

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum PDF file size in bytes
	MaxSessions int

	// Field policy
	MinTextWidth        float64
	MinTextHeight       float64
	MinCheckboxSize     float64
	DefaultTextWidth    float64
	DefaultTextHeight   float64
	DefaultCheckboxSize float64

	// Output pipeline
	Parallel int  // concurrent page synthesis, 0 = GOMAXPROCS
	Verify   bool // re-read output before it is written
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		// Fallback to current directory if working directory cannot be determined
		currentDir = "."
	}

	p := form.DefaultPolicy()
	return &Config{
		Mode:                ModeStdio, // Default to stdio mode for MCP compatibility
		Host:                DefaultHost,
		Port:                DefaultPort,
		Directory:           currentDir,
		Version:             "1.0.0",
		ServerName:          "mcp-pdf-forms",
		LogLevel:            DefaultLogLevel,
		MaxFileSize:         DefaultMaxFileSize,
		MaxSessions:         DefaultMaxSessions,
		MinTextWidth:        p.MinTextWidth,
		MinTextHeight:       p.MinTextHeight,
		MinCheckboxSize:     p.MinCheckboxSize,
		DefaultTextWidth:    p.DefaultTextSize.Width,
		DefaultTextHeight:   p.DefaultTextSize.Height,
		DefaultCheckboxSize: p.DefaultCheckboxSize,
		Verify:              true,
	}
}

// envKeyReplacer maps dashed keys to environment names.
var envKeyReplacer = strings.NewReplacer("-", "_")

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	// Expand paths if needed
	if cfg.Directory != "" {
		if expandedPath, err := filepath.Abs(cfg.Directory); err == nil {
			cfg.Directory = expandedPath
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	for key, value := range map[string]any{
		"mode":                  cfg.Mode,
		"host":                  cfg.Host,
		"port":                  cfg.Port,
		"dir":                   cfg.Directory,
		"loglevel":              cfg.LogLevel,
		"maxfilesize":           cfg.MaxFileSize,
		"maxsessions":           cfg.MaxSessions,
		"min-text-width":        cfg.MinTextWidth,
		"min-text-height":       cfg.MinTextHeight,
		"min-checkbox-size":     cfg.MinCheckboxSize,
		"default-text-width":    cfg.DefaultTextWidth,
		"default-text-height":   cfg.DefaultTextHeight,
		"default-checkbox-size": cfg.DefaultCheckboxSize,
		"parallel":              cfg.Parallel,
		"verify":                cfg.Verify,
	} {
		viper.SetDefault(key, value)
	}
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.Directory, "Workspace directory for source and output PDFs")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	pflag.Int("maxsessions", cfg.MaxSessions, "Maximum number of open editing sessions (0 = unlimited)")
	pflag.Float64("min-text-width", cfg.MinTextWidth, "Minimum text field width in points")
	pflag.Float64("min-text-height", cfg.MinTextHeight, "Minimum text field height in points")
	pflag.Float64("min-checkbox-size", cfg.MinCheckboxSize, "Minimum checkbox side in points")
	pflag.Float64("default-text-width", cfg.DefaultTextWidth, "Width of a newly placed text field in points")
	pflag.Float64("default-text-height", cfg.DefaultTextHeight, "Height of a newly placed text field in points")
	pflag.Float64("default-checkbox-size", cfg.DefaultCheckboxSize, "Side of a newly placed checkbox in points")
	pflag.Int("parallel", cfg.Parallel, "Pages synthesized concurrently during save (0 = number of CPUs)")
	pflag.Bool("verify", cfg.Verify, "Re-read every output with an independent parser before writing it")
}

var flagNames = []string{
	"mode", "host", "port", "dir", "loglevel", "maxfilesize", "maxsessions",
	"min-text-width", "min-text-height", "min-checkbox-size",
	"default-text-width", "default-text-height", "default-checkbox-size",
	"parallel", "verify",
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, name := range flagNames {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nMCP PDF Forms - A Model Context Protocol server for adding fillable form fields to PDF files\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                         "+
			"# stdio mode, current directory (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/pdfs                     "+
			"# stdio mode with custom workspace\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --dir=/path/to/pdfs       # server mode\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --default-text-width=200 --verify=false # larger fields, no read-back\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  %s_MODE, %s_HOST, %s_PORT, %s_DIR, %s_LOGLEVEL, %s_MAXFILESIZE\n",
			EnvPrefix, EnvPrefix, EnvPrefix, EnvPrefix, EnvPrefix, EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_MIN_TEXT_WIDTH and the other policy flags, dashes as underscores\n", EnvPrefix)
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.Directory = viper.GetString("dir")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.MaxSessions = viper.GetInt("maxsessions")
	cfg.MinTextWidth = viper.GetFloat64("min-text-width")
	cfg.MinTextHeight = viper.GetFloat64("min-text-height")
	cfg.MinCheckboxSize = viper.GetFloat64("min-checkbox-size")
	cfg.DefaultTextWidth = viper.GetFloat64("default-text-width")
	cfg.DefaultTextHeight = viper.GetFloat64("default-text-height")
	cfg.DefaultCheckboxSize = viper.GetFloat64("default-checkbox-size")
	cfg.Parallel = viper.GetInt("parallel")
	cfg.Verify = viper.GetBool("verify")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate mode
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Validate port range (only for server mode)
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.Directory == "" {
		return errors.New("workspace directory cannot be empty")
	}

	// Check if the workspace exists, create if it doesn't
	if _, err := os.Stat(c.Directory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.Directory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create workspace directory %s: %w", c.Directory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access workspace directory %s: %w", c.Directory, err)
	}

	// Validate max file size
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}
	if c.MaxSessions < 0 {
		return errors.New("maximum sessions cannot be negative")
	}
	if c.Parallel < 0 {
		return errors.New("parallel cannot be negative")
	}

	if err := c.Policy().Validate(); err != nil {
		return fmt.Errorf("invalid field policy: %w", err)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// Policy returns the field policy described by the configuration.
func (c *Config) Policy() form.Policy {
	p := form.DefaultPolicy()
	p.MinTextWidth = c.MinTextWidth
	p.MinTextHeight = c.MinTextHeight
	p.MinCheckboxSize = c.MinCheckboxSize
	p.DefaultTextSize = geometry.Size{Width: c.DefaultTextWidth, Height: c.DefaultTextHeight}
	p.DefaultCheckboxSize = c.DefaultCheckboxSize
	return p
}

// SessionOptions returns the options every editing session is opened with.
func (c *Config) SessionOptions() session.Options {
	return session.Options{
		Policy:      c.Policy(),
		MaxFileSize: c.MaxFileSize,
		Parallel:    c.Parallel,
		Verify:      c.Verify,
	}
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, Directory: %s, LogLevel: %s, MaxFileSize: %d, "+
		"MaxSessions: %d, Parallel: %d, Verify: %t}",
		c.Mode, c.Host, c.Port, c.Directory, c.LogLevel, c.MaxFileSize, c.MaxSessions, c.Parallel, c.Verify)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
