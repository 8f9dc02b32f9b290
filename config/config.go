package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// Config captures all command-line options required to build a digest.
type Config struct {
	BaseDir       string
	SrcDir        string
	OutputPath    string
	MaxDepth      int
	LogLevel      string
	LogDir        string
	Progress      bool
	IncludeHeader []string
	IncludeBody   []string
	ExcludeHeader []string
	ExcludeBody   []string
}

// RegisterFlags attaches all CLI flags to the provided command.
func RegisterFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	flags.String("dir", "", "Base directory for relative paths (defaults to the executable's directory)")
	flags.String("src", "src", "Directory holding the .7z, .zip and .mbox archives")
	flags.String("output", "output.html", "Path of the HTML digest to write")
	flags.Int("max-depth", 3, "How many levels of archives nested inside archives to open")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
	flags.String("log-dir", "", "Also write logs to a timestamped file in this directory")
	flags.Bool("no-progress", false, "Disable the progress bar")
	flags.StringArray("include-header", nil, "Regex allow-list applied to message headers (mutually exclusive with exclude flags)")
	flags.StringArray("include-body", nil, "Regex allow-list applied to message bodies (mutually exclusive with exclude flags)")
	flags.StringArray("exclude-header", nil, "Regex block-list applied to message headers (mutually exclusive with include flags)")
	flags.StringArray("exclude-body", nil, "Regex block-list applied to message bodies (mutually exclusive with include flags)")
	return nil
}

// LoadConfig converts the parsed Cobra flags into a Config struct with validation.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	flags := cmd.Flags()

	baseDir, err := flags.GetString("dir")
	if err != nil {
		return Config{}, err
	}
	srcDir, err := flags.GetString("src")
	if err != nil {
		return Config{}, err
	}
	output, err := flags.GetString("output")
	if err != nil {
		return Config{}, err
	}
	maxDepth, err := flags.GetInt("max-depth")
	if err != nil {
		return Config{}, err
	}
	logLevel, err := flags.GetString("log-level")
	if err != nil {
		return Config{}, err
	}
	logDir, err := flags.GetString("log-dir")
	if err != nil {
		return Config{}, err
	}
	noProgress, err := flags.GetBool("no-progress")
	if err != nil {
		return Config{}, err
	}
	includeHeader, err := flags.GetStringArray("include-header")
	if err != nil {
		return Config{}, err
	}
	includeBody, err := flags.GetStringArray("include-body")
	if err != nil {
		return Config{}, err
	}
	excludeHeader, err := flags.GetStringArray("exclude-header")
	if err != nil {
		return Config{}, err
	}
	excludeBody, err := flags.GetStringArray("exclude-body")
	if err != nil {
		return Config{}, err
	}

	if baseDir == "" {
		baseDir, err = executableDir()
		if err != nil {
			return Config{}, err
		}
	}

	logLevel = strings.ToLower(logLevel)
	if logLevel == "warning" {
		logLevel = "warn"
	}

	cfg := Config{
		BaseDir:       filepath.Clean(baseDir),
		SrcDir:        resolve(baseDir, srcDir),
		OutputPath:    resolve(baseDir, output),
		MaxDepth:      maxDepth,
		LogLevel:      logLevel,
		LogDir:        logDir,
		Progress:      !noProgress,
		IncludeHeader: includeHeader,
		IncludeBody:   includeBody,
		ExcludeHeader: excludeHeader,
		ExcludeBody:   excludeBody,
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	if cfg.SrcDir == "" {
		return fmt.Errorf("--src is required")
	}
	if cfg.OutputPath == "" || strings.HasSuffix(cfg.OutputPath, string(filepath.Separator)) {
		return fmt.Errorf("--output must name a file")
	}
	if cfg.MaxDepth < 0 {
		return fmt.Errorf("--max-depth must not be negative")
	}
	includeActive := len(cfg.IncludeHeader) > 0 || len(cfg.IncludeBody) > 0
	excludeActive := len(cfg.ExcludeHeader) > 0 || len(cfg.ExcludeBody) > 0
	if includeActive && excludeActive {
		return fmt.Errorf("include and exclude flags are mutually exclusive")
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid --log-level: %s", cfg.LogLevel)
	}

	return nil
}

// resolve makes path absolute against base unless it already is.
func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// executableDir returns the directory of the running program, following
// symlinks.
func executableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}
