package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths holds resolved, absolute file system locations.
type Paths struct {
	BaseDir    string
	LogsDir    string
	ExportsDir string
}

// ResolvePaths makes every configured directory absolute. Relative entries
// are joined to BaseDir, which itself defaults to the executable's directory.
func (c *Config) ResolvePaths() (*Paths, error) {
	base := c.Paths.BaseDir
	if base == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to get executable path: %w", err)
		}
		if exe, err = filepath.EvalSymlinks(exe); err != nil {
			return nil, fmt.Errorf("failed to resolve executable symlinks: %w", err)
		}
		base = filepath.Dir(exe)
	}

	base, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base dir: %w", err)
	}

	return &Paths{
		BaseDir:    base,
		LogsDir:    resolve(base, c.Paths.LogsDir),
		ExportsDir: resolve(base, c.Paths.ExportsDir),
	}, nil
}

// LogFile returns the absolute path of the log file.
func (p *Paths) LogFile(name string) string {
	return resolve(p.LogsDir, name)
}

// EnsureDirectories creates the logs and exports directories.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.LogsDir, p.ExportsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("ensured directory exists", slog.String("directory", dir))
	}
	return nil
}

// LogValue implements slog.LogValuer.
func (p *Paths) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("base", p.BaseDir),
		slog.String("logs", p.LogsDir),
		slog.String("exports", p.ExportsDir),
	)
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
