// Package config provides the configuration loader for mediacache.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/dustin/go-humanize"
	"go.trai.ch/mediacache/internal/core/domain"
	"go.trai.ch/mediacache/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var _ ports.ConfigLoader = (*Loader)(nil)

// Loader implements ports.ConfigLoader using a YAML file.
type Loader struct {
	Logger ports.Logger
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

var validCacheNameRegex = regexp.MustCompile("^[a-zA-Z0-9_-]+$")

// Default returns the configuration used when no file exists.
func Default() *domain.Config {
	return &domain.Config{
		Budget:           domain.Budget{MaxBytes: domain.DefaultMaxBytes},
		BootstrapWorkers: domain.DefaultBootstrapWorkers,
		TempDir:          domain.DefaultTempPath(),
		Caches: []domain.CacheConfig{{
			Name:          domain.DefaultCacheName,
			Dir:           domain.DefaultCachePath(domain.DefaultCacheName),
			MaxEntryBytes: domain.DefaultMaxEntryBytes,
			DefaultTTL:    domain.DefaultTTL,
		}},
	}
}

// Load reads the configuration file at path.
// Relative directories are resolved against the root, which defaults to the
// directory holding the file.
func (l *Loader) Load(path string) (*domain.Config, error) {
	var file File
	if err := readAndUnmarshalYAML(path, &file); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			l.Logger.Info(fmt.Sprintf("no configuration at %s, using defaults", path))
			return Default(), nil
		}
		return nil, err
	}

	root := resolvePath(filepath.Dir(path), file.Root)

	cfg := &domain.Config{
		BootstrapWorkers: file.BootstrapWorkers,
		TempDir:          domain.DefaultTempPath(),
		JSONLogs:         file.JSONLogs,
		Budget:           domain.Budget{MaxBytes: domain.DefaultMaxBytes, MaxCount: file.Budget.MaxCount},
	}
	if cfg.BootstrapWorkers <= 0 {
		cfg.BootstrapWorkers = domain.DefaultBootstrapWorkers
	}
	if file.TempDir != "" {
		cfg.TempDir = resolvePath(root, file.TempDir)
	}
	if file.Budget.MaxBytes != "" {
		n, err := parseSize(file.Budget.MaxBytes, "budget.max_bytes")
		if err != nil {
			return nil, err
		}
		cfg.Budget.MaxBytes = n
	}
	if cfg.Budget.MaxCount < 0 {
		return nil, zerr.With(zerr.Wrap(domain.ErrInvalidSize, "negative entry budget"), "field", "budget.max_count")
	}

	if len(file.Caches) == 0 {
		l.Logger.Warn(fmt.Sprintf("%s defines no caches, using %q", path, domain.DefaultCacheName))
		cfg.Caches = Default().Caches
		return cfg, nil
	}

	seen := make(map[string]bool, len(file.Caches))
	for _, dto := range file.Caches {
		if dto == nil {
			continue
		}
		cc, err := buildCache(root, dto)
		if err != nil {
			return nil, zerr.With(err, "cache", dto.Name)
		}
		if seen[cc.Name] {
			return nil, zerr.With(zerr.Wrap(domain.ErrDuplicateCacheName, "invalid configuration"), "cache", cc.Name)
		}
		seen[cc.Name] = true
		cfg.Caches = append(cfg.Caches, cc)
	}

	return cfg, nil
}

func buildCache(root string, dto *CacheDTO) (domain.CacheConfig, error) {
	if err := validateCacheName(dto.Name); err != nil {
		return domain.CacheConfig{}, err
	}

	cc := domain.CacheConfig{
		Name:          dto.Name,
		Dir:           domain.DefaultCachePath(dto.Name),
		MaxEntryBytes: domain.DefaultMaxEntryBytes,
		DefaultTTL:    domain.DefaultTTL,
	}
	if dto.Dir != "" {
		cc.Dir = resolvePath(root, dto.Dir)
	}
	if dto.MaxEntrySize != "" {
		n, err := parseSize(dto.MaxEntrySize, "max_entry_size")
		if err != nil {
			return domain.CacheConfig{}, err
		}
		cc.MaxEntryBytes = n
	}
	if dto.DefaultTTL != "" {
		d, err := time.ParseDuration(dto.DefaultTTL)
		if err != nil || d < 0 {
			return domain.CacheConfig{}, zerr.With(
				zerr.Wrap(domain.ErrInvalidDuration, "invalid default_ttl"), "value", dto.DefaultTTL)
		}
		cc.DefaultTTL = d
	}
	return cc, nil
}

// validateCacheName rejects names that cannot be used as a directory name or
// that collide with the temp directory.
func validateCacheName(name string) error {
	if name == domain.TempDirName {
		return zerr.With(zerr.Wrap(domain.ErrInvalidCacheName, "reserved cache name"), "cache_name", name)
	}
	if !validCacheNameRegex.MatchString(name) {
		return zerr.With(zerr.Wrap(domain.ErrInvalidCacheName, "invalid cache name"), "cache_name", name)
	}
	return nil
}

func parseSize(raw, field string) (int64, error) {
	n, err := humanize.ParseBytes(raw)
	if err != nil || n > uint64(1<<63-1) {
		return 0, zerr.With(zerr.With(zerr.Wrap(domain.ErrInvalidSize, "invalid size"), "field", field), "value", raw)
	}
	return int64(n), nil
}

func resolvePath(base, p string) string {
	if p == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readAndUnmarshalYAML reads a YAML file and unmarshals it into the target struct.
func readAndUnmarshalYAML[T any](configPath string, target *T) error {
	// #nosec G304 -- configPath is provided by the user
	data, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Join(domain.ErrConfigReadFailed, zerr.With(err, "path", configPath))
	}

	if err := yaml.Unmarshal(data, target); err != nil {
		return errors.Join(domain.ErrConfigParseFailed, zerr.With(err, "path", configPath))
	}

	return nil
}
