package domain

import (
	"os"
	"path/filepath"
)

const (
	// AppDirName is the name of the directory holding mediacache state.
	AppDirName = ".mediacache"

	// TempDirName is the name of the directory used for in-flight temp files.
	TempDirName = "tmp"

	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "mediacache.yaml"

	// DefaultCacheName is the name used for the cache created when no configuration exists.
	DefaultCacheName = "default"

	// PartialSuffix is appended to a safe identifier to name the partial variant's file.
	PartialSuffix = ".tmp"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644

	// PrivateFilePerm is the default permission for private files (rw-------).
	PrivateFilePerm = 0o600
)

// DefaultAppPath returns the default root directory for mediacache state.
func DefaultAppPath() string {
	return AppDirName
}

// DefaultCachePath returns the default directory of the named cache.
// It joins .mediacache and the cache name.
func DefaultCachePath(name string) string {
	return filepath.Join(AppDirName, name)
}

// DefaultTempPath returns the default directory for temp files.
// It lives next to the caches so finalizing a temp file is a rename on the same filesystem.
func DefaultTempPath() string {
	return filepath.Join(AppDirName, TempDirName)
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	if _, err := os.Stat(ConfigFileName); err == nil {
		return ConfigFileName
	}
	return filepath.Join(AppDirName, ConfigFileName)
}

// CompletePath returns the file path of the complete variant for a safe identifier.
func CompletePath(dir, safeID string) string {
	return filepath.Join(dir, safeID)
}

// PartialPath returns the file path of the partial variant for a safe identifier.
func PartialPath(dir, safeID string) string {
	return filepath.Join(dir, safeID+PartialSuffix)
}
