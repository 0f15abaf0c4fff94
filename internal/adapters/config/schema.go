package config

// File represents the structure of the mediacache.yaml configuration file.
type File struct {
	Version          string      `yaml:"version"`
	Root             string      `yaml:"root"`
	Budget           BudgetDTO   `yaml:"budget"`
	BootstrapWorkers int         `yaml:"bootstrap_workers"`
	TempDir          string      `yaml:"temp_dir"`
	JSONLogs         bool        `yaml:"json_logs"`
	Caches           []*CacheDTO `yaml:"caches"`
}

// BudgetDTO represents the global budget section.
type BudgetDTO struct {
	MaxBytes string `yaml:"max_bytes"`
	MaxCount int64  `yaml:"max_count"`
}

// CacheDTO represents one cache definition in the configuration.
type CacheDTO struct {
	Name         string `yaml:"name"`
	Dir          string `yaml:"dir"`
	MaxEntrySize string `yaml:"max_entry_size"`
	DefaultTTL   string `yaml:"default_ttl"`
}
