package config

import "time"

// Config is the root application configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Library LibraryConfig `yaml:"library"`
	Log     LogConfig     `yaml:"log"`
}

// StorageConfig selects and tunes the repository backend.
type StorageConfig struct {
	Driver      string        `yaml:"driver"       env:"LIBRARY_STORAGE_DRIVER"       env-default:"sqlite"`
	Path        string        `yaml:"path"         env:"LIBRARY_DB_PATH"              env-default:"library.db"`
	BusyTimeout time.Duration `yaml:"busy_timeout" env:"LIBRARY_STORAGE_BUSY_TIMEOUT" env-default:"5s"`
}

// LibraryConfig holds circulation defaults.
type LibraryConfig struct {
	LoanDays       int  `yaml:"loan_days"        env:"LIBRARY_LOAN_DAYS"        env-default:"14"`
	DashboardLimit int  `yaml:"dashboard_limit"  env:"LIBRARY_DASHBOARD_LIMIT"  env-default:"5"`
	ReportTopBooks int  `yaml:"report_top_books" env:"LIBRARY_REPORT_TOP_BOOKS" env-default:"10"`
	SeedOnEmpty    bool `yaml:"seed_on_empty"    env:"LIBRARY_SEED_ON_EMPTY"    env-default:"false"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)
