package config

import (
	"fmt"
	"strings"
)

// Validate checks the loaded configuration. Load calls it automatically.
func (c *Config) Validate() error {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("storage.path is required for the sqlite driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("storage.driver must be %q or %q (got %q)", DriverSQLite, DriverMemory, c.Storage.Driver)
	}
	if c.Storage.BusyTimeout < 0 {
		return fmt.Errorf("storage.busy_timeout must be >= 0 (got %s)", c.Storage.BusyTimeout)
	}

	if c.Library.LoanDays < 1 {
		return fmt.Errorf("library.loan_days must be > 0 (got %d)", c.Library.LoanDays)
	}
	if c.Library.DashboardLimit < 1 {
		return fmt.Errorf("library.dashboard_limit must be > 0 (got %d)", c.Library.DashboardLimit)
	}
	if c.Library.ReportTopBooks < 1 {
		return fmt.Errorf("library.report_top_books must be > 0 (got %d)", c.Library.ReportTopBooks)
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text (got %q)", c.Log.Format)
	}
	return nil
}
