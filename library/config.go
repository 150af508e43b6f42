package library

import "os"

// Config holds the file locations and seed settings for both stores.
type Config struct {
	// DBPath is the SQLite file backing the catalog and ledger.
	DBPath string
	// UsersPath is the JSON credential file.
	UsersPath string
	// ExportDir receives CSV exports; empty means the working
	// directory.
	ExportDir string
	// AdminPassword overrides the first-run admin seed password.
	// Empty falls back to the documented default.
	AdminPassword string
}

// LoadConfigFromEnv reads configuration from environment variables,
// falling back to working-directory defaults so a bare first run works.
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		DBPath:    "library.db",
		UsersPath: "users.json",
	}
	if v := os.Getenv("LIBRARY_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("LIBRARY_USERS_PATH"); v != "" {
		cfg.UsersPath = v
	}
	if v := os.Getenv("LIBRARY_EXPORT_DIR"); v != "" {
		cfg.ExportDir = v
	}
	cfg.AdminPassword = os.Getenv("LIBRARY_ADMIN_PASSWORD")
	return cfg
}
