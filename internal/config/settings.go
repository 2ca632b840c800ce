package config

import (
	"os"
	"path/filepath"

	"github.com/rulebook-dev/rulebook/internal/risk"
	"github.com/rulebook-dev/rulebook/internal/storage/sqlstore"
)

// DefaultDatabaseFile is the SQLite file name inside the project directory.
const DefaultDatabaseFile = "rulebook.db"

// StorageSettings selects and locates the storage backend.
type StorageSettings struct {
	Backend string
	Path    string // SQLite file
	MySQL   sqlstore.MySQLConfig
}

// Storage returns the configured storage settings. An unset SQLite path
// resolves to rulebook.db in the nearest .rulebook directory, or in
// ./.rulebook when there is none yet.
func Storage() StorageSettings {
	s := StorageSettings{
		Backend: GetString(KeyStorageBackend),
		Path:    GetString(KeyStoragePath),
		MySQL: sqlstore.MySQLConfig{
			Host:           GetString(KeyMySQLHost),
			Port:           GetInt(KeyMySQLPort),
			User:           GetString(KeyMySQLUser),
			Password:       GetString(KeyMySQLPassword),
			Database:       GetString(KeyMySQLDatabase),
			TLS:            GetBool(KeyMySQLTLS),
			CreateDatabase: GetBool(KeyMySQLCreateDB),
		},
	}
	if s.Path == "" {
		dir, err := FindProjectDir()
		if err != nil {
			dir = ProjectDir
		}
		s.Path = filepath.Join(dir, DefaultDatabaseFile)
	}
	return s
}

// RiskPolicy builds the risk classifier from risk.rules and risk.default.
func RiskPolicy() (*risk.PolicyClassifier, error) {
	return risk.FromConfig(GetStringSlice(KeyRiskRules), GetString(KeyRiskDefault))
}

// ReviewerSettings configures the automated review stage.
type ReviewerSettings struct {
	Model       string
	APIKey      string
	Concurrency int
	MaxRetries  int
}

// Reviewer returns the automated reviewer settings. The API key falls back
// to ANTHROPIC_API_KEY.
func Reviewer() ReviewerSettings {
	s := ReviewerSettings{
		Model:       GetString(KeyReviewerModel),
		APIKey:      GetString(KeyReviewerAPIKey),
		Concurrency: GetInt(KeyReviewerWorkers),
		MaxRetries:  GetInt(KeyReviewerRetries),
	}
	if s.APIKey == "" {
		s.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	return s
}

// PageSize returns the configured default page size.
func PageSize() int {
	return GetInt(KeyPageSize)
}
