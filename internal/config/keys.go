package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/rulebook-dev/rulebook/internal/risk"
	"github.com/rulebook-dev/rulebook/internal/types"
)

// Configuration keys.
const (
	KeyStorageBackend  = "storage.backend"
	KeyStoragePath     = "storage.path"
	KeyMySQLHost       = "storage.mysql.host"
	KeyMySQLPort       = "storage.mysql.port"
	KeyMySQLUser       = "storage.mysql.user"
	KeyMySQLPassword   = "storage.mysql.password"
	KeyMySQLDatabase   = "storage.mysql.database"
	KeyMySQLTLS        = "storage.mysql.tls"
	KeyMySQLCreateDB   = "storage.mysql.create-database"
	KeyActor           = "actor"
	KeyJSON            = "json"
	KeyPageSize        = "page-size"
	KeyRiskDefault     = "risk.default"
	KeyRiskRules       = "risk.rules"
	KeyReviewerModel   = "reviewer.model"
	KeyReviewerAPIKey  = "reviewer.api-key"
	KeyReviewerWorkers = "reviewer.concurrency"
	KeyReviewerRetries = "reviewer.max-retries"
)

// Key describes a configuration key.
type Key struct {
	Key         string // Full key name (e.g., "storage.backend")
	Description string // Human-readable description
	Default     string // Default value (empty = no default)
	Secret      bool   // If true, value is never echoed and must not be written to config.yaml
	Validate    func(string) error
}

// EnvVar returns the environment variable that overrides the key.
func (k Key) EnvVar() string {
	return EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(k.Key))
}

// Keys defines all recognized configuration keys.
var Keys = []Key{
	// Storage
	{
		Key:         KeyStorageBackend,
		Description: "Storage backend: sqlite, mysql or memory",
		Default:     "sqlite",
		Validate:    oneOf("sqlite", "mysql", "memory"),
	},
	{
		Key:         KeyStoragePath,
		Description: "SQLite database file (default: .rulebook/rulebook.db)",
	},
	{
		Key:         KeyMySQLHost,
		Description: "MySQL or dolt sql-server host",
		Default:     "127.0.0.1",
	},
	{
		Key:         KeyMySQLPort,
		Description: "MySQL or dolt sql-server port",
		Default:     "3306",
		Validate:    validatePort,
	},
	{
		Key:         KeyMySQLUser,
		Description: "MySQL user",
		Default:     "root",
	},
	{
		Key:         KeyMySQLPassword,
		Description: "MySQL password",
		Secret:      true,
	},
	{
		Key:         KeyMySQLDatabase,
		Description: "MySQL database name",
		Default:     "rulebook",
	},
	{
		Key:         KeyMySQLTLS,
		Description: "Use TLS for MySQL connections",
		Default:     "false",
		Validate:    validateBool,
	},
	{
		Key:         KeyMySQLCreateDB,
		Description: "Create the MySQL database if it does not exist",
		Default:     "true",
		Validate:    validateBool,
	},
	// Output
	{
		Key:         KeyActor,
		Description: "Name recorded in logs for human review decisions",
	},
	{
		Key:         KeyJSON,
		Description: "Emit JSON output",
		Default:     "false",
		Validate:    validateBool,
	},
	{
		Key:         KeyPageSize,
		Description: "Default page size for list commands (1-100)",
		Default:     "20",
		Validate:    validateRange(1, 100),
	},
	// Risk policy
	{
		Key:         KeyRiskDefault,
		Description: "Risk level for proposals no rule matches",
		Default:     string(risk.DefaultLevel),
		Validate:    validateRiskLevel,
	},
	{
		Key:         KeyRiskRules,
		Description: "Ordered TARGET:FEEDBACK=LEVEL rules, * matches anything",
		Validate:    validateRiskRules,
	},
	// Automated reviewer
	{
		Key:         KeyReviewerModel,
		Description: "Claude model used for automated review",
		Default:     "claude-haiku-4-5",
	},
	{
		Key:         KeyReviewerAPIKey,
		Description: "Anthropic API key (falls back to ANTHROPIC_API_KEY)",
		Secret:      true,
	},
	{
		Key:         KeyReviewerWorkers,
		Description: "Proposals reviewed in parallel",
		Default:     "4",
		Validate:    validateRange(1, 32),
	},
	{
		Key:         KeyReviewerRetries,
		Description: "Retries for transient API errors",
		Default:     "3",
		Validate:    validateRange(0, 10),
	},
}

// keyMap is a lookup table built from Keys.
var keyMap map[string]*Key

func init() {
	keyMap = make(map[string]*Key, len(Keys))
	for i := range Keys {
		keyMap[Keys[i].Key] = &Keys[i]
	}
}

func registerDefaults(v *viper.Viper) {
	for _, k := range Keys {
		if k.Default != "" {
			v.SetDefault(k.Key, k.Default)
		}
	}
	v.SetDefault(KeyRiskRules, []string{})
}

// LookupKey returns the Key definition, or nil if key is not recognized.
func LookupKey(key string) *Key {
	return keyMap[key]
}

// ValidateKey checks whether key is known and value is valid for it.
// Returns nil if valid, or an error describing the problem.
func ValidateKey(key, value string) error {
	k := keyMap[key]
	if k == nil {
		known := make([]string, 0, len(Keys))
		for _, k := range Keys {
			known = append(known, k.Key)
		}
		return fmt.Errorf("unknown config key %q; valid keys: %s", key, strings.Join(known, ", "))
	}

	if k.Secret {
		return fmt.Errorf("key %q is a secret and must not be stored in config.yaml (use %s instead)", key, k.EnvVar())
	}

	if k.Validate != nil {
		if err := k.Validate(value); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
	}

	return nil
}

// Validation helpers

func validatePort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("must be a number, got %q", value)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateBool(value string) error {
	switch strings.ToLower(value) {
	case "true", "false", "1", "0", "yes", "no":
		return nil
	default:
		return fmt.Errorf("must be true or false, got %q", value)
	}
}

func validateRange(lo, hi int) func(string) error {
	return func(value string) error {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("must be a number, got %q", value)
		}
		if n < lo || n > hi {
			return fmt.Errorf("must be between %d and %d, got %d", lo, hi, n)
		}
		return nil
	}
}

func oneOf(allowed ...string) func(string) error {
	return func(value string) error {
		for _, a := range allowed {
			if value == a {
				return nil
			}
		}
		return fmt.Errorf("must be one of: %s; got %q", strings.Join(allowed, ", "), value)
	}
}

func validateRiskLevel(value string) error {
	_, err := types.ParseRiskLevel(value)
	return err
}

func validateRiskRules(value string) error {
	for _, rule := range strings.Split(value, ",") {
		if _, err := risk.ParseRule(strings.TrimSpace(rule)); err != nil {
			return err
		}
	}
	return nil
}
