package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rulebook-dev/rulebook/internal/types"
)

// writeProjectConfig creates <tmp>/.rulebook/config.yaml and chdirs into tmp.
func writeProjectConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	dir := filepath.Join(tmpDir, ProjectDir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		t.Fatalf("failed to create %s directory: %v", ProjectDir, err)
	}
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Chdir(tmpDir)
	return configPath
}

func TestInitialize(t *testing.T) {
	// Test that initialization doesn't error
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if v == nil {
		t.Fatal("viper instance is nil after Initialize()")
	}
	if got := ConfigFileUsed(); got != "" {
		t.Errorf("ConfigFileUsed() = %q, want none", got)
	}
}

func TestDefaults(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}

	tests := []struct {
		key      string
		expected interface{}
		getter   func(string) interface{}
	}{
		{KeyJSON, false, func(k string) interface{} { return GetBool(k) }},
		{KeyActor, "", func(k string) interface{} { return GetString(k) }},
		{KeyStorageBackend, "sqlite", func(k string) interface{} { return GetString(k) }},
		{KeyMySQLPort, 3306, func(k string) interface{} { return GetInt(k) }},
		{KeyMySQLCreateDB, true, func(k string) interface{} { return GetBool(k) }},
		{KeyPageSize, 20, func(k string) interface{} { return GetInt(k) }},
		{KeyRiskDefault, "MEDIUM", func(k string) interface{} { return GetString(k) }},
		{KeyReviewerWorkers, 4, func(k string) interface{} { return GetInt(k) }},
		{KeyReviewerRetries, 3, func(k string) interface{} { return GetInt(k) }},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := tt.getter(tt.key)
			if got != tt.expected {
				t.Errorf("GetXXX(%q) = %v, want %v", tt.key, got, tt.expected)
			}
		})
	}
}

func TestEnvironmentBinding(t *testing.T) {
	tests := []struct {
		envVar   string
		key      string
		value    string
		expected interface{}
		getter   func(string) interface{}
	}{
		{"RB_JSON", KeyJSON, "true", true, func(k string) interface{} { return GetBool(k) }},
		{"RB_ACTOR", KeyActor, "alice", "alice", func(k string) interface{} { return GetString(k) }},
		{"RB_STORAGE_BACKEND", KeyStorageBackend, "mysql", "mysql", func(k string) interface{} { return GetString(k) }},
		{"RB_STORAGE_MYSQL_HOST", KeyMySQLHost, "db.internal", "db.internal", func(k string) interface{} { return GetString(k) }},
		{"RB_PAGE_SIZE", KeyPageSize, "50", 50, func(k string) interface{} { return GetInt(k) }},
		{"RB_REVIEWER_MAX_RETRIES", KeyReviewerRetries, "0", 0, func(k string) interface{} { return GetInt(k) }},
	}

	for _, tt := range tests {
		t.Run(tt.envVar, func(t *testing.T) {
			t.Setenv(tt.envVar, tt.value)

			// Re-initialize viper to pick up env var
			if err := Initialize(); err != nil {
				t.Fatalf("Initialize() returned error: %v", err)
			}

			got := tt.getter(tt.key)
			if got != tt.expected {
				t.Errorf("GetXXX(%q) with %s=%s = %v, want %v", tt.key, tt.envVar, tt.value, got, tt.expected)
			}
		})
	}
}

func TestConfigFile(t *testing.T) {
	configPath := writeProjectConfig(t, `
json: true
actor: configuser
storage:
  backend: mysql
  mysql:
    host: dolt.local
    port: 3307
risk:
  default: HIGH
  rules:
    - "CHECKLIST_ITEM:*=SAFE"
    - "*:DELETE=HIGH"
`)

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}

	if got := ConfigFileUsed(); got != configPath {
		// Resolve symlinked temp dirs (macOS /private/var)
		if resolved, _ := filepath.EvalSymlinks(got); resolved != mustEval(t, configPath) {
			t.Errorf("ConfigFileUsed() = %q, want %q", got, configPath)
		}
	}
	if got := GetBool(KeyJSON); got != true {
		t.Errorf("GetBool(json) = %v, want true", got)
	}
	if got := GetString(KeyActor); got != "configuser" {
		t.Errorf("GetString(actor) = %q, want \"configuser\"", got)
	}

	s := Storage()
	if s.Backend != "mysql" || s.MySQL.Host != "dolt.local" || s.MySQL.Port != 3307 || s.MySQL.User != "root" {
		t.Errorf("Storage() = %+v", s)
	}

	policy, err := RiskPolicy()
	if err != nil {
		t.Fatalf("RiskPolicy() error: %v", err)
	}
	rules := policy.Rules()
	if len(rules) != 2 || rules[0].Level != types.RiskSafe || rules[1].Level != types.RiskHigh {
		t.Errorf("RiskPolicy().Rules() = %v", rules)
	}
	level, _ := policy.Classify(t.Context(), types.TargetCodingRule, types.FeedbackUpdate, nil)
	if level != types.RiskHigh {
		t.Errorf("fallback level = %s, want HIGH", level)
	}
}

func mustEval(t *testing.T, path string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		t.Fatalf("EvalSymlinks(%s): %v", path, err)
	}
	return resolved
}

func TestConfigFileFoundFromSubdirectory(t *testing.T) {
	writeProjectConfig(t, "actor: parent\n")
	sub := filepath.Join(".", "a", "b")
	if err := os.MkdirAll(sub, 0750); err != nil {
		t.Fatal(err)
	}
	t.Chdir(sub)

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if got := GetString(KeyActor); got != "parent" {
		t.Errorf("GetString(actor) = %q, want parent", got)
	}
	if got := Storage().Path; !strings.HasSuffix(got, filepath.Join(ProjectDir, DefaultDatabaseFile)) {
		t.Errorf("Storage().Path = %q", got)
	}
}

func TestConfigPrecedence(t *testing.T) {
	writeProjectConfig(t, `json: false`)

	// Test 1: Config file value (json: false)
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if got := GetBool(KeyJSON); got != false {
		t.Errorf("GetBool(json) from config file = %v, want false", got)
	}

	// Test 2: Environment variable overrides config file
	t.Setenv("RB_JSON", "true")
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if got := GetBool(KeyJSON); got != true {
		t.Errorf("GetBool(json) with env var = %v, want true (env should override config)", got)
	}

	// Test 3: Set (flags) overrides environment
	Set(KeyJSON, false)
	if got := GetBool(KeyJSON); got != false {
		t.Errorf("GetBool(json) after Set = %v, want false (flags should override env)", got)
	}
}

func TestInvalidConfigFile(t *testing.T) {
	writeProjectConfig(t, "storage: [unclosed\n")
	if err := Initialize(); err == nil {
		t.Fatal("Initialize() with malformed YAML should fail")
	}
}

func TestGetStringSlice(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}

	Set("test-slice", []string{"a", "b", "c"})
	got := GetStringSlice("test-slice")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("GetStringSlice(test-slice) = %v, want [a b c]", got)
	}

	// Environment variables carry lists comma separated.
	t.Setenv("RB_RISK_RULES", "CODING_RULE:*=HIGH, *:*=LOW")
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	got = GetStringSlice(KeyRiskRules)
	if len(got) != 2 || got[0] != "CODING_RULE:*=HIGH" || got[1] != "*:*=LOW" {
		t.Errorf("GetStringSlice(risk.rules) = %q", got)
	}

	got = GetStringSlice("nonexistent-key")
	if len(got) != 0 {
		t.Errorf("GetStringSlice(nonexistent-key) = %v, want empty slice", got)
	}
}

func TestReviewerAPIKeyFallback(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-env")
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if got := Reviewer().APIKey; got != "sk-env" {
		t.Errorf("Reviewer().APIKey = %q, want fallback sk-env", got)
	}

	t.Setenv("RB_REVIEWER_API_KEY", "sk-rb")
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if got := Reviewer().APIKey; got != "sk-rb" {
		t.Errorf("Reviewer().APIKey = %q, want sk-rb", got)
	}
}

func TestNilViperBehavior(t *testing.T) {
	ResetForTesting()
	t.Cleanup(func() { _ = Initialize() })

	if got := GetString(KeyActor); got != "" {
		t.Errorf("GetString with nil viper = %q", got)
	}
	if got := GetBool(KeyJSON); got {
		t.Error("GetBool with nil viper = true")
	}
	if got := GetInt(KeyPageSize); got != 0 {
		t.Errorf("GetInt with nil viper = %d", got)
	}
	if got := GetStringSlice(KeyRiskRules); len(got) != 0 {
		t.Errorf("GetStringSlice with nil viper = %v", got)
	}
	if got := AllSettings(); len(got) != 0 {
		t.Errorf("AllSettings with nil viper = %v", got)
	}
	Set("x", 1) // must not panic
}
