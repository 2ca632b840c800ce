package config

import (
	"strings"
	"testing"
)

func TestLookupKey(t *testing.T) {
	k := LookupKey(KeyMySQLPort)
	if k == nil {
		t.Fatal("LookupKey(storage.mysql.port) = nil")
	}
	if k.Default != "3306" {
		t.Errorf("Default = %q, want 3306", k.Default)
	}
	if got := k.EnvVar(); got != "RB_STORAGE_MYSQL_PORT" {
		t.Errorf("EnvVar() = %q", got)
	}
	if LookupKey("no.such.key") != nil {
		t.Error("LookupKey(unknown) should be nil")
	}
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		wantErr string
	}{
		{KeyStorageBackend, "sqlite", ""},
		{KeyStorageBackend, "postgres", "must be one of"},
		{KeyMySQLPort, "3307", ""},
		{KeyMySQLPort, "70000", "between 1 and 65535"},
		{KeyMySQLPort, "abc", "must be a number"},
		{KeyMySQLTLS, "yes", ""},
		{KeyMySQLTLS, "maybe", "true or false"},
		{KeyPageSize, "0", "between 1 and 100"},
		{KeyRiskDefault, "low", ""},
		{KeyRiskDefault, "CRITICAL", "invalid risk level"},
		{KeyRiskRules, "CODING_RULE:DELETE=HIGH,*:*=LOW", ""},
		{KeyRiskRules, "CODING_RULE=HIGH", "expected TARGET:FEEDBACK"},
		{KeyMySQLPassword, "hunter2", "is a secret"},
		{KeyReviewerAPIKey, "sk-x", "RB_REVIEWER_API_KEY"},
		{"nope", "x", "unknown config key"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			err := ValidateKey(tt.key, tt.value)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateKey(%q, %q) = %v, want nil", tt.key, tt.value, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateKey(%q, %q) = %v, want error containing %q", tt.key, tt.value, err, tt.wantErr)
			}
		})
	}
}

func TestAllKeysHaveDescriptions(t *testing.T) {
	seen := make(map[string]bool)
	for _, k := range Keys {
		if k.Description == "" {
			t.Errorf("key %s has no description", k.Key)
		}
		if seen[k.Key] {
			t.Errorf("duplicate key %s", k.Key)
		}
		seen[k.Key] = true
		if k.Default != "" && k.Validate != nil {
			if err := k.Validate(k.Default); err != nil {
				t.Errorf("default for %s fails validation: %v", k.Key, err)
			}
		}
	}
}
