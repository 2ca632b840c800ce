package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestSetInYAML_NewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ProjectDir, "config.yaml")

	if err := SetInYAML(path, KeyMySQLHost, "db.local"); err != nil {
		t.Fatalf("SetInYAML: %v", err)
	}

	var got map[string]map[string]map[string]string
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if err := yaml.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got["storage"]["mysql"]["host"] != "db.local" {
		t.Errorf("written config = %s", data)
	}
}

func TestSetInYAML_PreservesOtherConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	initial := `# project settings
actor: alice # who reviews
storage:
  backend: sqlite
`
	if err := os.WriteFile(path, []byte(initial), 0600); err != nil {
		t.Fatal(err)
	}

	if err := SetInYAML(path, KeyStorageBackend, "mysql"); err != nil {
		t.Fatalf("SetInYAML: %v", err)
	}
	if err := SetInYAML(path, KeyRiskRules, "CODING_RULE:*=HIGH, *:DELETE=HIGH"); err != nil {
		t.Fatalf("SetInYAML(risk.rules): %v", err)
	}

	data, _ := os.ReadFile(path)
	out := string(data)
	for _, want := range []string{"# project settings", "actor: alice", "# who reviews", "backend: mysql"} {
		if !strings.Contains(out, want) {
			t.Errorf("config missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "backend: sqlite") {
		t.Errorf("old value kept:\n%s", out)
	}

	var parsed struct {
		Risk struct {
			Rules []string `yaml:"rules"`
		} `yaml:"risk"`
	}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(parsed.Risk.Rules) != 2 || parsed.Risk.Rules[0] != "CODING_RULE:*=HIGH" || parsed.Risk.Rules[1] != "*:DELETE=HIGH" {
		t.Errorf("risk.rules = %q", parsed.Risk.Rules)
	}
}

func TestSetInYAML_ReloadsActiveConfig(t *testing.T) {
	path := writeProjectConfig(t, "page-size: 10\n")
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := SetInYAML(ConfigFileUsed(), KeyPageSize, "30"); err != nil {
		t.Fatalf("SetInYAML: %v", err)
	}
	if got := PageSize(); got != 30 {
		t.Errorf("PageSize() after SetInYAML(%s) = %d, want 30", path, got)
	}
}
