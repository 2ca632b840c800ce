package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForPath(t *testing.T) {
	tests := []struct {
		path string
		want payloadFormat
	}{
		{"rule.json", formatJSON},
		{"rule.yaml", formatYAML},
		{"RULE.YML", formatYAML},
		{"template.toml", formatTOML},
		{"-", formatJSON},
		{"payload", formatJSON},
	}
	for _, tt := range tests {
		if got := formatForPath(tt.path); got != tt.want {
			t.Errorf("formatForPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestReadPayloadInline(t *testing.T) {
	got, err := readPayload(`{ "code": "ARCH-001",  "name": "Layering" }`, "", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"ARCH-001","name":"Layering"}`, string(got))
	assert.NotContains(t, string(got), "  ", "inline JSON is compacted")
}

func TestReadPayloadNone(t *testing.T) {
	got, err := readPayload("", "", nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReadPayloadRejectsBoth(t *testing.T) {
	_, err := readPayload(`{}`, "rule.json", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not both")
}

func TestReadPayloadFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}

	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{
			name:    "json",
			file:    "rule.json",
			content: `{"code":"ARCH-001","severity":"ERROR"}`,
			want:    `{"code":"ARCH-001","severity":"ERROR"}`,
		},
		{
			name:    "yaml",
			file:    "rule.yaml",
			content: "code: ARCH-002\nname: No cycles\nseverity: WARNING\n",
			want:    `{"code":"ARCH-002","name":"No cycles","severity":"WARNING"}`,
		},
		{
			name:    "toml",
			file:    "item.toml",
			content: "checklist = \"release\"\ntitle = \"Tag the build\"\nposition = 3\n",
			want:    `{"checklist":"release","title":"Tag the build","position":3}`,
		},
		{
			name:    "yaml without extension",
			file:    "payload",
			content: "title: Update changelog\n",
			want:    `{"title":"Update changelog"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readPayload("", write(tt.file, tt.content), nil)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestReadPayloadStdin(t *testing.T) {
	got, err := readPayload("", "-", strings.NewReader("name: From stdin\n"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"From stdin"}`, string(got))
}

func TestReadPayloadErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"empty", "empty.json", "  \n", "payload is empty"},
		{"scalar yaml", "scalar.yaml", "just a string\n", "invalid YAML payload"},
		{"null yaml", "null.yaml", "~\n", "payload must be an object"},
		{"bad toml", "bad.toml", "title = \n", "invalid TOML payload"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))
			_, err := readPayload("", path, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := readPayload("", filepath.Join(dir, "missing.json"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read payload")
}
