package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// payloadFormat selects how a payload file is decoded.
type payloadFormat string

const (
	formatJSON payloadFormat = "json"
	formatYAML payloadFormat = "yaml"
	formatTOML payloadFormat = "toml"
)

// formatForPath picks the format from the file extension. Unknown
// extensions and stdin ("-") are read as JSON, then YAML.
func formatForPath(path string) payloadFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML
	case ".toml":
		return formatTOML
	default:
		return formatJSON
	}
}

// readPayload returns the payload given inline (--payload) or from a file
// (--payload-file, "-" for stdin) as a JSON object.
func readPayload(inline, path string, stdin io.Reader) (json.RawMessage, error) {
	switch {
	case inline != "" && path != "":
		return nil, fmt.Errorf("use either --payload or --payload-file, not both")
	case inline != "":
		return toJSON([]byte(inline), formatJSON)
	case path == "":
		return nil, nil
	}

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path) // #nosec G304 - user-specified payload file
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	return toJSON(data, formatForPath(path))
}

// toJSON converts a JSON, YAML or TOML document to compact JSON. JSON
// input that does not parse is retried as YAML.
func toJSON(data []byte, format payloadFormat) (json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	var doc map[string]interface{}
	switch format {
	case formatTOML:
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return nil, fmt.Errorf("invalid TOML payload: %w", err)
		}
	case formatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("invalid YAML payload: %w", err)
		}
	default:
		if json.Valid(data) {
			var buf bytes.Buffer
			if err := json.Compact(&buf, data); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("payload is neither JSON nor YAML: %w", err)
		}
	}
	if doc == nil {
		return nil, fmt.Errorf("payload must be an object")
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return out, nil
}
