package config

import (
	"bytes"
	"os"
	"strings"
	"text/template"
)

// ExpandEnv substitutes environment variables into raw YAML using Go
// template syntax: {{.WORKBENCH_DATA_DIR}} becomes the value of
// WORKBENCH_DATA_DIR. Template syntax is used instead of $VAR so that
// literal dollar signs in config values (regex patterns like
// "^secret_.*$", passwords, shell snippets) survive untouched.
//
// Missing variables expand to the empty string; required-field
// validation happens later, after parsing. Content that fails to parse
// or execute as a template is returned unchanged so plain YAML always
// passes through.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("config").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if key, value, ok := strings.Cut(kv, "="); ok && key != "" {
			env[key] = value
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, env); err != nil {
		return data
	}
	return buf.Bytes()
}
