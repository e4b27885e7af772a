package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	tests := []struct {
		name  string
		input string
		env   map[string]string
		want  string
	}{
		{
			name:  "substitutes a template variable",
			input: "data_dir: {{.WB_DATA_DIR}}",
			env:   map[string]string{"WB_DATA_DIR": "/var/lib/workbench"},
			want:  "data_dir: /var/lib/workbench",
		},
		{
			name:  "multiple variables on one line",
			input: "listen: {{.WB_HOST}}:{{.WB_PORT}}",
			env:   map[string]string{"WB_HOST": "127.0.0.1", "WB_PORT": "9090"},
			want:  "listen: 127.0.0.1:9090",
		},
		{
			name:  "missing variable expands to empty",
			input: "origin: {{.WB_UNSET_ORIGIN}}",
			env:   map[string]string{},
			want:  "origin: ",
		},
		{
			name:  "regex dollar is untouched",
			input: `pattern: "^secret_.*$"`,
			env:   map[string]string{},
			want:  `pattern: "^secret_.*$"`,
		},
		{
			name:  "shell style dollar is untouched",
			input: "pattern: user_${USER_ID}_.*",
			env:   map[string]string{"USER_ID": "123"},
			want:  "pattern: user_${USER_ID}_.*",
		},
		{
			name:  "nested yaml structure",
			input: "server:\n  host: {{.WB_HOST}}\n  port: {{.WB_PORT}}",
			env:   map[string]string{"WB_HOST": "0.0.0.0", "WB_PORT": "8080"},
			want:  "server:\n  host: 0.0.0.0\n  port: 8080",
		},
		{
			name:  "special characters in expanded value",
			input: "password: {{.WB_PASSWORD}}",
			env:   map[string]string{"WB_PASSWORD": "p@ss$w0rd!"},
			want:  "password: p@ss$w0rd!",
		},
		{
			name:  "content without templates is unchanged",
			input: "# comment\nkey: value\n",
			env:   map[string]string{},
			want:  "# comment\nkey: value\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			assert.Equal(t, tt.want, string(ExpandEnv([]byte(tt.input))))
		})
	}
}

// Malformed template syntax passes through unchanged so the YAML parser
// can report it (or accept it as a literal).
func TestExpandEnv_MalformedTemplatePassesThrough(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "unclosed braces", input: "key: {{.WB_VAR"},
		{name: "missing leading dot", input: "key: {{WB_VAR}}"},
		{name: "undefined function", input: "key: {{.WB_VAR | upper}}"},
		{name: "reversed delimiters", input: "key: }}.WB_VAR{{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("WB_VAR", "must-not-appear")

			result := ExpandEnv([]byte(tt.input))

			assert.Equal(t, tt.input, string(result))
			assert.NotContains(t, string(result), "must-not-appear")
		})
	}
}

func TestExpandEnv_EmptyInput(t *testing.T) {
	assert.Equal(t, "", string(ExpandEnv([]byte(""))))
}
