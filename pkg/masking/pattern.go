package masking

import (
	"fmt"
	"log/slog"
	"regexp"
)

// MaskedValue replaces values of credential-bearing argument and
// variable names wholesale.
const MaskedValue = "__MASKED__"

// CompiledPattern holds a pre-compiled regex pattern with its replacement.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
	Description string
}

type patternDef struct {
	name        string
	pattern     string
	replacement string
	description string
}

// builtinPatterns are applied in order: block-level and well-known
// token formats first, generic key/value sweeps last.
var builtinPatterns = []patternDef{
	{
		name:        "pem_block",
		pattern:     `(?s)-----BEGIN [A-Z ]+-----.*?-----END [A-Z ]+-----`,
		replacement: `__MASKED_PEM_BLOCK__`,
		description: "PEM certificates and private keys",
	},
	{
		name:        "ssh_key",
		pattern:     `ssh-(?:rsa|dss|ed25519|ecdsa)\s+[A-Za-z0-9+/=]+`,
		replacement: `__MASKED_SSH_KEY__`,
		description: "SSH public keys",
	},
	{
		name:        "github_token",
		pattern:     `\bgh[pousr]_[A-Za-z0-9_]{36,255}\b`,
		replacement: `__MASKED_GITHUB_TOKEN__`,
		description: "GitHub tokens",
	},
	{
		name:        "slack_token",
		pattern:     `(?i)xox[baprs]-[A-Za-z0-9-]{10,72}`,
		replacement: `__MASKED_SLACK_TOKEN__`,
		description: "Slack tokens",
	},
	{
		name:        "aws_access_key",
		pattern:     `\bAKIA[A-Z0-9]{16}\b`,
		replacement: `__MASKED_AWS_KEY__`,
		description: "AWS access key ids",
	},
	{
		name:        "bearer_token",
		pattern:     `(?i)\bbearer\s+[A-Za-z0-9_\-.=]{20,}`,
		replacement: `Bearer __MASKED_TOKEN__`,
		description: "Authorization bearer tokens",
	},
	{
		name:        "connection_string",
		pattern:     `(?i)\b([a-z][a-z0-9+]*)://([^:/\s]+):([^@/\s]+)@`,
		replacement: `$1://$2:__MASKED_PASSWORD__@`,
		description: "Passwords embedded in connection URLs",
	},
	{
		name:        "api_key",
		pattern:     `(?i)(api[_-]?key|apikey)["']?\s*[:=]\s*["']?[A-Za-z0-9_\-]{16,}["']?`,
		replacement: `$1: __MASKED_API_KEY__`,
		description: "API keys in key/value form",
	},
	{
		name:        "token",
		pattern:     `(?i)\b(token|jwt)["']?\s*[:=]\s*["']?[A-Za-z0-9_\-.]{20,}["']?`,
		replacement: `$1: __MASKED_TOKEN__`,
		description: "Access tokens in key/value form",
	},
	{
		name:        "password",
		pattern:     `(?i)\b(password|passwd|pwd)["']?\s*[:=]\s*["']?[^"'\s]{6,}["']?`,
		replacement: `$1: __MASKED_PASSWORD__`,
		description: "Passwords in key/value form",
	},
	{
		name:        "secret_key",
		pattern:     `(?i)\b(secret[_-]?key|private[_-]?key|client[_-]?secret)["']?\s*[:=]\s*["']?[A-Za-z0-9_\-.]{16,}["']?`,
		replacement: `$1: __MASKED_SECRET__`,
		description: "Secret and private keys in key/value form",
	},
}

// compileBuiltinPatterns compiles the built-in regex patterns.
// Invalid patterns are logged and skipped.
func (s *Service) compileBuiltinPatterns() {
	for _, def := range builtinPatterns {
		compiled, err := regexp.Compile(def.pattern)
		if err != nil {
			slog.Error("Failed to compile built-in masking pattern, skipping",
				"pattern", def.name, "error", err)
			continue
		}
		s.patterns = append(s.patterns, &CompiledPattern{
			Name:        def.name,
			Regex:       compiled,
			Replacement: def.replacement,
			Description: def.description,
		})
	}
}

// compileCustomPatterns compiles operator-supplied patterns from the
// config file. Unnamed patterns are keyed as "custom:{index}". Customs
// run after the built-ins, in config order.
func (s *Service) compileCustomPatterns(patterns []CustomPattern) {
	for i, def := range patterns {
		name := def.Name
		if name == "" {
			name = fmt.Sprintf("custom:%d", i)
		}
		compiled, err := regexp.Compile(def.Pattern)
		if err != nil {
			slog.Error("Failed to compile custom masking pattern, skipping",
				"pattern", name, "error", err)
			continue
		}
		s.patterns = append(s.patterns, &CompiledPattern{
			Name:        name,
			Regex:       compiled,
			Replacement: def.Replacement,
			Description: def.Description,
		})
	}
}
