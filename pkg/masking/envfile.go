package masking

import (
	"regexp"
	"strings"
	"unicode"
)

// envAssignment matches dotenv-shaped lines only: no whitespace around
// the equals sign, as the shell requires. Spaced forms like
// "token = abc" are prose, owned by the regex pattern set.
var envAssignment = regexp.MustCompile(`^(\s*(?:export\s+)?)([A-Za-z_][A-Za-z0-9_]*)=(.*)$`)

var sensitiveKeySegments = map[string]bool{
	"key":         true,
	"apikey":      true,
	"token":       true,
	"secret":      true,
	"password":    true,
	"passwd":      true,
	"pwd":         true,
	"credential":  true,
	"credentials": true,
	"auth":        true,
}

// SensitiveKeyName reports whether a variable or argument name looks
// like it carries a credential. Names are split on case changes,
// underscores, dashes and dots: "GITHUB_TOKEN", "apiKey" and
// "db.password" match, "author" and "tokenizer" do not.
func SensitiveKeyName(name string) bool {
	for _, seg := range splitKeyName(name) {
		if sensitiveKeySegments[seg] {
			return true
		}
	}
	return false
}

func splitKeyName(name string) []string {
	var b strings.Builder
	prevLower := false
	for _, r := range name {
		if unicode.IsUpper(r) {
			// Separate only on a lower-to-upper transition so ALL_CAPS
			// names stay whole words.
			if prevLower {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
			continue
		}
		b.WriteRune(r)
		prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
	}
	return strings.FieldsFunc(b.String(), func(r rune) bool {
		return r == '_' || r == '-' || r == '.'
	})
}

// EnvFileMasker masks values of credential-bearing variables in
// dotenv-style content while leaving other assignments untouched.
// Tool results frequently include the contents of env files read off
// the workspace.
type EnvFileMasker struct{}

// Name returns the unique identifier for this masker.
func (m *EnvFileMasker) Name() string { return "env_file" }

// AppliesTo performs a lightweight check on whether this masker should
// process the data.
func (m *EnvFileMasker) AppliesTo(data string) bool {
	if !strings.Contains(data, "=") {
		return false
	}
	for _, line := range strings.Split(data, "\n") {
		match := envAssignment.FindStringSubmatch(line)
		if match != nil && SensitiveKeyName(match[2]) {
			return true
		}
	}
	return false
}

// Mask rewrites sensitive assignments line by line, preserving
// comments, blank lines and the rest of the layout.
func (m *EnvFileMasker) Mask(data string) string {
	lines := strings.Split(data, "\n")
	for i, line := range lines {
		match := envAssignment.FindStringSubmatch(line)
		if match == nil || !SensitiveKeyName(match[2]) {
			continue
		}
		if strings.TrimSpace(match[3]) == "" {
			continue
		}
		lines[i] = match[1] + match[2] + "=" + MaskedValue
	}
	return strings.Join(lines, "\n")
}
