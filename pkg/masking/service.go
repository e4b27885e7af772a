package masking

import (
	"log/slog"
)

// Config controls secret redaction of tool arguments and results.
type Config struct {
	Enabled        bool
	CustomPatterns []CustomPattern
}

// CustomPattern is an operator-supplied regex pattern loaded from the
// config file.
type CustomPattern struct {
	Name        string
	Pattern     string
	Replacement string
	Description string
}

// Service applies data masking to tool arguments and results before
// they are stored or broadcast. Created once at application startup
// (singleton). Thread-safe and stateless aside from compiled patterns.
type Service struct {
	enabled     bool
	patterns    []*CompiledPattern
	codeMaskers []Masker
}

// NewService creates a masking service with compiled patterns and
// registered maskers. All patterns are compiled eagerly at creation
// time. Invalid patterns are logged and skipped.
func NewService(cfg Config) *Service {
	s := &Service{enabled: cfg.Enabled}

	s.compileBuiltinPatterns()
	s.compileCustomPatterns(cfg.CustomPatterns)
	s.codeMaskers = []Masker{&EnvFileMasker{}}

	slog.Info("Masking service initialized",
		"enabled", cfg.Enabled,
		"compiled_patterns", len(s.patterns),
		"code_maskers", len(s.codeMaskers))

	return s
}

// MaskString applies code-based maskers then regex patterns to in.
func (s *Service) MaskString(in string) string {
	if !s.enabled || in == "" {
		return in
	}

	masked := in
	for _, m := range s.codeMaskers {
		if m.AppliesTo(masked) {
			masked = m.Mask(masked)
		}
	}
	for _, p := range s.patterns {
		masked = p.Regex.ReplaceAllString(masked, p.Replacement)
	}
	return masked
}

// MaskArgs returns a masked deep copy of tool arguments. String values
// of credential-bearing keys are replaced wholesale; every other string
// value gets the regex sweep.
func (s *Service) MaskArgs(args map[string]any) map[string]any {
	if !s.enabled || args == nil {
		return args
	}
	out, _ := s.maskAny(args).(map[string]any)
	return out
}

// MaskValue returns a masked deep copy of an arbitrary result value.
// Maps and slices are walked recursively; scalars other than strings
// pass through unchanged.
func (s *Service) MaskValue(v any) any {
	if !s.enabled {
		return v
	}
	return s.maskAny(v)
}

func (s *Service) maskAny(v any) any {
	switch val := v.(type) {
	case string:
		return s.MaskString(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if str, ok := item.(string); ok && str != "" && SensitiveKeyName(k) {
				out[k] = MaskedValue
				continue
			}
			out[k] = s.maskAny(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = s.maskAny(item)
		}
		return out
	default:
		return v
	}
}
