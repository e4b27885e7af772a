package config

// MaskingConfig holds resolved secret redaction configuration.
type MaskingConfig struct {
	// Enabled toggles redaction of tool arguments and results.
	Enabled bool

	// CustomPatterns are user-defined redaction patterns applied after
	// the built-in ones.
	CustomPatterns []MaskingPattern
}

// MaskingPattern is one user-defined redaction pattern.
type MaskingPattern struct {
	// Name identifies the pattern in logs.
	Name string `yaml:"name"`

	// Pattern is the regular expression to redact.
	Pattern string `yaml:"pattern"`

	// Replacement overrides the default masked marker. Submatch
	// references ($1) are supported.
	Replacement string `yaml:"replacement,omitempty"`

	// Description is free-form documentation.
	Description string `yaml:"description,omitempty"`
}
