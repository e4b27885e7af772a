package masking

// Masker handles content a flat regex cannot treat safely, such as env
// files where only the credential-bearing assignments should change.
type Masker interface {
	// Name identifies the masker in logs.
	Name() string

	// AppliesTo is a cheap pre-check (substring scans, no parsing) for
	// whether Mask should run on this content.
	AppliesTo(data string) bool

	// Mask returns the masked content. On any processing problem it
	// returns the input unchanged.
	Mask(data string) string
}
