package batch

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Input is one file submitted to a batch.
type Input struct {
	// Path is the location of the uploaded file on disk.
	Path string

	// Filename is the original name; the extension selects the ingestion
	// path. Defaults to the base of Path.
	Filename string
}

// supportedExtensions are the file types the ingestors handle.
var supportedExtensions = map[string]bool{
	".pdf": true,
	".txt": true,
	".md":  true,
}

// SupportedExtensions returns the accepted file extensions, sorted.
func SupportedExtensions() []string {
	out := make([]string, 0, len(supportedExtensions))
	for ext := range supportedExtensions {
		out = append(out, ext)
	}
	// Deterministic order for error messages and help text.
	sort.Strings(out)
	return out
}

// ValidateInputs rejects malformed submissions before any batch state is
// created. maxFiles <= 0 disables the count limit.
func ValidateInputs(inputs []Input, maxFiles int) error {
	if len(inputs) == 0 {
		return fmt.Errorf("no input files provided")
	}
	if maxFiles > 0 && len(inputs) > maxFiles {
		return fmt.Errorf("too many files: %d exceeds the per-batch limit of %d", len(inputs), maxFiles)
	}

	for i, in := range inputs {
		name := in.Filename
		if name == "" {
			name = filepath.Base(in.Path)
		}
		if name == "" || name == "." || name == string(filepath.Separator) {
			return fmt.Errorf("input %d has no filename", i+1)
		}
		ext := strings.ToLower(filepath.Ext(name))
		if !supportedExtensions[ext] {
			return fmt.Errorf("unsupported file type %q for %s (supported: %s)",
				ext, name, strings.Join(SupportedExtensions(), ", "))
		}
	}
	return nil
}
