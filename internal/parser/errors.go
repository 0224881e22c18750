package parser

import (
	"errors"
	"fmt"
)

var (
	// ErrNotDocx marks input that is not a zip-based Word document.
	ErrNotDocx = errors.New("not a .docx document")
	// ErrLegacyFormat marks a compound-document file (.doc, or an encrypted .docx).
	ErrLegacyFormat = errors.New("legacy Word format")
	// ErrCorrupt marks a zip package that cannot be read as a Word document.
	ErrCorrupt = errors.New("corrupt document")
	// ErrUnsupported indicates a format is not supported.
	ErrUnsupported = errors.New("unsupported document format")
)

// FormatError reports an input file that cannot be converted.
type FormatError struct {
	Path string
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Hint returns a user-facing suggestion for a conversion error, or "".
func Hint(err error) string {
	switch {
	case errors.Is(err, ErrLegacyFormat):
		return "The file is a legacy .doc or a password-protected document. Open it in Word and save it as .docx without encryption."
	case errors.Is(err, ErrNotDocx):
		return "Only .docx files (and previously exported .html) can be imported."
	case errors.Is(err, ErrCorrupt):
		return "The document package is damaged. Re-save it from Word and try again."
	case errors.Is(err, ErrUnsupported):
		return "Supported inputs: .docx, .html, .htm."
	default:
		return ""
	}
}
