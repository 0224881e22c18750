// Package parser converts source documents into HTML for structure
// inference.
package parser

import (
	"fmt"
	"os"
)

// Conversion is converter output: HTML plus non-fatal notes about content
// that could not be represented.
type Conversion struct {
	HTML     string
	Warnings []string
}

// Converter defines a document converter implementation.
type Converter interface {
	CanConvert(filename string) bool
	Convert(content []byte) (*Conversion, error)
}

var registry []Converter

// Register adds a converter implementation to the registry.
func Register(c Converter) {
	registry = append(registry, c)
}

// ConvertFile selects a converter by file name and converts the file. Files
// with an unknown extension are sniffed by their leading bytes.
func ConvertFile(path string) (*Conversion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	conv := converterFor(path, data)
	if conv == nil {
		return nil, &FormatError{Path: path, Err: ErrUnsupported}
	}
	out, err := conv.Convert(data)
	if err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}
	return out, nil
}

func converterFor(path string, data []byte) Converter {
	for _, c := range registry {
		if c.CanConvert(path) {
			return c
		}
	}
	switch CheckMagic(data) {
	case nil, ErrLegacyFormat:
		return docxConverter{}
	}
	return nil
}

// Convert converts a .docx payload.
func Convert(data []byte) (*Conversion, error) {
	return docxConverter{}.Convert(data)
}

func init() {
	Register(docxConverter{})
	Register(htmlConverter{})
}
