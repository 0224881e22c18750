package parser

import "bytes"

var (
	zipMagic = []byte{0x50, 0x4B}
	cfbMagic = []byte{0xD0, 0xCF}
)

// CheckMagic classifies a file by its leading bytes. Zip packages pass;
// compound documents return ErrLegacyFormat; anything else ErrNotDocx.
func CheckMagic(head []byte) error {
	switch {
	case bytes.HasPrefix(head, zipMagic):
		return nil
	case bytes.HasPrefix(head, cfbMagic):
		return ErrLegacyFormat
	default:
		return ErrNotDocx
	}
}
