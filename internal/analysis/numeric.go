package analysis

import (
	"strconv"
	"strings"
)

// looksNumeric reports whether a cell reads as a number, accepting percent
// signs, currency markers and either decimal separator convention.
func looksNumeric(s string) bool {
	raw := strings.TrimSpace(s)
	if !strings.ContainsAny(raw, "0123456789") {
		return false
	}
	raw = strings.NewReplacer("%", "", "¥", "", "$", "", "€", "", "元", "", " ", "").Replace(raw)
	raw = strings.TrimSpace(raw)
	cpos := strings.LastIndex(raw, ",")
	dpos := strings.LastIndex(raw, ".")
	dec := '.'
	if cpos >= 0 && (dpos < 0 || cpos > dpos) && len(raw)-cpos-1 != 3 {
		dec = ','
	}
	for _, sep := range []rune{',', '.', ' '} {
		if sep != dec {
			raw = strings.ReplaceAll(raw, string(sep), "")
		}
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	_, err := strconv.ParseFloat(raw, 64)
	return err == nil
}
