package analysis

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText puts free text into NFC form and collapses runs of
// whitespace into single spaces.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}
