// Package formfill maps canonical shipping data onto detected form schemas
// and renders natural-language fill instructions for the form-filling service.
package formfill

import (
	"regexp"
	"strings"
)

var (
	trailingColon = regexp.MustCompile(`:\s*$`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// CanonicalKey turns a field description into its matching key:
// "ORDER DATE:. Date the order was placed" becomes "ORDER DATE" and
// "Ship To: Company Name:. ..." becomes "SHIP TO: COMPANY NAME".
func CanonicalKey(description string) string {
	head := strings.TrimSpace(description)
	if i := strings.Index(head, "."); i >= 0 {
		head = head[:i]
	}
	head = strings.TrimSpace(head)
	head = trailingColon.ReplaceAllString(head, "")
	head = whitespaceRun.ReplaceAllString(head, " ")
	return strings.ToUpper(strings.TrimSpace(head))
}
