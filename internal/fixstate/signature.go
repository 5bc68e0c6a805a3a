package fixstate

import (
	"regexp"
	"strings"
)

// MaxSignatureLength caps a signature, in runes.
const MaxSignatureLength = 200

var (
	urlRe      = regexp.MustCompile(`\b(?:https?|file|webpack|blob)://\S+`)
	quotedRe   = regexp.MustCompile("\"[^\"\\n]*\"|'[^'\\n]*'|`[^`\\n]*`")
	pathRe     = regexp.MustCompile(`(?:[A-Za-z]:)?(?:[.~@\w-]*/)+[\w@.-]+(?::\d+){0,2}`)
	fileRe     = regexp.MustCompile(`\b[\w.-]+\.(?:tsx|ts|jsx|js|mjs|cjs|css|scss|json|html)(?::\d+){0,2}\b`)
	positionRe = regexp.MustCompile(`(?i)\(\d+:\d+\)|:\d+:\d+|\b(?:line|col|column)\s*:?\s*\d+`)
	digitsRe   = regexp.MustCompile(`\d+`)
	spaceRe    = regexp.MustCompile(`\s+`)
)

// Signature normalizes an error message into the key used to recognize the
// same error recurring. Positions, URLs, file paths, quoted literals and
// remaining digits are replaced by placeholders.
func Signature(message string) string {
	s := urlRe.ReplaceAllString(message, "<url>")
	s = quotedRe.ReplaceAllString(s, "<str>")
	s = pathRe.ReplaceAllString(s, "<path>")
	s = fileRe.ReplaceAllString(s, "<path>")
	s = positionRe.ReplaceAllString(s, "")
	s = digitsRe.ReplaceAllString(s, "N")
	s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))

	if r := []rune(s); len(r) > MaxSignatureLength {
		s = string(r[:MaxSignatureLength])
	}
	return s
}
