// Package mobile cleans pasted mainland-China mobile number lists.
package mobile

import (
	"regexp"
	"strings"
)

var (
	splitPattern    = regexp.MustCompile(`[,\s;，；]+`)
	nonDigitPattern = regexp.MustCompile(`\D`)
)

// Normalize strips separators and country prefixes from s.
// It returns "" unless exactly 11 digits remain.
func Normalize(s string) string {
	s = strings.Join(strings.Fields(s), "")
	s = strings.NewReplacer("-", "", "—", "", "–", "", "_", "", "＋", "+").Replace(s)
	s = strings.TrimLeft(s, "+")
	switch {
	case strings.HasPrefix(s, "0086"):
		s = s[4:]
	case strings.HasPrefix(s, "86") && len(s) > 11:
		s = s[2:]
	}
	s = nonDigitPattern.ReplaceAllString(s, "")
	if len(s) != 11 {
		return ""
	}
	return s
}

// SplitText splits free text on commas, semicolons and whitespace
func SplitText(text string) []string {
	parts := splitPattern.Split(strings.TrimSpace(text), -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Summary describes the outcome of cleaning a raw list
type Summary struct {
	Total          int      `json:"total"`
	Unique         int      `json:"unique"`
	Valid          int      `json:"valid"`
	Invalid        int      `json:"invalid"`
	DuplicateCount int      `json:"duplicate_count"`
	Mobiles        []string `json:"-"`
	InvalidSamples []string `json:"invalid_samples"`
}

const maxSamples = 5

// Clean normalizes raw, drops invalid entries and removes duplicates keeping first-seen order
func Clean(raw []string) Summary {
	sum := Summary{Total: len(raw), InvalidSamples: []string{}}
	seen := make(map[string]struct{}, len(raw))
	valid := 0
	for _, r := range raw {
		m := Normalize(r)
		if m == "" {
			sum.Invalid++
			if len(sum.InvalidSamples) < maxSamples {
				sum.InvalidSamples = append(sum.InvalidSamples, r)
			}
			continue
		}
		valid++
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		sum.Mobiles = append(sum.Mobiles, m)
	}
	sum.Unique = len(sum.Mobiles)
	sum.Valid = sum.Unique
	sum.DuplicateCount = valid - sum.Unique
	return sum
}
