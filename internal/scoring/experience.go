package scoring

import (
	"regexp"
	"strconv"
	"strings"
)

// yearsPattern matches mentions such as "5 years", "3+ yrs" or "10 year".
// Only one or two digit numbers are considered.
var yearsPattern = regexp.MustCompile(`(\d{1,2})\s*\+?\s*(?:years|yrs|year)`)

// ExtractYears returns the largest number of years mentioned in text, or 0
// when there is no mention. Mentions are not disambiguated, so unrelated
// numbers followed by "years" count as well.
func ExtractYears(text string) int {
	best := 0
	for _, match := range yearsPattern.FindAllStringSubmatch(strings.ToLower(text), -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		if n > best {
			best = n
		}
	}
	return best
}
