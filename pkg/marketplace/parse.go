// Package marketplace watches a storefront for paid stars orders and turns
// them into purchase jobs.
package marketplace

import (
	"regexp"
	"strconv"
	"strings"
)

// Listing descriptions are free-form Russian text like
// "100 звёзд Telegram, 3 шт. @buyer". The stars figure is mandatory, the
// unit count defaults to one and the buyer login is the last word.
var (
	starsRe = regexp.MustCompile(`(\d+)\s+звёзд`)
	unitsRe = regexp.MustCompile(`(\d+)\s+шт\.`)
)

// ParsedOrder is what a listing description resolves to.
type ParsedOrder struct {
	Stars int
	Buyer string
	Count int
}

// ParseOrderDescription extracts the stars figure, buyer login and unit
// count from a listing description. It reports false when the description
// does not look like a stars order.
func ParseOrderDescription(text string) (*ParsedOrder, bool) {
	cleaned := strings.TrimSpace(text)

	starsMatch := starsRe.FindStringSubmatch(cleaned)
	if starsMatch == nil {
		return nil, false
	}
	stars, err := strconv.Atoi(starsMatch[1])
	if err != nil {
		return nil, false
	}

	words := strings.Fields(cleaned)
	if len(words) == 0 {
		return nil, false
	}
	buyer := words[len(words)-1]

	count := 1
	if unitsMatch := unitsRe.FindStringSubmatch(cleaned); unitsMatch != nil {
		if n, err := strconv.Atoi(unitsMatch[1]); err == nil {
			count = n
		}
	}

	return &ParsedOrder{Stars: stars, Buyer: buyer, Count: count}, true
}
