// Package ingredient classifies ingredient names into coarse shopping categories.
package ingredient

import "regexp"

// Category is a shopping-list grouping.
type Category string

const (
	Protein Category = "protein"
	Dairy   Category = "dairy"
	Grains  Category = "grains"
	Produce Category = "produce"
	Other   Category = "other"
)

type rule struct {
	category Category
	pattern  *regexp.Regexp
}

// Checked in order; the first match wins.
var rules = []rule{
	{Protein, regexp.MustCompile(`(?i)chicken|beef|pork|fish|tofu|egg|meat`)},
	{Dairy, regexp.MustCompile(`(?i)milk|cheese|yogurt|butter|cream`)},
	{Grains, regexp.MustCompile(`(?i)rice|pasta|bread|flour|oat|cereal`)},
	{Produce, regexp.MustCompile(`(?i)apple|banana|berry|orange|vegetable|lettuce|tomato|carrot|onion`)},
}

// Categorize returns the category for an ingredient name using case-insensitive
// substring matching. Unrecognised names fall back to Other.
func Categorize(name string) Category {
	for _, r := range rules {
		if r.pattern.MatchString(name) {
			return r.category
		}
	}
	return Other
}
