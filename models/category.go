package models

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var ErrUnknownCategory = errors.New("unknown category")

// Category is a padel skill level, "1ª" being the strongest.
type Category string

const (
	Category1 Category = "1ª"
	Category2 Category = "2ª"
	Category3 Category = "3ª"
	Category4 Category = "4ª"
	Category5 Category = "5ª"
)

var AllCategories = []Category{Category1, Category2, Category3, Category4, Category5}

// Rank is the numeric prefix of the category, or 0 when it has none.
func (c Category) Rank() int {
	s := string(c)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

func (c Category) Valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory accepts the canonical form and the usual keyboard spellings
// ("1", "1a", "1º", "1ª").
func ParseCategory(raw string) (Category, error) {
	s := strings.TrimSpace(norm.NFC.String(raw))
	s = strings.TrimRight(s, "ªºaA.")
	n, err := strconv.Atoi(s)
	if err != nil {
		return "", ErrUnknownCategory
	}
	c := Category(strconv.Itoa(n) + "ª")
	if !c.Valid() {
		return "", ErrUnknownCategory
	}
	return c, nil
}

// SortCategories orders categories by their numeric prefix, ascending.
func SortCategories(cs []Category) {
	sort.SliceStable(cs, func(i, j int) bool {
		ri, rj := cs[i].Rank(), cs[j].Rank()
		if ri != rj {
			return ri < rj
		}
		return cs[i] < cs[j]
	})
}
