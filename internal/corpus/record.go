// Package corpus turns the raw record sequence emitted by the documentation
// generator into validated, immutable Documents. It owns the closed category
// set, the strict/lenient loading policy and the BuildReport that surfaces
// every rejected record.
package corpus

import "strings"

// Record is one entry of the generator payload, exactly as received.
type Record struct {
	Location string `json:"location"`
	Page     string `json:"page"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Text     string `json:"text"`
}

// Category is the closed set of record kinds. The zero value is
// CategoryUnknown and never appears on a loaded Document.
type Category uint8

const (
	CategoryUnknown Category = iota
	CategoryPage
	CategorySection
	CategoryFunction
	CategoryType
	CategoryModule
)

var categoryNames = [...]string{
	CategoryUnknown:  "unknown",
	CategoryPage:     "page",
	CategorySection:  "section",
	CategoryFunction: "function",
	CategoryType:     "type",
	CategoryModule:   "module",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return categoryNames[CategoryUnknown]
}

// ParseCategory maps a raw category string onto the closed set. Matching is
// case-insensitive and ignores surrounding whitespace.
func ParseCategory(raw string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "page":
		return CategoryPage, true
	case "section":
		return CategorySection, true
	case "function":
		return CategoryFunction, true
	case "type":
		return CategoryType, true
	case "module":
		return CategoryModule, true
	default:
		return CategoryUnknown, false
	}
}

// MarshalText lets categories serialise as their names in JSON responses.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	parsed, _ := ParseCategory(string(b))
	*c = parsed
	return nil
}
