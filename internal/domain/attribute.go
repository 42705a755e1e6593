package domain

import "fmt"

// Attribute bounds enforced when raw attribute arrays are submitted.
const (
	MaxAttributes     = 20
	MaxAttributeValue = 1000
)

// Attribute is a single named trait value contributing to a token's rarity.
type Attribute struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// ValidateAttributes checks an attribute set against the contract bounds:
// 1..MaxAttributes entries, non-empty names, values in (0, MaxAttributeValue].
func ValidateAttributes(attrs []Attribute) error {
	if len(attrs) == 0 {
		return fmt.Errorf("no attributes given: %w", ErrInvalidAttributes)
	}
	if len(attrs) > MaxAttributes {
		return fmt.Errorf("%d attributes exceeds limit %d: %w", len(attrs), MaxAttributes, ErrInvalidAttributes)
	}
	for i, a := range attrs {
		if a.Name == "" {
			return fmt.Errorf("attribute %d has empty name: %w", i, ErrInvalidAttributes)
		}
		if a.Value <= 0 || a.Value > MaxAttributeValue {
			return fmt.Errorf("attribute %q value %d out of range (0, %d]: %w",
				a.Name, a.Value, MaxAttributeValue, ErrInvalidAttributes)
		}
	}
	return nil
}
