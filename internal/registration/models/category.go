package models

import (
	"fmt"

	dErrors "imageref/pkg/domain-errors"
)

// Category is an age bucket used only to pick a storage directory.
type Category string

const (
	Category5To8   Category = "5-8"
	Category9To12  Category = "9-12"
	Category13To15 Category = "13-15"
)

type bucket struct {
	min, max int
	category Category
}

// Buckets are inclusive and non-overlapping, in ascending age order.
var buckets = []bucket{
	{min: 5, max: 8, category: Category5To8},
	{min: 9, max: 12, category: Category9To12},
	{min: 13, max: 15, category: Category13To15},
}

// Categories lists every category in ascending age order.
func Categories() []Category {
	out := make([]Category, len(buckets))
	for i, b := range buckets {
		out[i] = b.category
	}
	return out
}

// SupportedAgeRange returns the lowest and highest accepted age.
func SupportedAgeRange() (int, int) {
	return buckets[0].min, buckets[len(buckets)-1].max
}

// BucketFor maps an age to its category. Ages outside every bucket fail with
// CodeInvalidAge rather than falling into a default.
func BucketFor(age int) (Category, error) {
	for _, b := range buckets {
		if age >= b.min && age <= b.max {
			return b.category, nil
		}
	}
	lo, hi := SupportedAgeRange()
	return "", dErrors.New(dErrors.CodeInvalidAge, fmt.Sprintf("age %d is outside the supported range %d-%d", age, lo, hi))
}

// IsValid reports whether c is one of the known categories.
func (c Category) IsValid() bool {
	for _, b := range buckets {
		if b.category == c {
			return true
		}
	}
	return false
}
