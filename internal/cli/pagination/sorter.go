package pagination

import (
	"fmt"
	"sort"
)

// FieldSorter sorts items of type T by named fields. Each field is a less
// function.
type FieldSorter[T any] struct {
	fields map[string]func(a, b T) bool
}

// NewFieldSorter creates a FieldSorter over the given fields.
func NewFieldSorter[T any](fields map[string]func(a, b T) bool) *FieldSorter[T] {
	return &FieldSorter[T]{fields: fields}
}

// IsValidField checks if the field is valid for sorting.
func (s *FieldSorter[T]) IsValidField(field string) bool {
	_, ok := s.fields[field]
	return ok
}

// GetValidFields returns all valid sort fields in order.
func (s *FieldSorter[T]) GetValidFields() []string {
	fields := make([]string, 0, len(s.fields))
	for field := range s.fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// SortBy parses a "field:order" expression and returns a sorted copy of
// items. An empty expression returns items unchanged.
func (s *FieldSorter[T]) SortBy(items []T, expr string) ([]T, error) {
	field, order, err := ParseSort(expr)
	if err != nil {
		return nil, err
	}
	if field == DefaultSortField {
		return items, nil
	}
	if !s.IsValidField(field) {
		return nil, fmt.Errorf("%w: %q (valid: %v)", ErrInvalidSortField, field, s.GetValidFields())
	}
	return s.Sort(items, field, order), nil
}

// Sort returns a stably sorted copy of items. If field is invalid, items is
// returned unchanged.
func (s *FieldSorter[T]) Sort(items []T, field, order string) []T {
	less, ok := s.fields[field]
	if !ok {
		return items
	}

	sorted := make([]T, len(items))
	copy(sorted, items)

	sort.SliceStable(sorted, func(i, j int) bool {
		// For descending order, swap i and j in comparisons to maintain stability
		if order == SortOrderDesc {
			i, j = j, i
		}
		return less(sorted[i], sorted[j])
	})
	return sorted
}
