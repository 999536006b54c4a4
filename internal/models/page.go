package models

// Page is one page of a paginated collection. A page is always replaced
// wholesale and never merged with a previous one.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	Size       int `json:"size"`
	TotalPages int `json:"total_pages"`
}

// HasNext reports whether a page after this one exists.
func (p Page[T]) HasNext() bool {
	return p.Page < p.TotalPages
}

// HasPrev reports whether a page before this one exists.
func (p Page[T]) HasPrev() bool {
	return p.Page > 1
}

// Contains reports whether page number n is within [1, TotalPages].
func (p Page[T]) Contains(n int) bool {
	return n >= 1 && n <= p.TotalPages
}
