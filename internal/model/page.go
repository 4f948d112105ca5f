package model

// Page sizes for list endpoints.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page is a validated limit/offset window.
type Page struct {
	Limit  int
	Offset int
}

// NewPage checks a requested window. A zero limit selects DefaultPageSize.
func NewPage(limit, offset int) (Page, error) {
	if limit == 0 {
		limit = DefaultPageSize
	}
	if limit < 0 || limit > MaxPageSize {
		return Page{}, Errorf(KindValidation, "limit must be between 1 and %d", MaxPageSize)
	}
	if offset < 0 {
		return Page{}, Errorf(KindValidation, "offset cannot be negative")
	}
	return Page{Limit: limit, Offset: offset}, nil
}
