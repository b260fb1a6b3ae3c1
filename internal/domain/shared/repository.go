package shared

// Filter carries the pagination, ordering and search options common to
// repository list queries. Filters holds repository-specific criteria
// keyed by column name, e.g. "status" or "providing_service_id".
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
	Search   string
	Filters  map[string]interface{}
}

// DefaultFilter returns the paging defaults used by list endpoints.
func DefaultFilter() Filter {
	return Filter{
		Page:     1,
		PageSize: 20,
		OrderBy:  "created_at",
		OrderDir: "desc",
		Filters:  make(map[string]interface{}),
	}
}

// Offset translates the 1-based page into a row offset.
func (f Filter) Offset() int {
	if f.Page < 1 || f.PageSize < 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}
