package domain

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// Filter is built per request. Empty fields match everything; set fields
// combine with logical AND. Status and grade match if any roll satisfies
// the equality, company name is a case-insensitive substring match.
type Filter struct {
	Status      string
	Grade       string
	CompanyName string
	Page        int
	Limit       int
}

// Normalize clamps malformed pagination to the defaults rather than
// rejecting the request.
func (f Filter) Normalize() Filter {
	if f.Page <= 0 {
		f.Page = DefaultPage
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	return f
}

func (f Filter) Skip() int { return (f.Page - 1) * f.Limit }

// Pages computes the page count for a total under this filter's limit.
func (f Filter) Pages(total int) int {
	if total <= 0 {
		return 0
	}
	return (total + f.Limit - 1) / f.Limit
}

// Pagination is the envelope returned alongside a page of orders.
type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
}
