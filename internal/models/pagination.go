package models

// Pagination is the meta block of list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

// NewPagination derives the page count from total.
func NewPagination(page, size, total int) *Pagination {
	p := &Pagination{Page: page, PageSize: size, TotalCount: total}
	if size > 0 {
		p.TotalPages = (total + size - 1) / size
	}
	return p
}
