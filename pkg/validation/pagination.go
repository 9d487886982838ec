package validation

// Pagination bounds applied to every list request.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// ClampPage returns page raised to at least 1.
func ClampPage(page int) int {
	if page < 1 {
		return DefaultPage
	}
	return page
}

// ClampLimit returns limit forced into [1, MaxLimit].
func ClampLimit(limit int) int {
	switch {
	case limit < 1:
		return 1
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// NormalizePage clamps a (page, limit) pair.
func NormalizePage(page, limit int) (int, int) {
	return ClampPage(page), ClampLimit(limit)
}

// Offset is the number of rows skipped for a normalized page.
func Offset(page, limit int) int {
	return (page - 1) * limit
}

// TotalPages is ceil(total/limit); zero when there is nothing to list.
func TotalPages(total int64, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
