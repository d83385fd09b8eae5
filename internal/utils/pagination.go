// Package utils provides small, generic helpers shared by the transport
// and service layers. Nothing here knows about profiles or conversations.
package utils

import "strconv"

// Page bounds used by list endpoints.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is a 1-based page number with its size.
type Page struct {
	Number int
	Size   int
}

// ParsePage reads raw page and page_size query values. Number is at least
// 1; Size is clamped to [1, MaxPageSize] and defaults to DefaultPageSize.
func ParsePage(rawPage, rawSize string) Page {
	p := Page{Number: intOr(rawPage, 1), Size: intOr(rawSize, DefaultPageSize)}
	p.Number = max(p.Number, 1)
	p.Size = min(max(p.Size, 1), MaxPageSize)
	return p
}

// Offset is the number of rows before the first item of p.
func (p Page) Offset() int {
	if p.Number < 1 || p.Size < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// TotalPages is ceil(total/size); an empty set or size <= 0 yields 0.
func TotalPages(total int64, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

func intOr(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
