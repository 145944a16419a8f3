package shared

// DefaultPageSize is the number of rows requested per page.
const DefaultPageSize = 10

// Cursor tracks offset pagination over a backend listing.
type Cursor struct {
	Next    int
	Limit   int
	Total   int
	HasMore bool
}

// NewCursor returns a cursor positioned at the first page.
func NewCursor(limit int) Cursor {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	return Cursor{Limit: limit, HasMore: true}
}

// Advance moves the cursor after a page of received rows. next is the
// backend-reported next offset (ignored when not ahead of the current one).
// The offset never moves backwards.
func (c Cursor) Advance(received, next int, hasMore bool) Cursor {
	switch {
	case next > c.Next:
		c.Next = next
	case received > 0:
		c.Next += received
	default:
		c.Next += c.Limit
	}
	c.HasMore = hasMore && received >= c.Limit
	return c
}
