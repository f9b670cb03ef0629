package shared

// Pagination defaults, matching the list endpoints the ledger serves.
const (
	DefaultPageLimit = 25
	MaxPageLimit     = 200
)

// PageRequest is the offset/limit pair every list operation accepts.
type PageRequest struct {
	Limit  int
	Offset int
}

// Normalize clamps the request to sane bounds.
func (p PageRequest) Normalize() PageRequest {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Window returns the [start, end) slice bounds of the page inside total items.
func (p PageRequest) Window(total int) (int, int) {
	start := p.Offset
	if start > total {
		start = total
	}
	end := start + p.Limit
	if end > total {
		end = total
	}
	return start, end
}
