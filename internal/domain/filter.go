package domain

import "strings"

// DefaultPageSize is the number of rows in one page of the event table.
const DefaultPageSize = 25

// ApplyFilters returns the events matching every set criterion, in their
// original order. Magnitude bounds are inclusive; location text is a
// case-insensitive substring match against Place after trimming.
func ApplyFilters(events []Event, c FilterCriteria) []Event {
	needle := strings.ToLower(strings.TrimSpace(c.LocationText))

	out := make([]Event, 0, len(events))
	for _, e := range events {
		if c.MagnitudeMin != nil && e.Magnitude < *c.MagnitudeMin {
			continue
		}
		if c.MagnitudeMax != nil && e.Magnitude > *c.MagnitudeMax {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(e.Place), needle) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Page is one slice of a paginated event list.
type Page struct {
	Events     []Event `json:"events"`
	Page       int     `json:"page"`
	PerPage    int     `json:"perPage"`
	Total      int     `json:"total"`
	TotalPages int     `json:"totalPages"`
}

// Paginate returns the 1-based page of events. Out-of-range pages are empty;
// non-positive arguments fall back to page 1 and DefaultPageSize.
func Paginate(events []Event, page, perPage int) Page {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPageSize
	}

	total := len(events)
	p := Page{
		Events:     []Event{},
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: total / perPage,
	}
	if total%perPage != 0 {
		p.TotalPages++
	}

	// Compare page indexes before multiplying so huge values cannot overflow.
	if page-1 >= p.TotalPages {
		return p
	}
	start := (page - 1) * perPage
	end := start + min(perPage, total-start)
	p.Events = append(p.Events, events[start:end]...)
	return p
}
