package domain

// DeriveStatistics computes the maximum and mean magnitude. Both are zero for
// an empty collection.
func DeriveStatistics(events []Event) Statistics {
	if len(events) == 0 {
		return Statistics{}
	}

	maxMag := events[0].Magnitude
	var sum float64
	for _, e := range events {
		if e.Magnitude > maxMag {
			maxMag = e.Magnitude
		}
		sum += e.Magnitude
	}

	return Statistics{
		MaxMagnitude: maxMag,
		AvgMagnitude: sum / float64(len(events)),
	}
}

// Summary backs the statistics cards: collection sizes plus statistics over
// the filtered view.
type Summary struct {
	TotalCount    int `json:"totalCount"`
	FilteredCount int `json:"filteredCount"`
	Statistics
}

// Summarize builds a Summary from the full and filtered collections.
func Summarize(all, filtered []Event) Summary {
	return Summary{
		TotalCount:    len(all),
		FilteredCount: len(filtered),
		Statistics:    DeriveStatistics(filtered),
	}
}
