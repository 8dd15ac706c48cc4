package eventlog

import (
	"sort"
	"strings"
	"time"
)

const (
	topReferrerLimit = 5
	directReferrer   = "(direct)"
)

// Summary is the digest of one UTC day of events.
type Summary struct {
	Day            string         `json:"day"`
	Total          int            `json:"total"`
	UniqueSessions int            `json:"uniqueSessions"`
	ByType         map[string]int `json:"byType"`
	TopReferrers   []Count        `json:"topReferrers"`
}

// Count pairs a value with its number of occurrences.
type Count struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Summarize aggregates the events created on the UTC day containing day.
// Events outside that day are ignored.
func Summarize(events []Event, day time.Time) Summary {
	start := startOfDay(day)
	end := start.AddDate(0, 0, 1)

	sum := Summary{
		Day:          start.Format(time.DateOnly),
		ByType:       make(map[string]int),
		TopReferrers: []Count{},
	}
	sessions := make(map[string]struct{})
	referrers := make(map[string]int)

	for _, e := range events {
		if !inRange(e.CreatedAt, start, end) {
			continue
		}
		sum.Total++
		sum.ByType[e.EventType]++
		sessions[e.SessionID] = struct{}{}

		ref := strings.TrimSpace(e.Referrer)
		if ref == "" {
			ref = directReferrer
		}
		referrers[ref]++
	}
	sum.UniqueSessions = len(sessions)

	for value, n := range referrers {
		sum.TopReferrers = append(sum.TopReferrers, Count{Value: value, Count: n})
	}
	sort.Slice(sum.TopReferrers, func(i, j int) bool {
		a, b := sum.TopReferrers[i], sum.TopReferrers[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Value < b.Value
	})
	if len(sum.TopReferrers) > topReferrerLimit {
		sum.TopReferrers = sum.TopReferrers[:topReferrerLimit]
	}
	return sum
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
