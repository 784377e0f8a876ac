package aggregate

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"surveydash/internal/domain"
)

type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// FTEBucket covers (Lower, Upper].
type FTEBucket struct {
	Label string  `json:"label"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

var fteEdges = []float64{0, 10, 50, 100, 250, 1000, math.Inf(1)}
var fteLabels = []string{"0-10", "11-50", "51-100", "101-250", "251-1000", "1000+"}

// Stats is everything the dashboard shows beside the company table.
type Stats struct {
	TotalRecords     int `json:"total_records"`
	CompletedRecords int `json:"completed_records"`
	UniqueSent       int `json:"unique_sent"`
	UniqueCompleted  int `json:"unique_completed"`
	MissingFTE       int `json:"missing_fte"`
	MissingOwnership int `json:"missing_ownership"`

	// FTEOutOfRange counts numeric values at or below zero.
	FTEOutOfRange int `json:"fte_out_of_range"`

	ByRegion     []Count     `json:"by_region"`
	ByIndustry   []Count     `json:"by_industry"`
	ByOwnership  []Count     `json:"by_ownership"`
	FTEHistogram []FTEBucket `json:"fte_histogram"`
}

// ComputeStats derives counters over all rows and distributions over the
// completed subset.
func ComputeStats(rows []domain.FlatRecord) Stats {
	completed := Completed(rows)

	st := Stats{
		TotalRecords:     len(rows),
		CompletedRecords: len(completed),
		UniqueSent:       uniqueDisplays(rows),
		UniqueCompleted:  uniqueDisplays(completed),
		ByRegion:         CountBy(completed, func(r domain.FlatRecord) string { return r.Region }),
		ByIndustry:       CountBy(completed, func(r domain.FlatRecord) string { return r.Industry }),
		ByOwnership:      CountBy(completed, func(r domain.FlatRecord) string { return r.Ownership }),
	}
	for _, r := range completed {
		if r.Ownership == domain.Unknown {
			st.MissingOwnership++
		}
	}
	st.FTEHistogram, st.MissingFTE, st.FTEOutOfRange = FTEHistogram(completed)
	return st
}

func uniqueDisplays(rows []domain.FlatRecord) int {
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		seen[r.CompanyDisplay] = struct{}{}
	}
	return len(seen)
}

// CountBy tallies rows by label, most frequent first, ties by label.
func CountBy(rows []domain.FlatRecord, label func(domain.FlatRecord) string) []Count {
	m := map[string]int{}
	for _, r := range rows {
		m[label(r)]++
	}
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{Label: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// ParseFTE reads a headcount. The "Unknown" sentinel, text, NaN and
// infinities are not numeric.
func ParseFTE(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == domain.Unknown {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// BucketFTE returns the bucket index for v, or -1 when v <= 0.
func BucketFTE(v float64) int {
	for i := 1; i < len(fteEdges); i++ {
		if v > fteEdges[i-1] && v <= fteEdges[i] {
			return i - 1
		}
	}
	return -1
}

func FTEBucketLabel(i int) string {
	if i < 0 || i >= len(fteLabels) {
		return ""
	}
	return fteLabels[i]
}

// FTEHistogram buckets numeric FTE values. Non-numeric values are counted
// as missing and values <= 0 as out of range; neither lands in a bucket.
func FTEHistogram(rows []domain.FlatRecord) (buckets []FTEBucket, missing, outOfRange int) {
	buckets = make([]FTEBucket, len(fteLabels))
	for i := range buckets {
		buckets[i] = FTEBucket{Label: fteLabels[i], Lower: fteEdges[i], Upper: fteEdges[i+1]}
	}
	for _, r := range rows {
		v, ok := ParseFTE(r.FTEs)
		if !ok {
			missing++
			continue
		}
		i := BucketFTE(v)
		if i < 0 {
			outOfRange++
			continue
		}
		buckets[i].Count++
	}
	return buckets, missing, outOfRange
}
