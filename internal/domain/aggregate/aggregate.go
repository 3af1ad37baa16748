// Package aggregate turns per-scene index values into field-level summary
// statistics grouped by field, index, and temporal bucket.
package aggregate

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/croplens/croplens/internal/domain/scene"
)

// Bucketing picks the temporal grouping rule.
type Bucketing string

const (
	// BucketBySlot groups samples under the literal slot label the selector produced.
	BucketBySlot Bucketing = "slot"
	// BucketByStage groups samples into growth stages by season fraction.
	BucketByStage Bucketing = "stage"
)

// Sample is one scene's contribution for one index (or raw band) of a field.
type Sample struct {
	Index     string
	SlotLabel string
	SlotOrder int
	Fraction  float64
	Grid      scene.Grid
}

// Bucket identifies one temporal bucket and its chronological position.
type Bucket struct {
	Label string
	Order int
}

// Options configures an aggregation pass.
type Options struct {
	Bucketing   Bucketing
	Stages      []Stage  // stage bucketing; DefaultStages when empty
	Slots       []Bucket // slot bucketing; derived from samples when empty
	Indices     []string // full requested set; indices with no samples still get rows
	Percentiles bool     // include p10/p90
}

// Row is the final tabular unit: one (field, index, bucket) group with its
// summary statistics. Undefined statistics are NaN, never zero.
type Row struct {
	FieldID string  `csv:"field_id"`
	Index   string  `csv:"index"`
	Bucket  string  `csv:"bucket"`
	Count   int     `csv:"count"`
	Mean    float64 `csv:"mean"`
	Median  float64 `csv:"median"`
	Min     float64 `csv:"min"`
	Max     float64 `csv:"max"`
	Std     float64 `csv:"std"`
	P10     float64 `csv:"p10"`
	P90     float64 `csv:"p90"`

	bucketOrder int
}

// Aggregate groups one field's samples into temporal buckets and summarizes
// each (index, bucket) group over all finite values its scenes contributed.
// Every requested index gets a row per bucket; a bucket with zero contributing
// values reports every statistic as NaN. Rows come back ordered by index name,
// then bucket in chronological order.
func Aggregate(fieldID string, samples []Sample, opts Options) []Row {
	buckets := resolveBuckets(samples, opts)
	indices := resolveIndices(samples, opts)

	type group struct {
		values []float64
		count  int
	}
	groups := make(map[string]map[string]*group, len(indices))
	for _, idx := range indices {
		groups[idx] = make(map[string]*group, len(buckets))
		for _, b := range buckets {
			groups[idx][b.Label] = &group{}
		}
	}

	for _, s := range samples {
		byBucket, ok := groups[s.Index]
		if !ok {
			continue
		}
		label := s.SlotLabel
		if opts.Bucketing == BucketByStage {
			label = StageFor(s.Fraction, stagesOf(opts))
		}
		g, ok := byBucket[label]
		if !ok {
			continue
		}
		g.values = append(g.values, s.Grid.Finite()...)
		g.count++
	}

	rows := make([]Row, 0, len(indices)*len(buckets))
	for _, idx := range indices {
		for _, b := range buckets {
			g := groups[idx][b.Label]
			row := summarize(g.values, opts.Percentiles)
			row.FieldID = fieldID
			row.Index = idx
			row.Bucket = b.Label
			row.Count = g.count
			row.bucketOrder = b.Order
			rows = append(rows, row)
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Index != rows[j].Index {
			return rows[i].Index < rows[j].Index
		}
		return rows[i].bucketOrder < rows[j].bucketOrder
	})
	return rows
}

// SortRows orders a multi-field row set by field, index, then bucket
// chronology, keeping seasonal narratives readable.
func SortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].FieldID != rows[j].FieldID {
			return rows[i].FieldID < rows[j].FieldID
		}
		if rows[i].Index != rows[j].Index {
			return rows[i].Index < rows[j].Index
		}
		return rows[i].bucketOrder < rows[j].bucketOrder
	})
}

func stagesOf(opts Options) []Stage {
	if len(opts.Stages) > 0 {
		return opts.Stages
	}
	return DefaultStages
}

func resolveBuckets(samples []Sample, opts Options) []Bucket {
	if opts.Bucketing == BucketByStage {
		stages := stagesOf(opts)
		out := make([]Bucket, len(stages))
		for i, s := range stages {
			out[i] = Bucket{Label: s.Name, Order: i}
		}
		return out
	}
	if len(opts.Slots) > 0 {
		return opts.Slots
	}
	// Derive slot buckets from the samples themselves.
	seen := make(map[string]bool)
	var out []Bucket
	for _, s := range samples {
		if seen[s.SlotLabel] {
			continue
		}
		seen[s.SlotLabel] = true
		out = append(out, Bucket{Label: s.SlotLabel, Order: s.SlotOrder})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

func resolveIndices(samples []Sample, opts Options) []string {
	if len(opts.Indices) > 0 {
		out := make([]string, len(opts.Indices))
		copy(out, opts.Indices)
		sort.Strings(out)
		return out
	}
	seen := make(map[string]bool)
	var out []string
	for _, s := range samples {
		if !seen[s.Index] {
			seen[s.Index] = true
			out = append(out, s.Index)
		}
	}
	sort.Strings(out)
	return out
}

// summarize computes the statistics over pooled finite values. An empty pool
// yields NaN for every statistic: "no data" is distinct from zero.
func summarize(values []float64, percentiles bool) Row {
	row := Row{
		Mean:   math.NaN(),
		Median: math.NaN(),
		Min:    math.NaN(),
		Max:    math.NaN(),
		Std:    math.NaN(),
		P10:    math.NaN(),
		P90:    math.NaN(),
	}
	if len(values) == 0 {
		return row
	}

	data := stats.Float64Data(values)
	if v, err := stats.Mean(data); err == nil {
		row.Mean = v
	}
	if v, err := stats.Median(data); err == nil {
		row.Median = v
	}
	if v, err := stats.Min(data); err == nil {
		row.Min = v
	}
	if v, err := stats.Max(data); err == nil {
		row.Max = v
	}
	if v, err := stats.StandardDeviation(data); err == nil {
		row.Std = v
	}
	if percentiles {
		if v, err := stats.Percentile(data, 10); err == nil {
			row.P10 = v
		}
		if v, err := stats.Percentile(data, 90); err == nil {
			row.P90 = v
		}
	}
	return row
}
