// Package selection maps available scenes and a strategy configuration to the
// ordered subset of scenes that represents a field's season.
//
// The strategy set is fixed and enumerable, so strategies are a closed set of
// tagged variants dispatched through one Select contract rather than open
// dynamic dispatch.
package selection

import (
	"fmt"
	"sort"
	"time"

	"github.com/croplens/croplens/internal/domain/scene"
)

// Kind tags a snapshot strategy variant.
type Kind string

// The closed set of snapshot strategies.
const (
	KindFractional    Kind = "fractional"
	KindFixedDate     Kind = "fixed_date"
	KindDates         Kind = "dates"
	KindTopNCloudFree Kind = "top_n_cloudfree"
	KindAll           Kind = "all"
)

// Strategy is a tagged variant: Kind picks the branch, the remaining fields
// parameterize it.
type Strategy struct {
	Kind       Kind
	Fractions  []float64   // fractional
	TargetDate time.Time   // fixed_date
	KeyDates   []time.Time // dates
	N          int         // top_n_cloudfree
}

// Fractional selects the scene nearest each season fraction.
func Fractional(fractions ...float64) Strategy {
	return Strategy{Kind: KindFractional, Fractions: fractions}
}

// FixedDate selects the single scene nearest an explicit date.
func FixedDate(target time.Time) Strategy {
	return Strategy{Kind: KindFixedDate, TargetDate: target}
}

// Dates selects the scene nearest each key date, in input order.
func Dates(dates ...time.Time) Strategy {
	return Strategy{Kind: KindDates, KeyDates: dates}
}

// TopNCloudFree selects the n least cloudy scenes.
func TopNCloudFree(n int) Strategy {
	return Strategy{Kind: KindTopNCloudFree, N: n}
}

// All selects every scene inside the season window, date ascending.
func All() Strategy {
	return Strategy{Kind: KindAll}
}

// DefaultFractions spreads n fractions evenly over [0.2, 1.0].
func DefaultFractions(n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{0.2}
	}
	out := make([]float64, n)
	step := (1.0 - 0.2) / float64(n-1)
	for i := range out {
		out[i] = 0.2 + float64(i)*step
	}
	return out
}

// Slot is one position in a selection result. Scene is nil when no candidate
// exists for the slot; that is an absence, not an error.
type Slot struct {
	Label    string
	Target   time.Time // zero for top_n_cloudfree
	Fraction float64   // season fraction of the target (or of the scene)
	Scene    *scene.Descriptor
}

// Selection is the ordered outcome of one strategy invocation.
type Selection struct {
	Strategy Kind
	Slots    []Slot
}

// Scenes returns the present scenes in slot order.
func (s Selection) Scenes() []scene.Descriptor {
	out := make([]scene.Descriptor, 0, len(s.Slots))
	for _, slot := range s.Slots {
		if slot.Scene != nil {
			out = append(out, *slot.Scene)
		}
	}
	return out
}

// Select applies the strategy to the available scenes. It is deterministic,
// never mutates its input, and returns one slot per configured target (with
// nil scenes for targets that found no candidate). An empty scene list yields
// all-absent slots.
func (st Strategy) Select(scenes []scene.Descriptor, w scene.SeasonWindow) (Selection, error) {
	sorted := sortByDate(scenes)

	switch st.Kind {
	case KindFractional:
		return selectByTargets(sorted, w, fractionTargets(st.Fractions, w)), nil
	case KindFixedDate:
		if st.TargetDate.IsZero() {
			return Selection{}, fmt.Errorf("%w: fixed_date requires a target date", ErrInvalidStrategy)
		}
		targets := []target{{label: st.TargetDate.Format(dateLabel), date: st.TargetDate, fraction: w.Fraction(st.TargetDate)}}
		sel := selectByTargets(sorted, w, targets)
		sel.Strategy = KindFixedDate
		return sel, nil
	case KindDates:
		targets := make([]target, len(st.KeyDates))
		for i, d := range st.KeyDates {
			targets[i] = target{label: d.Format(dateLabel), date: d, fraction: w.Fraction(d)}
		}
		sel := selectByTargets(sorted, w, targets)
		sel.Strategy = KindDates
		return sel, nil
	case KindTopNCloudFree:
		return selectTopNCloudFree(sorted, w, st.N), nil
	case KindAll:
		return selectAll(sorted, w), nil
	default:
		return Selection{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, st.Kind)
	}
}

const dateLabel = "2006-01-02"

type target struct {
	label    string
	date     time.Time
	fraction float64
}

// fractionTargets accepts fractions outside [0,1]; the target date simply
// extrapolates beyond the window.
func fractionTargets(fractions []float64, w scene.SeasonWindow) []target {
	out := make([]target, len(fractions))
	for i, f := range fractions {
		out[i] = target{
			label:    fmt.Sprintf("f%.2f", f),
			date:     w.DateAt(f),
			fraction: f,
		}
	}
	return out
}

// selectByTargets picks, per target, the scene whose date minimizes absolute
// distance, ties broken by earliest date. A scene feeds at most one slot: if a
// later target resolves to an already-used scene, that slot stays absent.
func selectByTargets(sorted []scene.Descriptor, w scene.SeasonWindow, targets []target) Selection {
	sel := Selection{Strategy: KindFractional, Slots: make([]Slot, 0, len(targets))}
	used := make(map[int]bool, len(targets))

	for _, tg := range targets {
		slot := Slot{Label: tg.label, Target: tg.date, Fraction: tg.fraction}

		best := -1
		var bestDiff time.Duration
		for i, d := range sorted {
			diff := absDuration(d.AcquiredAt.Sub(tg.date))
			if best == -1 || diff < bestDiff {
				best = i
				bestDiff = diff
			}
		}
		if best >= 0 && !used[best] {
			used[best] = true
			chosen := sorted[best]
			slot.Scene = &chosen
		}
		sel.Slots = append(sel.Slots, slot)
	}
	return sel
}

func selectTopNCloudFree(sorted []scene.Descriptor, w scene.SeasonWindow, n int) Selection {
	sel := Selection{Strategy: KindTopNCloudFree}
	if n <= 0 {
		return sel
	}

	byCloud := make([]scene.Descriptor, len(sorted))
	copy(byCloud, sorted)
	// Input is date-ascending, so a stable sort keeps the earliest scene first
	// among equal cloud covers.
	sort.SliceStable(byCloud, func(i, j int) bool {
		return byCloud[i].CloudCover < byCloud[j].CloudCover
	})
	if n > len(byCloud) {
		n = len(byCloud)
	}

	for i := 0; i < n; i++ {
		chosen := byCloud[i]
		sel.Slots = append(sel.Slots, Slot{
			Label:    fmt.Sprintf("rank%d", i+1),
			Fraction: w.Fraction(chosen.AcquiredAt),
			Scene:    &chosen,
		})
	}
	return sel
}

func selectAll(sorted []scene.Descriptor, w scene.SeasonWindow) Selection {
	sel := Selection{Strategy: KindAll}
	for _, d := range sorted {
		if !w.Contains(d.AcquiredAt) {
			continue
		}
		chosen := d
		sel.Slots = append(sel.Slots, Slot{
			Label:    chosen.AcquiredAt.Format(dateLabel),
			Target:   chosen.AcquiredAt,
			Fraction: w.Fraction(chosen.AcquiredAt),
			Scene:    &chosen,
		})
	}
	return sel
}

// sortByDate returns a date-ascending copy, leaving the input untouched.
func sortByDate(scenes []scene.Descriptor) []scene.Descriptor {
	out := make([]scene.Descriptor, len(scenes))
	copy(out, scenes)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AcquiredAt.Before(out[j].AcquiredAt)
	})
	return out
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
