package levels

import (
	"math"
	"sort"

	"levelscope/internal/analysis"
)

// MergeThreshold is the relative price distance below which two levels of
// the same type collapse into one.
const MergeThreshold = 0.01

// MergeLevels collapses same-type levels closer than MergeThreshold. Input
// is sorted by (price, type) and walked once; the running accumulator
// absorbs the next level when their types match and the gap relative to
// the accumulator price is under the threshold.
//
// The merged price is the strength-weighted mean, strength the maximum,
// touches the sum and last touch the latest. The result is sorted by
// (price, type) and MergeLevels(MergeLevels(x)) == MergeLevels(x).
func MergeLevels(candidates []analysis.Level) []analysis.Level {
	if len(candidates) == 0 {
		return nil
	}

	sorted := make([]analysis.Level, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Price != sorted[j].Price {
			return sorted[i].Price < sorted[j].Price
		}
		return sorted[i].Type < sorted[j].Type
	})

	merged := make([]analysis.Level, 0, len(sorted))
	acc := normalize(sorted[0])
	for _, next := range sorted[1:] {
		if acc.Type == next.Type && acc.Price > 0 && math.Abs(next.Price-acc.Price)/acc.Price < MergeThreshold {
			acc = combine(acc, next)
			continue
		}
		merged = append(merged, acc)
		acc = normalize(next)
	}
	return append(merged, acc)
}

func combine(a, b analysis.Level) analysis.Level {
	// a.Price <= b.Price, so the interpolation stays inside [a, b]
	frac := 0.5
	if total := a.Strength + b.Strength; total > 0 {
		frac = b.Strength / total
	}
	price := a.Price
	if b.Price != a.Price {
		price = a.Price + (b.Price-a.Price)*frac
	}

	out := analysis.Level{
		Price:         price,
		Type:          a.Type,
		Touches:       a.Touches + b.Touches,
		LastTouch:     a.LastTouch,
		Strength:      math.Max(a.Strength, b.Strength),
		Sources:       unionSources(a.Sources, b.Sources),
		LiquidityGrab: a.LiquidityGrab || b.LiquidityGrab,
	}
	if b.LastTouch.After(out.LastTouch) {
		out.LastTouch = b.LastTouch
	}
	return out
}

func normalize(l analysis.Level) analysis.Level {
	l.Sources = unionSources(l.Sources, nil)
	return l
}

// unionSources returns the sorted set union of a and b.
func unionSources(a, b []analysis.SourceKind) []analysis.SourceKind {
	if len(a)+len(b) == 0 {
		return nil
	}
	seen := make(map[analysis.SourceKind]struct{}, len(a)+len(b))
	out := make([]analysis.SourceKind, 0, len(a)+len(b))
	for _, list := range [][]analysis.SourceKind{a, b} {
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
