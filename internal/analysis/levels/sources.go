package levels

import (
	"math"
	"sort"
	"time"

	"levelscope/internal/analysis"
	"levelscope/internal/analysis/indicators"
)

// maxVolumeNodes bounds the volume node grid for very wide windows.
const maxVolumeNodes = 2000

// Source produces candidate levels from an analysis window. Sources are
// pure and may run concurrently over the same Window.
type Source interface {
	Name() string
	Detect(w Window) []analysis.Level
}

// DefaultSources returns the built-in level sources in merge order.
func DefaultSources() []Source {
	return []Source{PivotSource{}, ClusterSource{}, VolumeNodeSource{}}
}

// PivotSource finds fractal pivots: a candle whose high (low) strictly
// exceeds every other high (low) within PivotWindow bars on each side.
type PivotSource struct{}

func (PivotSource) Name() string { return string(analysis.SourcePivot) }

func (p PivotSource) Detect(w Window) []analysis.Level {
	candles := w.Candles
	k := w.Config.PivotWindow
	n := len(candles)
	if n < 2*k+1 {
		return nil
	}

	var out []analysis.Level
	for i := k; i < n-k; i++ {
		isHigh, isLow := true, true
		for j := i - k; j <= i+k; j++ {
			if j == i {
				continue
			}
			if candles[j].High >= candles[i].High {
				isHigh = false
			}
			if candles[j].Low <= candles[i].Low {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}
		if isHigh {
			if lvl, ok := p.confirm(w, i, candles[i].High, analysis.LevelResistance); ok {
				out = append(out, lvl)
			}
		}
		if isLow {
			if lvl, ok := p.confirm(w, i, candles[i].Low, analysis.LevelSupport); ok {
				out = append(out, lvl)
			}
		}
	}
	return out
}

// confirm counts volume-weighted touches by other candles.
func (PivotSource) confirm(w Window, idx int, price float64, typ analysis.LevelType) (analysis.Level, bool) {
	tol := w.Config.TouchTolerance(price)
	last := w.Candles[idx].Timestamp
	var weighted float64
	for j, c := range w.Candles {
		if j == idx || !touches(c, price, tol, typ) {
			continue
		}
		weighted += w.touchWeight(c)
		if c.Timestamp.After(last) {
			last = c.Timestamp
		}
	}

	count := int(math.Round(weighted))
	if count < w.Config.MinTouches {
		return analysis.Level{}, false
	}
	return analysis.Level{
		Price:     price,
		Type:      typ,
		Touches:   count,
		LastTouch: last,
		Strength:  touchesFactor(count, w.Volatility),
		Sources:   []analysis.SourceKind{analysis.SourcePivot},
	}, true
}

// ClusterSource groups candle highs and lows into horizontal clusters on an
// adaptive step. Points are sorted by price and a cluster extends while a
// point lies within one step of the cluster's first point.
type ClusterSource struct{}

func (ClusterSource) Name() string { return string(analysis.SourceCluster) }

type pricePoint struct {
	price float64
	typ   analysis.LevelType
	at    time.Time
}

func (c ClusterSource) Detect(w Window) []analysis.Level {
	if w.Step <= 0 || len(w.Candles) == 0 {
		return nil
	}

	points := make([]pricePoint, 0, 2*len(w.Candles))
	for _, cd := range w.Candles {
		points = append(points,
			pricePoint{price: cd.Low, typ: analysis.LevelSupport, at: cd.Timestamp},
			pricePoint{price: cd.High, typ: analysis.LevelResistance, at: cd.Timestamp},
		)
	}
	sort.SliceStable(points, func(i, j int) bool {
		if points[i].price != points[j].price {
			return points[i].price < points[j].price
		}
		return points[i].typ < points[j].typ
	})

	var out []analysis.Level
	start := 0
	for i := 1; i <= len(points); i++ {
		if i < len(points) && points[i].price-points[start].price <= w.Step {
			continue
		}
		if lvl, ok := c.flush(w, points[start:i]); ok {
			out = append(out, lvl)
		}
		start = i
	}
	return out
}

func (ClusterSource) flush(w Window, members []pricePoint) (analysis.Level, bool) {
	if len(members) < w.Config.MinTouches {
		return analysis.Level{}, false
	}

	var sum float64
	var supports, resistances int
	var last time.Time
	for _, m := range members {
		sum += m.price
		if m.typ == analysis.LevelSupport {
			supports++
		} else {
			resistances++
		}
		if m.at.After(last) {
			last = m.at
		}
	}
	price := sum / float64(len(members))

	typ := analysis.LevelResistance
	switch {
	case supports > resistances:
		typ = analysis.LevelSupport
	case supports == resistances && price < w.LastClose:
		typ = analysis.LevelSupport
	}

	return analysis.Level{
		Price:     price,
		Type:      typ,
		Touches:   len(members),
		LastTouch: last,
		Strength:  touchesFactor(len(members), w.Volatility),
		Sources:   []analysis.SourceKind{analysis.SourceCluster},
	}, true
}

// VolumeNodeSource spreads each candle's volume evenly across the grid
// steps its range covers and keeps high-volume, high-liquidity nodes.
type VolumeNodeSource struct{}

func (VolumeNodeSource) Name() string { return string(analysis.SourceVolumeNode) }

func (VolumeNodeSource) Detect(w Window) []analysis.Level {
	span := w.Span()
	if w.Step <= 0 || span <= 0 || w.TotalVolume <= 0 {
		return nil
	}

	step := w.Step
	bins := int(math.Floor(span/step)) + 1
	if bins > maxVolumeNodes {
		bins = maxVolumeNodes
		step = span / float64(bins-1)
	}

	volumes := make([]float64, bins)
	occurrences := make([]int, bins)
	lastTouch := make([]time.Time, bins)
	binOf := func(price float64) int {
		idx := int((price - w.Low) / step)
		if idx < 0 {
			return 0
		}
		if idx >= bins {
			return bins - 1
		}
		return idx
	}

	for _, c := range w.Candles {
		lo, hi := binOf(c.Low), binOf(c.High)
		share := c.Volume / float64(hi-lo+1)
		for k := lo; k <= hi; k++ {
			volumes[k] += share
			occurrences[k]++
			if c.Timestamp.After(lastTouch[k]) {
				lastTouch[k] = c.Timestamp
			}
		}
	}

	threshold := indicators.Mean(volumes) + indicators.StdDev(volumes)
	maxVol := 0.0
	for _, v := range volumes {
		maxVol = math.Max(maxVol, v)
	}

	var out []analysis.Level
	for k, v := range volumes {
		if v <= threshold || maxVol <= 0 {
			continue
		}
		significance := (v / w.TotalVolume) * math.Log(float64(occurrences[k])+1)
		if significance <= 0.5 {
			continue
		}
		price := w.Low + (float64(k)+0.5)*step
		typ := analysis.LevelResistance
		if price < w.LastClose {
			typ = analysis.LevelSupport
		}
		out = append(out, analysis.Level{
			Price:     price,
			Type:      typ,
			Touches:   occurrences[k],
			LastTouch: lastTouch[k],
			Strength:  indicators.Clamp01(v / maxVol * (1 + significance)),
			Sources:   []analysis.SourceKind{analysis.SourceVolumeNode},
		})
	}
	return out
}
