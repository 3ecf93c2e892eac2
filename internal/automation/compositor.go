package automation

import (
	"math"
	"sort"

	"storyreel/internal/project"
)

// Window is a half-closed-free absolute interval; both endpoints belong to
// the window so an override binds at its own boundaries.
type Window struct {
	StartMS int64
	EndMS   int64
}

// Input describes one channel composition request.
type Input struct {
	TotalMS    int64
	BaseVolume float64
	// Overrides are scene spans whose own background track is active; the
	// project channel is forced to zero there.
	Overrides []Window
	Entries   []project.AutomationEntry
}

// Compose builds the project background channel envelope. Every instant
// takes the minimum across the base volume, each automation entry's faded
// envelope, and any override window (zero). Entries reaching past the end of
// the timeline are clamped, not rejected.
func Compose(in Input) Envelope {
	if in.TotalMS <= 0 {
		return Envelope{}
	}

	candidates := [][]piece{basePieces(in)}
	for _, window := range in.Overrides {
		if p, ok := overridePieces(in, window); ok {
			candidates = append(candidates, p)
		}
	}
	for _, entry := range in.Entries {
		if p, ok := entryPieces(in, entry); ok {
			candidates = append(candidates, p)
		}
	}

	boundaries := collectBoundaries(in.TotalMS, candidates)
	segments := make([]Segment, 0, len(boundaries))
	for i := 0; i+1 < len(boundaries); i++ {
		from, to := boundaries[i], boundaries[i+1]
		if to <= from {
			continue
		}
		start, end := fitInterval(candidates, from, to)
		segments = append(segments, Segment{
			StartMS:    from,
			EndMS:      to,
			StartValue: start,
			EndValue:   end,
		})
	}
	return Envelope{Segments: mergeSegments(segments)}
}

// piece is one linear stretch of a candidate function. Candidate pieces are
// contiguous and cover [0, total].
type piece struct {
	t0, t1 float64
	v0, v1 float64
}

func (p piece) at(t float64) float64 {
	if p.t1 <= p.t0 {
		return p.v0
	}
	return p.v0 + (p.v1-p.v0)*(t-p.t0)/(p.t1-p.t0)
}

func (p piece) slope() float64 {
	if p.t1 <= p.t0 {
		return 0
	}
	return (p.v1 - p.v0) / (p.t1 - p.t0)
}

func basePieces(in Input) []piece {
	total := float64(in.TotalMS)
	return []piece{{t0: 0, t1: total, v0: in.BaseVolume, v1: in.BaseVolume}}
}

// overridePieces forces zero inside the window and stays at base outside so
// the candidate never binds beyond its span.
func overridePieces(in Input, w Window) ([]piece, bool) {
	start, end := clampWindow(w.StartMS, w.EndMS, in.TotalMS)
	if end <= start {
		return nil, false
	}
	total := float64(in.TotalMS)
	s, e := float64(start), float64(end)
	var pieces []piece
	if s > 0 {
		pieces = append(pieces, piece{t0: 0, t1: s, v0: in.BaseVolume, v1: in.BaseVolume})
	}
	pieces = append(pieces, piece{t0: s, t1: e, v0: 0, v1: 0})
	if e < total {
		pieces = append(pieces, piece{t0: e, t1: total, v0: in.BaseVolume, v1: in.BaseVolume})
	}
	return pieces, true
}

// entryPieces expands one automation entry into its four-phase envelope:
// base outside the window, linear ramp to the target over the fade-in, hold,
// linear ramp back over the fade-out. When the fades together exceed the
// window they are shrunk proportionally so neither overshoots.
func entryPieces(in Input, entry project.AutomationEntry) ([]piece, bool) {
	start, end := clampWindow(entry.StartMS, entry.EndMS, in.TotalMS)
	if end <= start {
		return nil, false
	}

	window := float64(end - start)
	fadeIn := float64(entry.FadeInMS)
	fadeOut := float64(entry.FadeOutMS)
	if fadeIn < 0 {
		fadeIn = 0
	}
	if fadeOut < 0 {
		fadeOut = 0
	}
	if sum := fadeIn + fadeOut; sum > window && sum > 0 {
		scale := window / sum
		fadeIn *= scale
		fadeOut *= scale
	}

	total := float64(in.TotalMS)
	s, e := float64(start), float64(end)
	base, target := in.BaseVolume, entry.TargetVolume

	var pieces []piece
	if s > 0 {
		pieces = append(pieces, piece{t0: 0, t1: s, v0: base, v1: base})
	}
	rampInEnd := s + fadeIn
	rampOutStart := e - fadeOut
	if fadeIn > 0 {
		pieces = append(pieces, piece{t0: s, t1: rampInEnd, v0: base, v1: target})
	}
	if rampOutStart > rampInEnd {
		pieces = append(pieces, piece{t0: rampInEnd, t1: rampOutStart, v0: target, v1: target})
	}
	if fadeOut > 0 {
		pieces = append(pieces, piece{t0: rampOutStart, t1: e, v0: target, v1: base})
	}
	if fadeIn == 0 && fadeOut == 0 {
		// Degenerate entry with no fades holds the target across the window.
		pieces = append(pieces, piece{t0: s, t1: e, v0: target, v1: target})
	}
	if e < total {
		pieces = append(pieces, piece{t0: e, t1: total, v0: base, v1: base})
	}
	return pieces, true
}

func clampWindow(start, end, total int64) (int64, int64) {
	if start < 0 {
		start = 0
	}
	if end > total {
		end = total
	}
	return start, end
}

// collectBoundaries gathers every instant where the minimum can change
// shape: piece endpoints plus crossings between pieces of different
// candidates. Between consecutive boundaries the minimum is a single linear
// function.
func collectBoundaries(totalMS int64, candidates [][]piece) []int64 {
	seen := map[int64]struct{}{0: {}, totalMS: {}}
	add := func(t float64) {
		ms := int64(math.Round(t))
		if ms <= 0 || ms >= totalMS {
			return
		}
		seen[ms] = struct{}{}
	}

	var all []piece
	for _, candidate := range candidates {
		for _, p := range candidate {
			add(p.t0)
			add(p.t1)
			all = append(all, p)
		}
	}

	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			if t, ok := crossing(all[i], all[j]); ok {
				add(t)
			}
		}
	}

	boundaries := make([]int64, 0, len(seen))
	for ms := range seen {
		boundaries = append(boundaries, ms)
	}
	sort.Slice(boundaries, func(i, j int) bool { return boundaries[i] < boundaries[j] })
	return boundaries
}

// crossing solves for the instant two linear pieces intersect inside the
// overlap of their spans.
func crossing(a, b piece) (float64, bool) {
	lo := math.Max(a.t0, b.t0)
	hi := math.Min(a.t1, b.t1)
	if hi <= lo {
		return 0, false
	}
	slopeDiff := a.slope() - b.slope()
	if math.Abs(slopeDiff) < 1e-12 {
		return 0, false
	}
	valueDiff := b.at(lo) - a.at(lo)
	t := lo + valueDiff/slopeDiff
	if t <= lo || t >= hi {
		return 0, false
	}
	return t, true
}

// fitInterval reconstructs the linear minimum over (from, to) from two
// interior samples. No candidate crosses another inside the interval, so the
// minimum is exactly linear there and the fit is exact.
func fitInterval(candidates [][]piece, from, to int64) (float64, float64) {
	f, t := float64(from), float64(to)
	m1 := f + (t-f)/3
	m2 := f + 2*(t-f)/3
	v1 := minAt(candidates, m1)
	v2 := minAt(candidates, m2)
	slope := (v2 - v1) / (m2 - m1)
	return snap(v1 - slope*(m1-f)), snap(v1 + slope*(t-m1))
}

func minAt(candidates [][]piece, t float64) float64 {
	min := math.Inf(1)
	for _, candidate := range candidates {
		for _, p := range candidate {
			if t < p.t0 || t > p.t1 {
				continue
			}
			if v := p.at(t); v < min {
				min = v
			}
			break
		}
	}
	return min
}

// snap collapses float fit noise so forced-zero spans and flat base spans
// compare exactly in downstream checks and in the hashed render spec.
func snap(v float64) float64 {
	rounded := math.Round(v*1e9) / 1e9
	if math.Abs(rounded) < 1e-9 {
		return 0
	}
	return rounded
}

func mergeSegments(segments []Segment) []Segment {
	if len(segments) < 2 {
		return segments
	}
	merged := segments[:1]
	for _, seg := range segments[1:] {
		last := &merged[len(merged)-1]
		if last.EndValue == seg.StartValue && sameSlope(*last, seg) {
			last.EndMS = seg.EndMS
			last.EndValue = seg.EndValue
			continue
		}
		merged = append(merged, seg)
	}
	return merged
}

func sameSlope(a, b Segment) bool {
	return math.Abs(a.slopeOf()-b.slopeOf()) < 1e-9
}

func (s Segment) slopeOf() float64 {
	if s.EndMS <= s.StartMS {
		return 0
	}
	return (s.EndValue - s.StartValue) / float64(s.EndMS-s.StartMS)
}
