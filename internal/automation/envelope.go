package automation

// Segment is one linear stretch of an envelope. Consecutive segments share
// boundaries in time but not necessarily in value: a scene-level override
// drops the channel to zero as a step, not a ramp.
type Segment struct {
	StartMS    int64   `json:"start_ms"`
	EndMS      int64   `json:"end_ms"`
	StartValue float64 `json:"start_value"`
	EndValue   float64 `json:"end_value"`
}

// Envelope is a piecewise-linear volume function over [0, total duration].
type Envelope struct {
	Segments []Segment `json:"segments"`
}

// At evaluates the envelope at t milliseconds. A boundary instant belongs to
// the segment starting there, so a step override reads its forced value at
// its own start. Out-of-range times clamp to the nearest endpoint value.
func (e Envelope) At(ms int64) float64 {
	if len(e.Segments) == 0 {
		return 0
	}
	first := e.Segments[0]
	if ms <= first.StartMS {
		return first.StartValue
	}
	last := e.Segments[len(e.Segments)-1]
	if ms >= last.EndMS {
		return last.EndValue
	}
	for _, seg := range e.Segments {
		if ms >= seg.StartMS && ms < seg.EndMS {
			return seg.valueAt(ms)
		}
	}
	return last.EndValue
}

func (s Segment) valueAt(ms int64) float64 {
	if s.EndMS <= s.StartMS {
		return s.StartValue
	}
	frac := float64(ms-s.StartMS) / float64(s.EndMS-s.StartMS)
	return s.StartValue + (s.EndValue-s.StartValue)*frac
}

// Constant builds a flat envelope, used for channels without automation.
func Constant(totalMS int64, value float64) Envelope {
	if totalMS <= 0 {
		return Envelope{}
	}
	return Envelope{Segments: []Segment{{StartMS: 0, EndMS: totalMS, StartValue: value, EndValue: value}}}
}
