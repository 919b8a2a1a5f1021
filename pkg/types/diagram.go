package types

import (
	"encoding/json"
	"math"
)

// Interval is a single persistence pair. Death is +Inf for essential classes.
type Interval struct {
	Birth float64 `json:"birth"`
	Death float64 `json:"death"`
}

// Persistence returns Death - Birth.
func (iv Interval) Persistence() float64 {
	return iv.Death - iv.Birth
}

// IsEssential reports whether the class never dies.
func (iv Interval) IsEssential() bool {
	return math.IsInf(iv.Death, 1)
}

// Diagram is a persistence diagram for one homological degree.
type Diagram []Interval

// Scale returns a copy of the diagram with both endpoints multiplied by f.
func (d Diagram) Scale(f float64) Diagram {
	out := make(Diagram, len(d))
	for i, iv := range d {
		out[i] = Interval{Birth: iv.Birth * f, Death: iv.Death * f}
	}
	return out
}

// Finite returns the intervals with a finite death.
func (d Diagram) Finite() Diagram {
	out := make(Diagram, 0, len(d))
	for _, iv := range d {
		if !iv.IsEssential() {
			out = append(out, iv)
		}
	}
	return out
}

type intervalJSON struct {
	Birth float64  `json:"birth"`
	Death *float64 `json:"death"`
}

// MarshalJSON encodes an essential class with a null death, since JSON has
// no infinity.
func (iv Interval) MarshalJSON() ([]byte, error) {
	out := intervalJSON{Birth: iv.Birth}
	if !iv.IsEssential() {
		death := iv.Death
		out.Death = &death
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a null or missing death as +Inf.
func (iv *Interval) UnmarshalJSON(data []byte) error {
	var in intervalJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	iv.Birth = in.Birth
	iv.Death = math.Inf(1)
	if in.Death != nil {
		iv.Death = *in.Death
	}
	return nil
}
