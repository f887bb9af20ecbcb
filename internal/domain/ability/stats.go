// Package ability models the six-dimension cognitive profile and the
// smoothing rule that folds one session's measurement into it.
package ability

// Dimension names one axis of the ability vector.
type Dimension string

const (
	Memory   Dimension = "memory"
	Speed    Dimension = "speed"
	Visual   Dimension = "visual"
	Focus    Dimension = "focus"
	Planning Dimension = "planning"
	Emotion  Dimension = "emotion"
)

// Dimensions lists every axis in display order.
var Dimensions = []Dimension{Memory, Speed, Visual, Focus, Planning, Emotion}

// Score bounds.
const (
	MinScore = 0
	MaxScore = 100
)

// Stats is a six-dimension vector. A nil entry means "not measured".
type Stats struct {
	Memory   *int `json:"stat_memory"`
	Speed    *int `json:"stat_speed"`
	Visual   *int `json:"stat_visual"`
	Focus    *int `json:"stat_focus"`
	Planning *int `json:"stat_planning"`
	Emotion  *int `json:"stat_emotion"`
}

// Get returns the value for d.
func (s Stats) Get(d Dimension) *int {
	switch d {
	case Memory:
		return s.Memory
	case Speed:
		return s.Speed
	case Visual:
		return s.Visual
	case Focus:
		return s.Focus
	case Planning:
		return s.Planning
	case Emotion:
		return s.Emotion
	}
	return nil
}

// Set stores v for d.
func (s *Stats) Set(d Dimension, v *int) {
	switch d {
	case Memory:
		s.Memory = v
	case Speed:
		s.Speed = v
	case Visual:
		s.Visual = v
	case Focus:
		s.Focus = v
	case Planning:
		s.Planning = v
	case Emotion:
		s.Emotion = v
	}
}

// Measured reports how many dimensions are non-nil.
func (s Stats) Measured() int {
	n := 0
	for _, d := range Dimensions {
		if s.Get(d) != nil {
			n++
		}
	}
	return n
}

// Map returns the measured dimensions keyed by name.
func (s Stats) Map() map[Dimension]int {
	out := make(map[Dimension]int, len(Dimensions))
	for _, d := range Dimensions {
		if v := s.Get(d); v != nil {
			out[d] = *v
		}
	}
	return out
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}
