package quality

import "fmt"

// Preset is one of the three user-facing compression strengths.
type Preset int

const (
	High     Preset = 90 // high quality
	Balanced Preset = 80
	Small    Preset = 60 // highest compression
)

// DefaultPreset is used when nothing else is configured.
const DefaultPreset = Balanced

var presetNames = map[Preset]string{
	High:     "high",
	Balanced: "balanced",
	Small:    "small",
}

// Presets returns all presets from highest to lowest quality.
func Presets() []Preset {
	return []Preset{High, Balanced, Small}
}

// Valid reports whether p is one of the closed set {90, 80, 60}.
func (p Preset) Valid() bool {
	_, ok := presetNames[p]
	return ok
}

func (p Preset) String() string {
	if name, ok := presetNames[p]; ok {
		return fmt.Sprintf("%s (%d)", name, int(p))
	}
	return fmt.Sprintf("invalid (%d)", int(p))
}

// ParsePreset validates a numeric preset.
func ParsePreset(v int) (Preset, error) {
	p := Preset(v)
	if !p.Valid() {
		return 0, fmt.Errorf("quality preset %d: must be one of 90, 80, 60", v)
	}
	return p, nil
}
