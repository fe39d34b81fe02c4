package config

import (
	"errors"
	"fmt"
	"time"
)

var ErrUnknownTier = errors.New("unknown model tier")

// Tier describes one Whisper model size. SpeedFactor is compute seconds per
// second of audio, measured on a CPU-only laptop (Core i5-1135G7, 16 GB).
type Tier struct {
	Name        string
	Description string
	SpeedFactor float64
}

// DefaultTier is preselected when MODEL is unset.
const DefaultTier = "small"

// Tiers lists the supported tiers from fastest to most accurate.
var Tiers = []Tier{
	{Name: "tiny", Description: "lowest accuracy, fastest (32x large; ~20 s per 60 s of audio)", SpeedFactor: 20.0 / 60},
	{Name: "base", Description: "low accuracy, fast (16x large; ~40 s per 60 s of audio)", SpeedFactor: 40.0 / 60},
	{Name: "small", Description: "medium accuracy, medium speed (6x large; ~70 s per 60 s of audio)", SpeedFactor: 70.0 / 60},
	{Name: "medium", Description: "high accuracy, slow (2x large; ~300 s per 60 s of audio)", SpeedFactor: 300.0 / 60},
	{Name: "large", Description: "highest accuracy, slowest (needs more than 16 GB RAM on CPU)", SpeedFactor: 1000.0 / 60},
}

// LookupTier returns the tier with the given name.
func LookupTier(name string) (Tier, error) {
	for _, t := range Tiers {
		if t.Name == name {
			return t, nil
		}
	}
	return Tier{}, fmt.Errorf("%w: %q", ErrUnknownTier, name)
}

// Estimate returns the expected wall time to transcribe audio of the given length.
func (t Tier) Estimate(audio time.Duration) time.Duration {
	return time.Duration(audio.Seconds() * t.SpeedFactor * float64(time.Second)).Round(time.Second)
}
