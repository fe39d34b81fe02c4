// Package chunk splits a sample buffer into fixed-length transcription windows.
package chunk

import (
	"errors"
	"fmt"
	"time"
)

// DefaultWindow is the window length Whisper models operate on, in seconds.
const DefaultWindow = 30.0

// ErrInvalidPlan is returned when plan inputs are out of range.
var ErrInvalidPlan = errors.New("invalid chunk plan")

// Chunk is the half-open sample range [Start, End) of one window.
type Chunk struct {
	Index int
	Start int
	End   int
}

// Len returns the number of samples in the chunk.
func (c Chunk) Len() int { return c.End - c.Start }

// StartTime returns the chunk's offset in the source audio.
func (c Chunk) StartTime(sampleRate int) time.Duration {
	return samplesToDuration(c.Start, sampleRate)
}

// EndTime returns the end offset of the chunk in the source audio.
func (c Chunk) EndTime(sampleRate int) time.Duration {
	return samplesToDuration(c.End, sampleRate)
}

func (c Chunk) String() string {
	return fmt.Sprintf("chunk %d: [%d, %d)", c.Index, c.Start, c.End)
}

// WindowSamples returns the number of samples in a full window.
func WindowSamples(sampleRate int, windowSeconds float64) (int, error) {
	if sampleRate <= 0 {
		return 0, fmt.Errorf("%w: sample rate %d must be positive", ErrInvalidPlan, sampleRate)
	}
	if windowSeconds <= 0 {
		return 0, fmt.Errorf("%w: window %.3fs must be positive", ErrInvalidPlan, windowSeconds)
	}
	n := int(windowSeconds * float64(sampleRate))
	if n < 1 {
		return 0, fmt.Errorf("%w: window %.3fs is shorter than one sample at %d Hz", ErrInvalidPlan, windowSeconds, sampleRate)
	}
	return n, nil
}

// Count returns ceil(totalSamples / windowSamples). Zero samples means zero chunks.
func Count(totalSamples, sampleRate int, windowSeconds float64) (int, error) {
	if totalSamples < 0 {
		return 0, fmt.Errorf("%w: total samples %d is negative", ErrInvalidPlan, totalSamples)
	}
	w, err := WindowSamples(sampleRate, windowSeconds)
	if err != nil {
		return 0, err
	}
	return (totalSamples + w - 1) / w, nil
}

// Plan returns the chunks covering [0, totalSamples) in index order. Every
// chunk is exactly one window long except the last, which may be shorter.
func Plan(totalSamples, sampleRate int, windowSeconds float64) ([]Chunk, error) {
	n, err := Count(totalSamples, sampleRate, windowSeconds)
	if err != nil {
		return nil, err
	}
	w, _ := WindowSamples(sampleRate, windowSeconds)

	chunks := make([]Chunk, n)
	for i := range chunks {
		end := (i + 1) * w
		if end > totalSamples {
			end = totalSamples
		}
		chunks[i] = Chunk{Index: i, Start: i * w, End: end}
	}
	return chunks, nil
}

func samplesToDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(n) / float64(sampleRate) * float64(time.Second))
}
