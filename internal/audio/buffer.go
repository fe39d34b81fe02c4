// Package audio loads audio files into mono float32 sample buffers and
// writes windows back out as WAV for HTTP transcription backends.
package audio

import (
	"fmt"
	"time"
)

// WhisperSampleRate is the rate Whisper models expect.
const WhisperSampleRate = 16000

// Buffer is decoded mono audio. Samples are in [-1, 1].
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Len returns the number of samples.
func (b Buffer) Len() int { return len(b.Samples) }

// Duration returns the playback length.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(b.Samples)) / float64(b.SampleRate) * float64(time.Second))
}

// Window returns samples [start, end) without copying. The capacity is
// capped so appends by a consumer cannot overwrite the next window.
func (b Buffer) Window(start, end int) ([]float32, error) {
	if start < 0 || end < start || end > len(b.Samples) {
		return nil, fmt.Errorf("window [%d, %d) out of range for %d samples", start, end, len(b.Samples))
	}
	return b.Samples[start:end:end], nil
}
