package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
)

var (
	soxOnce      sync.Once
	soxAvailable bool
)

// CheckSox checks if sox is available in PATH. The lookup runs once.
func CheckSox() bool {
	soxOnce.Do(func() {
		_, err := exec.LookPath("sox")
		soxAvailable = err == nil
	})
	return soxAvailable
}

// Preprocess applies audio cleanup with sox before decoding:
//   - Resample to sampleRate mono
//   - High-pass at 80 Hz to drop rumble and hum
//   - Normalize volume
//
// Returns the path to a temporary WAV file and a cleanup function.
// If sox is unavailable, returns the original path with a no-op cleanup.
func Preprocess(ctx context.Context, inputPath string, sampleRate int) (string, func(), error) {
	noop := func() {}

	if !CheckSox() {
		return inputPath, noop, nil
	}

	tmp, err := os.CreateTemp("", "voice2txt-preprocess-*.wav")
	if err != nil {
		return inputPath, noop, fmt.Errorf("create temp: %w", err)
	}
	outPath := tmp.Name()
	tmp.Close()

	cmd := exec.CommandContext(ctx, "sox",
		inputPath, outPath,
		"rate", strconv.Itoa(sampleRate),
		"channels", "1",
		"highpass", "80",
		"norm",
	)
	if err := cmd.Run(); err != nil {
		os.Remove(outPath)
		return inputPath, noop, fmt.Errorf("sox preprocess: %w", err)
	}

	cleanup := func() {
		os.Remove(outPath)
	}
	return outPath, cleanup, nil
}
