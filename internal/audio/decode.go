package audio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

var ErrNoDecoder = errors.New("ffmpeg not found and input is not a WAV file")

var (
	ffmpegOnce  sync.Once
	ffmpegFound bool
)

// CheckFFmpeg reports whether ffmpeg is in PATH. The lookup runs once.
func CheckFFmpeg() bool {
	ffmpegOnce.Do(func() {
		_, err := exec.LookPath("ffmpeg")
		ffmpegFound = err == nil
	})
	return ffmpegFound
}

// Load decodes any ffmpeg-readable file to mono float32 at sampleRate, the
// same conversion Whisper's reference loader performs. Without ffmpeg only
// WAV input is accepted.
func Load(ctx context.Context, path string, sampleRate int) (Buffer, error) {
	if CheckFFmpeg() {
		return loadFFmpeg(ctx, path, sampleRate)
	}
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		f, err := os.Open(path)
		if err != nil {
			return Buffer{}, fmt.Errorf("open audio file: %w", err)
		}
		defer f.Close()
		return DecodeWAV(f, sampleRate)
	}
	return Buffer{}, fmt.Errorf("%w: %s", ErrNoDecoder, path)
}

func loadFFmpeg(ctx context.Context, path string, sampleRate int) (Buffer, error) {
	// ffmpeg -nostdin -i input -f s16le -ac 1 -acodec pcm_s16le -ar 16000 -
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-nostdin",
		"-threads", "0",
		"-i", path,
		"-f", "s16le",
		"-ac", "1",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Buffer{}, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return Buffer{}, fmt.Errorf("start ffmpeg: %w", err)
	}

	samples, readErr := readPCM16(stdout)
	waitErr := cmd.Wait()
	if waitErr != nil {
		return Buffer{}, fmt.Errorf("ffmpeg: %w: %s", waitErr, lastLine(stderr.String()))
	}
	if readErr != nil {
		return Buffer{}, fmt.Errorf("read ffmpeg output: %w", readErr)
	}

	return Buffer{Samples: samples, SampleRate: sampleRate}, nil
}

// readPCM16 converts a little-endian signed 16-bit stream to float32 without
// holding the raw bytes in memory.
func readPCM16(r io.Reader) ([]float32, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	var samples []float32
	var pair [2]byte
	for {
		_, err := io.ReadFull(br, pair[:])
		if err == io.EOF {
			return samples, nil
		}
		if err == io.ErrUnexpectedEOF {
			// trailing odd byte, drop it
			return samples, nil
		}
		if err != nil {
			return nil, err
		}
		samples = append(samples, pcm16ToFloat(int16(binary.LittleEndian.Uint16(pair[:]))))
	}
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
