package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var ErrInvalidWAV = errors.New("not a valid WAV file")

// WriteWAV encodes mono samples as 16-bit PCM WAV. The encoder seeks back to
// patch the RIFF sizes, hence the io.WriteSeeker.
func WriteWAV(w io.WriteSeeker, samples []float32, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, 1, 1)

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		buf.Data[i] = floatToPCM16(s)
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}

// WriteTempWAV writes samples to a temporary WAV file in dir (os.TempDir()
// when empty). The cleanup function removes the file.
func WriteTempWAV(dir string, samples []float32, sampleRate int) (string, func(), error) {
	f, err := os.CreateTemp(dir, "voice2txt-window-*.wav")
	if err != nil {
		return "", nil, fmt.Errorf("create temp wav: %w", err)
	}
	path := f.Name()
	cleanup := func() { os.Remove(path) }

	if err := WriteWAV(f, samples, sampleRate); err != nil {
		f.Close()
		cleanup()
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp wav: %w", err)
	}
	return path, cleanup, nil
}

// DecodeWAV reads a PCM WAV file, mixes it down to mono and resamples it to
// sampleRate.
func DecodeWAV(r io.ReadSeeker, sampleRate int) (Buffer, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return Buffer{}, ErrInvalidWAV
	}

	pcm, err := d.FullPCMBuffer()
	if err != nil {
		return Buffer{}, fmt.Errorf("decode wav: %w", err)
	}

	channels := int(d.NumChans)
	if channels < 1 {
		channels = 1
	}
	depth := int(d.BitDepth)
	if depth < 8 || depth > 32 {
		return Buffer{}, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidWAV, depth)
	}
	scale := float32(int64(1) << (depth - 1))

	frames := len(pcm.Data) / channels
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			v := pcm.Data[i*channels+c]
			if depth == 8 {
				// 8-bit WAV is unsigned
				v -= 128
			}
			sum += float32(v) / scale
		}
		mono[i] = sum / float32(channels)
	}

	return Buffer{
		Samples:    resample(mono, int(d.SampleRate), sampleRate),
		SampleRate: sampleRate,
	}, nil
}
