package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestBufferWindow(t *testing.T) {
	b := Buffer{Samples: []float32{0, 1, 2, 3, 4, 5}, SampleRate: 2}

	w, err := b.Window(2, 4)
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if len(w) != 2 || w[0] != 2 || w[1] != 3 {
		t.Errorf("Window(2, 4) = %v, want [2 3]", w)
	}
	if cap(w) != 2 {
		t.Errorf("cap(Window(2, 4)) = %d, want 2", cap(w))
	}

	// appending to a window must not clobber the next one
	_ = append(w, 99)
	if b.Samples[4] != 4 {
		t.Errorf("append through window modified buffer: %v", b.Samples)
	}

	for _, r := range [][2]int{{-1, 2}, {3, 2}, {0, 7}} {
		if _, err := b.Window(r[0], r[1]); err == nil {
			t.Errorf("Window(%d, %d): expected error", r[0], r[1])
		}
	}

	if b.Duration() != 3*time.Second {
		t.Errorf("Duration = %v, want 3s", b.Duration())
	}
}

func TestWAVRoundTrip(t *testing.T) {
	samples := make([]float32, 1600)
	for i := range samples {
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}

	path, cleanup, err := WriteTempWAV(t.TempDir(), samples, 16000)
	if err != nil {
		t.Fatalf("WriteTempWAV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	buf, err := DecodeWAV(f, 16000)
	f.Close()
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}

	if buf.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", buf.SampleRate)
	}
	if len(buf.Samples) != len(samples) {
		t.Fatalf("decoded %d samples, want %d", len(buf.Samples), len(samples))
	}
	for i := range samples {
		if d := math.Abs(float64(buf.Samples[i] - samples[i])); d > 1e-3 {
			t.Fatalf("sample %d: got %v, want %v", i, buf.Samples[i], samples[i])
		}
	}

	cleanup()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("cleanup left %s behind", path)
	}
}

func TestDecodeWAV_Resamples(t *testing.T) {
	samples := make([]float32, 8000) // 1s at 8 kHz
	path, _, err := WriteTempWAV(t.TempDir(), samples, 8000)
	if err != nil {
		t.Fatalf("WriteTempWAV: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	buf, err := DecodeWAV(f, 16000)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if len(buf.Samples) != 16000 {
		t.Errorf("resampled to %d samples, want 16000", len(buf.Samples))
	}
}

func TestDecodeWAV_Invalid(t *testing.T) {
	_, err := DecodeWAV(bytes.NewReader([]byte("definitely not riff data")), 16000)
	if err == nil {
		t.Fatal("expected error for non-WAV input")
	}
}

func TestReadPCM16(t *testing.T) {
	var raw bytes.Buffer
	for _, v := range []int16{0, 16384, -32768, 32767} {
		binary.Write(&raw, binary.LittleEndian, v)
	}
	raw.WriteByte(0x7f) // dangling half sample

	got, err := readPCM16(&raw)
	if err != nil {
		t.Fatalf("readPCM16: %v", err)
	}
	want := []float32{0, 0.5, -1, 32767.0 / 32768}
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestResample(t *testing.T) {
	in := []float32{0, 1, 0, -1}
	if out := resample(in, 16000, 16000); len(out) != 4 {
		t.Errorf("same-rate resample changed length to %d", len(out))
	}
	if out := resample(in, 8000, 16000); len(out) != 8 {
		t.Errorf("upsample length = %d, want 8", len(out))
	}
	if out := resample(in, 16000, 8000); len(out) != 2 {
		t.Errorf("downsample length = %d, want 2", len(out))
	}
}

func TestFloatToPCM16_Clips(t *testing.T) {
	if got := floatToPCM16(2); got != 32767 {
		t.Errorf("floatToPCM16(2) = %d, want 32767", got)
	}
	if got := floatToPCM16(-2); got != -32767 {
		t.Errorf("floatToPCM16(-2) = %d, want -32767", got)
	}
}

func TestResolveInput(t *testing.T) {
	inputDir := t.TempDir()
	inDir := filepath.Join(inputDir, "meeting.m4a")
	if err := os.WriteFile(inDir, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	elsewhere := filepath.Join(t.TempDir(), "call.mp3")
	if err := os.WriteFile(elsewhere, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want string
	}{
		{"absolute_existing", elsewhere, elsewhere},
		{"bare_name_in_input_dir", "meeting.m4a", inDir},
		{"stale_dir_same_basename", filepath.Join("old", "meeting.m4a"), inDir},
		{"missing", "nope.wav", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveInput(inputDir, tt.path); got != tt.want {
				t.Errorf("ResolveInput(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
