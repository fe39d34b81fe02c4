package audio

// resample performs linear interpolation resampling. It is only used on the
// WAV fallback path; ffmpeg resamples on the primary path.
func resample(samples []float32, inputRate, outputRate int) []float32 {
	if inputRate == outputRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(outputRate) / float64(inputRate)
	outputLength := int(float64(len(samples)) * ratio)
	output := make([]float32, outputLength)

	for i := 0; i < outputLength; i++ {
		srcPos := float64(i) / ratio

		idx0 := int(srcPos)
		idx1 := idx0 + 1
		if idx1 >= len(samples) {
			idx1 = len(samples) - 1
		}

		fraction := float32(srcPos - float64(idx0))
		output[i] = samples[idx0]*(1-fraction) + samples[idx1]*fraction
	}

	return output
}

// pcm16ToFloat converts a signed 16-bit sample to [-1, 1).
func pcm16ToFloat(v int16) float32 {
	return float32(v) / 32768
}

// floatToPCM16 clips to [-1, 1] and converts to a signed 16-bit sample.
func floatToPCM16(f float32) int {
	if f > 1 {
		f = 1
	} else if f < -1 {
		f = -1
	}
	return int(f * 32767)
}
