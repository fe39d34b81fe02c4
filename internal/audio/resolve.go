package audio

import (
	"os"
	"path/filepath"
)

// ResolveInput finds the audio file the user asked for.
// Priority: 1) path as given  2) inputDir/path  3) inputDir/basename(path)
func ResolveInput(inputDir, path string) string {
	if path == "" {
		return ""
	}

	// 1) relative to the working directory, or absolute
	if isFile(path) {
		return path
	}

	if inputDir == "" || filepath.IsAbs(path) {
		return ""
	}

	// 2) a bare name or sub-path inside the input directory
	if full := filepath.Join(inputDir, path); isFile(full) {
		return full
	}

	// 3) the file was copied into the input directory flat
	if full := filepath.Join(inputDir, filepath.Base(path)); isFile(full) {
		return full
	}

	return ""
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
