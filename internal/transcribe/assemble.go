package transcribe

import (
	"context"
	"strings"

	"github.com/snarg/voice2txt/internal/checkpoint"
)

// Assemble concatenates the text of every logged window in order, with no
// separator. A partial log yields a partial transcript.
func Assemble(ctx context.Context, store checkpoint.Store) (string, error) {
	records, err := store.ReadAll(ctx)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, r := range records {
		b.WriteString(r.Text)
	}
	return b.String(), nil
}
