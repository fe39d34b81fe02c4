package transcribe

import "strings"

// defaultSegmentGap is the pause, in seconds, that starts a new segment.
const defaultSegmentGap = 0.8

// segmentsFromWords groups consecutive words into segments. A new segment
// starts after a pause longer than maxGap or after sentence-ending
// punctuation.
func segmentsFromWords(words []Word, maxGap float64) []Segment {
	if len(words) == 0 {
		return []Segment{}
	}

	var segments []Segment
	cur := Segment{
		Start: words[0].Start,
		End:   words[0].End,
		Text:  strings.TrimSpace(words[0].Word),
	}

	for i := 1; i < len(words); i++ {
		w := words[i]
		if w.Start-cur.End > maxGap || endsSentence(cur.Text) {
			cur.ID = len(segments)
			segments = append(segments, cur)
			cur = Segment{
				Start: w.Start,
				End:   w.End,
				Text:  strings.TrimSpace(w.Word),
			}
			continue
		}
		cur.End = w.End
		cur.Text += " " + strings.TrimSpace(w.Word)
	}
	cur.ID = len(segments)
	segments = append(segments, cur)
	return segments
}

func endsSentence(s string) bool {
	return strings.HasSuffix(s, ".") || strings.HasSuffix(s, "?") || strings.HasSuffix(s, "!") ||
		strings.HasSuffix(s, "。") || strings.HasSuffix(s, "？") || strings.HasSuffix(s, "！")
}
