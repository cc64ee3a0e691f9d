package library

import (
	"bytes"
	"time"

	"github.com/dhowden/tag"
	"github.com/tcolgate/mp3"
)

// extractDuration walks the MP3 frames and sums their play time, returning
// whole seconds. A zero result means the duration is unknown; callers treat
// that as "no duration", never as an error.
func extractDuration(data []byte) int {
	var total time.Duration
	var skipped int

	dec := mp3.NewDecoder(bytes.NewReader(data))
	var frame mp3.Frame
	for {
		if err := dec.Decode(&frame, &skipped); err != nil {
			// io.EOF is the normal end; anything else means the tail was
			// unparseable and whatever accumulated so far is the best guess.
			break
		}
		total += frame.Duration()
	}

	return int(total / time.Second)
}

// extractTags reads ID3 metadata from the uploaded bytes. Missing or broken
// tags yield empty strings.
func extractTags(data []byte) (title, artist string) {
	meta, err := tag.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return "", ""
	}
	return meta.Title(), meta.Artist()
}
