package library

import (
	"testing"
)

func TestExtractDurationGarbageIsUnknown(t *testing.T) {
	if d := extractDuration([]byte("definitely not an mp3")); d != 0 {
		t.Errorf("expected unknown duration for garbage input, got %d", d)
	}
	if d := extractDuration(nil); d != 0 {
		t.Errorf("expected unknown duration for empty input, got %d", d)
	}
}

func TestExtractTagsGarbageIsEmpty(t *testing.T) {
	title, artist := extractTags([]byte("no tags here"))
	if title != "" || artist != "" {
		t.Errorf("expected empty tags for garbage input, got %q / %q", title, artist)
	}
}
