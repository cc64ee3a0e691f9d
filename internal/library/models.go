package library

import (
	"time"
)

// AudioFile is the metadata record for one uploaded asset. The MP3 bytes
// themselves live in the object store under ObjectKey; only a reference is
// kept here.
type AudioFile struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	ObjectKey string    `json:"-"`
	Duration  *int      `json:"duration,omitempty"` // seconds, nil when extraction failed
	SizeBytes *int64    `json:"sizeBytes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Playlist is a named, user-owned ordered collection. Items are modelled
// separately and ordered by their position.
type Playlist struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"ownerId"`
	Name       string    `json:"name"`
	AudioCount int       `json:"audioCount"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// PlaylistItem links one audio file into one playlist. An audio file appears
// at most once per playlist, and no two items in a playlist share a position.
// Positions are a sparse ordering key: gaps are allowed and permanent.
type PlaylistItem struct {
	ID         string    `json:"id"`
	PlaylistID string    `json:"playlistId"`
	AudioID    string    `json:"audioId"`
	Position   int       `json:"position"`
	AddedAt    time.Time `json:"addedAt"`
}

// PlaylistAudio is a playlist item joined with its audio file, as returned by
// the item listing.
type PlaylistAudio struct {
	AudioID   string    `json:"audioId"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Duration  *int      `json:"duration,omitempty"`
	SizeBytes *int64    `json:"sizeBytes,omitempty"`
	Position  int       `json:"position"`
	AddedAt   time.Time `json:"addedAt"`
}
