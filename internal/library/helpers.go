package library

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
)

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// getPlaylistOwner resolves the owner of a playlist. Callers compare against
// the requesting user and report a mismatch as not-found, so the existence of
// other users' playlists is never leaked.
func (s *Server) getPlaylistOwner(ctx context.Context, playlistID string) (string, error) {
	var ownerID string
	err := s.db.QueryRow(ctx, `
		SELECT user_id
		FROM playlists
		WHERE id = $1
	`, playlistID).Scan(&ownerID)
	return ownerID, err
}

// getAudioFile fetches an audio file owned by userID. Ownership is part of
// the filter, so foreign files behave exactly like missing ones.
func (s *Server) getAudioFile(ctx context.Context, audioID, userID string) (AudioFile, error) {
	var a AudioFile
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, title, author, object_key, duration, size_bytes, created_at, updated_at
		FROM audio_files
		WHERE id = $1 AND user_id = $2
	`, audioID, userID).Scan(
		&a.ID,
		&a.OwnerID,
		&a.Title,
		&a.Author,
		&a.ObjectKey,
		&a.Duration,
		&a.SizeBytes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}

func (s *Server) publishEvent(ctx context.Context, event map[string]any) {
	if s.rdb == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("audiolibrary-service: marshal event: %v", err)
		return
	}
	if err := s.rdb.Publish(ctx, "broadcast", string(data)).Err(); err != nil {
		log.Printf("audiolibrary-service: publish event: %v", err)
	}
}
