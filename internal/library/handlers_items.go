package library

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

// handleAddItem adds an audio file to a playlist. Without an explicit
// position the item is appended at max(position)+1, computed inside a
// transaction that locks the playlist row so two concurrent appends cannot
// read the same max. An explicit position is used verbatim; other items are
// never shifted.
func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFrom(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	playlistID := chi.URLParam(r, "id")
	if playlistID == "" {
		writeError(w, http.StatusBadRequest, "missing playlist id")
		return
	}

	var body struct {
		AudioID  string `json:"audioId"`
		Position *int   `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.AudioID == "" {
		writeError(w, http.StatusBadRequest, "audioId is required")
		return
	}
	if body.Position != nil && *body.Position < 0 {
		writeError(w, http.StatusBadRequest, "position must be >= 0")
		return
	}

	ownerID, err := s.getPlaylistOwner(ctx, playlistID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}
	if err != nil {
		log.Printf("audiolibrary-service: add item fetch playlist: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	// Foreign playlists look exactly like missing ones.
	if ownerID != userID {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}

	// The audio file must belong to the same user; cross-tenant references
	// are reported as not-found too.
	if _, err := s.getAudioFile(ctx, body.AudioID, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "audio file not found")
			return
		}
		log.Printf("audiolibrary-service: add item fetch audio: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	var item PlaylistItem
	if body.Position != nil {
		item, err = s.insertItemAt(ctx, playlistID, body.AudioID, *body.Position)
	} else {
		item, err = s.appendItem(ctx, playlistID, body.AudioID)
	}
	if err != nil {
		switch {
		case isUniqueViolation(err, "idx_items_playlist_audio"):
			writeError(w, http.StatusConflict, "audio already in playlist")
		case isUniqueViolation(err, "idx_items_playlist_position"):
			writeError(w, http.StatusConflict, "position already taken")
		case isCheckViolation(err):
			writeError(w, http.StatusBadRequest, "position must be >= 0")
		case isForeignKeyViolation(err):
			writeError(w, http.StatusNotFound, "audio file not found")
		default:
			log.Printf("audiolibrary-service: add item insert: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
		}
		return
	}

	event := map[string]any{
		"type": "playlistItem.added",
		"payload": map[string]any{
			"playlistId": playlistID,
			"item":       item,
		},
	}
	s.publishEvent(ctx, event)

	writeJSON(w, http.StatusCreated, item)
}

// insertItemAt places the item at an explicit position. Placement semantics
// are the caller's responsibility; the unique index rejects a taken position.
func (s *Server) insertItemAt(ctx context.Context, playlistID, audioID string, position int) (PlaylistItem, error) {
	var item PlaylistItem
	err := s.db.QueryRow(ctx, `
		INSERT INTO playlist_items (playlist_id, audio_id, position)
		VALUES ($1, $2, $3)
		RETURNING id, playlist_id, audio_id, position, added_at
	`, playlistID, audioID, position).Scan(
		&item.ID,
		&item.PlaylistID,
		&item.AudioID,
		&item.Position,
		&item.AddedAt,
	)
	return item, err
}

// appendItem computes max(position)+1 and inserts in one transaction. The
// FOR UPDATE on the playlist row serializes concurrent appends to the same
// playlist; without it two appends could read the same max and collide.
func (s *Server) appendItem(ctx context.Context, playlistID, audioID string) (PlaylistItem, error) {
	var item PlaylistItem

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return item, err
	}
	defer tx.Rollback(ctx)

	var locked string
	if err := tx.QueryRow(ctx, `
		SELECT id
		FROM playlists
		WHERE id = $1
		FOR UPDATE
	`, playlistID).Scan(&locked); err != nil {
		return item, err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO playlist_items (playlist_id, audio_id, position)
		VALUES (
			$1, $2,
			COALESCE(
				(SELECT MAX(position)+1 FROM playlist_items WHERE playlist_id = $1),
				0
			)
		)
		RETURNING id, playlist_id, audio_id, position, added_at
	`, playlistID, audioID).Scan(
		&item.ID,
		&item.PlaylistID,
		&item.AudioID,
		&item.Position,
		&item.AddedAt,
	)
	if err != nil {
		return item, err
	}

	return item, tx.Commit(ctx)
}

// handleRemoveItem deletes the single matching row. Remaining items keep
// their positions; consumers sort by position, not by contiguity.
func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFrom(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	playlistID := chi.URLParam(r, "id")
	audioID := chi.URLParam(r, "audioId")
	if playlistID == "" || audioID == "" {
		writeError(w, http.StatusBadRequest, "missing playlist or audio id")
		return
	}

	ownerID, err := s.getPlaylistOwner(ctx, playlistID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}
	if err != nil {
		log.Printf("audiolibrary-service: remove item fetch playlist: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if ownerID != userID {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}

	tag, err := s.db.Exec(ctx, `
		DELETE FROM playlist_items
		WHERE playlist_id = $1 AND audio_id = $2
	`, playlistID, audioID)
	if err != nil {
		log.Printf("audiolibrary-service: remove item delete: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if tag.RowsAffected() == 0 {
		writeError(w, http.StatusNotFound, "audio not in playlist")
		return
	}

	event := map[string]any{
		"type": "playlistItem.removed",
		"payload": map[string]any{
			"playlistId": playlistID,
			"audioId":    audioID,
		},
	}
	s.publishEvent(ctx, event)

	w.WriteHeader(http.StatusNoContent)
}

// listItems returns the playlist's items joined with their audio files,
// ascending by position. Equal positions cannot happen under the unique
// index; added_at breaks the tie anyway should the index ever be dropped.
func (s *Server) listItems(ctx context.Context, playlistID string) ([]PlaylistAudio, error) {
	rows, err := s.db.Query(ctx, `
		SELECT a.id, a.title, a.author, a.duration, a.size_bytes, i.position, i.added_at
		FROM playlist_items i
		JOIN audio_files a ON i.audio_id = a.id
		WHERE i.playlist_id = $1
		ORDER BY i.position ASC, i.added_at ASC
	`, playlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []PlaylistAudio{}
	for rows.Next() {
		var it PlaylistAudio
		if err := rows.Scan(
			&it.AudioID,
			&it.Title,
			&it.Author,
			&it.Duration,
			&it.SizeBytes,
			&it.Position,
			&it.AddedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
