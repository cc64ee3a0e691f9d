package library

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

// handleCreatePlaylist creates a new playlist owned by the current user.
func (s *Server) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := userIDFrom(r)
	if ownerID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" || len(body.Name) > 255 {
		writeError(w, http.StatusBadRequest, "name must be between 1 and 255 characters")
		return
	}

	var pl Playlist
	err := s.db.QueryRow(ctx, `
		INSERT INTO playlists (user_id, name)
		VALUES ($1, $2)
		RETURNING id, user_id, name, created_at, updated_at
	`, ownerID, body.Name).Scan(
		&pl.ID,
		&pl.OwnerID,
		&pl.Name,
		&pl.CreatedAt,
		&pl.UpdatedAt,
	)
	if err != nil {
		log.Printf("audiolibrary-service: create playlist: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	event := map[string]any{
		"type": "playlist.created",
		"payload": map[string]any{
			"playlist": pl,
		},
	}
	s.publishEvent(ctx, event)

	writeJSON(w, http.StatusCreated, pl)
}

func (s *Server) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := userIDFrom(r)
	if ownerID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	rows, err := s.db.Query(ctx, `
		SELECT p.id, p.user_id, p.name, COUNT(i.id), p.created_at, p.updated_at
		FROM playlists p
		LEFT JOIN playlist_items i ON p.id = i.playlist_id
		WHERE p.user_id = $1
		GROUP BY p.id
		ORDER BY p.created_at DESC
	`, ownerID)
	if err != nil {
		log.Printf("audiolibrary-service: list playlists: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer rows.Close()

	playlists := []Playlist{}
	for rows.Next() {
		var pl Playlist
		if err := rows.Scan(
			&pl.ID,
			&pl.OwnerID,
			&pl.Name,
			&pl.AudioCount,
			&pl.CreatedAt,
			&pl.UpdatedAt,
		); err != nil {
			log.Printf("audiolibrary-service: list playlists scan: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		playlists = append(playlists, pl)
	}
	if err := rows.Err(); err != nil {
		log.Printf("audiolibrary-service: list playlists rows: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"playlists": playlists,
		"total":     len(playlists),
	})
}

// handleGetPlaylist returns the playlist with its items joined to their audio
// files, ordered ascending by position.
func (s *Server) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := userIDFrom(r)
	if ownerID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	playlistID := chi.URLParam(r, "id")
	if playlistID == "" {
		writeError(w, http.StatusBadRequest, "missing playlist id")
		return
	}

	var pl Playlist
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, name, created_at, updated_at
		FROM playlists
		WHERE id = $1 AND user_id = $2
	`, playlistID, ownerID).Scan(
		&pl.ID,
		&pl.OwnerID,
		&pl.Name,
		&pl.CreatedAt,
		&pl.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}
	if err != nil {
		log.Printf("audiolibrary-service: get playlist: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	items, err := s.listItems(ctx, playlistID)
	if err != nil {
		log.Printf("audiolibrary-service: get playlist items: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	pl.AudioCount = len(items)

	writeJSON(w, http.StatusOK, map[string]any{
		"playlist": pl,
		"items":    items,
	})
}

func (s *Server) handlePatchPlaylist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := userIDFrom(r)
	if ownerID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	playlistID := chi.URLParam(r, "id")
	if playlistID == "" {
		writeError(w, http.StatusBadRequest, "missing playlist id")
		return
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" || len(body.Name) > 255 {
		writeError(w, http.StatusBadRequest, "name must be between 1 and 255 characters")
		return
	}

	var pl Playlist
	err := s.db.QueryRow(ctx, `
		UPDATE playlists
		SET name = $3, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, name, created_at, updated_at
	`, playlistID, ownerID, body.Name).Scan(
		&pl.ID,
		&pl.OwnerID,
		&pl.Name,
		&pl.CreatedAt,
		&pl.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}
	if err != nil {
		log.Printf("audiolibrary-service: patch playlist: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	event := map[string]any{
		"type": "playlist.updated",
		"payload": map[string]any{
			"playlist": pl,
		},
	}
	s.publishEvent(ctx, event)

	writeJSON(w, http.StatusOK, pl)
}

// handleDeletePlaylist deletes the playlist row; its items go with it through
// the cascade. Referenced audio files stay untouched.
func (s *Server) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := userIDFrom(r)
	if ownerID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	playlistID := chi.URLParam(r, "id")
	if playlistID == "" {
		writeError(w, http.StatusBadRequest, "missing playlist id")
		return
	}

	tag, err := s.db.Exec(ctx, `
		DELETE FROM playlists
		WHERE id = $1 AND user_id = $2
	`, playlistID, ownerID)
	if err != nil {
		log.Printf("audiolibrary-service: delete playlist: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if tag.RowsAffected() == 0 {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}

	event := map[string]any{
		"type": "playlist.deleted",
		"payload": map[string]any{
			"playlistId": playlistID,
		},
	}
	s.publishEvent(ctx, event)

	w.WriteHeader(http.StatusNoContent)
}
