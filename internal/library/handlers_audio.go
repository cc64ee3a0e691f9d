package library

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var allowedContentTypes = map[string]bool{
	"audio/mpeg": true,
	"audio/mp3":  true,
}

// handleUploadAudio runs the upload sequence: validate, store remotely,
// persist metadata. A persist failure after a successful store triggers a
// compensating remote delete so no orphaned object survives the request.
func (s *Server) handleUploadAudio(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFrom(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "upload too large or malformed multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != ".mp3" {
		writeError(w, http.StatusBadRequest, "invalid file type, only mp3 files are allowed")
		return
	}
	if ct := header.Header.Get("Content-Type"); ct != "" && !allowedContentTypes[ct] {
		writeError(w, http.StatusBadRequest, "invalid content type, expected audio/mpeg")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "uploaded file is empty")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	author := strings.TrimSpace(r.FormValue("author"))

	// ID3 tags fill in whatever the form left blank.
	tagTitle, tagArtist := extractTags(data)
	if title == "" {
		title = strings.TrimSpace(tagTitle)
	}
	if author == "" {
		author = strings.TrimSpace(tagArtist)
	}
	if title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if author == "" {
		writeError(w, http.StatusBadRequest, "author is required")
		return
	}
	if len(title) > 255 || len(author) > 255 {
		writeError(w, http.StatusBadRequest, "title and author must be at most 255 characters")
		return
	}

	// Unknown duration is not an error; the column stays NULL.
	var duration *int
	if d := extractDuration(data); d > 0 {
		duration = &d
	}
	size := int64(len(data))

	// The key never derives from the user-supplied filename.
	key := fmt.Sprintf("users/%s/audio/%s.mp3", userID, uuid.NewString())

	if err := s.store.Put(ctx, key, bytes.NewReader(data), size, "audio/mpeg"); err != nil {
		log.Printf("audiolibrary-service: upload store put: %v", err)
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}

	var a AudioFile
	err = s.db.QueryRow(ctx, `
		INSERT INTO audio_files (user_id, title, author, object_key, duration, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, user_id, title, author, object_key, duration, size_bytes, created_at, updated_at
	`, userID, title, author, key, duration, size).Scan(
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
	if err != nil {
		log.Printf("audiolibrary-service: upload persist: %v", err)
		s.compensateStore(key)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	event := map[string]any{
		"type": "audio.uploaded",
		"payload": map[string]any{
			"audio": a,
		},
	}
	s.publishEvent(ctx, event)

	writeJSON(w, http.StatusCreated, a)
}

// compensateStore deletes a just-stored object after a failed persist. It
// runs on a detached context so a client disconnect cannot skip the cleanup,
// and its own failure is logged, never surfaced to the caller.
func (s *Server) compensateStore(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.store.Remove(ctx, key); err != nil {
		log.Printf("audiolibrary-service: compensating delete of %s failed: %v", key, err)
	}
}

func (s *Server) handleListLibrary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFrom(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, title, author, object_key, duration, size_bytes, created_at, updated_at
		FROM audio_files
		WHERE user_id = $1
		ORDER BY author ASC, title ASC
	`, userID)
	if err != nil {
		log.Printf("audiolibrary-service: list library: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer rows.Close()

	audios := []AudioFile{}
	for rows.Next() {
		var a AudioFile
		if err := rows.Scan(
			&a.ID,
			&a.OwnerID,
			&a.Title,
			&a.Author,
			&a.ObjectKey,
			&a.Duration,
			&a.SizeBytes,
			&a.CreatedAt,
			&a.UpdatedAt,
		); err != nil {
			log.Printf("audiolibrary-service: list library scan: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		audios = append(audios, a)
	}
	if err := rows.Err(); err != nil {
		log.Printf("audiolibrary-service: list library rows: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"audios": audios,
		"total":  len(audios),
	})
}

func (s *Server) handleStreamAudio(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFrom(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	audioID := chi.URLParam(r, "id")
	if audioID == "" {
		writeError(w, http.StatusBadRequest, "missing audio id")
		return
	}

	a, err := s.getAudioFile(ctx, audioID, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "audio file not found")
		return
	}
	if err != nil {
		log.Printf("audiolibrary-service: stream fetch audio: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	url, err := s.store.SignedURL(ctx, a.ObjectKey, s.signedURLTTL)
	if err != nil {
		log.Printf("audiolibrary-service: stream sign url: %v", err)
		writeError(w, http.StatusInternalServerError, "storage error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"url":       url,
		"expiresIn": int(s.signedURLTTL.Seconds()),
	})
}

// handleDeleteAudio removes the remote object first, then the metadata row.
// A crash between the two leaves a detectable dangling reference rather than
// an unreferenced billable orphan.
func (s *Server) handleDeleteAudio(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFrom(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	audioID := chi.URLParam(r, "id")
	if audioID == "" {
		writeError(w, http.StatusBadRequest, "missing audio id")
		return
	}

	a, err := s.getAudioFile(ctx, audioID, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "audio file not found")
		return
	}
	if err != nil {
		log.Printf("audiolibrary-service: delete fetch audio: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := s.store.Remove(ctx, a.ObjectKey); err != nil {
		log.Printf("audiolibrary-service: delete remote object %s: %v", a.ObjectKey, err)
	}

	// Cascades out of every playlist that referenced it.
	if _, err := s.db.Exec(ctx, `
		DELETE FROM audio_files
		WHERE id = $1 AND user_id = $2
	`, audioID, userID); err != nil {
		log.Printf("audiolibrary-service: delete audio row: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	event := map[string]any{
		"type": "audio.deleted",
		"payload": map[string]any{
			"audioId": audioID,
		},
	}
	s.publishEvent(ctx, event)

	w.WriteHeader(http.StatusNoContent)
}
