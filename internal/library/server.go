package library

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

// DB is the subset of pgxpool.Pool the handlers use. Tests substitute a mock.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type Server struct {
	db    DB
	store ObjectStore
	rdb   *redis.Client

	jwtSecret      []byte
	accessTTL      time.Duration
	signedURLTTL   time.Duration
	maxUploadBytes int64
}

type Config struct {
	JWTSecret      []byte
	AccessTTL      time.Duration
	SignedURLTTL   time.Duration
	MaxUploadBytes int64
}

func NewServer(db DB, store ObjectStore, rdb *redis.Client, cfg Config) *Server {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = time.Hour
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 << 20
	}
	return &Server{
		db:             db,
		store:          store,
		rdb:            rdb,
		jwtSecret:      cfg.JWTSecret,
		accessTTL:      cfg.AccessTTL,
		signedURLTTL:   cfg.SignedURLTTL,
		maxUploadBytes: cfg.MaxUploadBytes,
	}
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/health", s.handleHealth)

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/audio", s.handleUploadAudio)
		r.Get("/audio", s.handleListLibrary)
		r.Get("/audio/{id}/stream", s.handleStreamAudio)
		r.Delete("/audio/{id}", s.handleDeleteAudio)

		r.Post("/playlists", s.handleCreatePlaylist)
		r.Get("/playlists", s.handleListPlaylists)
		r.Get("/playlists/{id}", s.handleGetPlaylist)
		r.Patch("/playlists/{id}", s.handlePatchPlaylist)
		r.Delete("/playlists/{id}", s.handleDeletePlaylist)

		r.Post("/playlists/{id}/items", s.handleAddItem)
		r.Delete("/playlists/{id}/items/{audioId}", s.handleRemoveItem)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "audiolibrary-service",
	})
}
