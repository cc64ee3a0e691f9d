package library

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

func AutoMigrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS pgcrypto`); err != nil {
		log.Printf("audiolibrary-service: migrate pgcrypto: %v", err)
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS users (
          id            uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          email         TEXT NOT NULL UNIQUE,
          password_hash TEXT NOT NULL,
          created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
          updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS audio_files (
          id         uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          user_id    uuid NOT NULL REFERENCES users(id) ON DELETE CASCADE,
          title      TEXT NOT NULL,
          author     TEXT NOT NULL,
          object_key TEXT NOT NULL,
          duration   INT CHECK (duration > 0),
          size_bytes BIGINT CHECK (size_bytes > 0),
          created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
          updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE INDEX IF NOT EXISTS idx_audio_files_user
      ON audio_files(user_id, created_at)
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS playlists (
          id         uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          user_id    uuid NOT NULL REFERENCES users(id) ON DELETE CASCADE,
          name       TEXT NOT NULL,
          created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
          updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS playlist_items (
          id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          playlist_id uuid NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
          audio_id    uuid NOT NULL REFERENCES audio_files(id) ON DELETE CASCADE,
          position    INT NOT NULL CHECK (position >= 0),
          added_at    TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		return err
	}

	// An audio file appears at most once per playlist.
	if _, err := pool.Exec(ctx, `
      CREATE UNIQUE INDEX IF NOT EXISTS idx_items_playlist_audio
      ON playlist_items(playlist_id, audio_id)
    `); err != nil {
		return err
	}

	// No two items in a playlist share a position.
	if _, err := pool.Exec(ctx, `
      CREATE UNIQUE INDEX IF NOT EXISTS idx_items_playlist_position
      ON playlist_items(playlist_id, position)
    `); err != nil {
		return err
	}

	return nil
}
