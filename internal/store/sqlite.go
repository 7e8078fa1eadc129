package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned when an operation targets a row that does not exist.
var ErrNotFound = errors.New("not found")

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database but does not provision the schema: tables
// are created on demand the first time an operation trips over their absence.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	dsn := dataSourceName
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer; one pooled connection also keeps
	// :memory: databases on the same handle.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// EnsureSchema provisions every table and index. It is idempotent and safe
// under concurrent callers, so overlapping first-call retries converge.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	schema := `
    CREATE TABLE IF NOT EXISTS chains (
        id TEXT PRIMARY KEY, -- UUID
        name TEXT NOT NULL,
        description TEXT NOT NULL DEFAULT '',
        tags TEXT NOT NULL DEFAULT '[]', -- JSON array of strings
        preview_image TEXT,
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL
    );

    CREATE TABLE IF NOT EXISTS versions (
        id TEXT PRIMARY KEY, -- UUID
        chain_id TEXT NOT NULL,
        version INTEGER NOT NULL,
        base_prompt TEXT NOT NULL DEFAULT '',
        negative_prompt TEXT NOT NULL DEFAULT '',
        modules TEXT NOT NULL DEFAULT '[]', -- JSON array of modules
        params TEXT NOT NULL DEFAULT '{}',  -- JSON generation params
        created_at DATETIME NOT NULL,
        FOREIGN KEY (chain_id) REFERENCES chains (id) ON DELETE CASCADE
    );

    CREATE UNIQUE INDEX IF NOT EXISTS idx_versions_chain_version
        ON versions (chain_id, version);

    CREATE TABLE IF NOT EXISTS artists (
        id TEXT PRIMARY KEY, -- UUID
        name TEXT NOT NULL,
        image_ref TEXT NOT NULL DEFAULT '',
        prompt TEXT NOT NULL DEFAULT ''
    );

    CREATE TABLE IF NOT EXISTS inspirations (
        id TEXT PRIMARY KEY, -- UUID
        title TEXT NOT NULL,
        image_ref TEXT NOT NULL DEFAULT '',
        prompt TEXT NOT NULL DEFAULT ''
    );
    `
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// isMissingTable reports whether err is SQLite's missing-relation error class.
func isMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

// withSchemaRetry runs fn and, if it fails because a table is absent,
// provisions the schema and retries fn exactly once. A second missing-table
// failure, or any other error class, propagates to the caller.
func (s *SQLiteStore) withSchemaRetry(ctx context.Context, fn func() error) error {
	err := fn()
	if !isMissingTable(err) {
		return err
	}
	if provErr := s.EnsureSchema(ctx); provErr != nil {
		return fmt.Errorf("failed to provision schema: %w", provErr)
	}
	return fn()
}

// Chain methods

func (s *SQLiteStore) ListChains(ctx context.Context) ([]Chain, error) {
	// One join against the per-chain max-version row, not a query per chain.
	query := `
        SELECT c.id, c.name, c.description, c.tags, c.preview_image, c.created_at, c.updated_at,
               v.id, v.version, v.base_prompt, v.negative_prompt, v.modules, v.params, v.created_at
        FROM chains c
        LEFT JOIN versions v
          ON v.chain_id = c.id
         AND v.version = (SELECT MAX(version) FROM versions WHERE chain_id = c.id)
        ORDER BY c.updated_at DESC
    `
	chains := []Chain{}
	err := s.withSchemaRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		chains = chains[:0]
		for rows.Next() {
			var (
				chain    Chain
				tagsJSON string
				preview  sql.NullString

				vID, vBase, vNeg  sql.NullString
				vModules, vParams sql.NullString
				vNum              sql.NullInt64
				vCreated          sql.NullTime
			)
			if err := rows.Scan(
				&chain.ID, &chain.Name, &chain.Description, &tagsJSON, &preview,
				&chain.CreatedAt, &chain.UpdatedAt,
				&vID, &vNum, &vBase, &vNeg, &vModules, &vParams, &vCreated,
			); err != nil {
				return fmt.Errorf("failed to scan chain row: %w", err)
			}

			chain.Tags = []string{}
			decodeJSONColumn(tagsJSON, &chain.Tags, "tags", chain.ID)
			if preview.Valid {
				chain.PreviewImage = &preview.String
			}

			if vID.Valid {
				version := Version{
					ID:             vID.String,
					ChainID:        chain.ID,
					Version:        int(vNum.Int64),
					BasePrompt:     vBase.String,
					NegativePrompt: vNeg.String,
					Modules:        []Module{},
					CreatedAt:      vCreated.Time,
				}
				decodeJSONColumn(vModules.String, &version.Modules, "modules", vID.String)
				decodeJSONColumn(vParams.String, &version.Params, "params", vID.String)
				chain.LatestVersion = &version
			}
			chains = append(chains, chain)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list chains: %w", err)
	}
	return chains, nil
}

// CreateChain inserts the chain row and immediately seeds version 1 with the
// canonical defaults. Only the chain insert participates in the schema retry;
// by the time the seed version is written the schema exists.
func (s *SQLiteStore) CreateChain(ctx context.Context, name, description string) (string, error) {
	chainID := uuid.NewString()
	now := time.Now()

	err := s.withSchemaRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			"INSERT INTO chains (id, name, description, tags, created_at, updated_at) VALUES (?, ?, ?, '[]', ?, ?)",
			chainID, name, description, now, now)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert chain: %w", err)
	}

	modulesJSON, err := json.Marshal(DefaultModules())
	if err != nil {
		return "", fmt.Errorf("failed to marshal default modules: %w", err)
	}
	paramsJSON, err := json.Marshal(DefaultParams())
	if err != nil {
		return "", fmt.Errorf("failed to marshal default params: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO versions (id, chain_id, version, base_prompt, negative_prompt, modules, params, created_at) VALUES (?, ?, 1, '', '', ?, ?, ?)",
		uuid.NewString(), chainID, string(modulesJSON), string(paramsJSON), now)
	if err != nil {
		return "", fmt.Errorf("failed to insert seed version: %w", err)
	}
	return chainID, nil
}

// ChainMetaPatch carries the optional metadata fields of UpdateChainMeta.
// Nil means "leave unchanged".
type ChainMetaPatch struct {
	Name         *string `json:"name,omitempty"`
	Description  *string `json:"description,omitempty"`
	PreviewImage *string `json:"previewImage,omitempty"`
}

// UpdateChainMeta applies the fields present in patch and bumps updated_at.
// A patch with no fields succeeds without touching the row.
func (s *SQLiteStore) UpdateChainMeta(ctx context.Context, id string, patch ChainMetaPatch) error {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)
	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.PreviewImage != nil {
		sets = append(sets, "preview_image = ?")
		args = append(args, *patch.PreviewImage)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now(), id)
	query := "UPDATE chains SET " + strings.Join(sets, ", ") + " WHERE id = ?"

	var affected int64
	err := s.withSchemaRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update chain: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteChain removes the chain; its versions go with it via the cascading
// foreign key, not application code.
func (s *SQLiteStore) DeleteChain(ctx context.Context, id string) error {
	var affected int64
	err := s.withSchemaRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, "DELETE FROM chains WHERE id = ?", id)
		if err != nil {
			return err
		}
		affected, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete chain: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateVersion appends the next version for a chain and bumps the parent's
// updated_at. The version number is allocated inside the insert statement, so
// two concurrent writers cannot both observe the same max; the unique
// (chain_id, version) index backstops the invariant either way.
func (s *SQLiteStore) CreateVersion(ctx context.Context, chainID, basePrompt, negativePrompt string, modules []Module, params GenerationParams) (string, int, error) {
	if modules == nil {
		modules = []Module{}
	}
	modulesJSON, err := json.Marshal(modules)
	if err != nil {
		return "", 0, fmt.Errorf("failed to marshal modules: %w", err)
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", 0, fmt.Errorf("failed to marshal params: %w", err)
	}

	versionID := uuid.NewString()
	now := time.Now()
	insert := `
        INSERT INTO versions (id, chain_id, version, base_prompt, negative_prompt, modules, params, created_at)
        SELECT ?, ?, COALESCE(MAX(version), 0) + 1, ?, ?, ?, ?, ?
        FROM versions WHERE chain_id = ?
    `
	err = s.withSchemaRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, insert,
			versionID, chainID, basePrompt, negativePrompt,
			string(modulesJSON), string(paramsJSON), now, chainID)
		return err
	})
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return "", 0, ErrNotFound
		}
		return "", 0, fmt.Errorf("failed to insert version: %w", err)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM versions WHERE id = ?", versionID).Scan(&version); err != nil {
		return "", 0, fmt.Errorf("failed to read back version number: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "UPDATE chains SET updated_at = ? WHERE id = ?", time.Now(), chainID); err != nil {
		return "", 0, fmt.Errorf("failed to bump chain timestamp: %w", err)
	}
	return versionID, version, nil
}

// Artist methods

func (s *SQLiteStore) ListArtists(ctx context.Context) ([]Artist, error) {
	artists := []Artist{}
	err := s.withSchemaRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, "SELECT id, name, image_ref, prompt FROM artists ORDER BY name")
		if err != nil {
			return err
		}
		defer rows.Close()

		artists = artists[:0]
		for rows.Next() {
			var a Artist
			if err := rows.Scan(&a.ID, &a.Name, &a.ImageRef, &a.Prompt); err != nil {
				return fmt.Errorf("failed to scan artist row: %w", err)
			}
			artists = append(artists, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list artists: %w", err)
	}
	return artists, nil
}

func (s *SQLiteStore) UpsertArtist(ctx context.Context, artist Artist) (string, error) {
	if artist.ID == "" {
		artist.ID = uuid.NewString()
	}
	err := s.withSchemaRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
            INSERT INTO artists (id, name, image_ref, prompt) VALUES (?, ?, ?, ?)
            ON CONFLICT (id) DO UPDATE SET name = excluded.name, image_ref = excluded.image_ref, prompt = excluded.prompt`,
			artist.ID, artist.Name, artist.ImageRef, artist.Prompt)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to upsert artist: %w", err)
	}
	return artist.ID, nil
}

func (s *SQLiteStore) DeleteArtist(ctx context.Context, id string) error {
	var affected int64
	err := s.withSchemaRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, "DELETE FROM artists WHERE id = ?", id)
		if err != nil {
			return err
		}
		affected, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete artist: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Inspiration methods

func (s *SQLiteStore) ListInspirations(ctx context.Context) ([]Inspiration, error) {
	inspirations := []Inspiration{}
	err := s.withSchemaRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, "SELECT id, title, image_ref, prompt FROM inspirations ORDER BY title")
		if err != nil {
			return err
		}
		defer rows.Close()

		inspirations = inspirations[:0]
		for rows.Next() {
			var i Inspiration
			if err := rows.Scan(&i.ID, &i.Title, &i.ImageRef, &i.Prompt); err != nil {
				return fmt.Errorf("failed to scan inspiration row: %w", err)
			}
			inspirations = append(inspirations, i)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list inspirations: %w", err)
	}
	return inspirations, nil
}

func (s *SQLiteStore) UpsertInspiration(ctx context.Context, insp Inspiration) (string, error) {
	if insp.ID == "" {
		insp.ID = uuid.NewString()
	}
	err := s.withSchemaRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
            INSERT INTO inspirations (id, title, image_ref, prompt) VALUES (?, ?, ?, ?)
            ON CONFLICT (id) DO UPDATE SET title = excluded.title, image_ref = excluded.image_ref, prompt = excluded.prompt`,
			insp.ID, insp.Title, insp.ImageRef, insp.Prompt)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to upsert inspiration: %w", err)
	}
	return insp.ID, nil
}

func (s *SQLiteStore) DeleteInspiration(ctx context.Context, id string) error {
	var affected int64
	err := s.withSchemaRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx, "DELETE FROM inspirations WHERE id = ?", id)
		if err != nil {
			return err
		}
		affected, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete inspiration: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// decodeJSONColumn deserializes a JSON TEXT column into dst. A malformed blob
// is logged and left at dst's zero value rather than failing the whole read.
func decodeJSONColumn(raw string, dst any, column, rowID string) {
	if raw == "" {
		return
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		log.Warn().Err(err).Str("column", column).Str("row_id", rowID).
			Msg("malformed JSON column, returning zero value")
	}
}
