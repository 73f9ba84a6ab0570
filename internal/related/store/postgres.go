// Package store implements the content store on PostgreSQL. Relevance
// matching uses the built-in full-text search over title and body.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/related-content/internal/related/content"
	apperrors "github.com/Adithya-Monish-Kumar-K/related-content/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/related-content/pkg/postgres"
	"github.com/lib/pq"
)

// Schema creates the tables the store reads. Term order within a taxonomy
// is given by position; the first term is the primary one.
const Schema = `
CREATE TABLE IF NOT EXISTS items (
    id           BIGSERIAL PRIMARY KEY,
    title        TEXT NOT NULL DEFAULT '',
    body         TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL DEFAULT 'publish',
    published_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS item_terms (
    item_id  BIGINT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
    taxonomy TEXT NOT NULL,
    term_id  BIGINT NOT NULL,
    position INT NOT NULL DEFAULT 0,
    PRIMARY KEY (item_id, taxonomy, term_id)
);

CREATE INDEX IF NOT EXISTS item_terms_lookup ON item_terms (taxonomy, term_id);
`

const statusPublished = "publish"

type Postgres struct {
	db       *postgres.Client
	tsConfig string
	logger   *slog.Logger
}

// NewPostgres returns a store using the given text search configuration
// (for example "english").
func NewPostgres(db *postgres.Client, tsConfig string) *Postgres {
	if tsConfig == "" {
		tsConfig = "english"
	}
	return &Postgres{
		db:       db,
		tsConfig: tsConfig,
		logger:   slog.Default().With("component", "content-store"),
	}
}

// Migrate creates missing tables and indexes.
func (s *Postgres) Migrate(ctx context.Context) error {
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, Schema); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS items_fts ON items USING GIN (to_tsvector(%s, title || ' ' || body))`,
			pq.QuoteLiteral(s.tsConfig),
		))
		return err
	})
	if err != nil {
		return fmt.Errorf("migrating content schema: %w", err)
	}
	s.logger.Info("content schema ready", "ts_config", s.tsConfig)
	return nil
}

func (s *Postgres) GetItem(ctx context.Context, id int64) (*content.Item, error) {
	var it content.Item
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT id, title, body, status, published_at FROM items WHERE id = $1`, id,
	).Scan(&it.ID, &it.Title, &it.Body, &it.Status, &it.PublishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying item %d: %w", id, err)
	}
	return &it, nil
}

func (s *Postgres) TaxonomyTerms(ctx context.Context, itemID int64, taxonomy content.Taxonomy) ([]int64, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT term_id FROM item_terms WHERE item_id = $1 AND taxonomy = $2 ORDER BY position, term_id`,
		itemID, string(taxonomy),
	)
	if err != nil {
		return nil, fmt.Errorf("querying %s terms of item %d: %w", taxonomy, itemID, err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// Search returns published item IDs matching q.Text in category
// q.CategoryID, most relevant first, newest first among equals.
func (s *Postgres) Search(ctx context.Context, q content.SearchQuery) ([]int64, error) {
	rows, err := s.db.DB.QueryContext(ctx, `
		SELECT i.id
		FROM items i
		JOIN item_terms t ON t.item_id = i.id AND t.taxonomy = $2 AND t.term_id = $3
		WHERE i.status = $4
		  AND to_tsvector($1::regconfig, i.title || ' ' || i.body) @@ plainto_tsquery($1::regconfig, $5)
		ORDER BY ts_rank(to_tsvector($1::regconfig, i.title || ' ' || i.body), plainto_tsquery($1::regconfig, $5)) DESC,
		         i.published_at DESC, i.id DESC
		LIMIT $6`,
		s.tsConfig, string(content.TaxonomyCategory), q.CategoryID, statusPublished, q.Text, q.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching %q in category %d: %w", q.Text, q.CategoryID, err)
	}
	defer rows.Close()
	ids, err := scanIDs(rows)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("search executed", "text", q.Text, "category_id", q.CategoryID, "limit", q.Limit, "results", len(ids))
	return ids, nil
}

// ItemsByIDs returns the items in the order of ids.
func (s *Postgres) ItemsByIDs(ctx context.Context, ids []int64) ([]content.Item, error) {
	if len(ids) == 0 {
		return []content.Item{}, nil
	}
	rows, err := s.db.DB.QueryContext(ctx, `
		SELECT id, title, body, status, published_at
		FROM items
		WHERE id = ANY($1)
		ORDER BY array_position($1, id)`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("querying %d items: %w", len(ids), err)
	}
	defer rows.Close()

	items := make([]content.Item, 0, len(ids))
	for rows.Next() {
		var it content.Item
		if err := rows.Scan(&it.ID, &it.Title, &it.Body, &it.Status, &it.PublishedAt); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}
	return items, nil
}

// SaveItem inserts or updates an item and replaces its terms. A zero
// item.ID inserts a new row; the stored ID is returned.
func (s *Postgres) SaveItem(ctx context.Context, item content.Item, categories, tags []int64) (int64, error) {
	id := item.ID
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		status := item.Status
		if status == "" {
			status = statusPublished
		}
		if id == 0 {
			if err := tx.QueryRowContext(ctx,
				`INSERT INTO items (title, body, status) VALUES ($1, $2, $3) RETURNING id`,
				item.Title, item.Body, status,
			).Scan(&id); err != nil {
				return fmt.Errorf("inserting item: %w", err)
			}
		} else {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO items (id, title, body, status) VALUES ($1, $2, $3, $4)
				ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, body = EXCLUDED.body, status = EXCLUDED.status`,
				id, item.Title, item.Body, status,
			); err != nil {
				return fmt.Errorf("upserting item %d: %w", id, err)
			}
			if _, err := tx.ExecContext(ctx,
				`SELECT setval(pg_get_serial_sequence('items', 'id'), GREATEST((SELECT MAX(id) FROM items), 1))`,
			); err != nil {
				return fmt.Errorf("advancing item id sequence: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM item_terms WHERE item_id = $1`, id); err != nil {
			return fmt.Errorf("clearing terms of item %d: %w", id, err)
		}
		for taxonomy, terms := range map[content.Taxonomy][]int64{
			content.TaxonomyCategory: categories,
			content.TaxonomyTag:      tags,
		} {
			for pos, term := range terms {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO item_terms (item_id, taxonomy, term_id, position) VALUES ($1, $2, $3, $4)`,
					id, string(taxonomy), term, pos,
				); err != nil {
					return fmt.Errorf("adding %s term %d to item %d: %w", taxonomy, term, id, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ids: %w", err)
	}
	return ids, nil
}
