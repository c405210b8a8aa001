package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/zombar/trendwire/models"
)

// Archive wraps the database connection and provides item archival
type Archive struct {
	conn *sql.DB
}

// Config contains database configuration
type Config struct {
	DSN string // PostgreSQL connection string
}

// New creates a new archive connection
func New(config Config) (*Archive, error) {
	conn, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	a := &Archive{conn: conn}

	if err := Migrate(conn); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return a, nil
}

// Close closes the database connection
func (a *Archive) Close() error {
	return a.conn.Close()
}

// DB returns the underlying database connection for metrics collection
func (a *Archive) DB() *sql.DB {
	return a.conn
}

// SaveItems upserts a batch of normalized items atomically. Items are
// keyed by id, so re-archiving a window only refreshes existing rows.
func (a *Archive) SaveItems(ctx context.Context, items []models.NormalizedItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := a.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO feed_items (id, link, source, section, published_at, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT(id) DO UPDATE SET
			link = excluded.link,
			source = excluded.source,
			section = excluded.section,
			published_at = excluded.published_at,
			data = excluded.data,
			updated_at = NOW()
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		jsonData, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to marshal item %s: %w", item.ID, err)
		}

		var published sql.NullTime
		if !item.PublishedAt.IsZero() {
			published = sql.NullTime{Time: item.PublishedAt, Valid: true}
		}

		if _, err := stmt.ExecContext(ctx,
			item.ID,
			item.Link,
			item.SourceName,
			item.SectionCategory,
			published,
			string(jsonData),
		); err != nil {
			return fmt.Errorf("failed to save item %s: %w", item.ID, err)
		}
	}

	return tx.Commit()
}

// Recent returns the most recently published archived items
func (a *Archive) Recent(ctx context.Context, limit int) ([]models.NormalizedItem, error) {
	rows, err := a.conn.QueryContext(ctx, `
		SELECT data FROM feed_items
		ORDER BY published_at DESC NULLS LAST
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []models.NormalizedItem
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		var item models.NormalizedItem
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Count returns the number of archived items
func (a *Archive) Count(ctx context.Context) (int, error) {
	var count int
	err := a.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM feed_items").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return count, nil
}
