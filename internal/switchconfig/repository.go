package switchconfig

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/klickklack/internal/infrastructure/database"
)

// Repository persists the last applied mapping.
type Repository interface {
	// Load returns the saved mapping, or ErrNoSnapshot if nothing was saved.
	Load(ctx context.Context) (Mapping, error)

	// Save replaces the saved mapping with m.
	Save(ctx context.Context, m Mapping) error
}

// SQLiteRepository implements Repository on the switch_configs and
// switch_config_meta tables.
type SQLiteRepository struct {
	db  *database.DB
	now func() time.Time
}

// NewSQLiteRepository creates a repository on an open, migrated database.
//
// Parameters:
//   - db: Database with the switch_configs migration applied
//
// Returns:
//   - *SQLiteRepository: Repository instance ready for use
func NewSQLiteRepository(db *database.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Load reads the saved mapping. A saved empty mapping loads as an empty,
// non-nil Mapping.
//
// Returns:
//   - Mapping: The saved mapping
//   - error: ErrNoSnapshot when nothing was ever saved, or the database error
func (r *SQLiteRepository) Load(ctx context.Context) (Mapping, error) {
	var savedAt string
	err := r.db.QueryRowContext(ctx, "SELECT saved_at FROM switch_config_meta WHERE id = 1").Scan(&savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("querying switch config marker: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT topic, on_command, off_command, switch_time_ms FROM switch_configs ORDER BY topic",
	)
	if err != nil {
		return nil, fmt.Errorf("querying switch configs: %w", err)
	}
	defer rows.Close()

	var configs []SwitchConfig
	for rows.Next() {
		var sc SwitchConfig
		if err := rows.Scan(&sc.Topic, &sc.OnCommand, &sc.OffCommand, &sc.SwitchTimeMs); err != nil {
			return nil, fmt.Errorf("scanning switch config: %w", err)
		}
		configs = append(configs, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating switch configs: %w", err)
	}

	return FromConfigs(configs), nil
}

// Save replaces every saved definition with the entries of m that resolve,
// inside one transaction. Entries that do not resolve are not stored; the
// caller is responsible for reporting them.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - m: Mapping to persist
//
// Returns:
//   - error: The database error, if any
func (r *SQLiteRepository) Save(ctx context.Context, m Mapping) error {
	// Invalid entries are skipped, not fatal.
	configs, _ := m.Resolve()

	updatedAt := r.now().UTC().Format(time.RFC3339)

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM switch_configs"); err != nil {
			return fmt.Errorf("clearing switch configs: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO switch_configs (topic, on_command, off_command, switch_time_ms, updated_at) VALUES (?, ?, ?, ?, ?)",
		)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for _, sc := range configs {
			if _, err := stmt.ExecContext(ctx, sc.Topic, sc.OnCommand, sc.OffCommand, sc.SwitchTimeMs, updatedAt); err != nil {
				return fmt.Errorf("inserting switch config %s: %w", sc.Topic, err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO switch_config_meta (id, saved_at) VALUES (1, ?) ON CONFLICT(id) DO UPDATE SET saved_at = excluded.saved_at",
			updatedAt,
		); err != nil {
			return fmt.Errorf("marking switch config snapshot: %w", err)
		}
		return nil
	})
}
