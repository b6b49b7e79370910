package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/texlify/texlify/domain/conversion"
	"github.com/texlify/texlify/ports"
)

// ConversionStore implements ports.ConversionStore using SQLite.
type ConversionStore struct {
	db *DB
}

// NewConversionStore creates a new SQLite conversion store.
func NewConversionStore(db *DB) *ConversionStore {
	return &ConversionStore{db: db}
}

// SaveRecord stores a completed text conversion.
func (s *ConversionStore) SaveRecord(ctx context.Context, rec conversion.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversions (id, user_id, session_key, input, output, anonymous, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.UserID, rec.SessionKey, rec.Input, rec.Output, rec.Anonymous, rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("%w: save record: %v", ports.ErrStorageUnavailable, err)
	}
	return nil
}

// History returns the most recent conversions for an identity key.
func (s *ConversionStore) History(ctx context.Context, identityKey string, limit int) ([]conversion.Record, error) {
	column, value := identityColumn(identityKey)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, session_key, input, output, anonymous, created_at
		FROM conversions
		WHERE `+column+` = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, value, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: history: %v", ports.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var out []conversion.Record
	for rows.Next() {
		var rec conversion.Record
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.SessionKey, &rec.Input, &rec.Output, &rec.Anonymous, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: history scan: %v", ports.ErrStorageUnavailable, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveFile stores a new file conversion record.
func (s *ConversionStore) SaveFile(ctx context.Context, rec conversion.FileRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO file_conversions
			(id, user_id, session_key, tool, input_text, output_text, status,
			 error_message, idempotency_key, latency_ms, cost_usd, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.UserID, rec.SessionKey, string(rec.Tool), rec.InputText, rec.OutputText,
		string(rec.Status), rec.ErrorMessage, rec.IdempotencyKey, rec.LatencyMs, rec.CostUSD,
		rec.CreatedAt.UTC(), rec.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("%w: save file: %v", ports.ErrStorageUnavailable, err)
	}
	return nil
}

// UpdateFile updates the lifecycle fields of a file conversion.
func (s *ConversionStore) UpdateFile(ctx context.Context, rec conversion.FileRecord) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE file_conversions
		SET output_text = ?, status = ?, error_message = ?, latency_ms = ?, cost_usd = ?, updated_at = ?
		WHERE id = ?
	`, rec.OutputText, string(rec.Status), rec.ErrorMessage, rec.LatencyMs, rec.CostUSD, rec.UpdatedAt.UTC(), rec.ID)
	if err != nil {
		return fmt.Errorf("%w: update file: %v", ports.ErrStorageUnavailable, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: update file: %v", ports.ErrStorageUnavailable, err)
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// FileHistory returns recent file conversions for an identity key,
// optionally filtered by tool.
func (s *ConversionStore) FileHistory(ctx context.Context, identityKey string, tool conversion.Tool, limit int) ([]conversion.FileRecord, error) {
	column, value := identityColumn(identityKey)
	query := `
		SELECT id, user_id, session_key, tool, input_text, output_text, status,
		       error_message, idempotency_key, latency_ms, cost_usd, created_at, updated_at
		FROM file_conversions
		WHERE ` + column + ` = ?`
	args := []any{value}
	if tool != "" {
		query += ` AND tool = ?`
		args = append(args, string(tool))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: file history: %v", ports.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var out []conversion.FileRecord
	for rows.Next() {
		var rec conversion.FileRecord
		var toolName, status string
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.SessionKey, &toolName, &rec.InputText,
			&rec.OutputText, &status, &rec.ErrorMessage, &rec.IdempotencyKey,
			&rec.LatencyMs, &rec.CostUSD, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: file history scan: %v", ports.ErrStorageUnavailable, err)
		}
		rec.Tool = conversion.Tool(toolName)
		rec.Status = conversion.Status(status)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ToggleFavorite flips the favorite mark and returns the new state.
func (s *ConversionStore) ToggleFavorite(ctx context.Context, userID, conversionID, favoriteID string, at time.Time) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%w: begin: %v", ports.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		DELETE FROM favorites WHERE user_id = ? AND conversion_id = ?
	`, userID, conversionID)
	if err != nil {
		return false, fmt.Errorf("%w: toggle favorite: %v", ports.ErrStorageUnavailable, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: toggle favorite: %v", ports.ErrStorageUnavailable, err)
	}

	favorited := false
	if n == 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO favorites (id, user_id, conversion_id, created_at)
			VALUES (?, ?, ?, ?)
		`, favoriteID, userID, conversionID, at.UTC())
		if err != nil {
			return false, fmt.Errorf("%w: toggle favorite: %v", ports.ErrStorageUnavailable, err)
		}
		favorited = true
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%w: commit: %v", ports.ErrStorageUnavailable, err)
	}
	return favorited, nil
}

// Favorites returns the user's favorited conversions, most recently
// favorited first.
func (s *ConversionStore) Favorites(ctx context.Context, userID string, limit int) ([]conversion.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.user_id, c.session_key, c.input, c.output, c.anonymous, c.created_at
		FROM favorites f
		JOIN conversions c ON c.id = f.conversion_id
		WHERE f.user_id = ?
		ORDER BY f.created_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: favorites: %v", ports.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var out []conversion.Record
	for rows.Next() {
		var rec conversion.Record
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.SessionKey, &rec.Input, &rec.Output, &rec.Anonymous, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: favorites scan: %v", ports.ErrStorageUnavailable, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// IsFavorite reports whether the user favorited the conversion.
func (s *ConversionStore) IsFavorite(ctx context.Context, userID, conversionID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM favorites WHERE user_id = ? AND conversion_id = ?
	`, userID, conversionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: is favorite: %v", ports.ErrStorageUnavailable, err)
	}
	return true, nil
}

// ClearBefore removes conversion rows older than the given time.
func (s *ConversionStore) ClearBefore(ctx context.Context, before time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"conversions", "file_conversions"} {
		result, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE created_at < ?`, before.UTC())
		if err != nil {
			return total, fmt.Errorf("%w: clear %s: %v", ports.ErrStorageUnavailable, table, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("%w: clear %s: %v", ports.ErrStorageUnavailable, table, err)
		}
		total += n
	}
	return total, nil
}

// identityColumn maps an identity key to the column it is stored under.
func identityColumn(identityKey string) (column, value string) {
	if v, ok := strings.CutPrefix(identityKey, "user:"); ok {
		return "user_id", v
	}
	if v, ok := strings.CutPrefix(identityKey, "anon:"); ok {
		return "session_key", v
	}
	return "session_key", identityKey
}

var _ ports.ConversionStore = (*ConversionStore)(nil)
