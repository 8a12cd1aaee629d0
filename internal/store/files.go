package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"mediastash/internal/models"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrDuplicateHash is returned when an insert collides with an existing
// file_hash. Callers distinguish it from generic storage failure.
var ErrDuplicateHash = errors.New("duplicate file hash")

const fileColumns = "id, file_hash, file_path, file_size, converted_path, converted_hash, converted_size, category, guild_usage, created_at"

// InsertFile inserts one file record. The record's ID is filled in on
// success. A file_hash collision returns ErrDuplicateHash.
func (s *Store) InsertFile(ctx context.Context, rec *models.FileRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	usageJSON, err := guildUsageToJSON(rec.GuildUsage)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO file_tracking (
			file_hash, file_path, file_size, converted_path,
			converted_hash, converted_size, category, guild_usage, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		normalizeHash(rec.FileHash),
		rec.FilePath,
		rec.FileSize,
		nullIfEmpty(rec.ConvertedPath),
		nullIfEmpty(rec.ConvertedHash),
		nullSize(rec.ConvertedSize),
		rec.Category,
		usageJSON,
		formatTime(rec.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateHash, rec.FileHash)
		}
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = id
	return nil
}

// InsertFiles inserts records as one transaction. Every record is
// validated before the first statement runs; any failure aborts the
// whole batch and leaves previously committed rows untouched.
func (s *Store) InsertFiles(ctx context.Context, recs []*models.FileRecord) (err error) {
	if len(recs) == 0 {
		return nil
	}
	for _, rec := range recs {
		if err := rec.Validate(); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, rec := range recs {
		usageJSON, jsonErr := guildUsageToJSON(rec.GuildUsage)
		if jsonErr != nil {
			err = jsonErr
			return err
		}
		res, execErr := tx.ExecContext(ctx, `
			INSERT INTO file_tracking (
				file_hash, file_path, file_size, converted_path,
				converted_hash, converted_size, category, guild_usage, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			normalizeHash(rec.FileHash),
			rec.FilePath,
			rec.FileSize,
			nullIfEmpty(rec.ConvertedPath),
			nullIfEmpty(rec.ConvertedHash),
			nullSize(rec.ConvertedSize),
			rec.Category,
			usageJSON,
			formatTime(rec.CreatedAt),
		)
		if execErr != nil {
			if isUniqueViolation(execErr) {
				err = fmt.Errorf("%w: %s", ErrDuplicateHash, rec.FileHash)
			} else {
				err = execErr
			}
			return err
		}
		if id, idErr := res.LastInsertId(); idErr == nil {
			rec.ID = id
		}
	}

	return tx.Commit()
}

// GetByHash returns the record whose file_hash matches, falling back to
// a converted_hash match. Absent records return (nil, nil).
func (s *Store) GetByHash(ctx context.Context, hash string) (*models.FileRecord, error) {
	hash = normalizeHash(hash)
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM file_tracking WHERE file_hash = ?`, hash)
	rec, err := scanFileRecord(row)
	if err != nil || rec != nil {
		return rec, err
	}
	row = s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM file_tracking WHERE converted_hash = ?`, hash)
	return scanFileRecord(row)
}

// GetByPath returns the record stored under path, or (nil, nil).
func (s *Store) GetByPath(ctx context.Context, path string) (*models.FileRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM file_tracking WHERE file_path = ?`, path)
	return scanFileRecord(row)
}

// SearchByFilename matches fragment against the file name component of
// stored paths. No match yields an empty slice.
func (s *Store) SearchByFilename(ctx context.Context, fragment string) ([]models.FileRecord, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return []models.FileRecord{}, nil
	}
	pattern := "%" + escapeLike(fragment) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+fileColumns+`
		FROM file_tracking
		WHERE file_path LIKE ? ESCAPE '\'
		ORDER BY file_path ASC
	`, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	candidates, err := collectFileRecords(rows)
	if err != nil {
		return nil, err
	}

	// The LIKE above matches anywhere in the path; keep only records
	// whose file name component contains the fragment.
	matched := []models.FileRecord{}
	for _, rec := range candidates {
		if strings.Contains(filepath.Base(rec.FilePath), fragment) {
			matched = append(matched, rec)
		}
	}
	return matched, nil
}

// CountByCategory returns the number of records in one category.
func (s *Store) CountByCategory(ctx context.Context, category string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM file_tracking WHERE category = ?", category).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ListLargerThan returns all records whose canonical size exceeds size.
func (s *Store) ListLargerThan(ctx context.Context, size int64) ([]models.FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+fileColumns+` FROM file_tracking WHERE file_size > ? ORDER BY file_size DESC`, size)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFileRecords(rows)
}

// ListUnsent returns records in category that the guild has never been
// sent, or whose send counter is still zero.
func (s *Store) ListUnsent(ctx context.Context, guildID, category string) ([]models.FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+fileColumns+`
		FROM file_tracking
		WHERE category = ?
		AND (
			guild_usage IS NULL
			OR json_extract(guild_usage, '$.' || ?) IS NULL
			OR json_extract(guild_usage, '$.' || ? || '.send_count') = 0
		)
	`, category, guildID, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFileRecords(rows)
}

// IncrementSendCount bumps the guild's send counter and stamps the last
// sent time as one atomic statement. An unknown hash returns (nil, nil)
// with no side effect.
func (s *Store) IncrementSendCount(ctx context.Context, hash, guildID string) (*models.FileRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE file_tracking SET
			guild_usage = json_set(
				guild_usage,
				'$.' || ? || '.send_count',
				COALESCE(json_extract(guild_usage, '$.' || ? || '.send_count'), 0) + 1,
				'$.' || ? || '.last_sent',
				?
			)
		WHERE file_hash = ?
		RETURNING `+fileColumns,
		guildID, guildID, guildID, formatTime(time.Now()), normalizeHash(hash))
	return scanFileRecord(row)
}

// UpdateConverted records the converted artifact triple for a file.
// An unknown hash returns (nil, nil).
func (s *Store) UpdateConverted(ctx context.Context, hash, convertedPath, convertedHash string, convertedSize int64) (*models.FileRecord, error) {
	if strings.TrimSpace(convertedPath) == "" {
		return nil, fmt.Errorf("converted path is required")
	}
	if !models.IsContentHash(convertedHash) {
		return nil, fmt.Errorf("invalid converted hash %q", convertedHash)
	}
	if convertedSize < 0 {
		return nil, fmt.Errorf("converted size out of range: %d", convertedSize)
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE file_tracking SET
			converted_path = ?,
			converted_hash = ?,
			converted_size = ?
		WHERE file_hash = ?
		RETURNING `+fileColumns,
		convertedPath, normalizeHash(convertedHash), convertedSize, normalizeHash(hash))
	return scanFileRecord(row)
}

// ClearConverted resets all three converted fields to absent.
func (s *Store) ClearConverted(ctx context.Context, hash string) (*models.FileRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE file_tracking SET
			converted_path = NULL,
			converted_hash = NULL,
			converted_size = NULL
		WHERE file_hash = ?
		RETURNING `+fileColumns,
		normalizeHash(hash))
	return scanFileRecord(row)
}

// DeleteByHash removes one record and reports whether a row went away.
func (s *Store) DeleteByHash(ctx context.Context, hash string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM file_tracking WHERE file_hash = ?", normalizeHash(hash))
	if err != nil {
		return false, err
	}
	return rowsWentAway(res)
}

// DeleteByPath removes one record by stored path.
func (s *Store) DeleteByPath(ctx context.Context, path string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM file_tracking WHERE file_path = ?", path)
	if err != nil {
		return false, err
	}
	return rowsWentAway(res)
}

// AllHashes returns the set of every tracked file_hash.
func (s *Store) AllHashes(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT file_hash FROM file_tracking")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hashes := map[string]struct{}{}
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, err
		}
		hashes[hash] = struct{}{}
	}
	return hashes, rows.Err()
}

// AllPaths returns the set of stored paths for one category.
func (s *Store) AllPaths(ctx context.Context, category string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT file_path FROM file_tracking WHERE category = ?", category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	paths := map[string]struct{}{}
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		paths[path] = struct{}{}
	}
	return paths, rows.Err()
}

func rowsWentAway(res sql.Result) (bool, error) {
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func scanFileRecord(scanner interface {
	Scan(dest ...any) error
}) (*models.FileRecord, error) {
	rec := models.FileRecord{}

	var convertedPath, convertedHash sql.NullString
	var convertedSize sql.NullInt64
	var usageJSON sql.NullString
	var createdAt string

	err := scanner.Scan(
		&rec.ID,
		&rec.FileHash,
		&rec.FilePath,
		&rec.FileSize,
		&convertedPath,
		&convertedHash,
		&convertedSize,
		&rec.Category,
		&usageJSON,
		&createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	rec.ConvertedPath = convertedPath.String
	rec.ConvertedHash = convertedHash.String
	if convertedSize.Valid {
		size := convertedSize.Int64
		rec.ConvertedSize = &size
	}

	parsedCreated, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	rec.CreatedAt = parsedCreated

	usage, err := guildUsageFromJSON(usageJSON.String)
	if err != nil {
		return nil, err
	}
	rec.GuildUsage = usage

	return &rec, nil
}

func collectFileRecords(rows *sql.Rows) ([]models.FileRecord, error) {
	records := []models.FileRecord{}
	for rows.Next() {
		rec, err := scanFileRecord(rows)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			records = append(records, *rec)
		}
	}
	return records, rows.Err()
}

func guildUsageToJSON(usage map[string]models.GuildUsage) (string, error) {
	if len(usage) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(usage)
	if err != nil {
		return "", fmt.Errorf("marshal guild_usage: %w", err)
	}
	return string(data), nil
}

func guildUsageFromJSON(raw string) (map[string]models.GuildUsage, error) {
	usage := map[string]models.GuildUsage{}
	if strings.TrimSpace(raw) == "" {
		return usage, nil
	}
	if err := json.Unmarshal([]byte(raw), &usage); err != nil {
		return nil, fmt.Errorf("parse guild_usage: %w", err)
	}
	return usage, nil
}

func normalizeHash(hash string) string {
	return strings.ToLower(strings.TrimSpace(hash))
}

func escapeLike(fragment string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(fragment)
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullSize(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}
