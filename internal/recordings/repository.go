package recordings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/amelidiaz19/zoom-api/internal/domain"
	"github.com/amelidiaz19/zoom-api/internal/models"
)

const mysqlErrDuplicateEntry = 1062

// Repository handles recording persistence in the primary (MySQL) store.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a recording repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CountByKeyPrefix counts recordings whose stored URL contains "/<keyPrefix>_".
// The underscore anchors the base name so G3 does not count G31 files.
func (r *Repository) CountByKeyPrefix(ctx context.Context, keyPrefix string) (int, error) {
	const q = `SELECT COUNT(*) FROM zoom_recordings WHERE download_url LIKE ?`
	var n int
	if err := r.db.QueryRowContext(ctx, q, "%/"+escapeLike(keyPrefix)+`\_%`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count recordings %s: %w", keyPrefix, err)
	}
	return n, nil
}

// URLExists reports whether a recording already points at url.
func (r *Repository) URLExists(ctx context.Context, url string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM zoom_recordings WHERE download_url = ?)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, q, url).Scan(&exists); err != nil {
		return false, fmt.Errorf("check recording url: %w", err)
	}
	return exists, nil
}

// Create inserts a recording. A second row for the same URL is a Conflict.
func (r *Repository) Create(ctx context.Context, rec *models.Recording) error {
	if rec.Status == "" {
		rec.Status = models.RecordingStatusPending
	}
	const q = `INSERT INTO zoom_recordings (meeting_id, download_url, estado) VALUES (?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, rec.MeetingID, rec.DownloadURL, rec.Status)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlErrDuplicateEntry {
			return domain.NewConflictError("recording already registered for "+rec.DownloadURL, err)
		}
		return fmt.Errorf("insert recording: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

// ListByMeeting returns the recordings of a meeting in insertion order.
func (r *Repository) ListByMeeting(ctx context.Context, meetingID string) ([]models.Recording, error) {
	const q = `SELECT id, meeting_id, download_url, estado FROM zoom_recordings WHERE meeting_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, meetingID)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	list := []models.Recording{}
	for rows.Next() {
		var rec models.Recording
		if err := rows.Scan(&rec.ID, &rec.MeetingID, &rec.DownloadURL, &rec.Status); err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
