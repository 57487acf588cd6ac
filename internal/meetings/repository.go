package meetings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/amelidiaz19/zoom-api/internal/domain"
	"github.com/amelidiaz19/zoom-api/internal/models"
)

const meetingColumns = `zoom_id, COALESCE(email, ''), COALESCE(topic, ''), COALESCE(nomenclatura, ''),
	COALESCE(duracion, 0), COALESCE(join_url, ''), COALESCE(start_url, ''), COALESCE(password, ''), tag_id`

// Repository handles tag and meeting persistence in the primary (MySQL) store.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a meeting repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// FindTagByName returns the tag with the given unique name.
func (r *Repository) FindTagByName(ctx context.Context, name string) (*models.Tag, error) {
	const q = `SELECT id, nombre FROM tags WHERE nombre = ? LIMIT 1`
	var t models.Tag
	err := r.db.QueryRowContext(ctx, q, name).Scan(&t.ID, &t.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("Tag no encontrado")
	}
	if err != nil {
		return nil, fmt.Errorf("find tag %q: %w", name, err)
	}
	return &t, nil
}

// FindTagByID returns the tag with the given id.
func (r *Repository) FindTagByID(ctx context.Context, id int64) (*models.Tag, error) {
	const q = `SELECT id, nombre FROM tags WHERE id = ?`
	var t models.Tag
	err := r.db.QueryRowContext(ctx, q, id).Scan(&t.ID, &t.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError(fmt.Sprintf("Tag con id %d no encontrado", id))
	}
	if err != nil {
		return nil, fmt.Errorf("find tag %d: %w", id, err)
	}
	return &t, nil
}

// Create inserts a meeting.
func (r *Repository) Create(ctx context.Context, m *models.Meeting) error {
	const q = `INSERT INTO zoom_meetings (zoom_id, email, topic, nomenclatura, duracion, join_url, start_url, password, tag_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, m.ZoomID, m.Email, m.Topic, m.Nomenclatura, m.Duration, m.JoinURL, m.StartURL, m.Password, m.TagID)
	if err != nil {
		return fmt.Errorf("insert meeting %s: %w", m.ZoomID, err)
	}
	return nil
}

// GetByZoomID returns the meeting with the given external id.
func (r *Repository) GetByZoomID(ctx context.Context, zoomID string) (*models.Meeting, error) {
	q := `SELECT ` + meetingColumns + ` FROM zoom_meetings WHERE zoom_id = ?`
	var m models.Meeting
	err := r.db.QueryRowContext(ctx, q, zoomID).Scan(&m.ZoomID, &m.Email, &m.Topic, &m.Nomenclatura,
		&m.Duration, &m.JoinURL, &m.StartURL, &m.Password, &m.TagID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError(fmt.Sprintf("Reunión con zoom_id %s no encontrada", zoomID))
	}
	if err != nil {
		return nil, fmt.Errorf("get meeting %s: %w", zoomID, err)
	}
	return &m, nil
}

// ListByTag returns the meetings of a tag given either its numeric id or its name.
func (r *Repository) ListByTag(ctx context.Context, tag string) ([]models.Meeting, error) {
	q := `SELECT ` + meetingColumns + ` FROM zoom_meetings WHERE tag_id = ? ORDER BY zoom_id`
	var arg interface{} = tag
	if id, err := strconv.ParseInt(tag, 10, 64); err == nil {
		arg = id
	} else {
		q = `SELECT ` + meetingColumns + ` FROM zoom_meetings
			WHERE tag_id = (SELECT id FROM tags WHERE nombre = ?) ORDER BY zoom_id`
	}
	rows, err := r.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, fmt.Errorf("list meetings for tag %s: %w", tag, err)
	}
	defer rows.Close()

	list := []models.Meeting{}
	for rows.Next() {
		var m models.Meeting
		if err := rows.Scan(&m.ZoomID, &m.Email, &m.Topic, &m.Nomenclatura,
			&m.Duration, &m.JoinURL, &m.StartURL, &m.Password, &m.TagID); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
