package salas

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/amelidiaz19/zoom-api/internal/domain"
	"github.com/amelidiaz19/zoom-api/internal/models"
)

const attachmentColumns = `"IdProductoTemarioAdjunto", "ProductoTemario_id", "Sala_id",
	COALESCE("Tipo1", ''), COALESCE("Tipo2", ''), COALESCE("Tipo3", ''), COALESCE("Tipo4", ''),
	COALESCE("NombreArchivo", ''), COALESCE("NombreFinal", ''), COALESCE("Orden", 0), "Estado_id", "FechaModificacion"`

const liveVideoFilter = `"Tipo2" = 'Video' AND "Tipo4" = 'ModulosVivo' AND "Sala_id" IS NOT NULL`

// DB is the subset of *pgxpool.Pool the repository uses.
type DB interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository handles rooms, courses and attachments in the course (PostgreSQL) store.
type Repository struct {
	db  DB
	now func() time.Time
}

// NewRepository creates a room repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

func scanAttachment(row pgx.Row) (models.Attachment, error) {
	var a models.Attachment
	err := row.Scan(&a.ID, &a.CourseModuleID, &a.RoomID,
		&a.Tipo1, &a.Tipo2, &a.Tipo3, &a.Tipo4,
		&a.FileName, &a.DisplayName, &a.Order, &a.StatusID, &a.LastModifiedAt)
	return a, err
}

func (r *Repository) queryAttachments(ctx context.Context, q string, args ...interface{}) ([]models.Attachment, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []models.Attachment{}
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// ListVideosByRoom returns the live-module videos of a room by position,
// keeping only the first row for each stored filename.
func (r *Repository) ListVideosByRoom(ctx context.Context, roomID int64) ([]models.Attachment, error) {
	q := `SELECT ` + attachmentColumns + ` FROM "ProductoTemarioAdjunto"
		WHERE ` + liveVideoFilter + ` AND "Sala_id" = $1
		ORDER BY "Orden" ASC, "IdProductoTemarioAdjunto" ASC`
	list, err := r.queryAttachments(ctx, q, roomID)
	if err != nil {
		return nil, fmt.Errorf("list videos of room %d: %w", roomID, err)
	}
	return dedupeByFileName(list), nil
}

// FindVideosModifiedBetween returns live-module videos with a room whose
// last-modified timestamp is within [from, to], ordered by room then position.
func (r *Repository) FindVideosModifiedBetween(ctx context.Context, from, to time.Time) ([]models.Attachment, error) {
	q := `SELECT ` + attachmentColumns + ` FROM "ProductoTemarioAdjunto"
		WHERE ` + liveVideoFilter + ` AND "FechaModificacion" BETWEEN $1 AND $2
		ORDER BY "Sala_id" ASC, "Orden" ASC, "IdProductoTemarioAdjunto" ASC`
	list, err := r.queryAttachments(ctx, q, from, to)
	if err != nil {
		return nil, fmt.Errorf("find videos modified between %s and %s: %w", from.Format(time.RFC3339), to.Format(time.RFC3339), err)
	}
	return list, nil
}

// FindCourseByCode returns the course with the given business code.
func (r *Repository) FindCourseByCode(ctx context.Context, code string) (*models.Course, error) {
	const q = `SELECT "IdCurso", "CodigoCurso", COALESCE("Curso", '') FROM "Curso" WHERE "CodigoCurso" = $1 LIMIT 1`
	var c models.Course
	err := r.db.QueryRow(ctx, q, code).Scan(&c.ID, &c.Code, &c.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewNotFoundError(fmt.Sprintf("Curso %s no encontrado", code))
	}
	if err != nil {
		return nil, fmt.Errorf("find course %s: %w", code, err)
	}
	return &c, nil
}

// FindModule returns the module of a course with the given numeration.
func (r *Repository) FindModule(ctx context.Context, courseID int64, numeration string) (*models.CourseModule, error) {
	const q = `SELECT "IdProductoTemario", "Curso_id", "Numeracion"::text FROM "ProductoTemario"
		WHERE "Curso_id" = $1 AND "Numeracion"::text = $2 LIMIT 1`
	var m models.CourseModule
	err := r.db.QueryRow(ctx, q, courseID, numeration).Scan(&m.ID, &m.CourseID, &m.Numeration)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewNotFoundError("ProductoTemario no encontrado")
	}
	if err != nil {
		return nil, fmt.Errorf("find module %d/%s: %w", courseID, numeration, err)
	}
	return &m, nil
}

// FindRoomByName returns the first room whose name contains fragment.
func (r *Repository) FindRoomByName(ctx context.Context, fragment string) (*models.Room, error) {
	const q = `SELECT "IdSala", COALESCE("Sala", '') FROM "Sala" WHERE "Sala" LIKE $1 ORDER BY "IdSala" LIMIT 1`
	var room models.Room
	err := r.db.QueryRow(ctx, q, "%"+fragment+"%").Scan(&room.ID, &room.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewNotFoundError(fmt.Sprintf("Sala %q no encontrada", fragment))
	}
	if err != nil {
		return nil, fmt.Errorf("find room %q: %w", fragment, err)
	}
	return &room, nil
}

const insertAttachment = `INSERT INTO "ProductoTemarioAdjunto"
	("ProductoTemario_id", "Sala_id", "Tipo1", "Tipo2", "Tipo3", "Tipo4", "NombreArchivo", "NombreFinal", "Orden", "Estado_id", "FechaModificacion")
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING "IdProductoTemarioAdjunto"`

func attachmentArgs(a *models.Attachment) []interface{} {
	return []interface{}{a.CourseModuleID, a.RoomID, a.Tipo1, a.Tipo2, a.Tipo3, a.Tipo4,
		a.FileName, a.DisplayName, a.Order, a.StatusID, a.LastModifiedAt}
}

// InsertAttachment inserts a with its given order.
func (r *Repository) InsertAttachment(ctx context.Context, a *models.Attachment) error {
	r.stamp(a)
	if err := r.db.QueryRow(ctx, insertAttachment, attachmentArgs(a)...).Scan(&a.ID); err != nil {
		return fmt.Errorf("insert attachment %s: %w", a.FileName, err)
	}
	return nil
}

// AssignWithNextOrder inserts a at max(order)+1 for its (room, module) pair.
// A transaction-scoped advisory lock on the pair serializes concurrent assignments.
func (r *Repository) AssignWithNextOrder(ctx context.Context, a *models.Attachment) error {
	if a.RoomID == nil || a.CourseModuleID == nil {
		return domain.NewValidationError("sala y módulo son obligatorios")
	}
	r.stamp(a)
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1::int, $2::int)`, *a.RoomID, *a.CourseModuleID); err != nil {
			return fmt.Errorf("lock order counter: %w", err)
		}
		const next = `SELECT COALESCE(MAX("Orden"), 0) + 1 FROM "ProductoTemarioAdjunto"
			WHERE "Sala_id" = $1 AND "ProductoTemario_id" = $2`
		if err := tx.QueryRow(ctx, next, *a.RoomID, *a.CourseModuleID).Scan(&a.Order); err != nil {
			return fmt.Errorf("next order: %w", err)
		}
		if err := tx.QueryRow(ctx, insertAttachment, attachmentArgs(a)...).Scan(&a.ID); err != nil {
			return fmt.Errorf("insert attachment %s: %w", a.FileName, err)
		}
		return nil
	})
}

// PatchRoom applies a validated patch to a room.
func (r *Repository) PatchRoom(ctx context.Context, roomID int64, patch RoomPatch) error {
	q, args := patch.SQL(roomID)
	tag, err := r.db.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("patch room %d: %w", roomID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError(fmt.Sprintf("Sala %d no encontrada", roomID))
	}
	return nil
}

// DeleteAttachment deletes one attachment row.
func (r *Repository) DeleteAttachment(ctx context.Context, id int64) error {
	const q = `DELETE FROM "ProductoTemarioAdjunto" WHERE "IdProductoTemarioAdjunto" = $1`
	tag, err := r.db.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("delete attachment %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError(fmt.Sprintf("Adjunto %d no encontrado", id))
	}
	return nil
}

// CountOtherReferences counts attachments other than excludeID that store fileName.
func (r *Repository) CountOtherReferences(ctx context.Context, fileName string, excludeID int64) (int, error) {
	const q = `SELECT COUNT(*) FROM "ProductoTemarioAdjunto"
		WHERE "NombreArchivo" = $1 AND "IdProductoTemarioAdjunto" <> $2`
	var n int
	if err := r.db.QueryRow(ctx, q, fileName, excludeID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count references to %s: %w", fileName, err)
	}
	return n, nil
}

func (r *Repository) stamp(a *models.Attachment) {
	if a.LastModifiedAt == nil {
		now := r.now().UTC()
		a.LastModifiedAt = &now
	}
}

func dedupeByFileName(list []models.Attachment) []models.Attachment {
	seen := make(map[string]bool, len(list))
	out := make([]models.Attachment, 0, len(list))
	for _, a := range list {
		if seen[a.FileName] {
			continue
		}
		seen[a.FileName] = true
		out = append(out, a)
	}
	return out
}
