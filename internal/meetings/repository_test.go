package meetings

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amelidiaz19/zoom-api/internal/domain"
	"github.com/amelidiaz19/zoom-api/internal/models"
)

var meetingRowColumns = []string{"zoom_id", "email", "topic", "nomenclatura", "duracion", "join_url", "start_url", "password", "tag_id"}

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db), mock
}

func TestFindTagByName(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`SELECT id, nombre FROM tags WHERE nombre = \?`).
		WithArgs("ccd").
		WillReturnRows(sqlmock.NewRows([]string{"id", "nombre"}).AddRow(1, "ccd"))

	tag, err := repo.FindTagByName(context.Background(), "ccd")
	require.NoError(t, err)
	assert.Equal(t, &models.Tag{ID: 1, Name: "ccd"}, tag)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindTagByNameMissing(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`SELECT id, nombre FROM tags`).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindTagByName(context.Background(), "nope")
	assert.True(t, domain.IsNotFound(err))
}

func TestGetByZoomIDMissing(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`FROM zoom_meetings WHERE zoom_id = \?`).
		WithArgs("999").
		WillReturnRows(sqlmock.NewRows(meetingRowColumns))

	_, err := repo.GetByZoomID(context.Background(), "999")
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
	assert.Contains(t, err.Error(), "999")
}

func TestCreateMeeting(t *testing.T) {
	repo, mock := newMockRepo(t)
	m := &models.Meeting{ZoomID: "123", Email: "host@example.com", Topic: "Clase", Nomenclatura: "POPP_MODULO_5_G31", Duration: 60, TagID: 2}
	mock.ExpectExec(`INSERT INTO zoom_meetings`).
		WithArgs("123", "host@example.com", "Clase", "POPP_MODULO_5_G31", 60, "", "", "", int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), m))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByTag(t *testing.T) {
	t.Run("numeric id", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(`FROM zoom_meetings WHERE tag_id = \? ORDER BY zoom_id`).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(meetingRowColumns).
				AddRow("123", "a@x.com", "T", "POPP_MODULO_5_G31", 60, "j", "s", "p", 1))

		list, err := repo.ListByTag(context.Background(), "1")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "POPP_MODULO_5_G31", list[0].Nomenclatura)
	})
	t.Run("tag name", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(`WHERE tag_id = \(SELECT id FROM tags WHERE nombre = \?\)`).
			WithArgs("digital").
			WillReturnRows(sqlmock.NewRows(meetingRowColumns))

		list, err := repo.ListByTag(context.Background(), "digital")
		require.NoError(t, err)
		assert.Empty(t, list)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
