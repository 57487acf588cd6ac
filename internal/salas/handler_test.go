package salas

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amelidiaz19/zoom-api/internal/domain"
	"github.com/amelidiaz19/zoom-api/internal/models"
)

type moduleKey struct {
	course     int64
	numeration string
}

type fakeStore struct {
	videos   map[int64][]models.Attachment
	modules  map[moduleKey]int64
	orders   map[[2]int64]int
	assigned []*models.Attachment
	patches  map[int64]RoomPatch
	rooms    map[int64]bool
	deleted  []int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		videos:  map[int64][]models.Attachment{},
		modules: map[moduleKey]int64{{course: 3, numeration: "5"}: 55},
		orders:  map[[2]int64]int{},
		patches: map[int64]RoomPatch{},
		rooms:   map[int64]bool{7: true},
	}
}

func (f *fakeStore) ListVideosByRoom(_ context.Context, roomID int64) ([]models.Attachment, error) {
	return f.videos[roomID], nil
}

func (f *fakeStore) FindModule(_ context.Context, courseID int64, numeration string) (*models.CourseModule, error) {
	id, ok := f.modules[moduleKey{courseID, numeration}]
	if !ok {
		return nil, domain.NewNotFoundError("ProductoTemario no encontrado")
	}
	return &models.CourseModule{ID: id, CourseID: courseID, Numeration: numeration}, nil
}

func (f *fakeStore) AssignWithNextOrder(_ context.Context, a *models.Attachment) error {
	key := [2]int64{*a.RoomID, *a.CourseModuleID}
	f.orders[key]++
	a.Order = f.orders[key]
	a.ID = int64(len(f.assigned) + 1)
	f.assigned = append(f.assigned, a)
	return nil
}

func (f *fakeStore) PatchRoom(_ context.Context, roomID int64, patch RoomPatch) error {
	if !f.rooms[roomID] {
		return domain.NewNotFoundError("Sala no encontrada")
	}
	f.patches[roomID] = patch
	return nil
}

func (f *fakeStore) DeleteAttachment(_ context.Context, id int64) error {
	if id != 10 {
		return domain.NewNotFoundError("Adjunto no encontrado")
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func newTestRouter(store Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(store, nil)
	r := gin.New()
	r.GET("/sala/:id/videos", h.ListVideos)
	r.POST("/sala/asignar", h.Assign)
	r.POST("/sala/asignar-multiple", h.AssignMultiple)
	r.PUT("/sala/:id/zoom", h.PatchZoom)
	r.DELETE("/sala/adjunto/:id", h.DeleteAttachment)
	return r
}

func doRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestListVideos(t *testing.T) {
	store := newFakeStore()
	store.videos[7] = []models.Attachment{{ID: 1, FileName: "a.mp4", Order: 1}}
	r := newTestRouter(store)

	w := doRequest(r, http.MethodGet, "/sala/7/videos", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"NombreArchivo":"a.mp4"`)

	w = doRequest(r, http.MethodGet, "/sala/abc/videos", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAssignIncrementsOrderPerRoom(t *testing.T) {
	store := newFakeStore()
	r := newTestRouter(store)

	body := `{"salaIds":[7,8],"cursoId":3,"numeracion":5,"nombreArchivo":"POPP_MODULO_5_G31_1.mp4","nombreFinal":"Clase 1"}`
	w := doRequest(r, http.MethodPost, "/sala/asignar", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = doRequest(r, http.MethodPost, "/sala/asignar", `{"salaIds":[7],"cursoId":3,"numeracion":"5","nombreArchivo":"b.mp4"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.Len(t, store.assigned, 3)
	assert.Equal(t, 1, store.assigned[0].Order)
	assert.Equal(t, 1, store.assigned[1].Order)
	assert.Equal(t, 2, store.assigned[2].Order)
	assert.Equal(t, int64(55), *store.assigned[0].CourseModuleID)
	assert.Equal(t, models.AttachmentTipo4, store.assigned[0].Tipo4)
}

func TestAssignMissingModule(t *testing.T) {
	store := newFakeStore()
	r := newTestRouter(store)

	w := doRequest(r, http.MethodPost, "/sala/asignar", `{"salaIds":[7],"cursoId":3,"numeracion":"9","nombreArchivo":"a.mp4"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, store.assigned)

	w = doRequest(r, http.MethodPost, "/sala/asignar", `{"salaIds":[],"cursoId":3,"numeracion":"5","nombreArchivo":"a.mp4"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAssignMultipleSkipsMissingModules(t *testing.T) {
	store := newFakeStore()
	r := newTestRouter(store)

	body := `{"asignaciones":[
		{"salaId":7,"cursoId":3,"numeracion":"5","nombreArchivo":"a.mp4","nombreFinal":"A"},
		{"salaId":7,"cursoId":3,"numeracion":"6","nombreArchivo":"b.mp4","nombreFinal":"B"}
	]}`
	w := doRequest(r, http.MethodPost, "/sala/asignar-multiple", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			Adjuntos []models.Attachment `json:"adjuntos"`
			Omitidos []SkippedAssignment `json:"omitidos"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Adjuntos, 1)
	assert.Equal(t, "a.mp4", resp.Data.Adjuntos[0].FileName)
	require.Len(t, resp.Data.Omitidos, 1)
	assert.Equal(t, "b.mp4", resp.Data.Omitidos[0].FileName)
	assert.NotEmpty(t, resp.Data.Omitidos[0].Reason)
}

func TestPatchZoom(t *testing.T) {
	store := newFakeStore()
	r := newTestRouter(store)

	w := doRequest(r, http.MethodPut, "/sala/7/zoom", `{"LinkZoom":"https://zoom.us/j/1","ClaveZoom":"abc"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, store.patches[7], 2)
	assert.Equal(t, RoomFieldZoomPassword, store.patches[7][0].Field)

	w = doRequest(r, http.MethodPut, "/sala/7/zoom", `{"IdSala":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodPut, "/sala/99/zoom", `{"LinkZoom":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteAttachment(t *testing.T) {
	store := newFakeStore()
	r := newTestRouter(store)

	w := doRequest(r, http.MethodDelete, "/sala/adjunto/10", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{10}, store.deleted)

	w = doRequest(r, http.MethodDelete, "/sala/adjunto/11", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNumerationUnmarshal(t *testing.T) {
	var n Numeration
	require.NoError(t, json.Unmarshal([]byte(`5`), &n))
	assert.Equal(t, Numeration("5"), n)
	require.NoError(t, json.Unmarshal([]byte(`"05"`), &n))
	assert.Equal(t, Numeration("05"), n)
	assert.Error(t, json.Unmarshal([]byte(`true`), &n))
}
