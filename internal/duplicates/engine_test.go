package duplicates

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amelidiaz19/zoom-api/internal/domain"
	"github.com/amelidiaz19/zoom-api/internal/models"
	"github.com/amelidiaz19/zoom-api/pkg/storage"
)

const (
	testMedia   = "Multimedia/Video/Cursos/ModulosVivo"
	testBaseURL = "https://cdn.example.com"
)

var lima = time.FixedZone("UTC-5", -5*3600)

type fakeVideos struct {
	rows      map[int64]models.Attachment
	deleteErr map[int64]error
	from, to  time.Time
}

func newFakeVideos(rows ...models.Attachment) *fakeVideos {
	f := &fakeVideos{rows: map[int64]models.Attachment{}, deleteErr: map[int64]error{}}
	for _, r := range rows {
		f.rows[r.ID] = r
	}
	return f
}

func (f *fakeVideos) FindVideosModifiedBetween(_ context.Context, from, to time.Time) ([]models.Attachment, error) {
	f.from, f.to = from, to
	var out []models.Attachment
	for _, r := range f.rows {
		m := *r.LastModifiedAt
		if !m.Before(from) && !m.After(to) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if *out[i].RoomID != *out[j].RoomID {
			return *out[i].RoomID < *out[j].RoomID
		}
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *fakeVideos) CountOtherReferences(_ context.Context, fileName string, excludeID int64) (int, error) {
	n := 0
	for id, r := range f.rows {
		if id != excludeID && r.FileName == fileName {
			n++
		}
	}
	return n, nil
}

func (f *fakeVideos) DeleteAttachment(_ context.Context, id int64) error {
	if err := f.deleteErr[id]; err != nil {
		return err
	}
	if _, ok := f.rows[id]; !ok {
		return domain.NewNotFoundError("Adjunto no encontrado")
	}
	delete(f.rows, id)
	return nil
}

type fakeProber struct {
	durations map[string]float64
	calls     int
}

func (f *fakeProber) Duration(_ context.Context, url string) (float64, error) {
	f.calls++
	d, ok := f.durations[url]
	if !ok {
		return 0, domain.NewExternalError("ffprobe "+url, errors.New("exit status 1"))
	}
	return d, nil
}

type fakeObjects struct {
	objects   map[string][]byte
	deleteErr map[string]error
	putErr    error
	listed    []storage.ObjectInfo
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string][]byte{}, deleteErr: map[string]error{}}
}

func (f *fakeObjects) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	f.objects[key] = body
	return f.PublicURL(key), nil
}

func (f *fakeObjects) Get(_ context.Context, key string) ([]byte, error) {
	b, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", key, storage.ErrNotFound)
	}
	return b, nil
}

func (f *fakeObjects) Delete(_ context.Context, key string) error {
	if err := f.deleteErr[key]; err != nil {
		return err
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeObjects) List(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	return f.listed, nil
}

func (f *fakeObjects) PublicURL(key string) string {
	return storage.PublicURL(testBaseURL, key)
}

func video(id, room int64, order int, fileName string, modified time.Time) models.Attachment {
	a := models.NewVideoAttachment(55, room, fileName, "Curso", order)
	a.ID = id
	m := modified.UTC()
	a.LastModifiedAt = &m
	return *a
}

func mediaURL(fileName string) string {
	return storage.PublicURL(testBaseURL, storage.Key(testMedia, fileName))
}

type fixture struct {
	videos  *fakeVideos
	prober  *fakeProber
	objects *fakeObjects
	engine  *Engine
}

func newFixture(rows ...models.Attachment) *fixture {
	f := &fixture{
		videos:  newFakeVideos(rows...),
		prober:  &fakeProber{durations: map[string]float64{}},
		objects: newFakeObjects(),
	}
	for _, r := range rows {
		f.objects.objects[storage.Key(testMedia, r.FileName)] = []byte("mp4")
	}
	reports := NewReports(f.objects, "reportes", "ReporteVideosVivo")
	f.engine = NewEngine(f.videos, f.prober, f.objects, reports, Config{
		MediaFolder:  testMedia,
		Location:     lima,
		DownloadBase: "/api/sala/reportes",
	}, nil, nil)
	f.engine.now = func() time.Time { return time.Date(2024, 1, 2, 10, 11, 12, 345e6, time.UTC) }
	return f
}

func (f *fixture) probe(fileName string, seconds float64) {
	f.prober.durations[mediaURL(fileName)] = seconds
}

func TestRunKeepsLatestModified(t *testing.T) {
	a := video(1, 7, 2, "POPP_MODULO_5_G31_2.mp4", time.Date(2024, 1, 1, 18, 0, 0, 0, lima))
	b := video(2, 7, 1, "POPP_MODULO_5_G31_1.mp4", time.Date(2024, 1, 1, 9, 0, 0, 0, lima))
	f := newFixture(a, b)
	f.probe(a.FileName, 120.0)
	f.probe(b.FileName, 120.0)

	res, err := f.engine.Run(context.Background(), "2024-01-01", "2024-01-01")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC), f.videos.from)
	assert.Equal(t, time.Date(2024, 1, 2, 4, 59, 59, 0, time.UTC), f.videos.to)

	assert.Equal(t, 2, res.TotalVideos)
	require.Len(t, res.Deleted, 1)
	assert.Empty(t, res.Conserved)
	assert.Equal(t, int64(2), res.Deleted[0].ID)
	assert.Equal(t, int64(7), res.Deleted[0].RoomID)
	assert.Equal(t, 120.0, res.Deleted[0].Duration)
	assert.Equal(t, "2024-01-01 09:00:00", res.Deleted[0].ModifiedAt)
	assert.Equal(t, []RoomSummary{{RoomID: 7, Originals: 2, Deleted: 1, Conserved: 1}}, res.RoomSummaries)

	assert.Contains(t, f.videos.rows, int64(1))
	assert.NotContains(t, f.videos.rows, int64(2))
	assert.Contains(t, f.objects.objects, storage.Key(testMedia, a.FileName))
	assert.NotContains(t, f.objects.objects, storage.Key(testMedia, b.FileName))

	require.NotNil(t, res.Report)
	assert.Empty(t, res.ReportText)
	name := "reporte-duplicados-2024-01-01-2024-01-01-2024-01-02T10-11-12-345Z.txt"
	assert.Equal(t, name, res.Report.File)
	assert.Equal(t, "/api/sala/reportes/"+name, res.Report.Download)
	report := string(f.objects.objects["reportes/"+name])
	assert.Contains(t, report, "conservar id=1")
	assert.Contains(t, report, "Eliminado id=2")
}

func TestRunTieBreaksOnLowestOrder(t *testing.T) {
	same := time.Date(2024, 1, 1, 12, 0, 0, 0, lima)
	rows := []models.Attachment{
		video(10, 7, 3, "c.mp4", same),
		video(11, 7, 1, "a.mp4", same),
		video(12, 7, 2, "b.mp4", same),
	}
	f := newFixture(rows...)
	f.probe("a.mp4", 119.96)
	f.probe("b.mp4", 120.04)
	f.probe("c.mp4", 120.0)

	res, err := f.engine.Run(context.Background(), "2024-01-01", "2024-01-01")
	require.NoError(t, err)
	require.Len(t, res.Deleted, 2)
	assert.Contains(t, f.videos.rows, int64(11))
	assert.ElementsMatch(t, []int64{10, 12}, []int64{res.Deleted[0].ID, res.Deleted[1].ID})
}

func TestRunGroupsPerRoomOnly(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, lima)
	f := newFixture(video(1, 7, 1, "a.mp4", at), video(2, 8, 1, "b.mp4", at))
	f.probe("a.mp4", 60)
	f.probe("b.mp4", 60)

	res, err := f.engine.Run(context.Background(), "2024-01-01", "2024-01-01")
	require.NoError(t, err)
	assert.Empty(t, res.Deleted)
	assert.Len(t, res.RoomSummaries, 2)
	assert.Len(t, f.videos.rows, 2)
}

func TestRunExcludesProbeFailures(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, lima)
	f := newFixture(
		video(1, 7, 1, "a.mp4", at.Add(time.Hour)),
		video(2, 7, 2, "b.mp4", at),
		video(3, 7, 3, "broken.mp4", at),
	)
	f.probe("a.mp4", 90)
	f.probe("b.mp4", 90)

	res, err := f.engine.Run(context.Background(), "2024-01-01", "2024-01-01")
	require.NoError(t, err)
	require.Len(t, res.Deleted, 1)
	assert.Equal(t, int64(2), res.Deleted[0].ID)
	assert.Empty(t, res.Conserved)
	assert.Contains(t, f.videos.rows, int64(3))
	assert.Equal(t, 3, res.RoomSummaries[0].Originals)
}

func TestRunStorageFailureConservesRow(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, lima)
	f := newFixture(video(1, 7, 1, "a.mp4", at.Add(time.Hour)), video(2, 7, 2, "b.mp4", at))
	f.probe("a.mp4", 90)
	f.probe("b.mp4", 90)
	f.objects.deleteErr[storage.Key(testMedia, "b.mp4")] = errors.New("access denied")

	res, err := f.engine.Run(context.Background(), "2024-01-01", "2024-01-01")
	require.NoError(t, err)
	assert.Empty(t, res.Deleted)
	require.Len(t, res.Conserved, 1)
	assert.Equal(t, int64(2), res.Conserved[0].ID)
	assert.Contains(t, res.Conserved[0].Error, "access denied")
	assert.Contains(t, f.videos.rows, int64(2))
	assert.Equal(t, 0, res.RoomSummaries[0].Deleted)
	assert.Equal(t, 2, res.RoomSummaries[0].Conserved)
}

func TestRunRowFailureAfterObjectDelete(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, lima)
	f := newFixture(video(1, 7, 1, "a.mp4", at.Add(time.Hour)), video(2, 7, 2, "b.mp4", at))
	f.probe("a.mp4", 90)
	f.probe("b.mp4", 90)
	f.videos.deleteErr[2] = errors.New("connection reset")

	res, err := f.engine.Run(context.Background(), "2024-01-01", "2024-01-01")
	require.NoError(t, err)
	require.Len(t, res.Conserved, 1)
	assert.Contains(t, res.Conserved[0].Error, "objeto eliminado")
	assert.Contains(t, f.videos.rows, int64(2))
}

func TestRunKeepsObjectSharedWithKeeper(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, lima)
	f := newFixture(video(1, 7, 1, "same.mp4", at.Add(time.Hour)), video(2, 7, 2, "same.mp4", at))
	f.probe("same.mp4", 90)

	res, err := f.engine.Run(context.Background(), "2024-01-01", "2024-01-01")
	require.NoError(t, err)
	require.Len(t, res.Deleted, 1)
	assert.NotContains(t, f.videos.rows, int64(2))
	assert.Contains(t, f.objects.objects, storage.Key(testMedia, "same.mp4"))
}

func TestRunIsIdempotent(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, lima)
	f := newFixture(video(1, 7, 1, "a.mp4", at.Add(time.Hour)), video(2, 7, 2, "b.mp4", at), video(3, 7, 3, "c.mp4", at))
	f.probe("a.mp4", 90)
	f.probe("b.mp4", 90)
	f.probe("c.mp4", 45)

	first, err := f.engine.Run(context.Background(), "2024-01-01", "2024-01-01")
	require.NoError(t, err)
	require.Len(t, first.Deleted, 1)

	second, err := f.engine.Run(context.Background(), "2024-01-01", "2024-01-01")
	require.NoError(t, err)
	assert.Empty(t, second.Deleted)
	assert.Empty(t, second.Conserved)
	assert.Equal(t, 2, second.TotalVideos)
}

func TestRunNoMatches(t *testing.T) {
	f := newFixture(video(1, 7, 1, "a.mp4", time.Date(2023, 12, 31, 23, 0, 0, 0, lima)))

	res, err := f.engine.Run(context.Background(), "2024-01-01", "2024-01-01")
	require.NoError(t, err)
	assert.Zero(t, res.TotalVideos)
	assert.Empty(t, res.Deleted)
	assert.Empty(t, res.RoomSummaries)
	assert.Zero(t, f.prober.calls)
	require.NotNil(t, res.Report)
}

func TestRunInlineReportWhenPersistFails(t *testing.T) {
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, lima)
	f := newFixture(video(1, 7, 1, "a.mp4", at.Add(time.Hour)), video(2, 7, 2, "b.mp4", at))
	f.probe("a.mp4", 90)
	f.probe("b.mp4", 90)
	f.objects.putErr = errors.New("bucket unavailable")

	res, err := f.engine.Run(context.Background(), "2024-01-01", "2024-01-01")
	require.NoError(t, err)
	assert.Nil(t, res.Report)
	assert.Contains(t, res.ReportText, "Eliminado id=2")
	assert.Len(t, res.Deleted, 1)
}

func TestRunRejectsInvalidRange(t *testing.T) {
	f := newFixture()
	_, err := f.engine.Run(context.Background(), "2024-01-02", "2024-01-01")
	assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))
	_, err = f.engine.Run(context.Background(), "01/01/2024", "2024-01-01")
	assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(err))
}

func TestResolveRangeMultipleDays(t *testing.T) {
	rng, err := ResolveRange("2024-01-01", "2024-01-03", lima)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC), rng.StartUTC)
	assert.Equal(t, time.Date(2024, 1, 4, 4, 59, 59, 0, time.UTC), rng.EndUTC)
}

func TestReportFileName(t *testing.T) {
	name := ReportFileName("2024-01-01", "2024-01-31", time.Date(2024, 2, 1, 8, 9, 10, 0, lima))
	assert.Equal(t, "reporte-duplicados-2024-01-01-2024-01-31-2024-02-01T13-09-10-000Z.txt", name)
	assert.False(t, strings.ContainsAny(name, ":"))
}
