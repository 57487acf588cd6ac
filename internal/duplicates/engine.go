package duplicates

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amelidiaz19/zoom-api/internal/domain"
	"github.com/amelidiaz19/zoom-api/internal/models"
	"github.com/amelidiaz19/zoom-api/pkg/metrics"
	"github.com/amelidiaz19/zoom-api/pkg/storage"
)

const (
	dateLayout      = "2006-01-02"
	localTimeLayout = "2006-01-02 15:04:05"
)

// VideoStore is the attachment persistence the engine needs.
type VideoStore interface {
	FindVideosModifiedBetween(ctx context.Context, from, to time.Time) ([]models.Attachment, error)
	CountOtherReferences(ctx context.Context, fileName string, excludeID int64) (int, error)
	DeleteAttachment(ctx context.Context, id int64) error
}

// Prober reads the duration in seconds of a media URL.
type Prober interface {
	Duration(ctx context.Context, url string) (float64, error)
}

// Config holds the engine's storage and time conventions.
type Config struct {
	MediaFolder  string
	Location     *time.Location // civil zone the date range is expressed in
	DownloadBase string         // URL path reports are downloaded from, e.g. /api/sala/reportes
}

// Range is the resolved reconciliation window.
type Range struct {
	Start    string    `json:"fechaInicio"`
	End      string    `json:"fechaFin"`
	StartUTC time.Time `json:"inicioUTC"`
	EndUTC   time.Time `json:"finUTC"`
}

// RoomSummary counts outcomes for one room. Conserved is Originals minus Deleted.
type RoomSummary struct {
	RoomID    int64 `json:"salaId"`
	Originals int   `json:"originales"`
	Deleted   int   `json:"eliminados"`
	Conserved int   `json:"conservados"`
}

// VideoOutcome describes one drop candidate after the deletion attempt.
type VideoOutcome struct {
	ID         int64   `json:"id"`
	FileName   string  `json:"nombreArchivo"`
	RoomID     int64   `json:"salaId"`
	Order      int     `json:"orden"`
	Duration   float64 `json:"duracion"`
	ModifiedAt string  `json:"fechaModificacion"`
	Error      string  `json:"error,omitempty"`
}

// ReportRef points at a persisted report.
type ReportRef struct {
	File string `json:"archivo"`
	// Download only resolves when REPORTS_READ_PREFIX equals REPORTS_WRITE_PREFIX.
	Download string `json:"descarga"`
}

// Result is the outcome of one reconciliation pass.
type Result struct {
	Range         Range          `json:"rango"`
	TotalVideos   int            `json:"totalVideos"`
	RoomSummaries []RoomSummary  `json:"resumenPorSala"`
	Deleted       []VideoOutcome `json:"videosEliminados"`
	Conserved     []VideoOutcome `json:"videosConservados"`
	Report        *ReportRef     `json:"reporte,omitempty"`
	ReportText    string         `json:"reporteTexto,omitempty"`
}

// candidate is an attachment with its probed duration.
type candidate struct {
	models.Attachment
	duration float64
}

// Engine finds and removes duplicate room videos within a date range.
type Engine struct {
	videos  VideoStore
	prober  Prober
	objects ObjectStore
	reports *Reports
	cfg     Config
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewEngine creates a reconciliation engine.
func NewEngine(videos VideoStore, prober Prober, objects ObjectStore, reports *Reports, cfg Config, m *metrics.Metrics, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.FixedZone("UTC-5", -5*3600)
	}
	return &Engine{
		videos:  videos,
		prober:  prober,
		objects: objects,
		reports: reports,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// ResolveRange converts whole local days [start, end] to a UTC window:
// start at 00:00:00 and end at 23:59:59 local time.
func ResolveRange(start, end string, loc *time.Location) (Range, error) {
	s, err := time.ParseInLocation(dateLayout, start, loc)
	if err != nil {
		return Range{}, domain.NewValidationError(fmt.Sprintf("fechaInicio inválida %q, se espera YYYY-MM-DD", start))
	}
	e, err := time.ParseInLocation(dateLayout, end, loc)
	if err != nil {
		return Range{}, domain.NewValidationError(fmt.Sprintf("fechaFin inválida %q, se espera YYYY-MM-DD", end))
	}
	if e.Before(s) {
		return Range{}, domain.NewValidationError("fechaFin no puede ser anterior a fechaInicio")
	}
	return Range{
		Start:    start,
		End:      end,
		StartUTC: s.UTC(),
		EndUTC:   e.Add(24*time.Hour - time.Second).UTC(),
	}, nil
}

// durationBucket rounds seconds to one decimal, as tenths.
func durationBucket(d float64) int64 {
	return int64(math.Round(d * 10))
}

// sortKeeperFirst orders a duplicate group so the keeper comes first: latest
// modification, then lowest order, then lowest id.
func sortKeeperFirst(group []candidate) {
	sort.SliceStable(group, func(i, j int) bool {
		a, b := group[i], group[j]
		at, bt := modifiedOrZero(a.Attachment), modifiedOrZero(b.Attachment)
		if !at.Equal(bt) {
			return at.After(bt)
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.ID < b.ID
	})
}

func modifiedOrZero(a models.Attachment) time.Time {
	if a.LastModifiedAt == nil {
		return time.Time{}
	}
	return *a.LastModifiedAt
}

func roomOf(a models.Attachment) int64 {
	if a.RoomID == nil {
		return 0
	}
	return *a.RoomID
}

// Run reconciles the range. Per-item failures are reported, never returned;
// only an invalid range or a failed candidate query aborts the pass. The pass
// is not cancelled when ctx is.
func (e *Engine) Run(ctx context.Context, start, end string) (*Result, error) {
	rng, err := ResolveRange(start, end, e.cfg.Location)
	if err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	runID := uuid.NewString()
	log := &reportLog{loc: e.cfg.Location, now: e.now, logger: e.logger.With(zap.String("run_id", runID))}
	log.addf("Reporte de eliminación de videos duplicados (ejecución %s)", runID)
	log.addf("Rango local %s 00:00:00 a %s 23:59:59 (%s)", rng.Start, rng.End, e.cfg.Location)
	log.addf("Rango UTC %s a %s", rng.StartUTC.Format(localTimeLayout), rng.EndUTC.Format(localTimeLayout))

	rows, err := e.videos.FindVideosModifiedBetween(ctx, rng.StartUTC, rng.EndUTC)
	if err != nil {
		return nil, fmt.Errorf("find candidate videos: %w", err)
	}

	result := &Result{
		Range:         rng,
		TotalVideos:   len(rows),
		RoomSummaries: []RoomSummary{},
		Deleted:       []VideoOutcome{},
		Conserved:     []VideoOutcome{},
	}
	log.addf("Videos encontrados: %d", len(rows))

	if len(rows) > 0 {
		e.reconcile(ctx, rows, result, log)
	} else {
		log.addf("No hay videos en el rango, no se elimina nada")
	}

	log.addf("Resumen: %d eliminados, %d conservados por error", len(result.Deleted), len(result.Conserved))
	e.metrics.ObserveReconciliation(len(result.Deleted), len(result.Conserved))
	e.attachReport(ctx, result, log)
	return result, nil
}

func (e *Engine) reconcile(ctx context.Context, rows []models.Attachment, result *Result, log *reportLog) {
	rooms := map[int64][]candidate{}
	originals := map[int64]int{}
	var roomIDs []int64
	for _, a := range rows {
		room := roomOf(a)
		if _, seen := originals[room]; !seen {
			roomIDs = append(roomIDs, room)
		}
		originals[room]++

		url := e.objects.PublicURL(storage.Key(e.cfg.MediaFolder, a.FileName))
		d, err := e.prober.Duration(ctx, url)
		if err != nil {
			log.errorf("Sin duración, excluido: id=%d archivo=%s sala=%d: %v", a.ID, a.FileName, room, err)
			continue
		}
		rooms[room] = append(rooms[room], candidate{Attachment: a, duration: d})
	}
	sort.Slice(roomIDs, func(i, j int) bool { return roomIDs[i] < roomIDs[j] })

	for _, room := range roomIDs {
		summary := RoomSummary{RoomID: room, Originals: originals[room]}
		groups := groupByDuration(rooms[room])
		log.addf("Sala %d: %d videos, %d con duración, %d grupos duplicados", room, originals[room], len(rooms[room]), len(groups))

		for _, group := range groups {
			sortKeeperFirst(group)
			keeper := group[0]
			log.addf("  Duración %.1fs: conservar id=%d archivo=%s orden=%d modificado=%s",
				roundTenth(keeper.duration), keeper.ID, keeper.FileName, keeper.Order, e.localTime(keeper.Attachment))
			for _, drop := range group[1:] {
				outcome := e.outcome(drop)
				if err := e.remove(ctx, drop.Attachment); err != nil {
					outcome.Error = err.Error()
					result.Conserved = append(result.Conserved, outcome)
					log.errorf("  No eliminado id=%d archivo=%s: %v", drop.ID, drop.FileName, err)
					continue
				}
				summary.Deleted++
				result.Deleted = append(result.Deleted, outcome)
				log.addf("  Eliminado id=%d archivo=%s orden=%d modificado=%s", drop.ID, drop.FileName, drop.Order, outcome.ModifiedAt)
			}
		}
		summary.Conserved = summary.Originals - summary.Deleted
		result.RoomSummaries = append(result.RoomSummaries, summary)
	}
}

// groupByDuration returns the buckets with more than one member, in
// ascending duration order.
func groupByDuration(list []candidate) [][]candidate {
	buckets := map[int64][]candidate{}
	var keys []int64
	for _, c := range list {
		k := durationBucket(c.duration)
		if _, ok := buckets[k]; !ok {
			keys = append(keys, k)
		}
		buckets[k] = append(buckets[k], c)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var groups [][]candidate
	for _, k := range keys {
		if len(buckets[k]) > 1 {
			groups = append(groups, buckets[k])
		}
	}
	return groups
}

func roundTenth(d float64) float64 {
	return float64(durationBucket(d)) / 10
}

// remove deletes the backing object, then the row. The object is kept when
// another row still references the same file. A failed step leaves the row.
func (e *Engine) remove(ctx context.Context, a models.Attachment) error {
	refs, err := e.videos.CountOtherReferences(ctx, a.FileName, a.ID)
	if err != nil {
		return fmt.Errorf("no se pudo verificar referencias: %w", err)
	}
	if refs == 0 {
		if err := e.objects.Delete(ctx, storage.Key(e.cfg.MediaFolder, a.FileName)); err != nil {
			return fmt.Errorf("error eliminando objeto: %w", err)
		}
	}
	if err := e.videos.DeleteAttachment(ctx, a.ID); err != nil {
		if refs == 0 {
			return domain.NewPartialFailureError("objeto eliminado pero fila conservada", err)
		}
		return fmt.Errorf("error eliminando fila: %w", err)
	}
	return nil
}

func (e *Engine) outcome(c candidate) VideoOutcome {
	return VideoOutcome{
		ID:         c.ID,
		FileName:   c.FileName,
		RoomID:     roomOf(c.Attachment),
		Order:      c.Order,
		Duration:   roundTenth(c.duration),
		ModifiedAt: e.localTime(c.Attachment),
	}
}

func (e *Engine) localTime(a models.Attachment) string {
	if a.LastModifiedAt == nil {
		return ""
	}
	return a.LastModifiedAt.In(e.cfg.Location).Format(localTimeLayout)
}

// attachReport persists the report, falling back to inline text.
func (e *Engine) attachReport(ctx context.Context, result *Result, log *reportLog) {
	name := ReportFileName(result.Range.Start, result.Range.End, e.now())
	if _, err := e.reports.Save(ctx, name, log.String()); err != nil {
		e.logger.Error("report not persisted, returning inline", zap.String("report", name), zap.Error(err))
		result.ReportText = log.String()
		return
	}
	result.Report = &ReportRef{File: name, Download: e.cfg.DownloadBase + "/" + name}
}
