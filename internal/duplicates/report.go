package duplicates

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/amelidiaz19/zoom-api/internal/domain"
	"github.com/amelidiaz19/zoom-api/pkg/storage"
)

const reportLineTime = "15:04:05"

// ObjectStore is the subset of the object store gateway used here.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
	PublicURL(key string) string
}

// reportLog accumulates the line-oriented audit trail of one pass and
// mirrors every line to the logger.
type reportLog struct {
	lines  []string
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

func (r *reportLog) addf(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	r.lines = append(r.lines, fmt.Sprintf("[%s] %s", r.now().In(r.loc).Format(reportLineTime), line))
	r.logger.Info(line)
}

func (r *reportLog) errorf(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	r.lines = append(r.lines, fmt.Sprintf("[%s] ERROR %s", r.now().In(r.loc).Format(reportLineTime), line))
	r.logger.Warn(line)
}

func (r *reportLog) String() string {
	return strings.Join(r.lines, "\n") + "\n"
}

// ReportFileName builds reporte-duplicados-<start>-<end>-<ISO instant>.txt
// with ':' and '.' of the instant replaced by '-'.
func ReportFileName(start, end string, at time.Time) string {
	iso := at.UTC().Format("2006-01-02T15:04:05.000Z")
	iso = strings.NewReplacer(":", "-", ".", "-").Replace(iso)
	return fmt.Sprintf("reporte-duplicados-%s-%s-%s.txt", start, end, iso)
}

// ReportInfo is one entry of the report listing.
type ReportInfo struct {
	Name       string    `json:"nombre"`
	Size       int64     `json:"tamano"`
	ModifiedAt time.Time `json:"fechaModificacion"`
}

// Reports stores and serves reconciliation reports. Reports are written and
// listed under writePrefix and downloaded from readPrefix.
type Reports struct {
	objects     ObjectStore
	writePrefix string
	readPrefix  string
}

// NewReports creates a report store.
func NewReports(objects ObjectStore, writePrefix, readPrefix string) *Reports {
	return &Reports{objects: objects, writePrefix: writePrefix, readPrefix: readPrefix}
}

// Save persists a report and returns its object key.
func (r *Reports) Save(ctx context.Context, name, text string) (string, error) {
	key := storage.Key(r.writePrefix, name)
	if _, err := r.objects.Put(ctx, key, []byte(text), storage.ContentTypeText); err != nil {
		return "", fmt.Errorf("save report %s: %w", name, err)
	}
	return key, nil
}

// List returns the stored reports, newest first.
func (r *Reports) List(ctx context.Context) ([]ReportInfo, error) {
	prefix := strings.Trim(r.writePrefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	objects, err := r.objects.List(ctx, prefix)
	if err != nil {
		return nil, domain.NewExternalError("no se pudieron listar los reportes", err)
	}
	list := make([]ReportInfo, 0, len(objects))
	for _, o := range objects {
		name := path.Base(o.Key)
		if name == "" || strings.HasSuffix(o.Key, "/") {
			continue
		}
		list = append(list, ReportInfo{Name: name, Size: o.Size, ModifiedAt: o.ModifiedAt})
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].ModifiedAt.After(list[j].ModifiedAt) })
	return list, nil
}

// Get reads one report by file name.
func (r *Reports) Get(ctx context.Context, name string) ([]byte, error) {
	if name == "" || strings.Contains(name, "/") || strings.Contains(name, "..") {
		return nil, domain.NewValidationError(fmt.Sprintf("nombre de reporte inválido: %q", name))
	}
	data, err := r.objects.Get(ctx, storage.Key(r.readPrefix, name))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, domain.NewNotFoundError(fmt.Sprintf("Reporte %s no encontrado", name))
	}
	if err != nil {
		return nil, domain.NewExternalError(fmt.Sprintf("no se pudo leer el reporte %s", name), err)
	}
	return data, nil
}
