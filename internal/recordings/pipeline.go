package recordings

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/amelidiaz19/zoom-api/internal/domain"
	"github.com/amelidiaz19/zoom-api/internal/models"
	"github.com/amelidiaz19/zoom-api/pkg/metrics"
	"github.com/amelidiaz19/zoom-api/pkg/storage"
)

// maxSuffixProbes bounds the search for a free numeric suffix.
const maxSuffixProbes = 50

// ZoomID accepts the meeting id as either a JSON number or a string.
type ZoomID string

func (z *ZoomID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*z = ZoomID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*z = ZoomID(n.String())
	return nil
}

// RecordingFile is one file of a cloud recording.
type RecordingFile struct {
	ID            string `json:"id"`
	MeetingID     string `json:"meeting_id"`
	FileType      string `json:"file_type"`
	FileExtension string `json:"file_extension"`
	FileSize      int64  `json:"file_size"`
	DownloadURL   string `json:"download_url"`
	Status        string `json:"status"`
	RecordingType string `json:"recording_type"`
}

// RecordingPayload is the payload of a recording.completed event.
type RecordingPayload struct {
	AccountID string `json:"account_id"`
	Object    struct {
		UUID           string          `json:"uuid"`
		ID             ZoomID          `json:"id"`
		HostEmail      string          `json:"host_email"`
		Topic          string          `json:"topic"`
		RecordingFiles []RecordingFile `json:"recording_files"`
	} `json:"object"`
}

// MP4 returns the first MP4 file with a download URL.
func (p *RecordingPayload) MP4() (RecordingFile, bool) {
	for _, f := range p.Object.RecordingFiles {
		if strings.EqualFold(f.FileType, "MP4") && f.DownloadURL != "" {
			return f, true
		}
	}
	return RecordingFile{}, false
}

// MeetingStore resolves meetings and their tags.
type MeetingStore interface {
	GetByZoomID(ctx context.Context, zoomID string) (*models.Meeting, error)
	FindTagByID(ctx context.Context, id int64) (*models.Tag, error)
}

// RecordingStore persists archived recordings.
type RecordingStore interface {
	CountByKeyPrefix(ctx context.Context, keyPrefix string) (int, error)
	URLExists(ctx context.Context, url string) (bool, error)
	Create(ctx context.Context, rec *models.Recording) error
}

// CourseLinker resolves course, module and room and inserts the attachment.
type CourseLinker interface {
	FindCourseByCode(ctx context.Context, code string) (*models.Course, error)
	FindModule(ctx context.Context, courseID int64, numeration string) (*models.CourseModule, error)
	FindRoomByName(ctx context.Context, fragment string) (*models.Room, error)
	InsertAttachment(ctx context.Context, a *models.Attachment) error
}

// Downloader fetches recording bytes.
type Downloader interface {
	Download(ctx context.Context, url, token string) ([]byte, error)
}

// ObjectWriter uploads objects and returns their public URL.
type ObjectWriter interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
	PublicURL(key string) string
}

// Locker serializes suffix allocation per naming code.
type Locker interface {
	Acquire(ctx context.Context, name string) (func(), error)
}

// Result describes one ingested recording.
type Result struct {
	PublicURL  string             `json:"url"`
	FileName   string             `json:"nombreArchivo"`
	Recording  *models.Recording  `json:"grabacion"`
	Attachment *models.Attachment `json:"adjunto,omitempty"`
}

// Pipeline archives Zoom cloud recordings and links them to rooms.
type Pipeline struct {
	meetings   MeetingStore
	recordings RecordingStore
	courses    CourseLinker
	downloader Downloader
	objects    ObjectWriter
	locker     Locker
	folder     string
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewPipeline creates an ingestion pipeline writing media under folder.
func NewPipeline(
	meetings MeetingStore,
	recordings RecordingStore,
	courses CourseLinker,
	downloader Downloader,
	objects ObjectWriter,
	locker Locker,
	folder string,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		meetings:   meetings,
		recordings: recordings,
		courses:    courses,
		downloader: downloader,
		objects:    objects,
		locker:     locker,
		folder:     folder,
		metrics:    m,
		logger:     logger,
	}
}

// Ingest downloads the MP4 of a completed recording, archives it under a
// deduplicated name, links it to its room when the name encodes one, and
// records it. It returns even when linking fails; only archival is required.
// The pass is not cancelled when ctx is: a caller that hangs up mid-download
// must not leave an uploaded file without its recording row.
func (p *Pipeline) Ingest(ctx context.Context, payload *RecordingPayload, downloadToken string) (*Result, error) {
	if payload == nil || payload.Object.ID == "" {
		return nil, domain.NewValidationError("zoomId no encontrado en el payload")
	}
	ctx = context.WithoutCancel(ctx)
	zoomID := string(payload.Object.ID)
	log := p.logger.With(zap.String("zoom_id", zoomID))

	meeting, err := p.meetings.GetByZoomID(ctx, zoomID)
	if err != nil {
		return nil, err
	}
	tag, err := p.meetings.FindTagByID(ctx, meeting.TagID)
	if err != nil {
		return nil, err
	}
	file, ok := payload.MP4()
	if !ok {
		return nil, domain.NewValidationError("Archivo MP4 no encontrado")
	}

	data, err := p.downloader.Download(ctx, file.DownloadURL, downloadToken)
	if err != nil {
		return nil, err
	}

	base := meeting.Nomenclatura
	if base == "" {
		base = meeting.ZoomID
	}
	release, err := p.locker.Acquire(ctx, "recording:"+base)
	if err != nil {
		return nil, domain.NewConflictError("recording name allocation busy for "+base, err)
	}
	defer release()

	fileName, err := p.nextFileName(ctx, base)
	if err != nil {
		return nil, err
	}
	key := storage.Key(p.folder, fileName)
	publicURL, err := p.objects.Put(ctx, key, data, storage.ContentTypeMP4)
	if err != nil {
		return nil, domain.NewExternalError("Error al subir el video a R2", err)
	}
	log.Info("recording archived",
		zap.String("tag", tag.Name),
		zap.String("key", key),
		zap.Int("bytes", len(data)),
	)

	attachment := p.link(ctx, log, fileName)

	rec := &models.Recording{
		MeetingID:   meeting.ZoomID,
		DownloadURL: publicURL,
		Status:      models.RecordingStatusPending,
	}
	if err := p.recordings.Create(ctx, rec); err != nil {
		return nil, err
	}
	p.metrics.ObserveIngestion(attachment != nil)

	return &Result{PublicURL: publicURL, FileName: fileName, Recording: rec, Attachment: attachment}, nil
}

// nextFileName returns <base>_<n>.mp4 where n is one past the number of
// recordings already stored under base, skipping any suffix still taken.
func (p *Pipeline) nextFileName(ctx context.Context, base string) (string, error) {
	count, err := p.recordings.CountByKeyPrefix(ctx, storage.Key(p.folder, base))
	if err != nil {
		return "", err
	}
	for n := count + 1; n <= count+maxSuffixProbes; n++ {
		name := base + "_" + strconv.Itoa(n) + ".mp4"
		taken, err := p.recordings.URLExists(ctx, p.objects.PublicURL(storage.Key(p.folder, name)))
		if err != nil {
			return "", err
		}
		if !taken {
			return name, nil
		}
	}
	return "", domain.NewConflictError(fmt.Sprintf("no free recording suffix for %s", base))
}

// link resolves course, module and room from the filename and inserts the
// attachment. Any failure is logged with the full row and skips the insert.
func (p *Pipeline) link(ctx context.Context, log *zap.Logger, fileName string) *models.Attachment {
	parsed := ParseFileName(fileName)
	var (
		course *models.Course
		module *models.CourseModule
		room   *models.Room
		reason string
	)
	if !parsed.Matched {
		reason = "filename does not encode course, module and group"
	} else {
		var err error
		if course, err = p.courses.FindCourseByCode(ctx, parsed.Code); err != nil {
			reason = lookupReason("course", err)
		} else if module, err = p.courses.FindModule(ctx, course.ID, parsed.Module); err != nil {
			reason = lookupReason("module", err)
		}
		if r, err := p.courses.FindRoomByName(ctx, parsed.RoomFragment()); err != nil {
			if reason == "" {
				reason = lookupReason("room", err)
			}
		} else {
			room = r
		}
	}

	var a *models.Attachment
	if reason == "" {
		a = models.NewVideoAttachment(module.ID, room.ID, fileName, course.Name, parsed.Order)
		if err := p.courses.InsertAttachment(ctx, a); err != nil {
			reason = "insert failed: " + err.Error()
		}
	}

	fields := []zap.Field{
		zap.String("NombreArchivo", fileName),
		zap.String("codigo_curso", parsed.Code),
		zap.String("numeracion", parsed.Module),
		zap.String("grupo", parsed.Group),
		zap.Int("Orden", parsed.Order),
		zap.String("sala_buscada", parsed.RoomFragment()),
		zap.String("Tipo1", models.AttachmentTipo1),
		zap.String("Tipo2", models.AttachmentTipo2),
		zap.String("Tipo3", models.AttachmentTipo3),
		zap.String("Tipo4", models.AttachmentTipo4),
		zap.Int("Estado_id", models.AttachmentStatusActive),
	}
	if module != nil {
		fields = append(fields, zap.Int64("ProductoTemario_id", module.ID))
	}
	if room != nil {
		fields = append(fields, zap.Int64("Sala_id", room.ID))
	}
	if course != nil {
		fields = append(fields, zap.String("NombreFinal", course.Name))
	}
	if reason != "" {
		log.Warn("attachment not linked", append(fields, zap.String("reason", reason))...)
		return nil
	}
	log.Info("attachment linked", append(fields, zap.Int64("IdProductoTemarioAdjunto", a.ID))...)
	return a
}

func lookupReason(what string, err error) string {
	if domain.IsNotFound(err) {
		return what + " not found"
	}
	return what + " lookup failed: " + err.Error()
}
