package uploads

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/amelidiaz19/zoom-api/pkg/response"
	"github.com/amelidiaz19/zoom-api/pkg/storage"
)

// ObjectStore is the subset of the object store gateway used for uploads.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	PublicURL(key string) string
}

// FileInfo describes an uploaded or deleted MP4.
type FileInfo struct {
	Name   string `json:"nombre"`
	Size   string `json:"tamano,omitempty"`
	Type   string `json:"tipo,omitempty"`
	Folder string `json:"carpeta"`
	Status string `json:"estado,omitempty"`
}

// Handler handles MP4 upload and delete endpoints.
type Handler struct {
	objects       ObjectStore
	defaultFolder string
	logger        *zap.Logger
}

// NewHandler creates an upload handler writing under defaultFolder unless a
// request names another folder.
func NewHandler(objects ObjectStore, defaultFolder string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{objects: objects, defaultFolder: defaultFolder, logger: logger}
}

func (h *Handler) folder(c *gin.Context) (string, bool) {
	folder := c.PostForm("carpeta")
	if folder == "" {
		folder = c.Query("carpeta")
	}
	if folder == "" {
		return h.defaultFolder, true
	}
	folder = strings.Trim(folder, "/")
	if strings.Contains(folder, "..") {
		response.BadRequest(c, "carpeta inválida")
		return "", false
	}
	return folder, true
}

func isMP4Name(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".mp4")
}

// Upload handles POST /upload/mp4 (multipart field "file", optional "carpeta").
func (h *Handler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "No se ha proporcionado ningún archivo")
		return
	}
	if ct := fh.Header.Get("Content-Type"); ct != storage.ContentTypeMP4 {
		response.BadRequest(c, "Solo se permiten archivos MP4")
		return
	}
	name := path.Base(fh.Filename)
	if !isMP4Name(name) {
		response.BadRequest(c, "El archivo debe tener extensión .mp4")
		return
	}
	folder, ok := h.folder(c)
	if !ok {
		return
	}

	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "no se pudo leer el archivo")
		return
	}
	defer f.Close()
	body, err := io.ReadAll(f)
	if err != nil {
		response.BadRequest(c, "no se pudo leer el archivo")
		return
	}

	key := storage.Key(folder, name)
	url, err := h.objects.Put(c.Request.Context(), key, body, storage.ContentTypeMP4)
	if err != nil {
		h.logger.Error("upload mp4", zap.String("key", key), zap.Error(err))
		response.BadGateway(c, "Error al subir MP4: "+err.Error())
		return
	}
	h.logger.Info("mp4 uploaded", zap.String("key", key), zap.Int64("size", fh.Size))
	response.OK(c, gin.H{
		"message": "Video MP4 subido exitosamente",
		"archivo": FileInfo{
			Name:   name,
			Size:   fmt.Sprintf("%.2f MB", float64(fh.Size)/1024/1024),
			Type:   storage.ContentTypeMP4,
			Folder: folder,
		},
		"urlPublica": url,
	})
}

// Delete handles DELETE /upload/mp4/:nombreArchivo (optional "carpeta").
// A missing object answers 404.
func (h *Handler) Delete(c *gin.Context) {
	name := c.Param("nombreArchivo")
	if name == "" || strings.Contains(name, "/") {
		response.BadRequest(c, "Debe proporcionar el nombre del archivo")
		return
	}
	if !isMP4Name(name) {
		response.BadRequest(c, "Solo se pueden eliminar archivos .mp4")
		return
	}
	folder, ok := h.folder(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	key := storage.Key(folder, name)
	exists, err := h.objects.Exists(ctx, key)
	if err != nil {
		h.logger.Error("check mp4", zap.String("key", key), zap.Error(err))
		response.BadGateway(c, "Error al eliminar MP4: "+err.Error())
		return
	}
	if !exists {
		response.NotFound(c, fmt.Sprintf("El archivo %s no existe en R2", name))
		return
	}
	if err := h.objects.Delete(ctx, key); err != nil {
		h.logger.Error("delete mp4", zap.String("key", key), zap.Error(err))
		response.BadGateway(c, "Error al eliminar MP4: "+err.Error())
		return
	}
	h.logger.Info("mp4 deleted", zap.String("key", key))
	response.OK(c, gin.H{
		"message": "Video MP4 eliminado exitosamente",
		"archivo": FileInfo{Name: name, Folder: folder, Status: "Eliminado"},
	})
}
