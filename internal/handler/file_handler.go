package handler

import (
	"io"
	"net/http"
	"os"
	"path"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/railway-hrm-api/pkg/errors"
	"github.com/noah-isme/railway-hrm-api/pkg/response"
	"github.com/noah-isme/railway-hrm-api/pkg/storage"
)

type downloadTokenVerifier interface {
	Verify(token string) (storage.SignedHandle, error)
}

type fileOpener interface {
	Open(handle string) (*os.File, error)
}

// FileHandler serves stored documents behind signed download tokens.
type FileHandler struct {
	signer downloadTokenVerifier
	files  fileOpener
	logger *zap.Logger
}

// NewFileHandler constructs a FileHandler.
func NewFileHandler(signer downloadTokenVerifier, files fileOpener, logger *zap.Logger) *FileHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileHandler{signer: signer, files: files, logger: logger}
}

// Download godoc
// @Summary Download a stored document
// @Tags Files
// @Param token path string true "Signed download token"
// @Success 200
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/{token} [get]
func (h *FileHandler) Download(c *gin.Context) {
	signed, err := h.signer.Verify(c.Param("token"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download link"))
		return
	}
	handle := signed.Handle
	file, err := h.files.Open(handle)
	if err != nil {
		h.logger.Warn("signed download target unavailable", zap.String("handle", handle), zap.Error(err))
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || !info.Mode().IsRegular() {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
		return
	}
	mime, err := mimetype.DetectReader(file)
	if err == nil {
		c.Header("Content-Type", mime.String())
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, appErrors.ErrStorage.Message))
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	http.ServeContent(c.Writer, c.Request, path.Base(handle), info.ModTime(), file)
}
