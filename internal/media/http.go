package media

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abduss/tribute/internal/logger"
)

// RegisterRoutes mounts media operations under the provided router group.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	group.POST("/media", handler.upload)
	group.GET("/media", handler.list)
	group.GET("/media/:mediaID", handler.describe)
	group.GET("/media/:mediaID/download", handler.download)
	group.POST("/media/:mediaID/reprocess", handler.reprocess)
	group.DELETE("/media/:mediaID", handler.delete)
}

type httpHandler struct {
	service *Service
}

func (h *httpHandler) upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}

	isPublic, _ := strconv.ParseBool(c.DefaultPostForm("is_public", "false"))

	m, err := h.service.Upload(c.Request.Context(), fileHeader, isPublic)
	if err != nil {
		switch {
		case errors.Is(err, ErrFileTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		case errors.Is(err, ErrEmptyFile), errors.Is(err, ErrMissingFile):
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is empty"})
		case errors.Is(err, ErrUnsupportedType):
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported file type"})
		default:
			h.internal(c, "upload media", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to upload media"})
		}
		return
	}

	c.JSON(http.StatusCreated, m)
}

func (h *httpHandler) list(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	list, err := h.service.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.internal(c, "list media", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list media"})
		return
	}
	if list == nil {
		list = []Media{}
	}

	c.JSON(http.StatusOK, gin.H{"media": list})
}

func (h *httpHandler) describe(c *gin.Context) {
	id, ok := mediaID(c)
	if !ok {
		return
	}

	detail, err := h.service.Describe(c.Request.Context(), id)
	if err != nil {
		h.respondLookupError(c, "describe media", err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

func (h *httpHandler) download(c *gin.Context) {
	id, ok := mediaID(c)
	if !ok {
		return
	}

	m, reader, err := h.service.Download(c.Request.Context(), id)
	if err != nil {
		h.respondLookupError(c, "download media", err)
		return
	}
	defer reader.Close()

	c.Header("Content-Type", m.MimeType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", m.OriginalFilename))
	c.Header("Content-Length", strconv.FormatInt(m.SizeBytes, 10))

	if _, err := io.Copy(c.Writer, reader); err != nil {
		h.internal(c, "stream original", err)
		c.Status(http.StatusInternalServerError)
		return
	}
}

func (h *httpHandler) reprocess(c *gin.Context) {
	id, ok := mediaID(c)
	if !ok {
		return
	}

	m, err := h.service.Reprocess(c.Request.Context(), id)
	if err != nil {
		h.respondLookupError(c, "reprocess media", err)
		return
	}

	c.JSON(http.StatusAccepted, m)
}

func (h *httpHandler) delete(c *gin.Context) {
	id, ok := mediaID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		h.respondLookupError(c, "delete media", err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *httpHandler) respondLookupError(c *gin.Context, op string, err error) {
	if errors.Is(err, ErrMediaNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "media not found"})
		return
	}
	h.internal(c, op, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to " + op})
}

func (h *httpHandler) internal(c *gin.Context, op string, err error) {
	_ = c.Error(err)
	logger.FromContext(c.Request.Context()).Error(op, zap.Error(err))
}

func mediaID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("mediaID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid media id"})
		return uuid.Nil, false
	}
	return id, true
}
