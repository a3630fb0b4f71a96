package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nitesh/nearby_news/internal/service"
	"github.com/nitesh/nearby_news/internal/upload"
	"github.com/nitesh/nearby_news/internal/validate"
	"github.com/nitesh/nearby_news/pkg/models"
)

//go:generate mockgen -source=handler.go -destination=mocks/mock.go

type NewsService interface {
	Create(ctx context.Context, raw validate.RawNews, img *service.Image) (*models.NewsItem, error)
	Nearby(ctx context.Context, raw validate.RawQuery) (*models.QueryResult, error)
	UpdateLocation(ctx context.Context, raw validate.RawPing) (*models.LocationPing, bool, error)
	ImagePath(name string) (string, error)
	Health(ctx context.Context) error
}

type Handler struct {
	svc         NewsService
	log         *slog.Logger
	maxBodySize int64
}

// multipart overhead allowed on top of the image size limit
const formSlack = 1 << 20

func NewHandler(svc NewsService, log *slog.Logger, maxImageBytes int64) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if maxImageBytes <= 0 {
		maxImageBytes = upload.DefaultMaxBytes
	}
	return &Handler{svc: svc, log: log, maxBodySize: maxImageBytes + formSlack}
}

// RegisterRoutes mounts the API under /api/v1. writeMW runs in front of the
// endpoints that create records.
func RegisterRoutes(r *gin.Engine, h *Handler, writeMW ...gin.HandlerFunc) {
	r.GET("/health", h.Health)

	write := func(hf gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, writeMW...), hf)
	}

	v1 := r.Group("/api/v1")
	{
		v1.POST("/news", write(h.CreateNews)...)
		v1.POST("/news/create", write(h.CreateNews)...)
		v1.GET("/news/nearby", h.Nearby)
		v1.POST("/location", write(h.UpdateLocation)...)
		v1.POST("/location/update", write(h.UpdateLocation)...)
		v1.GET("/uploads/news/:name", h.ServeImage)
		v1.GET("/health", h.Health)
	}
}

type newsBody struct {
	Content   string          `json:"content"`
	Latitude  validate.Number `json:"latitude"`
	Longitude validate.Number `json:"longitude"`
}

// CreateNews: POST /api/v1/news
// Body: JSON {content, latitude, longitude} or multipart form with the same
// fields and an optional "image" file.
func (h *Handler) CreateNews(c *gin.Context) {
	var (
		raw validate.RawNews
		img *service.Image
	)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodySize)
		if err := c.Request.ParseMultipartForm(8 << 20); err != nil {
			h.formError(c, err)
			return
		}
		raw = validate.RawNews{
			Content:   c.PostForm("content"),
			Latitude:  validate.NumberOf(c.PostForm("latitude")),
			Longitude: validate.NumberOf(c.PostForm("longitude")),
		}
		file, header, err := c.Request.FormFile("image")
		switch {
		case err == nil:
			defer file.Close() //nolint:errcheck
			img = &service.Image{Body: file, ContentType: imageType(header)}
		case !errors.Is(err, http.ErrMissingFile):
			h.formError(c, err)
			return
		}
	} else {
		var body newsBody
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			badJSON(c)
			return
		}
		raw = validate.RawNews{Content: body.Content, Latitude: body.Latitude, Longitude: body.Longitude}
	}

	item, err := h.svc.Create(c.Request.Context(), raw, img)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "News created successfully",
		"data":    item,
	})
}

// Nearby: GET /api/v1/news/nearby?lat=40&lng=-74&radius=5000&sort=distance&page=1&limit=10
func (h *Handler) Nearby(c *gin.Context) {
	raw := validate.RawQuery{
		Lat:    validate.NumberOf(c.Query("lat")),
		Lng:    validate.NumberOf(c.Query("lng")),
		Radius: validate.NumberOf(c.Query("radius")),
		Sort:   c.Query("sort"),
		Page:   validate.NumberOf(c.Query("page")),
		Limit:  validate.NumberOf(c.Query("limit")),
	}
	res, err := h.svc.Nearby(c.Request.Context(), raw)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type locationBody struct {
	Latitude  validate.Number `json:"latitude"`
	Longitude validate.Number `json:"longitude"`
	DeviceID  string          `json:"deviceId"`
}

// UpdateLocation: POST /api/v1/location
// Body: {latitude, longitude, deviceId?}
func (h *Handler) UpdateLocation(c *gin.Context) {
	var body locationBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		badJSON(c)
		return
	}
	ping, created, err := h.svc.UpdateLocation(c.Request.Context(), validate.RawPing{
		Latitude:  body.Latitude,
		Longitude: body.Longitude,
		DeviceID:  body.DeviceID,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"success": true,
		"message": "Location received successfully",
		"data":    ping,
	})
}

// ServeImage: GET /api/v1/uploads/news/:name
func (h *Handler) ServeImage(c *gin.Context) {
	path, err := h.svc.ImagePath(c.Param("name"))
	switch {
	case err == nil:
		c.File(path)
	case errors.Is(err, upload.ErrInvalidName):
		c.JSON(http.StatusBadRequest, errorBody("InvalidParameter", "name", "invalid image name"))
	case errors.Is(err, upload.ErrNotFound):
		c.JSON(http.StatusNotFound, errorBody("NotFound", "name", "image not found"))
	default:
		h.fail(c, err)
	}
}

// Health: GET /health
func (h *Handler) Health(c *gin.Context) {
	if err := h.svc.Health(c.Request.Context()); err != nil {
		h.log.Warn("health check failed", slog.Any("error", err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func imageType(h *multipart.FileHeader) string {
	if h == nil {
		return ""
	}
	return h.Header.Get("Content-Type")
}
