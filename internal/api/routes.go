package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/tawa/adapters/events"
	"github.com/satriahrh/tawa/domain"
	"github.com/satriahrh/tawa/domain/entities"
	"github.com/satriahrh/tawa/internal/auth"
	"github.com/satriahrh/tawa/internal/websocket"
	"github.com/satriahrh/tawa/usecase"
)

const (
	// DefaultMaxUploadBytes bounds one multipart upload.
	DefaultMaxUploadBytes int64 = 50 << 20

	// Multipart parts above this size are spooled to temp files.
	multipartMemory = 8 << 20

	ownerContextKey = "owner_id"
)

// Ingester runs the ingest pipeline for one upload
type Ingester interface {
	Ingest(ctx context.Context, req usecase.IngestRequest) (*entities.AnalysisRecord, error)
}

// RecordingStore serves an owner's recordings after ingest
type RecordingStore interface {
	List(ctx context.Context, ownerID string, limit int) ([]*entities.AnalysisRecord, error)
	Get(ctx context.Context, ownerID, id string) (*entities.AnalysisRecord, error)
	Update(ctx context.Context, ownerID, id string, patch entities.RecordPatch) (*entities.AnalysisRecord, error)
	Delete(ctx context.Context, ownerID, id string) error
	Audio(ctx context.Context, ownerID, id string) ([]byte, string, error)
}

// StageCounter summarizes logged ingest events
type StageCounter interface {
	StageCounts(ctx context.Context, since time.Time) ([]events.StageCount, error)
}

// Dependencies are the collaborators the routes are served from
type Dependencies struct {
	Ingest     Ingester
	Recordings RecordingStore
	Hub        *websocket.Hub
	Signer     *auth.Signer
	Status     StatusResponse
	// Stats is optional; without it /api/v1/stats answers 503
	Stats StageCounter
	// MaxUploadBytes defaults to DefaultMaxUploadBytes
	MaxUploadBytes int64
	// RequireToken rejects requests that only carry a userId field
	RequireToken bool
	Logger         *zap.Logger
}

type handler struct {
	Dependencies
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies) {
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = DefaultMaxUploadBytes
	}
	h := &handler{Dependencies: deps}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "tawa-server",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")
	v1.GET("/status", h.status)
	v1.GET("/stats", h.stats)

	recordings := v1.Group("/recordings", h.ownerMiddleware)
	recordings.POST("", h.ingest)
	recordings.GET("", h.list)
	recordings.GET("/:id", h.get)
	recordings.GET("/:id/audio", h.audio)
	recordings.PATCH("/:id", h.update)
	recordings.DELETE("/:id", h.delete)

	// WebSocket endpoint with JWT validation
	e.GET("/ws", h.websocketWithAuth)
}

// bearerToken extracts the JWT from the Authorization header only
func bearerToken(c echo.Context) string {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}

// ownerMiddleware resolves the owner from a bearer token, falling back to the
// userId form or query field when no token is sent.
func (h *handler) ownerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		if req.Method == http.MethodPost {
			req.Body = http.MaxBytesReader(c.Response(), req.Body, h.MaxUploadBytes)
			// Spooled parts live in temp files until the request is done.
			defer func() {
				if req.MultipartForm != nil {
					req.MultipartForm.RemoveAll()
				}
			}()
		}

		if token := bearerToken(c); token != "" {
			if h.Signer == nil {
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "auth_disabled",
					Message: "Bearer tokens are not accepted by this server",
				})
			}
			claims, err := h.Signer.ValidateToken(token)
			if err != nil {
				h.Logger.Warn("Request rejected: invalid token", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "invalid_token",
					Message: "Invalid or expired JWT token",
				})
			}
			c.Set(ownerContextKey, claims.UserID)
			return next(c)
		}

		if h.RequireToken {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "missing_token",
				Message: "JWT token is required in Authorization header",
			})
		}

		ownerID := strings.TrimSpace(c.QueryParam("userId"))
		if ownerID == "" && req.Method == http.MethodPost {
			if err := req.ParseMultipartForm(multipartMemory); err == nil {
				ownerID = strings.TrimSpace(req.FormValue("userId"))
			}
		}
		if ownerID == "" {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "missing_owner",
				Message: "A bearer token or userId is required",
			})
		}
		c.Set(ownerContextKey, ownerID)
		return next(c)
	}
}

func ownerFrom(c echo.Context) string {
	owner, _ := c.Get(ownerContextKey).(string)
	return owner
}

func (h *handler) ingest(c echo.Context) error {
	req := c.Request()
	if err := req.ParseMultipartForm(multipartMemory); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_upload",
			Message: "Request must be multipart/form-data within the upload limit",
			Details: err.Error(),
		})
	}

	file, header, err := req.FormFile("audio")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_audio",
			Message: "The audio field is required",
		})
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_upload",
			Message: "Failed to read audio",
			Details: err.Error(),
		})
	}

	duration, err := parseOptionalFloat(req.FormValue("duration"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_duration",
			Message: "duration must be a number of seconds",
		})
	}

	ownerID := ownerFrom(c)
	record, err := h.Ingest.Ingest(req.Context(), usecase.IngestRequest{
		OwnerID:         ownerID,
		Audio:           data,
		Filename:        header.Filename,
		ContentType:     header.Header.Get(echo.HeaderContentType),
		DurationSeconds: duration,
		Name:            req.FormValue("name"),
		Language:        req.FormValue("language"),
	})
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(http.StatusOK, IngestResponse{
		Success:       true,
		RecordID:      record.ID,
		Transcription: record.Transcription,
		Emotions:      record.Emotions,
		Record:        record,
	})
}

func (h *handler) list(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_limit",
				Message: "limit must be a positive integer",
			})
		}
		limit = n
	}

	records, err := h.Recordings.List(c.Request().Context(), ownerFrom(c), limit)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, ListResponse{Recordings: records, Count: len(records)})
}

func (h *handler) get(c echo.Context) error {
	record, err := h.Recordings.Get(c.Request().Context(), ownerFrom(c), c.Param("id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, record)
}

func (h *handler) audio(c echo.Context) error {
	data, contentType, err := h.Recordings.Audio(c.Request().Context(), ownerFrom(c), c.Param("id"))
	if err != nil {
		return h.respondError(c, err)
	}
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	return c.Blob(http.StatusOK, contentType, data)
}

func (h *handler) update(c echo.Context) error {
	var patch entities.RecordPatch
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	record, err := h.Recordings.Update(c.Request().Context(), ownerFrom(c), c.Param("id"), patch)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, record)
}

func (h *handler) delete(c echo.Context) error {
	if err := h.Recordings.Delete(c.Request().Context(), ownerFrom(c), c.Param("id")); err != nil {
		return h.respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handler) status(c echo.Context) error {
	resp := h.Status
	resp.Success = true
	resp.CheckedAt = time.Now().UTC()
	if resp.Events == nil {
		resp.Events = []string{}
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *handler) stats(c echo.Context) error {
	if h.Stats == nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "stats_disabled",
			Message: "Ingest event log is not configured",
		})
	}

	hours := 24
	if raw := c.QueryParam("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_hours",
				Message: "hours must be a positive integer",
			})
		}
		hours = n
	}

	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	counts, err := h.Stats.StageCounts(c.Request().Context(), since)
	if err != nil {
		return h.respondError(c, err)
	}

	stages := make(map[string]uint64, len(counts))
	for _, sc := range counts {
		stages[sc.Stage] = sc.Count
	}
	return c.JSON(http.StatusOK, StatsResponse{Since: since, Stages: stages})
}

// websocketWithAuth handles WebSocket connections with JWT authentication
func (h *handler) websocketWithAuth(c echo.Context) error {
	token := bearerToken(c)
	if token == "" {
		h.Logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required in Authorization header",
		})
	}
	if h.Signer == nil || h.Hub == nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "websocket_disabled",
			Message: "Progress stream is not configured",
		})
	}

	claims, err := h.Signer.ValidateToken(token)
	if err != nil {
		h.Logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}

	h.Logger.Info("WebSocket connection authenticated", zap.String("owner_id", claims.UserID))
	return websocket.HandleWebSocketWithAuth(h.Hub, c, claims.UserID, h.Logger)
}

// respondError maps domain errors to HTTP responses
func (h *handler) respondError(c echo.Context, err error) error {
	var ingestErr *domain.IngestError
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
	case errors.Is(err, domain.ErrRecordNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Recording not found",
		})
	case errors.As(err, &ingestErr):
		h.Logger.Error("Ingest failed", zap.String("owner_id", ownerFrom(c)), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   errorCode(ingestErr.Kind),
			Message: ingestErr.Message,
			Details: ingestErr.Details(),
		})
	default:
		h.Logger.Error("Request failed", zap.String("path", c.Path()), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Request failed",
			Details: err.Error(),
		})
	}
}

func errorCode(kind error) string {
	switch {
	case errors.Is(kind, domain.ErrStorageWriteFailed):
		return "storage_write_failed"
	case errors.Is(kind, domain.ErrTranscriptionFailed):
		return "transcription_failed"
	case errors.Is(kind, domain.ErrRecordWriteFailed):
		return "record_write_failed"
	default:
		return "ingest_failed"
	}
}

func parseOptionalFloat(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", raw, err)
	}
	return v, nil
}
