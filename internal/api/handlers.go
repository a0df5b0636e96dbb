package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"soilchat/internal/archive"
	"soilchat/internal/auth"
	"soilchat/internal/middleware"
	"soilchat/internal/service/ai"
	"soilchat/internal/service/assistant"
	"soilchat/internal/service/fertility"
	"soilchat/internal/service/soiltype"
	"soilchat/internal/service/tool"
	"soilchat/internal/worker"
)

const (
	statusSuccess    = "Success"
	statusErrorValue = "Error"

	llmUnavailableMessage  = "Gemini AI service not available. Please set GEMINI_API_KEY."
	chatUnavailableMessage = "Chatbot service not available. Please set GEMINI_API_KEY."
	busyMessage            = "server is busy, please retry"
)

// Deps bundles everything the handlers need. Optional components may be nil.
type Deps struct {
	Sessions     *assistant.Service
	Fertility    *fertility.Service
	SoilType     *soiltype.Service
	Assistant    *ai.Assistant
	Tools        *tool.Dispatcher
	Workers      *worker.Dispatcher
	Archive      archive.Store
	Auth         *auth.Service
	Limiter      *middleware.RateLimiter
	Logger       *zap.Logger
	HistoryLimit int
}

// Handler wires HTTP routes to the soil services and the chat store.
type Handler struct {
	sessions     *assistant.Service
	fertility    *fertility.Service
	soilType     *soiltype.Service
	assistant    *ai.Assistant
	tools        *tool.Dispatcher
	workers      *worker.Dispatcher
	archive      archive.Store
	auth         *auth.Service
	limiter      *middleware.RateLimiter
	logger       *zap.Logger
	historyLimit int
}

// NewHandler constructs a Handler instance.
func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tools := d.Tools
	if tools == nil {
		tools = tool.NewDispatcher(d.Fertility)
	}
	limit := d.HistoryLimit
	if limit <= 0 {
		limit = assistant.DefaultHistoryLimit
	}
	return &Handler{
		sessions:     d.Sessions,
		fertility:    d.Fertility,
		soilType:     d.SoilType,
		assistant:    d.Assistant,
		tools:        tools,
		workers:      d.Workers,
		archive:      d.Archive,
		auth:         d.Auth,
		limiter:      d.Limiter,
		logger:       logger,
		historyLimit: limit,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.health)
	router.GET("/test-fertility", h.testFertility)

	api := router.Group("/")
	api.Use(h.auth.Middleware())
	limited := h.limiter.Middleware()

	api.POST("/predict-type", h.predictType)
	api.POST("/predict-fertility", limited, h.predictFertility)
	api.POST("/extract-nutrients", limited, h.extractNutrients)
	api.POST("/debug-image-text", limited, h.debugImageText)

	chat := api.Group("/chat")
	chat.POST("/session", h.createSession)
	chat.GET("/sessions", h.listSessions)
	chat.POST("/message", limited, h.sendMessage)
	chat.GET("/history/:session_id", h.getHistory)
	chat.DELETE("/clear/:session_id", h.clearSession)
	chat.POST("/analyze-fertility", h.analyzeFertility)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "OK",
		"models": gin.H{
			"fertility": h.fertility.Available(),
			"soil_type": h.soilType.Available(),
		},
		"llm": h.assistant.Available(),
	})
}

// upload is one multipart file read into memory.
type upload struct {
	Name        string
	ContentType string
	Data        []byte
}

var (
	errNoFile    = errors.New("no file part")
	errEmptyFile = errors.New("no file selected")
)

// readUpload loads the multipart file stored under field.
func readUpload(c *gin.Context, field string) (*upload, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, errNoFile
	}
	if fh.Filename == "" || fh.Size == 0 {
		return nil, errEmptyFile
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return &upload{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Data: data}, nil
}

// keep archives an upload; failures are logged and never fail the request.
func (h *Handler) keep(ctx context.Context, category string, up *upload) {
	if h.archive == nil || up == nil {
		return
	}
	where, err := archive.Save(ctx, h.archive, category, up.Name, up.ContentType, up.Data)
	if err != nil {
		h.logger.Warn("archive upload failed", zap.String("category", category), zap.Error(err))
		return
	}
	h.logger.Debug("archived upload", zap.String("category", category), zap.String("location", where))
}

// statusFor maps worker and request errors shared by every slow route.
func statusFor(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, worker.ErrDispatcherBusy):
		return http.StatusTooManyRequests, busyMessage
	case errors.Is(err, worker.ErrDispatcherClosed):
		return http.StatusServiceUnavailable, "server is shutting down"
	case errors.Is(err, worker.ErrJobCanceled):
		return http.StatusConflict, "session was cleared before the request ran"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request cancelled"
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "request body too large"
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func statusError(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"status": statusErrorValue, "message": message})
}
