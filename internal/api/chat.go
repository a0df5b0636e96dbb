package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"soilchat/internal/models"
	"soilchat/internal/service/ai"
	"soilchat/internal/service/soiltype"
	"soilchat/internal/service/tool"
	"soilchat/internal/worker"
)

// chatWindow is how many stored turns are replayed to the model.
const chatWindow = 10

const defaultToolMessage = "I've analyzed your soil fertility!"

func (h *Handler) createSession(c *gin.Context) {
	id := uuid.NewString()
	if _, err := h.sessions.CreateSession(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session_id": id})
}

func (h *Handler) listSessions(c *gin.Context) {
	sessions, err := h.sessions.ListSessions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Language  string `json:"language"`

	upload *upload
	image  *ai.Image
	// multipart requests get the analyzer hint on text only turns
	multipart bool
}

// parseChatRequest accepts either a JSON body or a multipart form with an
// optional image. It writes the error response on failure.
func parseChatRequest(c *gin.Context) (*chatRequest, bool) {
	req := &chatRequest{}
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		req.multipart = true
		req.SessionID = c.PostForm("session_id")
		req.Message = c.PostForm("message")
		req.Language = c.PostForm("language")
		if req.SessionID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
			return nil, false
		}
		up, err := readUpload(c, "image")
		switch {
		case errors.Is(err, errNoFile), errors.Is(err, errEmptyFile):
		case err != nil:
			code, msg := statusFor(err)
			c.JSON(code, gin.H{"error": msg})
			return nil, false
		default:
			mime, err := soiltype.Sniff(up.Data)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to process image: " + err.Error()})
				return nil, false
			}
			req.upload = up
			req.image = ai.NewImage(up.Data, mime)
			if req.Message != "" {
				req.Message = "[Image uploaded] " + req.Message
			} else {
				req.Message = "[Image uploaded]"
			}
		}
		return req, true
	}

	if err := c.ShouldBindJSON(req); err != nil || req.SessionID == "" || req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and message are required"})
		return nil, false
	}
	return req, true
}

func (h *Handler) sendMessage(c *gin.Context) {
	if !h.assistant.Available() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": chatUnavailableMessage})
		return
	}
	req, ok := parseChatRequest(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if _, err := h.sessions.AddMessage(ctx, req.SessionID, models.RoleUser, req.Message); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.keep(ctx, "chat", req.upload)
	history, err := h.sessions.History(ctx, req.SessionID, chatWindow)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	prompt := ai.ChatPrompt{
		Language: ai.ParseLanguage(req.Language),
		History:  history,
		Message:  req.Message,
		ToolHint: req.multipart,
	}
	reply, err := worker.Call(ctx, h.workers, req.SessionID, func(ctx context.Context) (ai.Reply, error) {
		return h.assistant.Chat(ctx, prompt, req.image)
	})
	if err != nil {
		h.logger.Warn("chat completion failed", zap.String("session_id", req.SessionID), zap.Error(err))
		code, msg := statusFor(err)
		c.JSON(code, gin.H{"error": msg})
		return
	}

	resp := gin.H{"session_id": req.SessionID}
	if reply.OK && reply.String("action") == tool.ActionAnalyzeFertility {
		result, err := h.tools.Dispatch(reply.Object)
		if err == nil {
			message := reply.String("message")
			if message == "" {
				message = defaultToolMessage
			}
			// tool turns are returned but not stored
			resp["message"] = message
			resp["tool_result"] = result
			c.JSON(http.StatusOK, resp)
			return
		}
		h.logger.Warn("fertility tool failed", zap.String("session_id", req.SessionID), zap.Error(err))
		resp["tool_error"] = err.Error()
	}

	if _, err := h.sessions.AddMessage(ctx, req.SessionID, models.RoleAssistant, reply.Raw); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	resp["message"] = reply.Raw
	c.JSON(http.StatusOK, resp)
}

type historyEntry struct {
	Role      models.Role `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

func (h *Handler) getHistory(c *gin.Context) {
	limit := h.historyLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	messages, err := h.sessions.History(c.Request.Context(), c.Param("session_id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	history := make([]historyEntry, 0, len(messages))
	for _, m := range messages {
		history = append(history, historyEntry{Role: m.Role, Content: m.Content, Timestamp: m.Timestamp})
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (h *Handler) clearSession(c *gin.Context) {
	id := c.Param("session_id")
	// queued turns for this session would write into the cleared transcript
	if n := h.workers.CancelKey(id); n > 0 {
		h.logger.Info("dropped queued chat turns", zap.String("session_id", id), zap.Int("count", n))
	}
	if err := h.sessions.ClearSession(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session cleared successfully"})
}

type analyzeRequest struct {
	SessionID string         `json:"session_id"`
	Nutrients map[string]any `json:"nutrients"`
}

func (h *Handler) analyzeFertility(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" || len(req.Nutrients) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and nutrients are required"})
		return
	}
	result, err := h.tools.Analyze(req.Nutrients)
	if err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, tool.ErrModelUnavailable) {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
