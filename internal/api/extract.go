package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"soilchat/internal/service/ai"
	"soilchat/internal/service/soiltype"
	"soilchat/internal/soil"
	"soilchat/internal/worker"
)

// readImageUpload applies the upload checks shared by the LLM image routes
// and writes the error response itself.
func (h *Handler) readImageUpload(c *gin.Context) (*upload, *ai.Image, bool) {
	up, err := readUpload(c, "file")
	switch {
	case errors.Is(err, errNoFile):
		statusError(c, http.StatusBadRequest, "No file uploaded")
		return nil, nil, false
	case errors.Is(err, errEmptyFile):
		statusError(c, http.StatusBadRequest, "No file selected")
		return nil, nil, false
	case err != nil:
		code, msg := statusFor(err)
		statusError(c, code, msg)
		return nil, nil, false
	}
	mime, err := soiltype.Sniff(up.Data)
	if err != nil {
		statusError(c, http.StatusBadRequest, "Failed to process image: "+err.Error())
		return nil, nil, false
	}
	return up, ai.NewImage(up.Data, mime), true
}

func (h *Handler) extractNutrients(c *gin.Context) {
	if !h.assistant.Available() {
		statusError(c, http.StatusServiceUnavailable, llmUnavailableMessage)
		return
	}
	up, img, ok := h.readImageUpload(c)
	if !ok {
		return
	}
	lang := ai.ParseLanguage(c.PostForm("language"))

	rec, err := worker.Call(c.Request.Context(), h.workers, c.ClientIP(), func(ctx context.Context) (soil.Record, error) {
		return h.assistant.ExtractNutrients(ctx, img, lang)
	})
	if err != nil {
		h.logger.Warn("nutrient extraction failed", zap.Error(err))
		code, msg := statusFor(err)
		statusError(c, code, msg)
		return
	}
	h.logger.Debug("nutrients extracted", zap.String("language", string(lang)), zap.Any("nutrients", rec.Map()))
	h.keep(c.Request.Context(), "lab-reports", up)
	c.JSON(http.StatusOK, gin.H{
		"status":    statusSuccess,
		"nutrients": rec,
		"message":   "Nutrients extracted successfully from lab report",
	})
}

func (h *Handler) debugImageText(c *gin.Context) {
	if !h.assistant.Available() {
		statusError(c, http.StatusServiceUnavailable, llmUnavailableMessage)
		return
	}
	_, img, ok := h.readImageUpload(c)
	if !ok {
		return
	}
	text, err := worker.Call(c.Request.Context(), h.workers, c.ClientIP(), func(ctx context.Context) (string, error) {
		return h.assistant.DescribeImage(ctx, img)
	})
	if err != nil {
		code, msg := statusFor(err)
		statusError(c, code, msg)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         statusSuccess,
		"extracted_text": text,
		"message":        "All visible text extracted from image",
	})
}
