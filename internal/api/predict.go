package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"soilchat/internal/service/fertility"
	"soilchat/internal/service/soiltype"
	"soilchat/internal/soil"
	"soilchat/internal/worker"
)

func (h *Handler) predictType(c *gin.Context) {
	if !h.soilType.Available() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Soil type model not loaded"})
		return
	}
	up, err := readUpload(c, "file")
	switch {
	case errors.Is(err, errNoFile):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file part in the request."})
		return
	case errors.Is(err, errEmptyFile):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file selected."})
		return
	case err != nil:
		code, msg := statusFor(err)
		c.JSON(code, gin.H{"error": msg})
		return
	}

	pred, err := worker.Call(c.Request.Context(), h.workers, c.ClientIP(), func(ctx context.Context) (*soiltype.Prediction, error) {
		return h.soilType.Classify(ctx, up.Data)
	})
	if err != nil {
		var derr *soiltype.DecodeError
		if errors.As(err, &derr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to process image: " + derr.Error()})
			return
		}
		code, msg := statusFor(err)
		c.JSON(code, gin.H{"error": msg})
		return
	}
	h.keep(c.Request.Context(), "soil-type", up)
	c.JSON(http.StatusOK, pred)
}

var errNoJSON = errors.New("no JSON object in body")

// decodeObject reads a JSON object body. An empty object counts as no data.
// Read failures such as an oversized body are returned as is.
func decodeObject(c *gin.Context) (map[string]any, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil || len(data) == 0 {
		return nil, errNoJSON
	}
	return data, nil
}

func (h *Handler) predictFertility(c *gin.Context) {
	if !h.fertility.Available() {
		statusError(c, http.StatusInternalServerError, "Soil quality model not loaded")
		return
	}
	data, err := decodeObject(c)
	switch {
	case errors.Is(err, errNoJSON):
		statusError(c, http.StatusBadRequest, "No JSON data received")
		return
	case err != nil:
		code, msg := statusFor(err)
		statusError(c, code, msg)
		return
	}
	rec, err := soil.Parse(data)
	if err != nil {
		statusError(c, http.StatusBadRequest, err.Error())
		return
	}

	ml := h.fertility.Compute(rec)
	if ml.Status != fertility.StatusSuccess {
		c.JSON(http.StatusBadRequest, ml)
		return
	}

	var verification map[string]any
	if h.assistant.Available() {
		verification, err = worker.Call(c.Request.Context(), h.workers, c.ClientIP(), func(ctx context.Context) (map[string]any, error) {
			return h.assistant.VerifyFertility(ctx, rec, ml.Prediction), nil
		})
		if err != nil {
			// the prediction stands on its own
			_, msg := statusFor(err)
			verification = map[string]any{"error": "AI verification unavailable: " + msg}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          statusSuccess,
		"ml_prediction":   ml.Prediction,
		"prediction":      ml.Prediction,
		"input_data":      rec,
		"ai_verification": verification,
	})
}

func (h *Handler) testFertility(c *gin.Context) {
	if !h.fertility.Available() {
		statusError(c, http.StatusInternalServerError, "Soil quality model not loaded")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":            statusSuccess,
		"test_data":         soil.Sample,
		"prediction_result": h.fertility.Compute(soil.Sample),
		"message":           "Fertility prediction test completed",
	})
}
