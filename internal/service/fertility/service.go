package fertility

import (
	"errors"
	"fmt"

	"soilchat/internal/soil"
)

// Labels is the fixed class index to category mapping of the model.
var Labels = [3]string{"Less Fertile", "Fertile", "Highly Fertile"}

const (
	StatusSuccess = "Success"
	StatusError   = "Error"
)

// ErrModelUnavailable is returned when no classifier was loaded.
var ErrModelUnavailable = errors.New("fertility model not loaded")

// Classifier predicts a class index from a preprocessed feature vector.
type Classifier interface {
	Predict(features []float64) (int, error)
}

// Result mirrors the JSON returned to clients.
type Result struct {
	Status     string `json:"status"`
	Prediction string `json:"prediction,omitempty"`
	Message    string `json:"message,omitempty"`
}

type Service struct {
	model Classifier
}

// NewService wraps model. A nil model yields an unavailable service.
func NewService(model Classifier) *Service {
	return &Service{model: model}
}

// Available reports whether a model is loaded.
func (s *Service) Available() bool {
	return s != nil && s.model != nil
}

// Predict runs preprocessing and the model and maps the index to a label.
func (s *Service) Predict(r soil.Record) (label string, err error) {
	if !s.Available() {
		return "", ErrModelUnavailable
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("fertility model panicked: %v", rec)
		}
	}()
	feats := soil.Features(r)
	idx, err := s.model.Predict(feats[:])
	if err != nil {
		return "", fmt.Errorf("predict fertility: %w", err)
	}
	if idx < 0 || idx >= len(Labels) {
		return "", fmt.Errorf("fertility model returned class %d", idx)
	}
	return Labels[idx], nil
}

// Compute is Predict collapsed into the status envelope used by the API.
func (s *Service) Compute(r soil.Record) Result {
	label, err := s.Predict(r)
	if err != nil {
		return Result{Status: StatusError, Message: err.Error()}
	}
	return Result{Status: StatusSuccess, Prediction: label}
}
