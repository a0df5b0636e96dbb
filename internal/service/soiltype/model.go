package soiltype

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Labels is the class index to soil type mapping of the image model.
var Labels = [5]string{"Black Soil", "Cinder Soil", "Laterite Soil", "Peat Soil", "Yellow Soil"}

// ErrModelUnavailable is returned when no image model is configured.
var ErrModelUnavailable = errors.New("soil type model not loaded")

// Output is the raw model response. Batch holds per-image logits; Probs is
// set instead when the model already returns a distribution.
type Output struct {
	Batch [][]float64
	Probs []float64
}

// Model scores a batch of one image.
type Model interface {
	Predict(ctx context.Context, t Tensor) (Output, error)
}

// Prediction is the response body of the soil type endpoint.
type Prediction struct {
	Index      int     `json:"predicted_index"`
	Label      string  `json:"predicted_label"`
	Confidence float64 `json:"confidence"`
}

// Softmax converts logits into probabilities. The max is subtracted first so
// large logits do not overflow.
func Softmax(logits []float64) []float64 {
	if len(logits) == 0 {
		return nil
	}
	maxV := logits[0]
	for _, v := range logits[1:] {
		if v > maxV {
			maxV = v
		}
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(v - maxV)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Probabilities resolves an Output into a class distribution.
func (o Output) Probabilities() ([]float64, error) {
	switch {
	case len(o.Batch) > 0:
		return Softmax(o.Batch[0]), nil
	case len(o.Probs) > 0:
		return o.Probs, nil
	default:
		return nil, errors.New("model returned no scores")
	}
}

type Service struct {
	model Model
}

func NewService(model Model) *Service {
	return &Service{model: model}
}

func (s *Service) Available() bool {
	return s != nil && s.model != nil
}

// Classify decodes data and returns the most likely soil type.
func (s *Service) Classify(ctx context.Context, data []byte) (*Prediction, error) {
	if !s.Available() {
		return nil, ErrModelUnavailable
	}
	t, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return s.ClassifyTensor(ctx, t)
}

// ClassifyTensor runs the model on an already decoded image.
func (s *Service) ClassifyTensor(ctx context.Context, t Tensor) (*Prediction, error) {
	if !s.Available() {
		return nil, ErrModelUnavailable
	}
	out, err := s.model.Predict(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("predict soil type: %w", err)
	}
	probs, err := out.Probabilities()
	if err != nil {
		return nil, fmt.Errorf("predict soil type: %w", err)
	}
	if len(probs) != len(Labels) {
		return nil, fmt.Errorf("predict soil type: expected %d classes, got %d", len(Labels), len(probs))
	}
	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}
	return &Prediction{
		Index:      best,
		Label:      Labels[best],
		Confidence: math.Round(probs[best]*1e6) / 1e6,
	}, nil
}
