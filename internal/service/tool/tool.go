package tool

import (
	"errors"
	"fmt"

	"soilchat/internal/service/fertility"
	"soilchat/internal/soil"
)

// ActionAnalyzeFertility is the only action a model reply may request.
const ActionAnalyzeFertility = "analyze_fertility"

const Name = "fertility_analyzer"

var (
	ErrNotToolCall      = errors.New("reply is not an analyze_fertility action")
	ErrModelUnavailable = fmt.Errorf("fertility model not available: %w", fertility.ErrModelUnavailable)
)

// Recommendations holds fixed advice per fertility category.
var Recommendations = map[string][]string{
	"Highly Fertile": {
		"Excellent soil quality - maintain current practices",
		"Suitable for high-value crops like vegetables and fruits",
		"Regular soil testing recommended to maintain balance",
	},
	"Fertile": {
		"Good soil quality for most crops",
		"Consider organic matter addition for improvement",
		"Monitor nutrient levels regularly",
	},
	"Less Fertile": {
		"Apply balanced NPK fertilizers",
		"Add organic compost to improve soil structure",
		"Consider soil pH adjustment if needed",
		"Grow legumes to improve nitrogen content",
	},
}

// Result is the tool output returned to chat clients.
type Result struct {
	Tool            string      `json:"tool"`
	FertilityLevel  string      `json:"fertility_level"`
	Nutrients       soil.Record `json:"nutrients"`
	Recommendations []string    `json:"recommendations"`
}

type Dispatcher struct {
	fertility *fertility.Service
}

func NewDispatcher(svc *fertility.Service) *Dispatcher {
	return &Dispatcher{fertility: svc}
}

// Dispatch runs the action described by a parsed model reply.
func (d *Dispatcher) Dispatch(obj map[string]any) (*Result, error) {
	if action, _ := obj["action"].(string); action != ActionAnalyzeFertility {
		return nil, ErrNotToolCall
	}
	nutrients, _ := obj["nutrients"].(map[string]any)
	return d.Analyze(nutrients)
}

// Analyze classifies a loose nutrient map. Absent or non-numeric values
// count as zero.
func (d *Dispatcher) Analyze(nutrients map[string]any) (*Result, error) {
	if d == nil || !d.fertility.Available() {
		return nil, ErrModelUnavailable
	}
	rec := soil.Defaulted(nutrients)
	label, err := d.fertility.Predict(rec)
	if err != nil {
		return nil, err
	}
	recs := Recommendations[label]
	if recs == nil {
		recs = []string{}
	}
	return &Result{
		Tool:            Name,
		FertilityLevel:  label,
		Nutrients:       rec,
		Recommendations: recs,
	}, nil
}
