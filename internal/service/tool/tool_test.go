package tool

import (
	"errors"
	"math"
	"testing"

	"soilchat/internal/service/fertility"
)

// thresholdClassifier returns class 2 when log10(N) > 2, else class 0.
type thresholdClassifier struct{ calls int }

func (c *thresholdClassifier) Predict(x []float64) (int, error) {
	c.calls++
	if x[0] > math.Log10(100) {
		return 2, nil
	}
	return 0, nil
}

type failingClassifier struct{}

func (failingClassifier) Predict([]float64) (int, error) {
	return 0, errors.New("bad shape")
}

func TestDispatchAnalyzeFertility(t *testing.T) {
	clf := &thresholdClassifier{}
	d := NewDispatcher(fertility.NewService(clf))

	res, err := d.Dispatch(map[string]any{
		"action":    "analyze_fertility",
		"nutrients": map[string]any{"N": 245.0, "P": 8.1, "K": "560"},
		"message":   "on it",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.Tool != "fertility_analyzer" || res.FertilityLevel != "Highly Fertile" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Nutrients.K != 560 || res.Nutrients.B != 0 {
		t.Fatalf("nutrients not defaulted: %+v", res.Nutrients)
	}
	if len(res.Recommendations) != 3 || res.Recommendations[0] != "Excellent soil quality - maintain current practices" {
		t.Fatalf("unexpected recommendations %v", res.Recommendations)
	}
}

func TestDispatchMissingNutrientsIsAllZero(t *testing.T) {
	d := NewDispatcher(fertility.NewService(&thresholdClassifier{}))
	res, err := d.Dispatch(map[string]any{"action": "analyze_fertility"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.FertilityLevel != "Less Fertile" || len(res.Recommendations) != 4 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestDispatchNotToolCall(t *testing.T) {
	clf := &thresholdClassifier{}
	d := NewDispatcher(fertility.NewService(clf))
	for _, obj := range []map[string]any{
		nil,
		{"action": "plant_crops"},
		{"action": 1},
		{"nutrients": map[string]any{"N": 1}},
	} {
		if _, err := d.Dispatch(obj); !errors.Is(err, ErrNotToolCall) {
			t.Fatalf("%v: expected ErrNotToolCall, got %v", obj, err)
		}
	}
	if clf.calls != 0 {
		t.Fatalf("classifier should not run")
	}
}

func TestAnalyzeModelUnavailable(t *testing.T) {
	for _, d := range []*Dispatcher{nil, NewDispatcher(nil), NewDispatcher(fertility.NewService(nil))} {
		_, err := d.Analyze(map[string]any{"N": 1})
		if !errors.Is(err, ErrModelUnavailable) || !errors.Is(err, fertility.ErrModelUnavailable) {
			t.Fatalf("expected model unavailable, got %v", err)
		}
	}
}

func TestAnalyzeClassifierError(t *testing.T) {
	_, err := NewDispatcher(fertility.NewService(failingClassifier{})).Analyze(nil)
	if err == nil || errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected classifier error, got %v", err)
	}
}
