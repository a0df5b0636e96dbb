package fertility

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"soilchat/internal/soil"
)

// stumpForest splits on log10(N) (feature 0): low nitrogen is class 0, high
// nitrogen class 2. A second tree always votes class 1.
const stumpForest = `{
	"n_features": 12,
	"classes": [0, 1, 2],
	"trees": [
		{"nodes": [
			{"feature": 0, "threshold": 2.0, "left": 1, "right": 2},
			{"left": -1, "right": -1, "value": [8, 2, 0]},
			{"left": -1, "right": -1, "value": [0, 2, 8]}
		]},
		{"nodes": [
			{"left": -1, "right": -1, "value": [1, 3, 1]}
		]}
	]
}`

func loadStump(t *testing.T) *Forest {
	t.Helper()
	f, err := DecodeForest(strings.NewReader(stumpForest))
	if err != nil {
		t.Fatalf("decode forest: %v", err)
	}
	return f
}

func TestForestProbaSumsToOne(t *testing.T) {
	f := loadStump(t)
	x := make([]float64, 12)
	proba, err := f.Proba(x)
	if err != nil {
		t.Fatalf("proba: %v", err)
	}
	var sum float64
	for _, p := range proba {
		sum += p
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("probabilities sum to %v", sum)
	}
	// (0.8 + 0.2) / 2
	if math.Abs(proba[0]-0.5) > 1e-9 {
		t.Fatalf("unexpected proba %v", proba)
	}
}

func TestForestSplitIsLessOrEqual(t *testing.T) {
	f := loadStump(t)
	x := make([]float64, 12)
	x[0] = 2.0
	got, err := f.Predict(x)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if got != 0 {
		t.Fatalf("x == threshold should go left, got class %d", got)
	}
	x[0] = 2.0001
	if got, _ = f.Predict(x); got != 2 {
		t.Fatalf("x > threshold should go right, got class %d", got)
	}
}

func TestForestRejectsWrongWidth(t *testing.T) {
	f := loadStump(t)
	if _, err := f.Predict([]float64{1, 2}); err == nil {
		t.Fatalf("expected width error")
	}
}

func TestDecodeForestValidation(t *testing.T) {
	cases := map[string]string{
		"no trees":   `{"classes":[0,1,2],"trees":[]}`,
		"bad leaf":   `{"classes":[0,1,2],"trees":[{"nodes":[{"left":-1,"value":[1]}]}]}`,
		"bad child":  `{"classes":[0,1,2],"trees":[{"nodes":[{"feature":0,"left":5,"right":6}]}]}`,
		"cycle":      `{"classes":[0,1,2],"trees":[{"nodes":[{"feature":0,"left":0,"right":0}]}]}`,
		"not json":   `{`,
		"no classes": `{"trees":[{"nodes":[{"left":-1,"value":[]}]}]}`,
	}
	for name, body := range cases {
		if _, err := DecodeForest(strings.NewReader(body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadForestFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forest.json")
	if err := os.WriteFile(path, []byte(stumpForest), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadForest(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := LoadForest(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestComputeSample(t *testing.T) {
	svc := NewService(loadStump(t))
	res := svc.Compute(soil.Sample)
	if res.Status != StatusSuccess {
		t.Fatalf("unexpected result %+v", res)
	}
	// Sample N=245 -> log10 > 2 -> class 2
	if res.Prediction != "Highly Fertile" {
		t.Fatalf("unexpected prediction %q", res.Prediction)
	}
}

func TestComputeAlwaysKnownLabel(t *testing.T) {
	svc := NewService(loadStump(t))
	for _, n := range []float64{0, 1, 50, 99, 100, 101, 5000} {
		res := svc.Compute(soil.Record{N: n})
		if res.Status != StatusSuccess {
			t.Fatalf("N=%v: %+v", n, res)
		}
		found := false
		for _, l := range Labels {
			if l == res.Prediction {
				found = true
			}
		}
		if !found {
			t.Fatalf("N=%v: unknown label %q", n, res.Prediction)
		}
	}
}

type fixedClassifier struct {
	idx int
	err error
}

func (f fixedClassifier) Predict([]float64) (int, error) { return f.idx, f.err }

type panicClassifier struct{}

func (panicClassifier) Predict([]float64) (int, error) { panic("corrupt model") }

func TestComputeIndexMapping(t *testing.T) {
	for idx, want := range Labels {
		res := NewService(fixedClassifier{idx: idx}).Compute(soil.Sample)
		if res.Prediction != want {
			t.Fatalf("index %d: got %q want %q", idx, res.Prediction, want)
		}
	}
}

func TestComputeErrorsCollapse(t *testing.T) {
	cases := []Classifier{
		fixedClassifier{err: errors.New("boom")},
		fixedClassifier{idx: 3},
		fixedClassifier{idx: -1},
		panicClassifier{},
	}
	for i, c := range cases {
		res := NewService(c).Compute(soil.Sample)
		if res.Status != StatusError || res.Message == "" || res.Prediction != "" {
			t.Fatalf("case %d: unexpected result %+v", i, res)
		}
	}
}

func TestUnavailableService(t *testing.T) {
	svc := NewService(nil)
	if svc.Available() {
		t.Fatalf("nil model should be unavailable")
	}
	if _, err := svc.Predict(soil.Sample); !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}
