package soiltype

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeShapeAndRange(t *testing.T) {
	data := pngBytes(t, 50, 30, color.NRGBA{R: 255, G: 0, B: 51, A: 255})
	tensor, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tensor) != InputSize || len(tensor[0]) != InputSize {
		t.Fatalf("unexpected shape %dx%d", len(tensor), len(tensor[0]))
	}
	px := tensor[100][100]
	if math.Abs(float64(px[0])-1) > 0.005 || px[1] > 0.005 || math.Abs(float64(px[2])-0.2) > 0.005 {
		t.Fatalf("unexpected pixel %v", px)
	}
}

func TestDecodeDropsAlphaWithoutDarkening(t *testing.T) {
	data := pngBytes(t, 8, 8, color.NRGBA{R: 200, G: 100, B: 50, A: 128})
	tensor, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	px := tensor[0][0]
	if math.Abs(float64(px[0])-200.0/255) > 0.01 {
		t.Fatalf("red channel altered by alpha: %v", px)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("not an image")} {
		_, err := Decode(data)
		var derr *DecodeError
		if !errors.As(err, &derr) {
			t.Fatalf("expected DecodeError, got %v", err)
		}
	}
}

func TestSniff(t *testing.T) {
	mime, err := Sniff(pngBytes(t, 3, 2, color.White))
	if err != nil || mime != "image/png" {
		t.Fatalf("unexpected sniff result %q %v", mime, err)
	}
	var derr *DecodeError
	if _, err := Sniff([]byte("plain text")); !errors.As(err, &derr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestSoftmaxSumsToOne(t *testing.T) {
	for _, logits := range [][]float64{
		{1, 2, 3, 4, 5},
		{1000, 1001, 999, 0, -5},
		{0, 0, 0, 0, 0},
	} {
		probs := Softmax(logits)
		var sum float64
		for _, p := range probs {
			if p < 0 || p > 1 || math.IsNaN(p) {
				t.Fatalf("probability out of range: %v", probs)
			}
			sum += p
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("sum=%v for %v", sum, logits)
		}
	}
}

type fakeModel struct {
	out Output
	err error
}

func (f fakeModel) Predict(context.Context, Tensor) (Output, error) { return f.out, f.err }

func TestClassifyLogits(t *testing.T) {
	svc := NewService(fakeModel{out: Output{Batch: [][]float64{{0.1, 3.0, 0.2, 0.0, -1}}}})
	pred, err := svc.Classify(context.Background(), pngBytes(t, 4, 4, color.White))
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if pred.Index != 1 || pred.Label != "Cinder Soil" {
		t.Fatalf("unexpected prediction %+v", pred)
	}
	if pred.Confidence <= 0 || pred.Confidence > 1 {
		t.Fatalf("confidence out of range: %v", pred.Confidence)
	}
	if pred.Confidence != math.Round(pred.Confidence*1e6)/1e6 {
		t.Fatalf("confidence not rounded: %v", pred.Confidence)
	}
}

func TestClassifyProbabilities(t *testing.T) {
	svc := NewService(fakeModel{out: Output{Probs: []float64{0.1, 0.1, 0.1, 0.1, 0.6}}})
	pred, err := svc.Classify(context.Background(), pngBytes(t, 4, 4, color.Black))
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if pred.Label != "Yellow Soil" || pred.Confidence != 0.6 {
		t.Fatalf("unexpected prediction %+v", pred)
	}
}

func TestClassifyErrors(t *testing.T) {
	img := pngBytes(t, 4, 4, color.White)
	if _, err := NewService(nil).Classify(context.Background(), img); !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
	if _, err := NewService(fakeModel{err: errors.New("down")}).Classify(context.Background(), img); err == nil {
		t.Fatalf("expected model error")
	}
	if _, err := NewService(fakeModel{out: Output{Probs: []float64{1}}}).Classify(context.Background(), img); err == nil {
		t.Fatalf("expected class count error")
	}
	var derr *DecodeError
	if _, err := NewService(fakeModel{}).Classify(context.Background(), []byte("x")); !errors.As(err, &derr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestRemoteModelPredict(t *testing.T) {
	var gotPath string
	var gotInstances int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var req struct {
			Instances []json.RawMessage `json:"instances"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotInstances = len(req.Instances)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"predictions": [[0.0, 0.0, 5.0, 0.0, 0.0]]}`))
	}))
	defer srv.Close()

	model := NewRemoteModel(srv.URL+"/", "soil_type", time.Second)
	tensor, err := Decode(pngBytes(t, 2, 2, color.White))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	out, err := model.Predict(context.Background(), tensor)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if gotPath != "/v1/models/soil_type:predict" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if gotInstances != 1 {
		t.Fatalf("expected batch of 1, got %d", gotInstances)
	}
	if len(out.Batch) != 1 || len(out.Batch[0]) != 5 {
		t.Fatalf("unexpected output %+v", out)
	}
}

func TestRemoteModelServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	model := NewRemoteModel(srv.URL, "missing", time.Second)
	if _, err := model.Predict(context.Background(), Tensor{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParsePredictionsShapes(t *testing.T) {
	out, err := parsePredictions(json.RawMessage(`[0.2, 0.8]`))
	if err != nil || len(out.Probs) != 2 {
		t.Fatalf("1-D: %+v %v", out, err)
	}
	if _, err := parsePredictions(json.RawMessage(`"nope"`)); err == nil {
		t.Fatalf("expected shape error")
	}
	if _, err := parsePredictions(nil); err == nil {
		t.Fatalf("expected empty error")
	}
}
