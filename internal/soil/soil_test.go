package soil

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
)

func sampleMap() map[string]any {
	out := make(map[string]any)
	for k, v := range Sample.Map() {
		out[k] = v
	}
	return out
}

func TestParseAcceptsSample(t *testing.T) {
	rec, err := Parse(sampleMap())
	if err != nil {
		t.Fatalf("parse sample: %v", err)
	}
	if rec != Sample {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestParseReportsAllMissing(t *testing.T) {
	data := sampleMap()
	delete(data, "K")
	delete(data, "B")
	_, err := Parse(data)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !reflect.DeepEqual(verr.Missing, []string{"K", "B"}) {
		t.Fatalf("unexpected missing list %v", verr.Missing)
	}
	if err.Error() != "Missing fields: K, B" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestParseRejectsNegative(t *testing.T) {
	data := sampleMap()
	data["zn"] = -0.5
	_, err := Parse(data)
	if err == nil || err.Error() != "Field 'zn' cannot be negative: -0.5" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestParseRejectsNonNumeric(t *testing.T) {
	for _, bad := range []any{"abc", true, nil, []any{1}} {
		data := sampleMap()
		data["ec"] = bad
		_, err := Parse(data)
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != "ec" || verr.Reason != ReasonNotNumber {
			t.Fatalf("value %#v: unexpected error %v", bad, err)
		}
		if !strings.HasPrefix(err.Error(), "Field 'ec' must be a number: ") {
			t.Fatalf("unexpected message %q", err.Error())
		}
	}
}

func TestParseCoercesNumericStrings(t *testing.T) {
	data := sampleMap()
	data["N"] = "140.5"
	data["P"] = json.Number("9")
	rec, err := Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rec.N != 140.5 || rec.P != 9 {
		t.Fatalf("unexpected coercion %+v", rec)
	}
}

func TestFeaturesLogTransform(t *testing.T) {
	feats := Features(Sample)
	vals := Sample.Values()
	for i, name := range Fields {
		want := math.Log10(vals[i])
		if name == "ph" {
			want = vals[i]
		}
		if math.Abs(feats[i]-want) > 1e-12 {
			t.Fatalf("%s: got %v want %v", name, feats[i], want)
		}
	}
}

func TestFeaturesFloorsZero(t *testing.T) {
	feats := Features(Record{})
	for i, name := range Fields {
		if name == "ph" {
			if feats[i] != 0 {
				t.Fatalf("ph should pass through, got %v", feats[i])
			}
			continue
		}
		if feats[i] != -10 {
			t.Fatalf("%s: expected floor -10, got %v", name, feats[i])
		}
		if math.IsNaN(feats[i]) || math.IsInf(feats[i], 0) {
			t.Fatalf("%s: non-finite feature", name)
		}
	}
}

func TestDefaultedZeroesMissing(t *testing.T) {
	rec := Defaulted(map[string]any{"N": 10.0, "ph": "6.5", "K": "junk"})
	if rec.N != 10 || rec.PH != 6.5 || rec.K != 0 || rec.B != 0 {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestFillMissingRanges(t *testing.T) {
	rnd := NewRandom(42)
	for i := 0; i < 200; i++ {
		rec := FillMissing(Record{N: 100, P: 10, K: 200}, rnd)
		checkRange(t, "ph", rec.PH, 6.5, 7.5)
		checkRange(t, "ec", rec.EC, 0.1, 2.0)
		checkRange(t, "oc", rec.OC, 0.5, 2.0)
		checkRange(t, "S", rec.S, 10, 30)
		checkRange(t, "zn", rec.Zn, 0.2, 0.7)
		checkRange(t, "fe", rec.Fe, 0.3, 0.8)
		checkRange(t, "cu", rec.Cu, 0.4, 0.8)
		checkRange(t, "Mn", rec.Mn, 5, 10)
		checkRange(t, "B", rec.B, 0.5, 1.0)
		if rec.N != 100 || rec.P != 10 || rec.K != 200 {
			t.Fatalf("primary nutrients changed: %+v", rec)
		}
	}
}

func TestFillMissingHighNutrientPH(t *testing.T) {
	rnd := NewRandom(7)
	for i := 0; i < 100; i++ {
		rec := FillMissing(Record{N: 250}, rnd)
		checkRange(t, "ph", rec.PH, 6.75, 7.25)
	}
}

func TestFillMissingKeepsPresentValues(t *testing.T) {
	rec := FillMissing(Sample, NewRandom(1))
	if rec != Sample {
		t.Fatalf("present values replaced: %+v", rec)
	}
}

func TestFillMissingReproducible(t *testing.T) {
	a := FillMissing(Record{N: 50}, NewRandom(99))
	b := FillMissing(Record{N: 50}, NewRandom(99))
	if a != b {
		t.Fatalf("same seed produced different records: %+v vs %+v", a, b)
	}
}

func checkRange(t *testing.T, name string, v, lo, hi float64) {
	t.Helper()
	if v < lo || v > hi {
		t.Fatalf("%s=%v outside [%v, %v]", name, v, lo, hi)
	}
}
