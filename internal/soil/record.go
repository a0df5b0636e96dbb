// Package soil holds the nutrient record shared by the fertility model, the
// chat tool and the lab report extractor.
package soil

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Fields lists the nutrient names in the order the fertility model expects.
var Fields = [12]string{"N", "P", "K", "ph", "ec", "oc", "S", "zn", "fe", "cu", "Mn", "B"}

// Record is one soil sample. Values are in the lab units the model was
// trained on (kg/ha for N/P/K, dS/m for ec, % for oc, ppm otherwise).
type Record struct {
	N  float64 `json:"N"`
	P  float64 `json:"P"`
	K  float64 `json:"K"`
	PH float64 `json:"ph"`
	EC float64 `json:"ec"`
	OC float64 `json:"oc"`
	S  float64 `json:"S"`
	Zn float64 `json:"zn"`
	Fe float64 `json:"fe"`
	Cu float64 `json:"cu"`
	Mn float64 `json:"Mn"`
	B  float64 `json:"B"`
}

// Sample is a known-good record used by the self check endpoint.
var Sample = Record{
	N: 245, P: 8.1, K: 560, PH: 7.31, EC: 0.63, OC: 0.78,
	S: 11.6, Zn: 0.29, Fe: 0.43, Cu: 0.57, Mn: 7.73, B: 0.74,
}

// Values returns the record in Fields order.
func (r Record) Values() [12]float64 {
	return [12]float64{r.N, r.P, r.K, r.PH, r.EC, r.OC, r.S, r.Zn, r.Fe, r.Cu, r.Mn, r.B}
}

// FromValues builds a record from values in Fields order.
func FromValues(v [12]float64) Record {
	return Record{
		N: v[0], P: v[1], K: v[2], PH: v[3], EC: v[4], OC: v[5],
		S: v[6], Zn: v[7], Fe: v[8], Cu: v[9], Mn: v[10], B: v[11],
	}
}

// Map returns the record keyed by field name.
func (r Record) Map() map[string]float64 {
	vals := r.Values()
	out := make(map[string]float64, len(Fields))
	for i, name := range Fields {
		out[name] = vals[i]
	}
	return out
}

// ValidationError describes why a nutrient payload was rejected.
type ValidationError struct {
	Missing []string
	Field   string
	Value   any
	Reason  string
}

const (
	ReasonNotNumber = "not_number"
	ReasonNegative  = "negative"
)

func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return "Missing fields: " + strings.Join(e.Missing, ", ")
	}
	switch e.Reason {
	case ReasonNegative:
		return fmt.Sprintf("Field '%s' cannot be negative: %s", e.Field, formatValue(e.Value))
	default:
		return fmt.Sprintf("Field '%s' must be a number: %s", e.Field, formatValue(e.Value))
	}
}

// Parse validates a decoded JSON object. All absent fields are reported in
// one error; after that the first bad value in field order is reported.
func Parse(data map[string]any) (Record, error) {
	var missing []string
	for _, name := range Fields {
		if _, ok := data[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Record{}, &ValidationError{Missing: missing}
	}

	var vals [12]float64
	for i, name := range Fields {
		raw := data[name]
		v, ok := toFloat(raw)
		if !ok {
			return Record{}, &ValidationError{Field: name, Value: raw, Reason: ReasonNotNumber}
		}
		if v < 0 {
			return Record{}, &ValidationError{Field: name, Value: v, Reason: ReasonNegative}
		}
		vals[i] = v
	}
	return FromValues(vals), nil
}

// Defaulted builds a record where absent or unusable fields are zero.
func Defaulted(data map[string]any) Record {
	var vals [12]float64
	for i, name := range Fields {
		if v, ok := toFloat(data[name]); ok {
			vals[i] = v
		}
	}
	return FromValues(vals)
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func formatValue(v any) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case string:
		return n
	case nil:
		return "None"
	default:
		return fmt.Sprint(n)
	}
}
