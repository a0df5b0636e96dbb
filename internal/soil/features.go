package soil

import "math"

// logFloor replaces log10(0), which is undefined.
var logFloor = math.Log10(1e-10)

// Features maps a record to the model input vector. Every field except ph is
// log10 transformed; ph is already on a log scale.
func Features(r Record) [12]float64 {
	vals := r.Values()
	var out [12]float64
	for i, v := range vals {
		if Fields[i] == "ph" {
			out[i] = v
			continue
		}
		if v > 0 {
			out[i] = math.Log10(v)
		} else {
			out[i] = logFloor
		}
	}
	return out
}
