package soil

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Random is a goroutine safe uniform source in [0, 1).
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom seeds a source. A zero seed draws one from the clock.
func NewRandom(seed int64) *Random {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Random{rng: rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))}
}

func (r *Random) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

// FillMissing replaces zero valued secondary nutrients with typical ranges
// for agricultural soils. N, P and K are never invented.
func FillMissing(r Record, rnd *Random) Record {
	if r.PH == 0 {
		if r.N > 200 || r.K > 400 {
			r.PH = 6.75 + rnd.Float64()*0.5
		} else {
			r.PH = 6.5 + rnd.Float64()
		}
	}
	if r.EC == 0 {
		avg := (r.N + r.P + r.K) / 3
		r.EC = clamp(avg/500+rnd.Float64()*0.3, 0.1, 2.0)
	}
	if r.OC == 0 {
		r.OC = 0.5 + rnd.Float64()*1.5
	}
	if r.S == 0 {
		r.S = 10 + rnd.Float64()*20
	}
	if r.Zn == 0 {
		r.Zn = 0.2 + rnd.Float64()*0.5
	}
	if r.Fe == 0 {
		r.Fe = 0.3 + rnd.Float64()*0.5
	}
	if r.Cu == 0 {
		r.Cu = 0.4 + rnd.Float64()*0.4
	}
	if r.Mn == 0 {
		r.Mn = 5 + rnd.Float64()*5
	}
	if r.B == 0 {
		r.B = 0.5 + rnd.Float64()*0.5
	}
	return r
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
