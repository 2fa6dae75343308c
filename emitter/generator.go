package emitter

import (
	"math/rand"
	"time"

	"github.com/Kevin-Teran/acuaponia-sub001/types"
)

// generator produces a pseudo-random walk around a kind-specific baseline.
// Realism here is a testing convenience, not a correctness requirement.
type generator struct {
	rng     *rand.Rand
	value   float64
	step    float64
	minimum float64
	maximum float64
}

func newGenerator(kind types.MeasurementKind) *generator {
	g := &generator{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
	switch kind {
	case types.KindPH:
		g.value, g.step, g.minimum, g.maximum = 7.2, 0.08, 6.8, 7.6
	case types.KindDissolvedOxygen:
		g.value, g.step, g.minimum, g.maximum = 8.0, 0.15, 7.0, 9.0
	default: // temperature
		g.value, g.step, g.minimum, g.maximum = 25.0, 0.2, 24.0, 26.0
	}
	return g
}

// seed moves the walk's starting point to the sensor's last known value,
// so a restarted emitter continues from where real or synthetic telemetry
// left off. Values outside the plausible range are ignored.
func (g *generator) seed(v float64) {
	if v < g.minimum || v > g.maximum {
		return
	}
	g.value = v
}

// next advances the walk one step, clamped to the plausible range.
func (g *generator) next() float64 {
	g.value += (g.rng.Float64()*2 - 1) * g.step
	if g.value < g.minimum {
		g.value = g.minimum
	}
	if g.value > g.maximum {
		g.value = g.maximum
	}
	// Round to two decimals, matching what real probes report.
	return float64(int(g.value*100+0.5)) / 100
}
