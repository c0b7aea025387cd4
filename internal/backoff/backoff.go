package backoff

import (
	"math/rand"
	"time"
)

// Policy maps a delivery's attempt count to the delay before its next retry.
// The delay doubles per attempt starting at Base and holds at Cap. JitterPct
// optionally spreads delays by +/- that fraction so that deliveries created
// together do not all come due in the same poll cycle; zero keeps the
// schedule deterministic.
type Policy struct {
	Base      time.Duration
	Cap       time.Duration
	JitterPct float64
}

// Default returns the production policy: 1, 2, 4, 8, 16, 32 minutes, then a
// flat hour, with no jitter.
func Default() Policy {
	return Policy{Base: time.Minute, Cap: time.Hour}
}

// NextDelay returns the wait after the given number of completed attempts.
// Attempt 0 is the first failure.
func (p Policy) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.Cap || d <= 0 { // d <= 0 guards duration overflow
			d = p.Cap
			break
		}
	}
	if d > p.Cap {
		d = p.Cap
	}
	if p.JitterPct > 0 {
		j := 1 + (rand.Float64()*2-1)*p.JitterPct
		if j < 0.1 {
			j = 0.1
		}
		d = time.Duration(float64(d) * j)
	}
	return d
}
