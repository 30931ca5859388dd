package metrics

import (
	"math"

	"github.com/san-kum/trainsim/internal/dynamo"
)

// DefaultComfortAccel is a common passenger comfort bound in m/s².
const DefaultComfortAccel = 1.3

// Comfort is the fraction of samples whose acceleration stays within the
// threshold in either direction.
type Comfort struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewComfort(threshold float64) *Comfort {
	return &Comfort{
		name:      "comfort",
		threshold: threshold,
	}
}

func (c *Comfort) Name() string {
	return c.name
}

func (c *Comfort) Observe(s dynamo.Sample) {
	c.samples++
	if math.Abs(s.AccelMps2) > c.threshold {
		c.violations++
	}
}

func (c *Comfort) Value() float64 {
	if c.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(c.violations)/float64(c.samples)
}

func (c *Comfort) Reset() {
	c.violations = 0
	c.samples = 0
}
