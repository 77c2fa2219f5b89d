package services

import (
	"fmt"
	"sync/atomic"
	"time"
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

const orderNumberPrefix = "JW-"

// OrderNumberGenerator formats JW-<yyyyMMddHHmmss>-<seq>. The sequence suffix
// closes the same-second collision window inside one process; the unique index
// on order_number covers collisions across processes.
type OrderNumberGenerator struct {
	clock Clock
	seq   atomic.Uint32
}

func NewOrderNumberGenerator(clock Clock, start uint32) *OrderNumberGenerator {
	g := &OrderNumberGenerator{clock: clock}
	g.seq.Store(start)
	return g
}

func (g *OrderNumberGenerator) Next() string {
	n := g.seq.Add(1) % 10000
	return fmt.Sprintf("%s%s-%04d", orderNumberPrefix, g.clock.Now().UTC().Format("20060102150405"), n)
}
