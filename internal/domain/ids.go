package domain

import (
	"fmt"
	"sync"
	"time"
)

// IDGenerator issues time-derived identifiers of the form "<prefix>-<unix ms>".
// The millisecond component strictly increases so ids never collide.
type IDGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewIDGenerator(now func() time.Time) *IDGenerator {
	if now == nil {
		now = time.Now
	}
	return &IDGenerator{now: now}
}

func (g *IDGenerator) Next(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return fmt.Sprintf("%s-%d", prefix, ms)
}
