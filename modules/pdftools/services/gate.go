package services

import (
	"golang.org/x/sync/semaphore"

	"github.com/jacksonlee411/harbor-erp/modules/pdftools/domain/types"
)

// Gate bounds how many toolkit jobs run at once. Callers over the limit are
// turned away instead of queued.
type Gate struct {
	sem *semaphore.Weighted
}

func NewGate(limit int) *Gate {
	if limit <= 0 {
		limit = 1
	}
	return &Gate{sem: semaphore.NewWeighted(int64(limit))}
}

// Enter returns a release func, or types.ErrBusy when every slot is taken.
func (g *Gate) Enter() (func(), error) {
	if !g.sem.TryAcquire(1) {
		return nil, types.ErrBusy
	}
	return func() { g.sem.Release(1) }, nil
}
