package leihbot

import (
	"sync"

	"github.com/m3rciful/leihbot/core/conversation"
	"github.com/m3rciful/leihbot/internal/loan"
)

// drafts holds the loan each run is working on. Entries live exactly as long
// as their run: chains drop them in OnFinish.
type drafts struct {
	mu sync.Mutex
	m  map[string]*loan.Loan
}

func newDrafts() *drafts {
	return &drafts{m: make(map[string]*loan.Loan)}
}

func (d *drafts) put(run *conversation.Run, l *loan.Loan) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.m[run.ID] = l
}

// get returns the run's draft. A missing draft means the run lost its state.
func (d *drafts) get(run *conversation.Run) (*loan.Loan, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.m[run.ID]
	if !ok || l.SessionKey != run.SessionKey {
		return nil, conversation.Failf(conversation.KindInvalidState, "draft", "no draft for run %s", run.ID)
	}
	return l, nil
}

func (d *drafts) drop(run *conversation.Run) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.m, run.ID)
}

func (d *drafts) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.m)
}
