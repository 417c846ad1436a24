package services

import (
	"context"
	"sync"
	"time"

	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/core"
)

// fakeStore implements every port in memory with the same uniqueness guard
// the real stores apply.
type fakeStore struct {
	mu      sync.Mutex
	defs    []core.RecurringDefinition
	plans   []core.InstallmentPlan
	txs     []core.Transaction
	touched map[string]time.Time

	listErr      error
	planErr      error
	insertErr    error
	findErr      error
	touchErr     error
	hideExisting bool // makes both existence checks miss, as under a race
	insertCalls  int
}

func newFakeStore(defs ...core.RecurringDefinition) *fakeStore {
	return &fakeStore{defs: defs, touched: map[string]time.Time{}}
}

func (f *fakeStore) ListActive(_ context.Context, familyID string) ([]core.RecurringDefinition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []core.RecurringDefinition
	for _, d := range f.defs {
		if d.FamilyID == familyID && d.Active {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) ListFamilies(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, d := range f.defs {
		if !seen[d.FamilyID] {
			seen[d.FamilyID] = true
			out = append(out, d.FamilyID)
		}
	}
	return out, nil
}

func (f *fakeStore) TouchLastGenerated(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.touchErr != nil {
		return f.touchErr
	}
	f.touched[id] = at
	return nil
}

func (f *fakeStore) Insert(_ context.Context, tx core.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	if f.insertErr != nil {
		return f.insertErr
	}
	for _, existing := range f.txs {
		if tx.RecurringID != "" && existing.RecurringID == tx.RecurringID && existing.Period == tx.Period {
			return core.ErrDuplicateOccurrence
		}
	}
	f.txs = append(f.txs, tx)
	return nil
}

func (f *fakeStore) FindByRecurringIDInRange(_ context.Context, recurringID string, start, end core.Date) ([]core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	if f.hideExisting {
		return nil, nil
	}
	var out []core.Transaction
	for _, tx := range f.txs {
		if tx.RecurringID == recurringID && !tx.Date.Before(start) && !tx.Date.After(end) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (f *fakeStore) FindByDescriptionAmountDate(_ context.Context, familyID, description string, amount core.Money, date core.Date) ([]core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hideExisting {
		return nil, nil
	}
	var out []core.Transaction
	for _, tx := range f.txs {
		if tx.FamilyID == familyID && tx.Description == description && tx.Amount == amount && tx.Date.Equal(date) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (f *fakeStore) transactions() []core.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.Transaction(nil), f.txs...)
}

// fakePlans adapts fakeStore to InstallmentStore, whose ListActive signature
// collides with RecurringStore's.
type fakePlans struct{ *fakeStore }

func (p fakePlans) ListActive(_ context.Context, familyID string) ([]core.InstallmentPlan, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.planErr != nil {
		return nil, p.planErr
	}
	var out []core.InstallmentPlan
	for _, pl := range p.plans {
		if pl.FamilyID == familyID && pl.Active {
			out = append(out, pl)
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu  sync.Mutex
	txs []core.Transaction
	err error
}

func (p *recordingPublisher) PublishOccurrence(_ context.Context, tx core.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.txs = append(p.txs, tx)
	return p.err
}
