// Package memory provides an in-process store for local runs and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/plataformas-safastway/meu-din-em-casa-sub006/internal/core"
)

type periodKey struct {
	recurringID string
	period      string
}

// Store keeps definitions, plans and transactions in memory. The
// (recurring id, period) index mirrors the SQLite unique constraint.
type Store struct {
	mu       sync.Mutex
	defs     map[string]core.RecurringDefinition
	plans    map[string]core.InstallmentPlan
	items    []core.Transaction
	byPeriod map[periodKey]struct{}
}

// Seed is the JSON document accepted by NewFromFile.
type Seed struct {
	Recurring    []core.RecurringDefinition `json:"recurring"`
	Installments []core.InstallmentPlan     `json:"installments"`
	Transactions []core.Transaction         `json:"transactions"`
}

func New() *Store {
	return &Store{
		defs:     map[string]core.RecurringDefinition{},
		plans:    map[string]core.InstallmentPlan{},
		byPeriod: map[periodKey]struct{}{},
	}
}

// NewFromFile loads a seed file. A missing file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	seed, err := ReadSeed(path)
	if err != nil {
		return nil, err
	}
	s := New()
	if err := s.Load(context.Background(), seed); err != nil {
		return nil, err
	}
	return s, nil
}

// ReadSeed decodes a seed file. An empty path or a missing file yields an
// empty seed.
func ReadSeed(path string) (Seed, error) {
	var seed Seed
	if path == "" {
		return seed, nil
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return seed, nil
	}
	if err != nil {
		return seed, fmt.Errorf("read seed file: %w", err)
	}
	if err := json.Unmarshal(raw, &seed); err != nil {
		return seed, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	return seed, nil
}

// Load adds every record of seed to the store.
func (s *Store) Load(ctx context.Context, seed Seed) error {
	for _, d := range seed.Recurring {
		s.PutRecurring(d)
	}
	for _, p := range seed.Installments {
		s.PutInstallment(p)
	}
	for _, tx := range seed.Transactions {
		if err := s.Insert(ctx, tx); err != nil {
			return fmt.Errorf("seed transaction %s: %w", tx.ID, err)
		}
	}
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// PutRecurring adds or replaces a definition. Invalid definitions are kept
// and surface as per-definition errors at generation time.
func (s *Store) PutRecurring(d core.RecurringDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs[d.ID] = d
}

func (s *Store) PutInstallment(p core.InstallmentPlan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[p.ID] = p
}

// ListActive returns the family's active definitions ordered by ID.
func (s *Store) ListActive(_ context.Context, familyID string) ([]core.RecurringDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.RecurringDefinition{}
	for _, d := range s.defs {
		if d.FamilyID == familyID && d.Active {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) TouchLastGenerated(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.defs[id]
	if !ok {
		return nil
	}
	d.LastGeneratedAt = at
	s.defs[id] = d
	return nil
}

func (s *Store) ListFamilies(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]struct{}{}
	out := []string{}
	for _, d := range s.defs {
		if !d.Active {
			continue
		}
		if _, ok := seen[d.FamilyID]; ok {
			continue
		}
		seen[d.FamilyID] = struct{}{}
		out = append(out, d.FamilyID)
	}
	sort.Strings(out)
	return out, nil
}

// Installments returns a view implementing services.InstallmentStore.
func (s *Store) Installments() Installments { return Installments{s} }

// Installments adapts Store to the installment port.
type Installments struct{ s *Store }

func (v Installments) ListActive(_ context.Context, familyID string) ([]core.InstallmentPlan, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	out := []core.InstallmentPlan{}
	for _, p := range v.s.plans {
		if p.FamilyID == familyID && p.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Insert stores the transaction, rejecting a second occurrence for the same
// recurring definition and period.
func (s *Store) Insert(_ context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.RecurringID != "" && tx.Period != "" {
		key := periodKey{tx.RecurringID, tx.Period}
		if _, ok := s.byPeriod[key]; ok {
			return fmt.Errorf("%w: %s %s", core.ErrDuplicateOccurrence, tx.RecurringID, tx.Period)
		}
		s.byPeriod[key] = struct{}{}
	}
	s.items = append(s.items, tx)
	return nil
}

func (s *Store) FindByRecurringIDInRange(_ context.Context, recurringID string, start, end core.Date) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, tx := range s.items {
		if tx.RecurringID == recurringID && !tx.Date.Before(start) && !tx.Date.After(end) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *Store) FindByDescriptionAmountDate(_ context.Context, familyID, description string, amount core.Money, date core.Date) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, tx := range s.items {
		if tx.FamilyID == familyID && tx.Description == description && tx.Amount == amount && tx.Date.Equal(date) {
			out = append(out, tx)
		}
	}
	return out, nil
}

// ListTransactions returns a copy of the family's transactions in insertion order.
func (s *Store) ListTransactions(_ context.Context, familyID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, tx := range s.items {
		if tx.FamilyID == familyID {
			out = append(out, tx)
		}
	}
	return out, nil
}
