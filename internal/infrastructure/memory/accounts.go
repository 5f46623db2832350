// Package memory holds process-local stores used for development and tests.
// Each mutation runs its check and write under one mutex, giving the same
// atomicity as the conditional writes in the dynamo package.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-identity-api/internal/domain"
)

type AccountRepo struct {
	mu      sync.Mutex
	byID    map[string]*domain.Account
	byEmail map[string]string
	now     func() time.Time
}

func NewAccountRepo() *AccountRepo {
	return &AccountRepo{
		byID:    make(map[string]*domain.Account),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (r *AccountRepo) Create(_ context.Context, a *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[a.Email]; ok {
		return fmt.Errorf("email already registered: %w", domain.ErrConflict)
	}
	if _, ok := r.byID[a.AccountID]; ok {
		return fmt.Errorf("account id taken: %w", domain.ErrConflict)
	}
	r.byID[a.AccountID] = clone(a)
	r.byEmail[a.Email] = a.AccountID
	return nil
}

func (r *AccountRepo) GetByID(_ context.Context, accountID string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[accountID]
	if !ok {
		return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	return clone(a), nil
}

func (r *AccountRepo) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	accountID, ok := r.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	return clone(r.byID[accountID]), nil
}

func (r *AccountRepo) PutSecret(_ context.Context, accountID string, s *domain.OneTimeSecret) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[accountID]
	if !ok {
		return fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	if a.Secrets == nil {
		a.Secrets = make(map[domain.Purpose]*domain.OneTimeSecret)
	}
	cp := *s
	a.Secrets[s.Purpose] = &cp
	a.UpdatedAt = r.now().UTC()
	return nil
}

func (r *AccountRepo) ConsumeSecret(_ context.Context, accountID string, purpose domain.Purpose, valueHash string, now time.Time, effect domain.AccountPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[accountID]
	if !ok {
		return fmt.Errorf("consume %s: %w", purpose, domain.ErrInvalidSecret)
	}
	s := a.Secrets[purpose]
	if !s.Live(now) {
		return fmt.Errorf("consume %s: %w", purpose, domain.ErrInvalidSecret)
	}
	if s.ValueHash != valueHash {
		s.Attempts++
		return fmt.Errorf("consume %s: %w", purpose, domain.ErrInvalidSecret)
	}
	consumed := now
	s.ConsumedAt = &consumed
	effect.Apply(a)
	a.UpdatedAt = now.UTC()
	return nil
}

func (r *AccountRepo) SetCredential(_ context.Context, accountID, oldHash, newHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[accountID]
	if !ok {
		return fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	if a.CredentialHash != oldHash {
		return fmt.Errorf("credential changed concurrently: %w", domain.ErrInvalidCredentials)
	}
	a.CredentialHash = newHash
	a.UpdatedAt = r.now().UTC()
	return nil
}

func (r *AccountRepo) Patch(_ context.Context, accountID string, p domain.AccountPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[accountID]
	if !ok {
		return fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	if p.Empty() {
		return nil
	}
	after := *a
	p.Apply(&after)
	if a.IsActiveAdmin() && !after.IsActiveAdmin() && r.activeAdmins() <= 1 {
		return fmt.Errorf("patch %s: %w", accountID, domain.ErrLastAdmin)
	}
	p.Apply(a)
	a.UpdatedAt = r.now().UTC()
	return nil
}

func (r *AccountRepo) UpdateProfile(_ context.Context, accountID string, p domain.ProfilePatch) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[accountID]
	if !ok {
		return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	if !p.Empty() {
		p.Apply(&a.Profile)
		a.UpdatedAt = r.now().UTC()
	}
	return clone(a), nil
}

func (r *AccountRepo) Delete(_ context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[accountID]
	if !ok {
		return fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	if a.IsActiveAdmin() && r.activeAdmins() <= 1 {
		return fmt.Errorf("delete %s: %w", accountID, domain.ErrLastAdmin)
	}
	delete(r.byEmail, a.Email)
	delete(r.byID, accountID)
	return nil
}

func (r *AccountRepo) CountActiveAdmins(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeAdmins(), nil
}

func (r *AccountRepo) List(_ context.Context, f domain.ListFilter) ([]domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Account{}
	for _, a := range r.byID {
		if f.Match(a) {
			out = append(out, *clone(a))
		}
	}
	return out, nil
}

// activeAdmins must be called with mu held.
func (r *AccountRepo) activeAdmins() int {
	n := 0
	for _, a := range r.byID {
		if a.IsActiveAdmin() {
			n++
		}
	}
	return n
}

func clone(a *domain.Account) *domain.Account {
	cp := *a
	if a.Profile.Addresses != nil {
		cp.Profile.Addresses = append([]domain.Address{}, a.Profile.Addresses...)
	}
	if a.Secrets != nil {
		cp.Secrets = make(map[domain.Purpose]*domain.OneTimeSecret, len(a.Secrets))
		for k, v := range a.Secrets {
			s := *v
			if v.ConsumedAt != nil {
				t := *v.ConsumedAt
				s.ConsumedAt = &t
			}
			cp.Secrets[k] = &s
		}
	}
	if a.LastLoginAt != nil {
		t := *a.LastLoginAt
		cp.LastLoginAt = &t
	}
	return &cp
}
