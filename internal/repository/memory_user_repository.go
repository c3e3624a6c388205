package repository

import (
	"context"
	"sync"
	"time"

	"github.com/sukudha/academy-service/internal/domain"
)

// MemoryUserRepository keeps users in process. Email uniqueness is checked
// under the same lock as the insert, mirroring a unique index.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.User
	byEmail map[string]string
	now     func() time.Time
}

// NewMemoryUserRepository returns an empty in-memory store.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (r *MemoryUserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[user.Email]; exists {
		return ErrDuplicateEmail
	}
	r.byID[user.ID] = user.Clone()
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user.Clone(), nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.lookupEmail(email)
	if !ok {
		return nil, ErrUserNotFound
	}
	return user.Clone(), nil
}

func (r *MemoryUserRepository) GetByEmailAndRole(_ context.Context, email string, role domain.Role) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.lookupEmail(email)
	if !ok || user.Role != role {
		return nil, ErrUserNotFound
	}
	return user.Clone(), nil
}

func (r *MemoryUserRepository) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	return r.mutate(id, func(u *domain.User) {
		u.LastLogin = &at
	})
}

func (r *MemoryUserRepository) SetResetOTP(_ context.Context, id, otp string, expiresAt time.Time) error {
	return r.mutate(id, func(u *domain.User) {
		u.ResetOTP = &otp
		u.ResetOTPExpiresAt = &expiresAt
	})
}

func (r *MemoryUserRepository) ClearResetOTP(_ context.Context, id string) error {
	return r.mutate(id, func(u *domain.User) {
		u.ResetOTP = nil
		u.ResetOTPExpiresAt = nil
	})
}

func (r *MemoryUserRepository) ConsumeResetOTP(_ context.Context, email, otp, newHash string, now time.Time) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.lookupEmail(email)
	if !ok || user.ResetOTP == nil || *user.ResetOTP != otp || !user.ResetPending(now) {
		return nil, ErrUserNotFound
	}
	user.PasswordHash = newHash
	user.ResetOTP = nil
	user.ResetOTPExpiresAt = nil
	user.UpdatedAt = r.now()
	return user.Clone(), nil
}

func (r *MemoryUserRepository) SetActive(_ context.Context, id string, active bool) (*domain.User, error) {
	var out *domain.User
	err := r.mutate(id, func(u *domain.User) {
		u.IsActive = active
		out = u.Clone()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MemoryUserRepository) Ping(context.Context) error {
	return nil
}

// Len returns the number of stored users.
func (r *MemoryUserRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func (r *MemoryUserRepository) lookupEmail(email string) (*domain.User, bool) {
	id, ok := r.byEmail[email]
	if !ok {
		return nil, false
	}
	user, ok := r.byID[id]
	return user, ok
}

func (r *MemoryUserRepository) mutate(id string, fn func(*domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	fn(user)
	user.UpdatedAt = r.now()
	return nil
}
