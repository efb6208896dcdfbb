package repository

import (
	"time"

	"github.com/cuemby/virtplane/pkg/storage"
	"github.com/cuemby/virtplane/pkg/types"
)

var tokenKind = storage.Kind[*types.RegistrationToken]{
	Name: KindRegistrationToken,
	Indexes: []storage.Index[*types.RegistrationToken]{
		{Name: IndexToken, Key: func(t *types.RegistrationToken) storage.Key { return storage.GlobalKey(t.Token) }},
	},
}

// RegistrationTokenRepository stores node registration tokens, unique by token value
type RegistrationTokenRepository struct {
	store storage.Store[*types.RegistrationToken]
	clock func() time.Time
}

// NewRegistrationTokenRepository creates a token repository on a lock-guarded store
func NewRegistrationTokenRepository(opts ...storage.Option) *RegistrationTokenRepository {
	return &RegistrationTokenRepository{
		store: storage.NewMemoryStore(tokenKind, opts...),
		clock: storage.NewConfig(opts...).Clock,
	}
}

// Create stores a new token
func (r *RegistrationTokenRepository) Create(token *types.RegistrationToken) (*types.RegistrationToken, error) {
	return r.store.Create(token)
}

// Get returns a token by ID
func (r *RegistrationTokenRepository) Get(id string) (*types.RegistrationToken, error) {
	return r.store.Get(id)
}

// GetByToken returns a token by its secret value
func (r *RegistrationTokenRepository) GetByToken(token string) (*types.RegistrationToken, error) {
	return r.store.Lookup(IndexToken, storage.GlobalKey(token))
}

// Update replaces a token. Changing its value to one already issued fails
// with ErrAlreadyExists.
func (r *RegistrationTokenRepository) Update(token *types.RegistrationToken) (*types.RegistrationToken, error) {
	return r.store.Update(token)
}

// IncrementUsage records that nodeID registered with the token
func (r *RegistrationTokenRepository) IncrementUsage(id, nodeID string) (*types.RegistrationToken, error) {
	return r.store.Patch(id, func(t *types.RegistrationToken) {
		t.UseCount++
		t.UsedByNodes = append(t.UsedByNodes, nodeID)
	})
}

// Revoke marks a token revoked. Revoking twice keeps the first revocation time.
func (r *RegistrationTokenRepository) Revoke(id string) (*types.RegistrationToken, error) {
	now := r.clock()
	return r.store.Patch(id, func(t *types.RegistrationToken) {
		if t.RevokedAt == nil {
			t.RevokedAt = &now
		}
	})
}

// Delete removes a token
func (r *RegistrationTokenRepository) Delete(id string) error {
	return r.store.Delete(id)
}

// List returns tokens in creation order, skipping expired ones unless includeExpired is set
func (r *RegistrationTokenRepository) List(includeExpired bool) ([]*types.RegistrationToken, error) {
	if includeExpired {
		return r.store.List(nil), nil
	}
	now := r.clock()
	return r.store.List(func(t *types.RegistrationToken) bool { return !t.IsExpired(now) }), nil
}

// ListExpired returns tokens whose expiry has passed
func (r *RegistrationTokenRepository) ListExpired() ([]*types.RegistrationToken, error) {
	now := r.clock()
	return r.store.List(func(t *types.RegistrationToken) bool { return t.IsExpired(now) }), nil
}

// Count returns the number of stored tokens
func (r *RegistrationTokenRepository) Count() int {
	return r.store.Len()
}
