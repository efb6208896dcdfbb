package manager

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/virtplane/pkg/events"
	"github.com/cuemby/virtplane/pkg/log"
	"github.com/cuemby/virtplane/pkg/metrics"
	"github.com/cuemby/virtplane/pkg/repository"
	"github.com/cuemby/virtplane/pkg/storage"
	"github.com/cuemby/virtplane/pkg/types"
)

// Registration results recorded in metrics
const (
	registrationSuccess = "success"
	registrationInvalid = "invalid_token"
	registrationFailed  = "error"
)

// TokenRequest describes a registration token to issue
type TokenRequest struct {
	ClusterID   string
	Description string
	CreatedBy   string
	MaxUses     int           // 0 means unlimited
	TTL         time.Duration // 0 uses the manager's TokenTTL
}

// TokenManager issues registration tokens and admits nodes that present them
type TokenManager struct {
	tokens    *repository.RegistrationTokenRepository
	nodes     *repository.NodeRepository
	clock     func() time.Time
	publisher storage.Publisher
	logger    zerolog.Logger

	// mu makes validate, create node and record usage one step, so a
	// token is never used more than MaxUses times
	mu sync.Mutex
}

// NewTokenManager creates a new token manager
func NewTokenManager(tokens *repository.RegistrationTokenRepository, nodes *repository.NodeRepository, clock func() time.Time, publisher storage.Publisher) *TokenManager {
	return &TokenManager{
		tokens:    tokens,
		nodes:     nodes,
		clock:     clock,
		publisher: publisher,
		logger:    log.WithComponent("tokens"),
	}
}

// GenerateToken returns 32 random bytes, hex encoded
func GenerateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// Issue creates and stores a new token
func (tm *TokenManager) Issue(req TokenRequest) (*types.RegistrationToken, error) {
	if req.TTL <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", req.TTL)
	}
	if req.MaxUses < 0 {
		return nil, fmt.Errorf("token max uses must not be negative, got %d", req.MaxUses)
	}

	value, err := GenerateToken()
	if err != nil {
		return nil, err
	}

	token, err := tm.tokens.Create(&types.RegistrationToken{
		Token:       value,
		Description: req.Description,
		ClusterID:   req.ClusterID,
		CreatedBy:   req.CreatedBy,
		ExpiresAt:   tm.clock().Add(req.TTL),
		MaxUses:     req.MaxUses,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store token: %w", err)
	}

	tm.logger.Info().
		Str("token_id", token.ID).
		Str("cluster_id", token.ClusterID).
		Time("expires_at", token.ExpiresAt).
		Msg("Registration token issued")
	return token, nil
}

// Validate returns the stored token if it can still admit a node
func (tm *TokenManager) Validate(value string) (*types.RegistrationToken, error) {
	token, err := tm.tokens.GetByToken(value)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("unknown token: %w", ErrInvalidToken)
	}
	if err != nil {
		return nil, err
	}

	now := tm.clock()
	switch {
	case token.IsRevoked():
		return nil, fmt.Errorf("token %s revoked: %w", token.ID, ErrInvalidToken)
	case token.IsExpired(now):
		return nil, fmt.Errorf("token %s expired at %s: %w", token.ID, token.ExpiresAt.Format(time.RFC3339), ErrInvalidToken)
	case token.IsExhausted():
		return nil, fmt.Errorf("token %s used %d of %d times: %w", token.ID, token.UseCount, token.MaxUses, ErrInvalidToken)
	}
	return token, nil
}

// RegisterNode admits node into the token's cluster as READY, with its
// allocatable capacity taken from the spec, and records the usage. The
// caller's node is not modified.
func (tm *TokenManager) RegisterNode(value string, node *types.Node) (*types.Node, error) {
	if node == nil {
		return nil, errors.New("node must not be nil")
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()

	token, err := tm.Validate(value)
	if err != nil {
		metrics.NodeRegistrationsTotal.WithLabelValues(registrationInvalid).Inc()
		tm.logger.Warn().Err(err).Str("hostname", node.Hostname).Msg("Node registration rejected")
		return nil, err
	}

	now := tm.clock()
	candidate := *node
	candidate.ID = ""
	candidate.ClusterID = token.ClusterID
	candidate.LastHeartbeat = &now
	candidate.Status.Phase = types.NodePhaseReady
	candidate.Status.Allocatable = node.Spec.Capacity()

	created, err := tm.nodes.Create(&candidate)
	if err != nil {
		metrics.NodeRegistrationsTotal.WithLabelValues(registrationFailed).Inc()
		return nil, fmt.Errorf("failed to register node %q: %w", node.Hostname, err)
	}

	if _, err := tm.tokens.IncrementUsage(token.ID, created.ID); err != nil {
		metrics.NodeRegistrationsTotal.WithLabelValues(registrationFailed).Inc()
		if delErr := tm.nodes.Delete(created.ID); delErr != nil {
			tm.logger.Error().Err(delErr).Str("node_id", created.ID).Msg("Failed to roll back node registration")
		}
		return nil, fmt.Errorf("failed to record token usage: %w", err)
	}

	metrics.NodeRegistrationsTotal.WithLabelValues(registrationSuccess).Inc()
	if tm.publisher != nil {
		tm.publisher.Publish(&events.Event{
			Type:      events.EventNodeRegistered,
			Kind:      repository.KindNode,
			EntityID:  created.ID,
			Timestamp: created.CreatedAt,
			Message:   fmt.Sprintf("node %s registered", created.Hostname),
			Metadata: map[string]string{
				"cluster_id": created.ClusterID,
				"token_id":   token.ID,
			},
		})
	}

	tm.logger.Info().
		Str("node_id", created.ID).
		Str("hostname", created.Hostname).
		Str("cluster_id", created.ClusterID).
		Msg("Node registered")
	return created, nil
}

// Revoke revokes a token by ID
func (tm *TokenManager) Revoke(id string) (*types.RegistrationToken, error) {
	return tm.tokens.Revoke(id)
}

// List returns stored tokens, skipping expired ones unless includeExpired is set
func (tm *TokenManager) List(includeExpired bool) ([]*types.RegistrationToken, error) {
	return tm.tokens.List(includeExpired)
}

// CleanupExpiredTokens removes expired tokens and returns how many were removed
func (tm *TokenManager) CleanupExpiredTokens() (int, error) {
	expired, err := tm.tokens.ListExpired()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, token := range expired {
		err := tm.tokens.Delete(token.ID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("failed to delete token %s: %w", token.ID, err)
		}
		removed++
	}

	if removed > 0 {
		tm.logger.Info().Int("count", removed).Msg("Expired registration tokens removed")
	}
	return removed, nil
}
