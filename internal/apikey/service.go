// Package apikey provides per-tenant API key authentication. Keys have the
// form nego_<prefix>_<secret>; the prefix is stored in clear for lookup and
// the full key is peppered and hashed before storage.
package apikey

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kashamit951/nego/internal/store"
	"github.com/kashamit951/nego/internal/util"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingKey   = errors.New("missing api key")
	ErrMalformedKey = errors.New("malformed api key")
	ErrInvalidKey   = errors.New("invalid api key")
)

// CredentialStore defines the storage interface for authentication.
type CredentialStore interface {
	GetUserByEmail(ctx context.Context, tenantID, email string) (store.TenantUser, error)
	GetUserByID(ctx context.Context, tenantID, userID string) (store.TenantUser, error)
	CreateUser(ctx context.Context, user store.TenantUser) error
	SaveCredential(ctx context.Context, cred store.APICredential) error
	GetCredentialByPrefix(ctx context.Context, tenantID, keyPrefix string) (store.APICredential, store.TenantUser, error)
	TouchCredential(ctx context.Context, credentialID string) error
	RevokeCredential(ctx context.Context, tenantID, keyPrefix string) (bool, error)
}

// Service authenticates API keys and provisions users and credentials.
type Service struct {
	store  CredentialStore
	pepper string
}

func NewService(store CredentialStore, pepper string) *Service {
	return &Service{store: store, pepper: pepper}
}

// Authenticate resolves an API key to the tenant user that owns it. The
// tenant must match the credential's tenant; a key never crosses tenants.
func (s *Service) Authenticate(ctx context.Context, tenantID, apiKey string) (store.TenantUser, error) {
	if strings.TrimSpace(apiKey) == "" {
		return store.TenantUser{}, ErrMissingKey
	}
	prefix, err := parsePrefix(apiKey)
	if err != nil {
		return store.TenantUser{}, err
	}

	cred, user, err := s.store.GetCredentialByPrefix(ctx, tenantID, prefix)
	if err != nil {
		return store.TenantUser{}, ErrInvalidKey
	}
	if bcrypt.CompareHashAndPassword([]byte(cred.KeyHash), s.digest(apiKey)) != nil {
		return store.TenantUser{}, ErrInvalidKey
	}

	if err := s.store.TouchCredential(ctx, cred.ID); err != nil {
		return store.TenantUser{}, fmt.Errorf("touch credential: %w", err)
	}
	return user, nil
}

// CreateUser provisions a tenant user with a known role.
func (s *Service) CreateUser(ctx context.Context, tenantID, email, role string) (store.TenantUser, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return store.TenantUser{}, errors.New("email is required")
	}
	user := store.TenantUser{
		ID:       util.NewID("usr"),
		TenantID: tenantID,
		Email:    email,
		Role:     role,
		IsActive: true,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if store.IsUniqueViolation(err) {
			return store.TenantUser{}, errors.New("user already exists for tenant")
		}
		return store.TenantUser{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// CreateKey mints a new API key for an active user and returns the key in
// clear exactly once; only its hash is stored.
func (s *Service) CreateKey(ctx context.Context, tenantID, userID string) (store.APICredential, string, error) {
	user, err := s.store.GetUserByID(ctx, tenantID, userID)
	if err != nil || !user.IsActive {
		return store.APICredential{}, "", errors.New("user not found or inactive")
	}

	prefix := util.NewSecret(6)
	apiKey := fmt.Sprintf("nego_%s_%s", prefix, util.NewSecret(24))

	hash, err := bcrypt.GenerateFromPassword(s.digest(apiKey), bcrypt.DefaultCost)
	if err != nil {
		return store.APICredential{}, "", fmt.Errorf("hash api key: %w", err)
	}

	cred := store.APICredential{
		ID:        util.NewID("key"),
		TenantID:  tenantID,
		UserID:    user.ID,
		KeyPrefix: prefix,
		KeyHash:   string(hash),
		CreatedAt: time.Now(),
	}
	if err := s.store.SaveCredential(ctx, cred); err != nil {
		return store.APICredential{}, "", fmt.Errorf("save credential: %w", err)
	}
	return cred, apiKey, nil
}

// RevokeKey revokes the credential with the given prefix.
func (s *Service) RevokeKey(ctx context.Context, tenantID, keyPrefix string) (bool, error) {
	return s.store.RevokeCredential(ctx, tenantID, keyPrefix)
}

// digest pre-hashes the peppered key so bcrypt never sees more than 32
// bytes; raw keys are longer than bcrypt's 72-byte input limit allows for
// growth.
func (s *Service) digest(apiKey string) []byte {
	sum := sha256.Sum256([]byte(s.pepper + ":" + apiKey))
	return sum[:]
}

func parsePrefix(apiKey string) (string, error) {
	parts := strings.SplitN(apiKey, "_", 3)
	if len(parts) != 3 || parts[0] != "nego" || parts[1] == "" {
		return "", ErrMalformedKey
	}
	return parts[1], nil
}
