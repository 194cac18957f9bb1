// Package apikey validates API keys presented to the emulator gateway. Keys
// come from static configuration or from the api_keys table, where only the
// SHA-256 hash of each key is stored. Raw keys are generated with crypto/rand
// and returned once, on creation.
package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/sqldb"
)

var (
	ErrInvalidKey = errors.New("invalid api key")
	ErrExpiredKey = errors.New("api key expired")
)

// KeyInfo holds metadata about a validated API key. RateLimit is in requests
// per second; zero means the gateway default.
type KeyInfo struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	RateLimit int        `json:"rate_limit"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Validator checks keys against the static set and, when db is set, the
// api_keys table.
type Validator struct {
	db     *sqldb.DB
	static map[string]*KeyInfo
	now    func() time.Time
	logger *slog.Logger
}

// NewValidator creates a validator accepting staticKeys plus the active keys
// stored in db. db may be nil.
func NewValidator(db *sqldb.DB, staticKeys []string) *Validator {
	v := &Validator{
		db:     db,
		static: make(map[string]*KeyInfo, len(staticKeys)),
		now:    time.Now,
		logger: slog.Default().With("component", "apikey-validator"),
	}
	for i, k := range staticKeys {
		if k == "" {
			continue
		}
		hash := HashKey(k)
		v.static[hash] = &KeyInfo{
			ID:       "static-" + hash[:8],
			Name:     "static key " + strconv.Itoa(i+1),
			IsActive: true,
		}
	}
	return v
}

// Stored reports whether keys can be created and revoked.
func (v *Validator) Stored() bool { return v.db != nil }

// Validate checks a raw API key. It returns ErrInvalidKey or ErrExpiredKey
// for keys that must be rejected.
func (v *Validator) Validate(ctx context.Context, rawKey string) (*KeyInfo, error) {
	hash := HashKey(rawKey)
	if info, ok := v.static[hash]; ok {
		c := *info
		return &c, nil
	}
	if v.db == nil {
		return nil, ErrInvalidKey
	}

	var (
		info      KeyInfo
		id        int64
		expiresAt sql.NullTime
	)
	err := v.db.DB.QueryRowContext(ctx, v.db.Rebind(
		`SELECT id, name, rate_limit, is_active, created_at, expires_at
		 FROM api_keys
		 WHERE key_hash = ? AND is_active = ?`),
		hash, true,
	).Scan(&id, &info.Name, &info.RateLimit, &info.IsActive, &info.CreatedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, fmt.Errorf("querying api key: %w", err)
	}
	info.ID = strconv.FormatInt(id, 10)

	if expiresAt.Valid {
		if expiresAt.Time.Before(v.now()) {
			return nil, ErrExpiredKey
		}
		info.ExpiresAt = &expiresAt.Time
	}
	return &info, nil
}

// CreateKey generates a new API key, stores its hash, and returns the raw key.
// The raw key is returned only once and cannot be retrieved again.
func (v *Validator) CreateKey(ctx context.Context, name string, rateLimit int, expiresAt *time.Time) (string, error) {
	if err := v.requireStore(); err != nil {
		return "", err
	}
	if name == "" {
		return "", apperrors.New(apperrors.ErrInvalidArgument, "key name is required")
	}
	if rateLimit < 0 {
		return "", apperrors.New(apperrors.ErrInvalidArgument, "rate_limit must not be negative")
	}
	rawKey, err := generateRawKey()
	if err != nil {
		return "", err
	}

	var expiry sql.NullTime
	if expiresAt != nil {
		expiry = sql.NullTime{Time: expiresAt.UTC(), Valid: true}
	}
	_, err = v.db.DB.ExecContext(ctx, v.db.Rebind(
		`INSERT INTO api_keys (key_hash, name, rate_limit, expires_at) VALUES (?, ?, ?, ?)`),
		HashKey(rawKey), name, rateLimit, expiry,
	)
	if err != nil {
		return "", fmt.Errorf("creating api key: %w", err)
	}

	v.logger.Info("api key created", "name", name, "rate_limit", rateLimit)
	return rawKey, nil
}

// RevokeKey deactivates an API key so it can no longer be used. Revoking an
// unknown or already revoked key returns ErrInvalidKey.
func (v *Validator) RevokeKey(ctx context.Context, rawKey string) error {
	if err := v.requireStore(); err != nil {
		return err
	}
	result, err := v.db.DB.ExecContext(ctx, v.db.Rebind(
		`UPDATE api_keys SET is_active = ? WHERE key_hash = ? AND is_active = ?`),
		false, HashKey(rawKey), true,
	)
	if err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrInvalidKey
	}

	v.logger.Info("api key revoked")
	return nil
}

// ListKeys returns all active stored keys, newest first, without hashes.
func (v *Validator) ListKeys(ctx context.Context) ([]KeyInfo, error) {
	if err := v.requireStore(); err != nil {
		return nil, err
	}
	rows, err := v.db.DB.QueryContext(ctx, v.db.Rebind(
		`SELECT id, name, rate_limit, is_active, created_at, expires_at
		 FROM api_keys WHERE is_active = ? ORDER BY created_at DESC`),
		true,
	)
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}
	defer rows.Close()

	var keys []KeyInfo
	for rows.Next() {
		var (
			k         KeyInfo
			id        int64
			expiresAt sql.NullTime
		)
		if err := rows.Scan(&id, &k.Name, &k.RateLimit, &k.IsActive, &k.CreatedAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("scanning api key row: %w", err)
		}
		k.ID = strconv.FormatInt(id, 10)
		if expiresAt.Valid {
			k.ExpiresAt = &expiresAt.Time
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (v *Validator) requireStore() error {
	if v.db == nil {
		return apperrors.New(apperrors.ErrFailedPrecondition, "api keys are not stored in a database; enable auth.usePostgres")
	}
	return nil
}

// HashKey returns the SHA-256 hex digest of a raw API key.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// generateRawKey returns 32 random bytes, hex encoded.
func generateRawKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating api key: %w", err)
	}
	return hex.EncodeToString(b), nil
}
