// Package tokenstore is the SQLite-backed invitation and API-token ledger
// behind the control API's AccessGuard: an operator with local-network
// access mints an invitation, redeems it once for a bearer token, and every
// subsequent request is checked against that token.
package tokenstore

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sentineld/sentineld/internal/apperrors"
)

// Invitation is a one-time code an operator redeems for a bearer token.
type Invitation struct {
	ID        int64
	Code      string
	CreatedAt time.Time
	Active    bool
	UsedAt    *time.Time
	ExpiresAt time.Time
}

// Token is a bearer credential minted by redeeming an Invitation.
type Token struct {
	ID           int64
	InvitationID int64
	Value        string
	CreatedAt    time.Time
	Active       bool
	LastUsed     *time.Time
}

// Store is a SQLite-backed invitation/token ledger. One instance is shared
// across the control API's request handlers; all access is serialized
// through a mutex the way the teacher's event store serializes access to
// its own *sql.DB.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex
	ttl time.Duration
}

// Open creates (or reuses) the SQLite database at path and ensures its
// schema exists. ttl is applied to every newly minted invitation.
func Open(path string, ttl time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	s := &Store{db: db, ttl: ttl}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS invitations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at INTEGER NOT NULL,
		code TEXT NOT NULL UNIQUE,
		active INTEGER NOT NULL DEFAULT 1,
		used_at INTEGER,
		expires_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_invitations_code ON invitations(code);
	CREATE TABLE IF NOT EXISTS api_keys (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at INTEGER NOT NULL,
		invitation_id INTEGER NOT NULL UNIQUE REFERENCES invitations(id),
		token TEXT NOT NULL UNIQUE,
		active INTEGER NOT NULL DEFAULT 1,
		last_used INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_api_keys_token ON api_keys(token);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// CreateInvitation mints and persists a new invitation code.
func (s *Store) CreateInvitation(ctx context.Context) (*Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	inv := &Invitation{
		Code:      uuid.NewString(),
		CreatedAt: now,
		Active:    true,
		ExpiresAt: now.Add(s.ttl),
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO invitations (created_at, code, active, expires_at) VALUES (?, ?, 1, ?)",
		inv.CreatedAt.Unix(), inv.Code, inv.ExpiresAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert invitation: %w", err)
	}
	inv.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("read invitation id: %w", err)
	}
	return inv, nil
}

// RedeemInvitation exchanges an active, unexpired invitation code for a
// newly minted bearer token, deactivating the invitation so it cannot be
// redeemed twice.
func (s *Store) RedeemInvitation(ctx context.Context, code string) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var inv Invitation
	var usedAtUnix sql.NullInt64
	var expiresAtUnix int64
	row := s.db.QueryRowContext(ctx,
		"SELECT id, created_at, active, used_at, expires_at FROM invitations WHERE code = ?", code)
	if err := row.Scan(&inv.ID, new(int64), &inv.Active, &usedAtUnix, &expiresAtUnix); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.New(apperrors.CategoryValidation, "invalid invitation code").Build()
		}
		return nil, fmt.Errorf("query invitation: %w", err)
	}
	inv.ExpiresAt = time.Unix(expiresAtUnix, 0)

	if !inv.Active {
		return nil, apperrors.New(apperrors.CategoryValidation, "invitation code already used").Build()
	}
	if time.Now().After(inv.ExpiresAt) {
		if _, err := s.db.ExecContext(ctx, "UPDATE invitations SET active = 0 WHERE id = ?", inv.ID); err != nil {
			return nil, fmt.Errorf("deactivate expired invitation: %w", err)
		}
		return nil, apperrors.New(apperrors.CategoryValidation,
			fmt.Sprintf("invitation expired at %s", inv.ExpiresAt.Format(time.RFC3339))).Build()
	}

	value, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO api_keys (created_at, invitation_id, token, active) VALUES (?, ?, ?, 1)",
		now.Unix(), inv.ID, value,
	)
	if err != nil {
		return nil, fmt.Errorf("insert token: %w", err)
	}
	tokenID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("read token id: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		"UPDATE invitations SET active = 0, used_at = ? WHERE id = ?", now.Unix(), inv.ID,
	); err != nil {
		return nil, fmt.Errorf("mark invitation used: %w", err)
	}

	return &Token{ID: tokenID, InvitationID: inv.ID, Value: value, CreatedAt: now, Active: true}, nil
}

// ValidateToken resolves a presented bearer token against the store. On a
// match it records last_used and returns the token; otherwise it reports
// CategoryAccessDenied.
func (s *Store) ValidateToken(ctx context.Context, value string) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tok Token
	var createdAtUnix int64
	var lastUsedUnix sql.NullInt64
	row := s.db.QueryRowContext(ctx,
		"SELECT id, invitation_id, created_at, active, last_used FROM api_keys WHERE token = ?", value)
	if err := row.Scan(&tok.ID, &tok.InvitationID, &createdAtUnix, &tok.Active, &lastUsedUnix); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.AccessDenied("unknown bearer token")
		}
		return nil, fmt.Errorf("query token: %w", err)
	}
	if !tok.Active {
		return nil, apperrors.AccessDenied("bearer token revoked")
	}
	tok.Value = value
	tok.CreatedAt = time.Unix(createdAtUnix, 0)

	now := time.Now()
	if _, err := s.db.ExecContext(ctx, "UPDATE api_keys SET last_used = ? WHERE id = ?", now.Unix(), tok.ID); err != nil {
		return nil, fmt.Errorf("record last_used: %w", err)
	}
	tok.LastUsed = &now
	return &tok, nil
}

// generateToken returns a URL-safe, 256-bit random bearer token.
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
