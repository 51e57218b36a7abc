package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"tenauth.org/internal/ids"
)

const pgUniqueViolation = "23505"

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Users() UserStore                 { return &userStore{db: s.db} }
func (s *PGStore) RefreshTokens() RefreshTokenStore { return &refreshTokenStore{db: s.db} }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// User store ---------------------------------------------------------------
type userStore struct{ db *sql.DB }

func (s *userStore) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	roles, _ := json.Marshal(u.Roles)
	username := sql.NullString{String: u.Username, Valid: u.Username != ""}
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, tenant_id, email, username, first_name, last_name, password_hash, roles, active)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		u.ID, u.TenantID, u.Email, username, u.FirstName, u.LastName, u.PasswordHash, roles, u.Active,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUser
		}
		return err
	}
	return nil
}

const userColumns = `id, tenant_id, email, username, first_name, last_name, password_hash, roles, active, last_login_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var (
		u         User
		username  sql.NullString
		roles     []byte
		lastLogin sql.NullTime
	)
	if err := row.Scan(
		&u.ID, &u.TenantID, &u.Email, &username, &u.FirstName, &u.LastName,
		&u.PasswordHash, &roles, &u.Active, &lastLogin, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.Username = username.String
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	_ = json.Unmarshal(roles, &u.Roles)
	return &u, nil
}

func (s *userStore) Find(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id)
	return scanUser(row)
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=$1`, email)
	return scanUser(row)
}

func (s *userStore) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`update users set last_login_at=$2, updated_at=now() where id=$1`, userID, at)
	return err
}

func (s *userStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set password_hash=$2, updated_at=now() where id=$1`, userID, passwordHash)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Refresh token store ------------------------------------------------------
type refreshTokenStore struct{ db *sql.DB }

func (s *refreshTokenStore) Create(ctx context.Context, tok *RefreshToken) error {
	if tok.ID == "" {
		tok.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into refresh_tokens(id, token, user_id, expires_at, user_agent, ip)
		 values($1,$2,$3,$4,$5,$6)`,
		tok.ID, tok.Token, tok.UserID, tok.ExpiresAt, tok.UserAgent, tok.IP,
	)
	return err
}

func (s *refreshTokenStore) FindByToken(ctx context.Context, token string) (*RefreshToken, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, token, user_id, expires_at, revoked, revoked_at, user_agent, ip, created_at
		 from refresh_tokens where token=$1`, token)
	var (
		tok       RefreshToken
		revokedAt sql.NullTime
	)
	if err := row.Scan(
		&tok.ID, &tok.Token, &tok.UserID, &tok.ExpiresAt, &tok.Revoked,
		&revokedAt, &tok.UserAgent, &tok.IP, &tok.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		tok.RevokedAt = &t
	}
	return &tok, nil
}

// Consume is the linearization point of rotation: the conditional update
// flips revoked exactly once, so concurrent refreshes racing on the same
// token see one affected row between them.
func (s *refreshTokenStore) Consume(ctx context.Context, token string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`update refresh_tokens set revoked=true, revoked_at=now() where token=$1 and revoked=false`,
		token)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *refreshTokenStore) Revoke(ctx context.Context, userID, token string) error {
	_, err := s.db.ExecContext(ctx,
		`update refresh_tokens set revoked=true, revoked_at=now()
		 where user_id=$1 and token=$2 and revoked=false`,
		userID, token)
	return err
}

func (s *refreshTokenStore) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`update refresh_tokens set revoked=true, revoked_at=now()
		 where user_id=$1 and revoked=false`,
		userID)
	return err
}

func (s *refreshTokenStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from refresh_tokens where expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
