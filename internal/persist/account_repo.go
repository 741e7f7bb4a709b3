package persist

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

type AccountRow struct {
	Name          string
	PasswordHash  string
	AccessLevel   int16
	CharacterSlot int16
	IP            string
	Host          string
	Banned        bool
	Online        bool
	TosAccepted   bool
	Pin           string
	Gender        int16
	CreatedAt     time.Time
	LastActive    *time.Time
}

type AccountRepo struct {
	db *DB
}

func NewAccountRepo(db *DB) *AccountRepo {
	return &AccountRepo{db: db}
}

func (r *AccountRepo) Load(ctx context.Context, name string) (*AccountRow, error) {
	row := &AccountRow{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT name, password_hash, access_level, character_slot,
		        COALESCE(ip,''), COALESCE(host,''), banned, online,
		        tos_accepted, COALESCE(pin,''), gender, created_at, last_active
		 FROM accounts WHERE name = $1`, name,
	).Scan(
		&row.Name, &row.PasswordHash, &row.AccessLevel, &row.CharacterSlot,
		&row.IP, &row.Host, &row.Banned, &row.Online,
		&row.TosAccepted, &row.Pin, &row.Gender, &row.CreatedAt, &row.LastActive,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

// CheckCredentials is the login handshake's entry point (spec §6): loads
// the account and validates rawPassword against its stored hash in one
// call, returning (nil, nil) for either "no such account" or "wrong
// password" so callers can't distinguish the two from the error alone.
func (r *AccountRepo) CheckCredentials(ctx context.Context, name, rawPassword string) (*AccountRow, error) {
	row, err := r.Load(ctx, name)
	if err != nil || row == nil {
		return nil, err
	}
	if !r.ValidatePassword(row.PasswordHash, rawPassword) {
		return nil, nil
	}
	return row, nil
}

// AcceptTos records the one-time terms-of-service acceptance.
func (r *AccountRepo) AcceptTos(ctx context.Context, name string) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE accounts SET tos_accepted = true WHERE name = $1`, name)
	return err
}

// SetPin updates the account's secondary PIN.
func (r *AccountRepo) SetPin(ctx context.Context, name, pin string) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE accounts SET pin = $2 WHERE name = $1`, name, pin)
	return err
}

// SetGender updates the account-level gender flag (set once at first
// character creation on servers where gender is account-scoped).
func (r *AccountRepo) SetGender(ctx context.Context, name string, gender int16) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE accounts SET gender = $2 WHERE name = $1`, name, gender)
	return err
}

func (r *AccountRepo) Create(ctx context.Context, name, rawPassword, ip, host string) (*AccountRow, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(rawPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	row := &AccountRow{
		Name:         name,
		PasswordHash: string(hash),
		IP:           ip,
		Host:         host,
		CreatedAt:    now,
		LastActive:   &now,
	}
	_, err = r.db.Pool.Exec(ctx,
		`INSERT INTO accounts (name, password_hash, ip, host, last_active)
		 VALUES ($1, $2, $3, $4, $5)`,
		row.Name, row.PasswordHash, row.IP, row.Host, row.LastActive,
	)
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *AccountRepo) ValidatePassword(hash string, rawPassword string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(rawPassword)) == nil
}

func (r *AccountRepo) UpdateLastActive(ctx context.Context, name, ip string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE accounts SET last_active = NOW(), ip = $2 WHERE name = $1`,
		name, ip,
	)
	return err
}

func (r *AccountRepo) SetOnline(ctx context.Context, name string, online bool) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE accounts SET online = $2 WHERE name = $1`,
		name, online,
	)
	return err
}
