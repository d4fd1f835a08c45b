package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"tess-spy/internal/suspend"
)

// Snapshots and Suspensions expose the persisted suspension state through the
// engine's store interfaces, so pending suspensions and role snapshots
// survive a process restart.

type Snapshots struct {
	s *Store
}

func (s *Store) Snapshots() *Snapshots {
	return &Snapshots{s: s}
}

func (sn *Snapshots) Put(ctx context.Context, userID, guildID string, roleIDs []string) error {
	encoded, err := json.Marshal(roleIDs)
	if err != nil {
		return err
	}
	query := sn.s.db.Rebind(`
		INSERT INTO role_snapshots (user_id, guild_id, role_ids)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, guild_id) DO UPDATE SET role_ids = excluded.role_ids
	`)
	_, err = sn.s.db.ExecContext(ctx, query, userID, guildID, string(encoded))
	return err
}

func (sn *Snapshots) Take(ctx context.Context, userID, guildID string) ([]string, bool, error) {
	tx, err := sn.s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := tx.Rebind(`SELECT role_ids FROM role_snapshots WHERE user_id = ? AND guild_id = ?`)
	var encoded string
	if err := tx.QueryRowContext(ctx, query, userID, guildID).Scan(&encoded); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	query = tx.Rebind(`DELETE FROM role_snapshots WHERE user_id = ? AND guild_id = ?`)
	if _, err := tx.ExecContext(ctx, query, userID, guildID); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}

	var roleIDs []string
	if err := json.Unmarshal([]byte(encoded), &roleIDs); err != nil {
		return nil, false, err
	}
	return roleIDs, true, nil
}

// ListRoleSnapshots returns every stored snapshot for a user, keyed by guild.
// Operator inspection only; the engine goes through Take.
func (s *Store) ListRoleSnapshots(ctx context.Context, userID string) (map[string][]string, error) {
	query := s.db.Rebind(`SELECT guild_id, role_ids FROM role_snapshots WHERE user_id = ?`)
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshots := make(map[string][]string)
	for rows.Next() {
		var guildID, encoded string
		if err := rows.Scan(&guildID, &encoded); err != nil {
			return nil, err
		}
		var roleIDs []string
		if err := json.Unmarshal([]byte(encoded), &roleIDs); err != nil {
			continue
		}
		snapshots[guildID] = roleIDs
	}
	return snapshots, rows.Err()
}

type Suspensions struct {
	s *Store
}

func (s *Store) Suspensions() *Suspensions {
	return &Suspensions{s: s}
}

func (su *Suspensions) Put(ctx context.Context, rec suspend.Suspension) error {
	query := su.s.db.Rebind(`
		INSERT INTO suspensions (user_id, guild_id, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			guild_id = excluded.guild_id,
			expires_at = excluded.expires_at
	`)
	_, err := su.s.db.ExecContext(ctx, query, rec.UserID, rec.GuildID, rec.ExpiresAt.Unix())
	return err
}

func (su *Suspensions) Expired(ctx context.Context, now time.Time) ([]suspend.Suspension, error) {
	query := su.s.db.Rebind(`SELECT user_id, guild_id, expires_at FROM suspensions WHERE expires_at <= ?`)
	rows, err := su.s.db.QueryContext(ctx, query, now.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []suspend.Suspension
	for rows.Next() {
		var rec suspend.Suspension
		var expires int64
		if err := rows.Scan(&rec.UserID, &rec.GuildID, &expires); err != nil {
			return nil, err
		}
		rec.ExpiresAt = time.Unix(expires, 0)
		due = append(due, rec)
	}
	return due, rows.Err()
}

func (su *Suspensions) Remove(ctx context.Context, userID string) error {
	query := su.s.db.Rebind(`DELETE FROM suspensions WHERE user_id = ?`)
	_, err := su.s.db.ExecContext(ctx, query, userID)
	return err
}
