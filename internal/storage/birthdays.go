package storage

import (
	"context"
	"database/sql"
	"errors"
)

// Birthdates are stored as DD-MM-YYYY strings, the format the bot has always
// shown to users.

func (s *Store) UpsertBirthday(ctx context.Context, username, birthdate string) error {
	query := s.db.Rebind(`
		INSERT INTO birthdays (username, birthdate)
		VALUES (?, ?)
		ON CONFLICT(username) DO UPDATE SET birthdate = excluded.birthdate
	`)
	_, err := s.db.ExecContext(ctx, query, username, birthdate)
	return err
}

func (s *Store) DeleteBirthday(ctx context.Context, username string) error {
	query := s.db.Rebind(`DELETE FROM birthdays WHERE username = ?`)
	_, err := s.db.ExecContext(ctx, query, username)
	return err
}

func (s *Store) GetBirthday(ctx context.Context, username string) (string, bool, error) {
	query := s.db.Rebind(`SELECT birthdate FROM birthdays WHERE username = ?`)
	var birthdate string
	err := s.db.QueryRowContext(ctx, query, username).Scan(&birthdate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return birthdate, true, nil
}

func (s *Store) ListBirthdays(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT username, birthdate FROM birthdays ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	birthdays := make(map[string]string)
	for rows.Next() {
		var username, birthdate string
		if err := rows.Scan(&username, &birthdate); err != nil {
			return nil, err
		}
		birthdays[username] = birthdate
	}
	return birthdays, rows.Err()
}
