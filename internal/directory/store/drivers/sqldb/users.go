package sqldb

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/duosync/internal/directory/domain"
	"github.com/aussiebroadwan/duosync/pkg/idx"
)

const userColumns = `id, user_id, username, email, status, realname, notes, last_login, created_at, updated_at`

type usersRepo struct {
	q *queries
}

func (r *usersRepo) GetUserByUserID(ctx context.Context, userID string) (domain.User, error) {
	row := r.q.queryRow(ctx, `SELECT `+userColumns+` FROM duo_users WHERE user_id = ?`, userID)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetOrCreate(ctx context.Context, u domain.User) (domain.User, bool, error) {
	ts := now()
	res, err := r.q.exec(ctx, `
		INSERT INTO duo_users (id, user_id, username, email, status, realname, notes, last_login, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING`,
		idx.New().String(),
		u.UserID,
		u.Username,
		u.Email,
		u.Status,
		mapOptionalString(u.RealName),
		u.Notes,
		mapOptionalTime(u.LastLogin),
		ts,
		ts,
	)
	if err != nil {
		return domain.User{}, false, err
	}

	created, err := inserted(res)
	if err != nil {
		return domain.User{}, false, err
	}

	current, err := r.GetUserByUserID(ctx, u.UserID)
	if err != nil {
		return domain.User{}, false, err
	}
	return current, created, nil
}

func (r *usersRepo) Update(ctx context.Context, u domain.User) error {
	_, err := r.q.exec(ctx, `
		UPDATE duo_users
		SET username = ?, email = ?, status = ?, realname = ?, notes = ?, last_login = ?, updated_at = ?
		WHERE user_id = ?`,
		u.Username,
		u.Email,
		u.Status,
		mapOptionalString(u.RealName),
		u.Notes,
		mapOptionalTime(u.LastLogin),
		now(),
		u.UserID,
	)
	return err
}

func (r *usersRepo) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.q.query(ctx, `SELECT user_id FROM duo_users ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	return scanStrings(rows)
}

func (r *usersRepo) DeleteUserByUserID(ctx context.Context, userID string) error {
	_, err := r.q.exec(ctx, `DELETE FROM duo_users WHERE user_id = ?`, userID)
	return err
}

func (r *usersRepo) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := r.q.queryRow(ctx, `SELECT COUNT(*) FROM duo_users`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u         domain.User
		realName  sql.NullString
		lastLogin sql.NullTime
	)
	err := row.Scan(
		&u.ID,
		&u.UserID,
		&u.Username,
		&u.Email,
		&u.Status,
		&realName,
		&u.Notes,
		&lastLogin,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}

	u.RealName = mapNullStringPtr(realName)
	u.LastLogin = mapNullTimePtr(lastLogin)
	return u, nil
}
