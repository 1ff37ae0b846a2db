package sqldb

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/duosync/internal/directory/domain"
	"github.com/aussiebroadwan/duosync/pkg/idx"
)

const tokenColumns = `t.id, t.serial, t.token_id, t.type, t.totp_step, t.created_at, t.updated_at`

type tokensRepo struct {
	q *queries
}

func (r *tokensRepo) GetTokenBySerial(ctx context.Context, serial string) (domain.Token, error) {
	row := r.q.queryRow(ctx, `SELECT `+tokenColumns+` FROM duo_tokens t WHERE t.serial = ?`, serial)
	tok, err := scanToken(row)
	if err != nil {
		return domain.Token{}, mapNotFound(err)
	}
	return tok, nil
}

func (r *tokensRepo) GetOrCreate(ctx context.Context, t domain.Token) (domain.Token, bool, error) {
	ts := now()
	res, err := r.q.exec(ctx, `
		INSERT INTO duo_tokens (id, serial, token_id, type, totp_step, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (serial) DO NOTHING`,
		idx.New().String(),
		t.Serial,
		t.TokenID,
		t.Type,
		mapOptionalInt(t.TOTPStep),
		ts,
		ts,
	)
	if err != nil {
		return domain.Token{}, false, err
	}

	created, err := inserted(res)
	if err != nil {
		return domain.Token{}, false, err
	}

	current, err := r.GetTokenBySerial(ctx, t.Serial)
	if err != nil {
		return domain.Token{}, false, err
	}
	return current, created, nil
}

func (r *tokensRepo) Update(ctx context.Context, t domain.Token) error {
	_, err := r.q.exec(ctx, `
		UPDATE duo_tokens
		SET token_id = ?, type = ?, totp_step = ?, updated_at = ?
		WHERE serial = ?`,
		t.TokenID,
		t.Type,
		mapOptionalInt(t.TOTPStep),
		now(),
		t.Serial,
	)
	return err
}

func (r *tokensRepo) AddUser(ctx context.Context, tokenID, userID string) (bool, error) {
	res, err := r.q.exec(ctx, `
		INSERT INTO duo_token_users (token_id, user_id) VALUES (?, ?)
		ON CONFLICT DO NOTHING`,
		tokenID, userID,
	)
	if err != nil {
		return false, err
	}
	return inserted(res)
}

func (r *tokensRepo) RemoveUser(ctx context.Context, tokenID, userID string) error {
	_, err := r.q.exec(ctx, `DELETE FROM duo_token_users WHERE token_id = ? AND user_id = ?`, tokenID, userID)
	return err
}

func (r *tokensRepo) ListTokensForUser(ctx context.Context, userID string) ([]domain.Token, error) {
	rows, err := r.q.query(ctx, `
		SELECT `+tokenColumns+`
		FROM duo_tokens t
		JOIN duo_token_users tu ON tu.token_id = t.id
		WHERE tu.user_id = ?
		ORDER BY t.serial`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []domain.Token
	for rows.Next() {
		tok, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	return tokens, rows.Err()
}

func (r *tokensRepo) CountTokens(ctx context.Context) (int, error) {
	var n int
	err := r.q.queryRow(ctx, `SELECT COUNT(*) FROM duo_tokens`).Scan(&n)
	return n, err
}

func scanToken(row rowScanner) (domain.Token, error) {
	var (
		t    domain.Token
		step sql.NullInt64
	)
	if err := row.Scan(&t.ID, &t.Serial, &t.TokenID, &t.Type, &step, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return domain.Token{}, err
	}
	t.TOTPStep = mapNullIntPtr(step)
	return t, nil
}
