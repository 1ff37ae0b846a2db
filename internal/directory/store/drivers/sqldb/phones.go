package sqldb

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/duosync/internal/directory/domain"
	"github.com/aussiebroadwan/duosync/pkg/idx"
)

const phoneColumns = `p.id, p.phone_id, p.name, p.number, p.extension, p.type, p.platform,
	p.postdelay, p.predelay, p.sms_passcodes_sent, p.activated, p.created_at, p.updated_at`

type phonesRepo struct {
	q *queries
}

func (r *phonesRepo) GetPhoneByPhoneID(ctx context.Context, phoneID string) (domain.Phone, error) {
	row := r.q.queryRow(ctx, `SELECT `+phoneColumns+` FROM duo_phones p WHERE p.phone_id = ?`, phoneID)
	p, err := scanPhone(row)
	if err != nil {
		return domain.Phone{}, mapNotFound(err)
	}
	return p, nil
}

func (r *phonesRepo) GetOrCreate(ctx context.Context, p domain.Phone) (domain.Phone, bool, error) {
	ts := now()
	res, err := r.q.exec(ctx, `
		INSERT INTO duo_phones (id, phone_id, name, number, extension, type, platform,
			postdelay, predelay, sms_passcodes_sent, activated, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (phone_id) DO NOTHING`,
		idx.New().String(),
		p.PhoneID,
		p.Name,
		p.Number,
		p.Extension,
		p.Type,
		p.Platform,
		mapOptionalString(p.PostDelay),
		mapOptionalString(p.PreDelay),
		mapOptionalBool(p.SMSPasscodesSent),
		mapOptionalBool(p.Activated),
		ts,
		ts,
	)
	if err != nil {
		return domain.Phone{}, false, err
	}

	created, err := inserted(res)
	if err != nil {
		return domain.Phone{}, false, err
	}

	current, err := r.GetPhoneByPhoneID(ctx, p.PhoneID)
	if err != nil {
		return domain.Phone{}, false, err
	}
	return current, created, nil
}

func (r *phonesRepo) Update(ctx context.Context, p domain.Phone) error {
	_, err := r.q.exec(ctx, `
		UPDATE duo_phones
		SET name = ?, number = ?, extension = ?, type = ?, platform = ?,
			postdelay = ?, predelay = ?, sms_passcodes_sent = ?, activated = ?, updated_at = ?
		WHERE phone_id = ?`,
		p.Name,
		p.Number,
		p.Extension,
		p.Type,
		p.Platform,
		mapOptionalString(p.PostDelay),
		mapOptionalString(p.PreDelay),
		mapOptionalBool(p.SMSPasscodesSent),
		mapOptionalBool(p.Activated),
		now(),
		p.PhoneID,
	)
	return err
}

func (r *phonesRepo) AddUser(ctx context.Context, phoneID, userID string) (bool, error) {
	res, err := r.q.exec(ctx, `
		INSERT INTO duo_phone_users (phone_id, user_id) VALUES (?, ?)
		ON CONFLICT DO NOTHING`,
		phoneID, userID,
	)
	if err != nil {
		return false, err
	}
	return inserted(res)
}

func (r *phonesRepo) RemoveUser(ctx context.Context, phoneID, userID string) error {
	_, err := r.q.exec(ctx, `DELETE FROM duo_phone_users WHERE phone_id = ? AND user_id = ?`, phoneID, userID)
	return err
}

func (r *phonesRepo) ListPhonesForUser(ctx context.Context, userID string) ([]domain.Phone, error) {
	rows, err := r.q.query(ctx, `
		SELECT `+phoneColumns+`
		FROM duo_phones p
		JOIN duo_phone_users pu ON pu.phone_id = p.id
		WHERE pu.user_id = ?
		ORDER BY p.phone_id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var phones []domain.Phone
	for rows.Next() {
		p, err := scanPhone(rows)
		if err != nil {
			return nil, err
		}
		phones = append(phones, p)
	}
	return phones, rows.Err()
}

func (r *phonesRepo) CountPhones(ctx context.Context) (int, error) {
	var n int
	err := r.q.queryRow(ctx, `SELECT COUNT(*) FROM duo_phones`).Scan(&n)
	return n, err
}

func scanPhone(row rowScanner) (domain.Phone, error) {
	var (
		p         domain.Phone
		postDelay sql.NullString
		preDelay  sql.NullString
		smsSent   sql.NullBool
		activated sql.NullBool
	)
	err := row.Scan(
		&p.ID,
		&p.PhoneID,
		&p.Name,
		&p.Number,
		&p.Extension,
		&p.Type,
		&p.Platform,
		&postDelay,
		&preDelay,
		&smsSent,
		&activated,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return domain.Phone{}, err
	}

	p.PostDelay = mapNullStringPtr(postDelay)
	p.PreDelay = mapNullStringPtr(preDelay)
	p.SMSPasscodesSent = mapNullBoolPtr(smsSent)
	p.Activated = mapNullBoolPtr(activated)
	return p, nil
}
