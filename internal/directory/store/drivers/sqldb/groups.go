package sqldb

import (
	"context"

	"github.com/aussiebroadwan/duosync/internal/directory/domain"
	"github.com/aussiebroadwan/duosync/pkg/idx"
)

const groupColumns = `g.id, g.group_id, g.name, g.description, g.status,
	g.mobile_otp_enabled, g.push_enabled, g.sms_enabled, g.voice_enabled,
	g.created_at, g.updated_at`

type groupsRepo struct {
	q *queries
}

func (r *groupsRepo) GetGroupByGroupID(ctx context.Context, groupID string) (domain.Group, error) {
	row := r.q.queryRow(ctx, `SELECT `+groupColumns+` FROM duo_groups g WHERE g.group_id = ?`, groupID)
	g, err := scanGroup(row)
	if err != nil {
		return domain.Group{}, mapNotFound(err)
	}
	return g, nil
}

func (r *groupsRepo) GetOrCreate(ctx context.Context, g domain.Group) (domain.Group, bool, error) {
	ts := now()
	res, err := r.q.exec(ctx, `
		INSERT INTO duo_groups (id, group_id, name, description, status,
			mobile_otp_enabled, push_enabled, sms_enabled, voice_enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (group_id) DO NOTHING`,
		idx.New().String(),
		g.GroupID,
		g.Name,
		g.Description,
		g.Status,
		g.MobileOTPEnabled,
		g.PushEnabled,
		g.SMSEnabled,
		g.VoiceEnabled,
		ts,
		ts,
	)
	if err != nil {
		return domain.Group{}, false, err
	}

	created, err := inserted(res)
	if err != nil {
		return domain.Group{}, false, err
	}

	current, err := r.GetGroupByGroupID(ctx, g.GroupID)
	if err != nil {
		return domain.Group{}, false, err
	}
	return current, created, nil
}

func (r *groupsRepo) Update(ctx context.Context, g domain.Group) error {
	_, err := r.q.exec(ctx, `
		UPDATE duo_groups
		SET name = ?, description = ?, status = ?,
			mobile_otp_enabled = ?, push_enabled = ?, sms_enabled = ?, voice_enabled = ?,
			updated_at = ?
		WHERE group_id = ?`,
		g.Name,
		g.Description,
		g.Status,
		g.MobileOTPEnabled,
		g.PushEnabled,
		g.SMSEnabled,
		g.VoiceEnabled,
		now(),
		g.GroupID,
	)
	return err
}

func (r *groupsRepo) ListGroups(ctx context.Context) ([]domain.Group, error) {
	rows, err := r.q.query(ctx, `SELECT `+groupColumns+` FROM duo_groups g ORDER BY g.group_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []domain.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *groupsRepo) AddUser(ctx context.Context, groupID, userID string) (bool, error) {
	res, err := r.q.exec(ctx, `
		INSERT INTO duo_group_users (group_id, user_id) VALUES (?, ?)
		ON CONFLICT DO NOTHING`,
		groupID, userID,
	)
	if err != nil {
		return false, err
	}
	return inserted(res)
}

func (r *groupsRepo) RemoveUser(ctx context.Context, groupID, userID string) error {
	_, err := r.q.exec(ctx, `DELETE FROM duo_group_users WHERE group_id = ? AND user_id = ?`, groupID, userID)
	return err
}

func (r *groupsRepo) ListGroupsForUser(ctx context.Context, userID string) ([]domain.Group, error) {
	rows, err := r.q.query(ctx, `
		SELECT `+groupColumns+`
		FROM duo_groups g
		JOIN duo_group_users gu ON gu.group_id = g.id
		WHERE gu.user_id = ?
		ORDER BY g.group_id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []domain.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *groupsRepo) ListMemberUserIDs(ctx context.Context, groupID string) ([]string, error) {
	rows, err := r.q.query(ctx, `
		SELECT u.user_id
		FROM duo_users u
		JOIN duo_group_users gu ON gu.user_id = u.id
		WHERE gu.group_id = ?
		ORDER BY u.user_id`,
		groupID,
	)
	if err != nil {
		return nil, err
	}
	return scanStrings(rows)
}

func scanGroup(row rowScanner) (domain.Group, error) {
	var g domain.Group
	err := row.Scan(
		&g.ID,
		&g.GroupID,
		&g.Name,
		&g.Description,
		&g.Status,
		&g.MobileOTPEnabled,
		&g.PushEnabled,
		&g.SMSEnabled,
		&g.VoiceEnabled,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	return g, err
}
