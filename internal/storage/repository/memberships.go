package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/discharge-sync/internal/models"
)

// ErrMembershipNotFound возвращается, когда у пользователя нет действующего членства.
var ErrMembershipNotFound = errors.New("membership not found")

// CreateMembership вставляет новую строку членства и возвращает её ID.
func (s *Storage) CreateMembership(ctx context.Context, m models.Membership) (int, error) {
	const op = "storage.CreateMembership"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO memberships (user_uid, level_id, status, startdate, enddate)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id`
	var newID int
	err := s.DB.QueryRowContext(ctx, query,
		m.UserUID, m.LevelID, m.Status, m.StartDate, m.EndDate).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetActiveMembership возвращает действующее членство пользователя.
// Если его нет, возвращает ErrMembershipNotFound.
func (s *Storage) GetActiveMembership(ctx context.Context, userUID string) (*models.Membership, error) {
	const op = "storage.GetActiveMembership"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, level_id, status, startdate, enddate
			  FROM memberships
			  WHERE user_uid = $1
			    AND status = 'active'
			  ORDER BY id DESC
			  LIMIT 1`
	row := s.DB.QueryRowContext(ctx, query, userUID)

	var m models.Membership
	var enddate sql.NullTime
	if err := row.Scan(&m.ID, &m.UserUID, &m.LevelID, &m.Status, &m.StartDate, &enddate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrMembershipNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if enddate.Valid {
		m.EndDate = &enddate.Time
	}
	return &m, nil
}

// HasActiveLevel отвечает, держит ли пользователь действующее членство на уровне.
func (s *Storage) HasActiveLevel(ctx context.Context, userUID string, levelID int) (bool, error) {
	const op = "storage.HasActiveLevel"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT EXISTS (
				  SELECT 1 FROM memberships
				  WHERE user_uid = $1
				    AND level_id = $2
				    AND status = 'active')`
	var exists bool
	if err := s.DB.QueryRowContext(ctx, query, userUID, levelID).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// CancelActiveMemberships помечает все действующие членства пользователя
// отменёнными и возвращает количество затронутых строк.
func (s *Storage) CancelActiveMemberships(ctx context.Context, userUID string) (int, error) {
	const op = "storage.CancelActiveMemberships"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE memberships
			  SET status = 'cancelled'
			  WHERE user_uid = $1
			    AND status = 'active'`
	result, err := s.DB.ExecContext(ctx, query, userUID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// UpdateActiveEnddate напрямую перезаписывает дату окончания действующей
// строки членства (user, level, status=active), минуя полную процедуру
// смены уровня. Возвращает количество затронутых строк.
func (s *Storage) UpdateActiveEnddate(ctx context.Context, userUID string, levelID int, enddate time.Time) (int, error) {
	const op = "storage.UpdateActiveEnddate"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE memberships
			  SET enddate = $1
			  WHERE user_uid = $2
			    AND level_id = $3
			    AND status = 'active'`
	result, err := s.DB.ExecContext(ctx, query, enddate, userUID, levelID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}
