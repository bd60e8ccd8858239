package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetUserMeta возвращает мета-значение пользователя по ключу.
// Отсутствующая строка возвращается как пустая строка без ошибки:
// пустое значение означает "не задано".
func (s *Storage) GetUserMeta(ctx context.Context, userUID, key string) (string, error) {
	const op = "storage.GetUserMeta"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT meta_value
			  FROM user_meta
			  WHERE user_uid = $1
			    AND meta_key = $2`
	var value string
	if err := s.DB.QueryRowContext(ctx, query, userUID, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return value, nil
}

// SetUserMeta записывает мета-значение пользователя, перезаписывая существующее.
func (s *Storage) SetUserMeta(ctx context.Context, userUID, key, value string) error {
	const op = "storage.SetUserMeta"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO user_meta (user_uid, meta_key, meta_value)
			  VALUES ($1, $2, $3)
			  ON CONFLICT (user_uid, meta_key)
			  DO UPDATE SET meta_value = EXCLUDED.meta_value`
	if _, err := s.DB.ExecContext(ctx, query, userUID, key, value); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteUserMeta удаляет мета-значение пользователя по ключу.
// Возвращает количество удалённых строк.
func (s *Storage) DeleteUserMeta(ctx context.Context, userUID, key string) (int, error) {
	const op = "storage.DeleteUserMeta"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM user_meta
			  WHERE user_uid = $1
			    AND meta_key = $2`
	result, err := s.DB.ExecContext(ctx, query, userUID, key)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}
