// Package models содержит доменные структуры сервиса синхронизации даты выписки:
// пользователей, членства по уровням и вспомогательные типы для приёма данных
// из внешних источников (JSON-запросов).
package models

// User представляет зарегистрированного пользователя системы.
type User struct {
	UID          string // Уникальный идентификатор пользователя
	Email        string // Электронная почта
	Username     string // Имя пользователя (уникальное)
	PasswordHash string // Хэш пароля пользователя
	Role         string // Роль пользователя, admin или user
}
