package models

import "time"

// Статусы строки членства.
const (
	// MembershipActive действующее членство.
	MembershipActive = "active"
	// MembershipCancelled отменённое членство.
	MembershipCancelled = "cancelled"
)

// Membership представляет строку членства пользователя на уровне.
// Поле EndDate может быть nil — это означает бессрочное членство.
type Membership struct {
	ID        int        // Идентификатор строки
	UserUID   string     // Идентификатор пользователя
	LevelID   int        // Идентификатор уровня членства
	Status    string     // active или cancelled
	StartDate time.Time  // Дата начала членства
	EndDate   *time.Time // Дата окончания, nil — без срока
}
