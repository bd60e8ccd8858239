package models

// Режимы отображения поля даты выписки.
const (
	// FieldModeNone поле не отображается: уровень не целевой.
	FieldModeNone = "none"
	// FieldModeReadonly дата уже сохранена и зафиксирована.
	FieldModeReadonly = "readonly"
	// FieldModeEditable дата ещё не сохранена либо редактирует администратор.
	FieldModeEditable = "editable"
)

// DischargeFieldView модель отображения поля даты выписки.
// Используется тремя точками вызова: предпросмотром оформления,
// страницей аккаунта и профилем в админке.
type DischargeFieldView struct {
	Mode      string `json:"mode"`                 // none, readonly или editable
	Value     string `json:"value,omitempty"`      // Текущее значение поля
	Min       string `json:"min,omitempty"`        // Нижняя граница для редактируемого поля
	Max       string `json:"max,omitempty"`        // Верхняя граница для редактируемого поля
	Notice    string `json:"notice,omitempty"`     // Пояснительный текст
	FormToken string `json:"form_token,omitempty"` // Одноразовый токен формы аккаунта
}

// CheckoutRequest используется для приёма данных оформления уровня из JSON-запроса.
// Дата выписки приходит строкой, чтобы её можно было валидировать вручную
// по правилам целевого уровня.
type CheckoutRequest struct {
	LevelID       int    `json:"level_id" validate:"required,gt=0"` // Оформляемый уровень
	DischargeDate string `json:"discharge_date"`                    // Дата выписки в формате 2006-01-02
}

// AccountSubmitRequest запрос самостоятельного сохранения даты со страницы аккаунта.
type AccountSubmitRequest struct {
	DischargeDate string `json:"discharge_date" validate:"required"` // Дата выписки
	FormToken     string `json:"form_token" validate:"required,uuid"`
}

// AdminSaveRequest запрос административного редактирования даты выписки.
// Пустое значение удаляет сохранённую дату.
type AdminSaveRequest struct {
	DischargeDate string `json:"discharge_date"`
}

// AssignLevelRequest запрос административного назначения уровня пользователю.
type AssignLevelRequest struct {
	UserUID string `json:"user_uid" validate:"required,uuid"`
	LevelID int    `json:"level_id" validate:"required,gt=0"`
}
