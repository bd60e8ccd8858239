// Package dateutil реализует работу с календарными датами выписки:
// строгий разбор формата YYYY-MM-DD, вычисление "сегодня" в настроенной
// временной зоне и перевод даты в метку времени конца дня (23:59:59).
//
// Все вычисления выполняются в зоне оператора, а не в зоне сервера,
// чтобы граница дня не плыла между зонами.
package dateutil

import (
	"errors"
	"regexp"
	"time"
)

const (
	// DateLayout формат хранения даты выписки.
	DateLayout = "2006-01-02"
	// TimestampLayout формат метки времени в строке членства.
	TimestampLayout = "2006-01-02 15:04:05"
)

// ErrInvalidDate возвращается, когда строка не является настоящей
// календарной датой в формате YYYY-MM-DD. Никакого "лучшего предположения"
// не делается: либо дата корректна, либо ошибка.
var ErrInvalidDate = errors.New("invalid date")

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Today возвращает текущую дату в зоне loc с нулевым временем суток.
func Today(loc *time.Location) time.Time {
	now := time.Now().In(loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
}

// MaxFutureDate возвращает последнюю допустимую дату выписки:
// today плюс years лет.
func MaxFutureDate(today time.Time, years int) time.Time {
	return today.AddDate(years, 0, 0)
}

// Parse строго разбирает строку даты в зоне loc.
// Строка обязана совпадать с ^\d{4}-\d{2}-\d{2}$ и обозначать реальную
// календарную дату: "2025-02-30" отклоняется, а не нормализуется.
func Parse(raw string, loc *time.Location) (time.Time, error) {
	if !dateRe.MatchString(raw) {
		return time.Time{}, ErrInvalidDate
	}
	t, err := time.ParseInLocation(DateLayout, raw, loc)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	// time.Parse нормализует переполнение компонентов, поэтому
	// сверяем обратное форматирование с исходной строкой.
	if t.Format(DateLayout) != raw {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// EndOfDay разбирает дату и фиксирует время на 23:59:59 в зоне loc,
// чтобы доступ сохранялся до конца названного дня включительно.
func EndOfDay(raw string, loc *time.Location) (time.Time, error) {
	d, err := Parse(raw, loc)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, loc), nil
}

// FormatTimestamp форматирует метку времени в виде YYYY-MM-DD HH:MM:SS.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}
