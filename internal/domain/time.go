package domain

import (
	"sync"
	"time"
)

// TimestampLayout — формат всех временных меток во внешних представлениях.
// Уже сохранённые записи используют именно его, поэтому формат фиксирован.
const TimestampLayout = "2006-01-02 15:04:05"

var (
	locationOnce sync.Once
	location     *time.Location
)

// Location возвращает фиксированную гражданскую таймзону (America/Sao_Paulo).
// Если база таймзон недоступна, используется постоянное смещение -03:00.
func Location() *time.Location {
	locationOnce.Do(func() {
		loc, err := time.LoadLocation("America/Sao_Paulo")
		if err != nil {
			loc = time.FixedZone("-03", -3*60*60)
		}
		location = loc
	})
	return location
}

// Now возвращает текущее время в фиксированной таймзоне.
func Now() time.Time {
	return time.Now().In(Location())
}

// FormatTimestamp приводит время к формату внешних представлений.
func FormatTimestamp(t time.Time) string {
	return t.In(Location()).Format(TimestampLayout)
}

// ParseTimestamp разбирает метку в формате TimestampLayout.
func ParseTimestamp(value string) (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, value, Location())
}
