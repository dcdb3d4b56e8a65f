package calendar

import (
	"errors"
	"fmt"
	"time"
)

// MinutesPerDay — длина суток в минутах, используется для «переноса через полночь».
const MinutesPerDay = 24 * 60

var (
	ErrInvalidFormat    = errors.New("invalid time format, expected HH:MM")
	ErrInvalidTimeRange = errors.New("invalid time range")
)

// MinutesSinceMidnight разбирает строку вида "HH:MM" и возвращает количество минут
// от начала суток. Допускаются только два поля из двух цифр, часы 0..23, минуты 0..59.
func MinutesSinceMidnight(hhmm string) (int, error) {
	if len(hhmm) != 5 || hhmm[2] != ':' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, hhmm)
	}
	h, ok := twoDigits(hhmm[0], hhmm[1])
	if !ok || h > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, hhmm)
	}
	m, ok := twoDigits(hhmm[3], hhmm[4])
	if !ok || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, hhmm)
	}
	return h*60 + m, nil
}

func twoDigits(a, b byte) (int, bool) {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return 0, false
	}
	return int(a-'0')*10 + int(b-'0'), true
}

// FormatClock делает обратное преобразование: минуты от полуночи в "HH:MM".
// Значения за пределами суток заворачиваются по модулю 24 часов.
func FormatClock(minutes int) string {
	minutes %= MinutesPerDay
	if minutes < 0 {
		minutes += MinutesPerDay
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// unwrap возвращает конец интервала с учётом перехода через полночь.
func unwrap(start, end int) int {
	if end <= start {
		return end + MinutesPerDay
	}
	return end
}

// IntervalsOverlap проверяет пересечение двух полуоткрытых интервалов [start, end),
// заданных в минутах от полуночи. Если end <= start, интервал считается ночным
// (переходит через полночь). Касание границами пересечением не считается.
func IntervalsOverlap(aStart, aEnd, bStart, bEnd int) bool {
	aEnd = unwrap(aStart, aEnd)
	bEnd = unwrap(bStart, bEnd)
	return aStart < bEnd && bStart < aEnd
}

// ClockIntervalsOverlap делает то же самое для строк "HH:MM".
func ClockIntervalsOverlap(aOpen, aClose, bOpen, bClose string) (bool, error) {
	as, err := MinutesSinceMidnight(aOpen)
	if err != nil {
		return false, err
	}
	ae, err := MinutesSinceMidnight(aClose)
	if err != nil {
		return false, err
	}
	bs, err := MinutesSinceMidnight(bOpen)
	if err != nil {
		return false, err
	}
	be, err := MinutesSinceMidnight(bClose)
	if err != nil {
		return false, err
	}
	return IntervalsOverlap(as, ae, bs, be), nil
}

// ClockOf возвращает время суток момента t (в его собственной локации) в минутах.
func ClockOf(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// InstantWithinInterval проверяет, попадает ли момент t в интервал [open, close).
// Для ночного интервала (close <= open) время до open относится к «следующим суткам».
func InstantWithinInterval(t time.Time, openHHMM, closeHHMM string) (bool, error) {
	open, err := MinutesSinceMidnight(openHHMM)
	if err != nil {
		return false, err
	}
	closeMin, err := MinutesSinceMidnight(closeHHMM)
	if err != nil {
		return false, err
	}
	return withinMinutes(ClockOf(t), open, closeMin), nil
}

func withinMinutes(clock, open, closeMin int) bool {
	end := unwrap(open, closeMin)
	if end > MinutesPerDay && clock < open {
		clock += MinutesPerDay
	}
	return open <= clock && clock < end
}

// InOpeningDayPart проверяет, попадает ли время суток t в часть интервала,
// лежащую в день открытия: [open, close) или [open, 24:00) для ночного интервала.
func InOpeningDayPart(t time.Time, openHHMM, closeHHMM string) (bool, error) {
	open, err := MinutesSinceMidnight(openHHMM)
	if err != nil {
		return false, err
	}
	closeMin, err := MinutesSinceMidnight(closeHHMM)
	if err != nil {
		return false, err
	}
	end := min(unwrap(open, closeMin), MinutesPerDay)
	clock := ClockOf(t)
	return open <= clock && clock < end, nil
}

// InOvernightTail сообщает, попадает ли время суток в часть ночного интервала
// после полуночи (т.е. относится к интервалу, открытому накануне).
func InOvernightTail(t time.Time, openHHMM, closeHHMM string) (bool, error) {
	open, err := MinutesSinceMidnight(openHHMM)
	if err != nil {
		return false, err
	}
	closeMin, err := MinutesSinceMidnight(closeHHMM)
	if err != nil {
		return false, err
	}
	if closeMin > open {
		return false, nil
	}
	return ClockOf(t) < closeMin, nil
}

// ValidateOrderedTimes требует open < close в пределах одних суток.
func ValidateOrderedTimes(openHHMM, closeHHMM string) error {
	open, err := MinutesSinceMidnight(openHHMM)
	if err != nil {
		return err
	}
	closeMin, err := MinutesSinceMidnight(closeHHMM)
	if err != nil {
		return err
	}
	if open >= closeMin {
		return fmt.Errorf("%w: open %s must be before close %s", ErrInvalidTimeRange, openHHMM, closeHHMM)
	}
	return nil
}

// ValidateOvernightTimes требует close < open: интервал явно заканчивается на следующие сутки.
func ValidateOvernightTimes(openHHMM, closeHHMM string) error {
	open, err := MinutesSinceMidnight(openHHMM)
	if err != nil {
		return err
	}
	closeMin, err := MinutesSinceMidnight(closeHHMM)
	if err != nil {
		return err
	}
	if closeMin >= open {
		return fmt.Errorf("%w: overnight close %s must be before open %s", ErrInvalidTimeRange, closeHHMM, openHHMM)
	}
	return nil
}

// DayStart — полночь календарного дня t в локации loc.
func DayStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// AtClock возвращает момент времени «день day + minutes минут». Минуты сверх суток переносятся на следующий день.
func AtClock(day time.Time, minutes int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, minutes, 0, 0, day.Location())
}
