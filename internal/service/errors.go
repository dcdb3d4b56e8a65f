package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind — класс ошибки ядра бронирования. Транспорт сопоставляет его со статусом ответа.
type Kind string

const (
	// Настройка расписания.
	KindInvalidFormat    Kind = "InvalidFormat"
	KindInvalidTimeRange Kind = "InvalidTimeRange"
	KindOverlapConflict  Kind = "OverlapConflict"

	// Проверка запроса, повторять без изменений бессмысленно.
	KindNotAcceptingReservations Kind = "NotAcceptingReservations"
	KindPartySizeExceeded        Kind = "PartySizeExceeded"
	KindInvalidPartySize         Kind = "InvalidPartySize"
	KindPastDateRejected         Kind = "PastDateRejected"
	KindInsufficientNotice       Kind = "InsufficientNotice"
	KindTooFarInAdvance          Kind = "TooFarInAdvance"
	KindOutsideOperatingHours    Kind = "OutsideOperatingHours"
	KindInvalidRequest           Kind = "InvalidRequest"

	// Конфликты при создании.
	KindTableNotFound    Kind = "TableNotFound"
	KindCapacityTooSmall Kind = "CapacityTooSmall"
	KindTableUnavailable Kind = "TableUnavailable"

	// Жизненный цикл.
	KindInvalidStateTransition Kind = "InvalidStateTransition"
	KindUnauthorized           Kind = "Unauthorized"

	KindReservationNotFound Kind = "ReservationNotFound"
	KindRestaurantNotFound  Kind = "RestaurantNotFound"
	KindIntervalNotFound    Kind = "IntervalNotFound"

	// Инфраструктура, операцию можно повторить целиком.
	KindAdmissionTimedOut Kind = "AdmissionTimedOut"
	KindStorageFailure    Kind = "StorageFailure"
)

// Error — ошибка с классом и деталями для клиента (текущий статус, конфликтующий стол и т.п.).
type Error struct {
	Kind    Kind
	Message string
	Details map[string]string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%s", k, e.Details[k])
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is сравнивает по классу, так что errors.Is(err, ErrTableUnavailable) работает
// для любой ошибки этого класса.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Сентинелы для errors.Is.
var (
	ErrInvalidFormat            = &Error{Kind: KindInvalidFormat}
	ErrInvalidTimeRange         = &Error{Kind: KindInvalidTimeRange}
	ErrOverlapConflict          = &Error{Kind: KindOverlapConflict}
	ErrNotAcceptingReservations = &Error{Kind: KindNotAcceptingReservations}
	ErrPartySizeExceeded        = &Error{Kind: KindPartySizeExceeded}
	ErrInvalidPartySize         = &Error{Kind: KindInvalidPartySize}
	ErrPastDateRejected         = &Error{Kind: KindPastDateRejected}
	ErrInsufficientNotice       = &Error{Kind: KindInsufficientNotice}
	ErrTooFarInAdvance          = &Error{Kind: KindTooFarInAdvance}
	ErrOutsideOperatingHours    = &Error{Kind: KindOutsideOperatingHours}
	ErrInvalidRequest           = &Error{Kind: KindInvalidRequest}
	ErrTableNotFound            = &Error{Kind: KindTableNotFound}
	ErrCapacityTooSmall         = &Error{Kind: KindCapacityTooSmall}
	ErrTableUnavailable         = &Error{Kind: KindTableUnavailable}
	ErrInvalidStateTransition   = &Error{Kind: KindInvalidStateTransition}
	ErrUnauthorized             = &Error{Kind: KindUnauthorized}
	ErrReservationNotFound      = &Error{Kind: KindReservationNotFound}
	ErrRestaurantNotFound       = &Error{Kind: KindRestaurantNotFound}
	ErrIntervalNotFound         = &Error{Kind: KindIntervalNotFound}
	ErrAdmissionTimedOut        = &Error{Kind: KindAdmissionTimedOut}
	ErrStorageFailure           = &Error{Kind: KindStorageFailure}
)

func newError(kind Kind, msg string, kv ...string) *Error {
	e := &Error{Kind: kind, Message: msg}
	if len(kv) > 0 {
		e.Details = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			e.Details[kv[i]] = kv[i+1]
		}
	}
	return e
}

// storageFailure оборачивает ошибку хранилища, не являющуюся ошибкой домена.
func storageFailure(op string, err error) error {
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Kind: KindStorageFailure, Message: op, Err: err}
}

// KindOf возвращает класс ошибки или пустую строку, если это не ошибка ядра.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// DetailsOf возвращает детали ошибки ядра (может быть nil).
func DetailsOf(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}
