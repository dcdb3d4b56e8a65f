package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Leganyst/reservation-core/internal/service"
)

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "data": data})
}

func created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, gin.H{"ok": true, "data": data})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": msg, "kind": service.KindInvalidRequest})
}

// StatusFor сопоставляет класс ошибки ядра со статусом HTTP.
func StatusFor(kind service.Kind) int {
	switch kind {
	case service.KindInvalidFormat,
		service.KindInvalidTimeRange,
		service.KindInvalidPartySize,
		service.KindInvalidRequest:
		return http.StatusBadRequest
	case service.KindNotAcceptingReservations,
		service.KindPartySizeExceeded,
		service.KindPastDateRejected,
		service.KindInsufficientNotice,
		service.KindTooFarInAdvance,
		service.KindOutsideOperatingHours,
		service.KindCapacityTooSmall:
		return http.StatusUnprocessableEntity
	case service.KindTableNotFound,
		service.KindReservationNotFound,
		service.KindRestaurantNotFound,
		service.KindIntervalNotFound:
		return http.StatusNotFound
	case service.KindTableUnavailable,
		service.KindOverlapConflict,
		service.KindInvalidStateTransition:
		return http.StatusConflict
	case service.KindUnauthorized:
		return http.StatusForbidden
	case service.KindAdmissionTimedOut:
		return http.StatusGatewayTimeout
	case service.KindStorageFailure:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// fail пишет ошибку ядра с классом и деталями. Причины уровня хранилища наружу не уходят.
func fail(c *gin.Context, err error) {
	var e *service.Error
	if !errors.As(err, &e) {
		log.Printf("api: %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": http.StatusText(http.StatusInternalServerError)})
		return
	}

	status := StatusFor(e.Kind)
	if status >= http.StatusInternalServerError {
		log.Printf("api: %s %s: %v", c.Request.Method, c.FullPath(), err)
	}

	body := gin.H{"ok": false, "kind": e.Kind, "error": e.Message}
	if e.Message == "" {
		body["error"] = http.StatusText(status)
	}
	if len(e.Details) > 0 {
		body["details"] = e.Details
	}
	c.JSON(status, body)
}
