package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/reservation-core/internal/model"
)

func TestGenerateConfirmationCode(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 500; i++ {
		code, err := GenerateConfirmationCode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != ConfirmationCodeLength {
			t.Fatalf("unexpected length %d", len(code))
		}
		if strings.ContainsAny(code, "IO01") {
			t.Fatalf("code %q contains ambiguous characters", code)
		}
		if _, err := NormalizeConfirmationCode(code); err != nil {
			t.Fatalf("generated code %q does not validate: %v", code, err)
		}
		seen[code] = struct{}{}
	}
	if len(seen) < 490 {
		t.Fatalf("too many collisions: %d unique of 500", len(seen))
	}
}

func TestNormalizeConfirmationCode(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"abc234", "ABC234", false},
		{"  XYZ789 ", "XYZ789", false},
		{"ABC23", "", true},
		{"ABC2345", "", true},
		{"ABCDE1", "", true},
		{"ABCDEO", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeConfirmationCode(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("%q: got %q, %v", tt.in, got, err)
		}
	}
}

func TestError_KindMatching(t *testing.T) {
	err := newError(KindTableUnavailable, "taken", "tableId", "t1")
	wrapped := fmt.Errorf("create: %w", err)

	if !errors.Is(wrapped, ErrTableUnavailable) {
		t.Fatalf("wrapped error must match its kind")
	}
	if errors.Is(wrapped, ErrTableNotFound) {
		t.Fatalf("wrapped error must not match another kind")
	}
	if KindOf(wrapped) != KindTableUnavailable {
		t.Fatalf("unexpected kind %s", KindOf(wrapped))
	}
	if DetailsOf(wrapped)["tableId"] != "t1" {
		t.Fatalf("details lost")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Fatalf("plain error must have no kind")
	}

	msg := newError(KindInvalidStateTransition, "nope", "requestedStatus", "seated", "currentStatus", "pending").Error()
	if msg != "InvalidStateTransition: nope (currentStatus=pending, requestedStatus=seated)" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestStorageFailure(t *testing.T) {
	domain := newError(KindOverlapConflict, "overlap")
	if got := storageFailure("op", domain); got != error(domain) {
		t.Fatalf("domain errors must pass through unchanged")
	}

	cause := errors.New("disk full")
	err := storageFailure("save", cause)
	if KindOf(err) != KindStorageFailure || !errors.Is(err, cause) {
		t.Fatalf("expected StorageFailure wrapping cause, got %v", err)
	}
}

func TestReservationView_JSON(t *testing.T) {
	table := uuid.New()
	at := time.Date(2030, 6, 10, 19, 0, 0, 0, time.UTC)
	view := NewReservationView(&model.Reservation{
		ID:               uuid.New(),
		RestaurantID:     uuid.New(),
		TableID:          &table,
		CustomerName:     "Anna",
		ReservedAt:       at,
		PartySize:        2,
		DurationMinutes:  90,
		Status:           model.ReservationStatusPending,
		ConfirmationCode: "ABC234",
	})

	raw, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["reservationInstant"] != "2030-06-10T19:00:00Z" || got["status"] != "pending" || got["tableId"] != table.String() {
		t.Fatalf("unexpected JSON %s", raw)
	}
	if _, ok := got["cancelledAt"]; ok {
		t.Fatalf("empty timestamps must be omitted: %s", raw)
	}
}
