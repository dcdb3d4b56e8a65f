package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Leganyst/reservation-core/internal/model"
	"github.com/Leganyst/reservation-core/internal/repository"
)

var dinner = time.Date(2030, 6, 10, 19, 0, 0, 0, time.UTC)

func TestCreateReservation_PendingWithCode(t *testing.T) {
	e := newTestEnv(t)
	r := e.seedRestaurant(t, model.ReservationSettings{})
	tb := e.seedTable(t, r.ID, 1, 4)

	res := e.book(t, r.ID, &tb.ID, dinner, 2)

	if res.Status != model.ReservationStatusPending {
		t.Fatalf("expected pending, got %s", res.Status)
	}
	if res.ConfirmedAt != nil {
		t.Fatalf("pending reservation must not have confirmedAt")
	}
	if len(res.ConfirmationCode) != ConfirmationCodeLength {
		t.Fatalf("expected %d-char code, got %q", ConfirmationCodeLength, res.ConfirmationCode)
	}
	for _, c := range res.ConfirmationCode {
		if !strings.ContainsRune(ConfirmationCodeAlphabet, c) {
			t.Fatalf("code %q has character %q outside the alphabet", res.ConfirmationCode, c)
		}
	}
	if !res.EndsAt.Equal(dinner.Add(90 * time.Minute)) {
		t.Fatalf("expected default 90 minute duration, ends at %v", res.EndsAt)
	}

	if got := e.publisher.names(); len(got) != 1 || got[0] != EventReservationCreated {
		t.Fatalf("expected one ReservationCreated event, got %v", got)
	}
}

func TestCreateReservation_AutoConfirm(t *testing.T) {
	e := newTestEnv(t)
	r := e.seedRestaurant(t, model.ReservationSettings{AutoConfirm: boolPtr(true)})
	e.seedTable(t, r.ID, 1, 4)

	res := e.book(t, r.ID, nil, dinner, 2)
	if res.Status != model.ReservationStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", res.Status)
	}
	if res.ConfirmedAt == nil || !res.ConfirmedAt.Equal(testNow) {
		t.Fatalf("expected confirmedAt=%v, got %v", testNow, res.ConfirmedAt)
	}
}

func TestCreateReservation_CustomDuration(t *testing.T) {
	e := newTestEnv(t)
	r := e.seedRestaurant(t, model.ReservationSettings{DefaultDurationMinutes: intPtr(60)})
	e.seedTable(t, r.ID, 1, 4)

	res := e.book(t, r.ID, nil, dinner, 2)
	if res.DurationMinutes != 60 {
		t.Fatalf("expected restaurant default 60, got %d", res.DurationMinutes)
	}

	res, err := e.admission.CreateReservation(context.Background(), r.ID, CreateRequest{
		CustomerName:    "Ivan",
		ReservedAt:      dinner.Add(3 * time.Hour),
		PartySize:       2,
		DurationMinutes: 120,
	}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !res.EndsAt.Equal(res.ReservedAt.Add(2 * time.Hour)) {
		t.Fatalf("expected 2h window, got %v..%v", res.ReservedAt, res.EndsAt)
	}
}

func TestCreateReservation_AdvanceWindow(t *testing.T) {
	e := newTestEnv(t)
	r := e.seedRestaurant(t, model.ReservationSettings{MaxAdvanceBookingDays: intPtr(30)})
	e.seedTable(t, r.ID, 1, 4)
	ctx := context.Background()

	e.clock.Set(time.Date(2030, 6, 10, 17, 0, 0, 0, time.UTC))

	tests := []struct {
		name string
		at   time.Time
		want Kind
	}{
		{"past", time.Date(2030, 6, 9, 19, 0, 0, 0, time.UTC), KindPastDateRejected},
		{"one minute short of notice", time.Date(2030, 6, 10, 17, 59, 0, 0, time.UTC), KindInsufficientNotice},
		{"beyond horizon", time.Date(2030, 7, 11, 19, 0, 0, 0, time.UTC), KindTooFarInAdvance},
		{"closed", time.Date(2030, 6, 11, 8, 0, 0, 0, time.UTC), KindOutsideOperatingHours},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.admission.CreateReservation(ctx, r.ID, CreateRequest{
				CustomerName: "Anna",
				ReservedAt:   tt.at,
				PartySize:    2,
			}, nil)
			assertKind(t, err, tt.want)
		})
	}

	// ровно на границе минимального уведомления можно
	if _, err := e.admission.CreateReservation(ctx, r.ID, CreateRequest{
		CustomerName: "Anna",
		ReservedAt:   time.Date(2030, 6, 10, 18, 0, 0, 0, time.UTC),
		PartySize:    2,
	}, nil); err != nil {
		t.Fatalf("exact notice boundary must succeed: %v", err)
	}
}

func TestCreateReservation_RestaurantChecks(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	limited := e.seedRestaurant(t, model.ReservationSettings{MaxPartySize: intPtr(6)})

	closed := &model.Restaurant{
		OwnerID:  uuid.New(),
		Name:     "Closed",
		TimeZone: "UTC",
		IsActive: true,
		Settings: model.NewSettings(model.ReservationSettings{}),
	}
	if err := e.store.Restaurants.Create(ctx, closed); err != nil {
		t.Fatalf("seed: %v", err)
	}
	unset := &model.Restaurant{
		OwnerID:             uuid.New(),
		Name:                "Unset",
		TimeZone:            "UTC",
		IsActive:            true,
		AcceptsReservations: true,
		Settings:            datatypes.NewJSONType[*model.ReservationSettings](nil),
	}
	if err := e.store.Restaurants.Create(ctx, unset); err != nil {
		t.Fatalf("seed: %v", err)
	}

	tests := []struct {
		name         string
		restaurantID uuid.UUID
		party        int
		want         Kind
	}{
		{"unknown restaurant", uuid.New(), 2, KindRestaurantNotFound},
		{"not accepting", closed.ID, 2, KindNotAcceptingReservations},
		{"settings missing", unset.ID, 2, KindNotAcceptingReservations},
		{"party too large", limited.ID, 8, KindPartySizeExceeded},
		{"party empty", limited.ID, 0, KindInvalidPartySize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.admission.CreateReservation(ctx, tt.restaurantID, CreateRequest{
				CustomerName: "Anna",
				ReservedAt:   dinner,
				PartySize:    tt.party,
			}, nil)
			assertKind(t, err, tt.want)
		})
	}

	_, err := e.admission.CreateReservation(ctx, limited.ID, CreateRequest{
		CustomerName: "Anna",
		ReservedAt:   dinner,
		PartySize:    8,
	}, nil)
	if d := DetailsOf(err); d["maxPartySize"] != "6" {
		t.Fatalf("expected maxPartySize=6 in details, got %v", d)
	}
}

func TestCreateReservation_TableChecks(t *testing.T) {
	e := newTestEnv(t)
	r := e.seedRestaurant(t, model.ReservationSettings{})
	small := e.seedTable(t, r.ID, 1, 2)
	big := e.seedTable(t, r.ID, 2, 4)
	ctx := context.Background()

	other := e.seedRestaurant(t, model.ReservationSettings{})
	foreign := e.seedTable(t, other.ID, 1, 4)

	create := func(tableID uuid.UUID, at time.Time, party int) (*model.Reservation, error) {
		return e.admission.CreateReservation(ctx, r.ID, CreateRequest{
			TableID:      &tableID,
			CustomerName: "Anna",
			ReservedAt:   at,
			PartySize:    party,
		}, nil)
	}

	if _, err := create(uuid.New(), dinner, 2); KindOf(err) != KindTableNotFound {
		t.Fatalf("expected TableNotFound, got %v", err)
	}
	if _, err := create(foreign.ID, dinner, 2); KindOf(err) != KindTableNotFound {
		t.Fatalf("table of another restaurant: expected TableNotFound, got %v", err)
	}
	if _, err := create(small.ID, dinner, 4); KindOf(err) != KindCapacityTooSmall {
		t.Fatalf("expected CapacityTooSmall, got %v", err)
	}

	first, err := create(big.ID, dinner, 4)
	if err != nil {
		t.Fatalf("first booking: %v", err)
	}

	_, err = create(big.ID, dinner.Add(time.Hour), 2)
	assertKind(t, err, KindTableUnavailable)
	d := DetailsOf(err)
	if d["tableId"] != big.ID.String() || d["conflictingReservationId"] != first.ID.String() {
		t.Fatalf("conflict details do not name the table and reservation: %v", d)
	}

	// бронь кончается в 20:30, окно новой начинается в 20:30
	if _, err := create(big.ID, dinner.Add(105*time.Minute), 2); err != nil {
		t.Fatalf("adjacent booking must succeed: %v", err)
	}
}

func TestCreateReservation_NoTablePreference(t *testing.T) {
	e := newTestEnv(t)
	r := e.seedRestaurant(t, model.ReservationSettings{})
	e.seedTable(t, r.ID, 1, 4)
	e.seedTable(t, r.ID, 2, 2)
	ctx := context.Background()

	e.book(t, r.ID, nil, dinner, 4)

	_, err := e.admission.CreateReservation(ctx, r.ID, CreateRequest{
		CustomerName: "Ivan",
		ReservedAt:   dinner.Add(30 * time.Minute),
		PartySize:    3,
	}, nil)
	assertKind(t, err, KindTableUnavailable)

	// для двоих остаётся маленький стол
	e.book(t, r.ID, nil, dinner, 2)
}

func TestCreateReservation_TableTakenByUntabled(t *testing.T) {
	e := newTestEnv(t)
	r := e.seedRestaurant(t, model.ReservationSettings{})
	tb := e.seedTable(t, r.ID, 1, 4)
	ctx := context.Background()

	e.book(t, r.ID, nil, dinner, 2)

	slots, err := e.availability.GetAvailability(ctx, r.ID, "2030-06-10", 2)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if s := slotAt(t, slots, "19:00"); s.Available || s.TablesAvailable != 0 {
		t.Fatalf("expected 19:00 to be full, got %+v", s)
	}

	_, err = e.admission.CreateReservation(ctx, r.ID, CreateRequest{
		TableID:      &tb.ID,
		CustomerName: "Boris",
		ReservedAt:   dinner,
		PartySize:    2,
	}, nil)
	assertKind(t, err, KindTableUnavailable)
	if DetailsOf(err)["untabledReservations"] != "1" {
		t.Fatalf("expected untabled count in details, got %v", DetailsOf(err))
	}

	// со вторым столом место для брони без стола остаётся
	e.seedTable(t, r.ID, 2, 4)
	e.book(t, r.ID, &tb.ID, dinner, 2)
}

func TestCreateReservation_AtMostOneWinner(t *testing.T) {
	e := newTestEnv(t)
	r := e.seedRestaurant(t, model.ReservationSettings{})
	tb := e.seedTable(t, r.ID, 1, 4)

	const n = 4
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.admission.CreateReservation(context.Background(), r.ID, CreateRequest{
				TableID:      &tb.ID,
				CustomerName: "Racer",
				ReservedAt:   dinner,
				PartySize:    2,
			}, nil)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrTableUnavailable):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestCreateReservation_GuestCustomer(t *testing.T) {
	e := newTestEnv(t)
	r := e.seedRestaurant(t, model.ReservationSettings{})
	e.seedTable(t, r.ID, 1, 4)
	e.seedTable(t, r.ID, 2, 4)
	ctx := context.Background()

	req := CreateRequest{
		CustomerName:  "Anna",
		CustomerEmail: " Anna@Example.COM ",
		ReservedAt:    dinner,
		PartySize:     2,
	}
	first, err := e.admission.CreateReservation(ctx, r.ID, req, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.CustomerID == nil {
		t.Fatalf("guest reservation must be linked to a customer")
	}
	if first.CustomerEmail != "anna@example.com" {
		t.Fatalf("email not normalized: %q", first.CustomerEmail)
	}

	c, err := e.store.Customers.GetByID(ctx, *first.CustomerID)
	if err != nil {
		t.Fatalf("load customer: %v", err)
	}
	if !c.IsGuest || c.PasswordHash == "" {
		t.Fatalf("expected guest with placeholder credential, got %+v", c)
	}

	second, err := e.admission.CreateReservation(ctx, r.ID, req, nil)
	if err != nil {
		t.Fatalf("create again: %v", err)
	}
	if *second.CustomerID != *first.CustomerID {
		t.Fatalf("same email must reuse the customer")
	}
}

func TestCreateReservation_RejectedGuestLeavesNoCustomer(t *testing.T) {
	e := newTestEnv(t)
	r := e.seedRestaurant(t, model.ReservationSettings{})
	tb := e.seedTable(t, r.ID, 1, 4)
	ctx := context.Background()

	e.book(t, r.ID, &tb.ID, dinner, 2)

	cases := []struct {
		name string
		req  CreateRequest
		want Kind
	}{
		{"no name", CreateRequest{CustomerEmail: "noname@example.com", ReservedAt: dinner.Add(2 * time.Hour), PartySize: 2}, KindInvalidRequest},
		{"closed", CreateRequest{CustomerName: "Ivan", CustomerEmail: "closed@example.com", ReservedAt: time.Date(2030, 6, 11, 9, 0, 0, 0, time.UTC), PartySize: 2}, KindOutsideOperatingHours},
		{"table taken", CreateRequest{TableID: &tb.ID, CustomerName: "Ivan", CustomerEmail: "taken@example.com", ReservedAt: dinner, PartySize: 2}, KindTableUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.admission.CreateReservation(ctx, r.ID, tc.req, nil)
			assertKind(t, err, tc.want)
			if _, err := e.store.Customers.FindByEmail(ctx, tc.req.CustomerEmail); !errors.Is(err, gorm.ErrRecordNotFound) {
				t.Fatalf("rejected request must not create a guest, got %v", err)
			}
		})
	}
}

func TestCreateReservation_CallerIsCustomer(t *testing.T) {
	e := newTestEnv(t)
	r := e.seedRestaurant(t, model.ReservationSettings{})
	e.seedTable(t, r.ID, 1, 4)
	ctx := context.Background()

	caller := uuid.New()
	res, err := e.admission.CreateReservation(ctx, r.ID, CreateRequest{
		CustomerName: "Anna",
		ReservedAt:   dinner,
		PartySize:    2,
	}, &caller)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.CustomerID == nil || *res.CustomerID != caller {
		t.Fatalf("expected customer %s, got %v", caller, res.CustomerID)
	}

	_, err = e.admission.CreateReservation(ctx, r.ID, CreateRequest{
		ReservedAt: dinner.Add(2 * time.Hour),
		PartySize:  2,
	}, &caller)
	assertKind(t, err, KindInvalidRequest)
}

func TestCreateReservation_PublisherFailureIgnored(t *testing.T) {
	e := newTestEnv(t)
	r := e.seedRestaurant(t, model.ReservationSettings{})
	e.seedTable(t, r.ID, 1, 4)
	e.publisher.err = errors.New("broker down")

	res := e.book(t, r.ID, nil, dinner, 2)

	stored, err := e.lifecycle.GetReservation(context.Background(), res.ID)
	if err != nil {
		t.Fatalf("reservation must be committed despite publish failure: %v", err)
	}
	if stored.ConfirmationCode != res.ConfirmationCode {
		t.Fatalf("stored code mismatch")
	}
}

func TestCheckAdvanceWindow_ZeroNotice(t *testing.T) {
	policy := model.BookingPolicy{MaxPartySize: 4, MinAdvanceBookingHours: 0, MaxAdvanceBookingDays: 1, DefaultDuration: time.Hour}

	if err := checkAdvanceWindow(policy, testNow, testNow); err != nil {
		t.Fatalf("now itself must pass with zero notice: %v", err)
	}
	if err := checkAdvanceWindow(policy, testNow, testNow.Add(-time.Second)); KindOf(err) != KindPastDateRejected {
		t.Fatalf("expected PastDateRejected, got %v", err)
	}
	if err := checkAdvanceWindow(policy, testNow, testNow.Add(24*time.Hour)); err != nil {
		t.Fatalf("horizon boundary must pass: %v", err)
	}
	if err := checkAdvanceWindow(policy, testNow, testNow.Add(24*time.Hour+time.Minute)); KindOf(err) != KindTooFarInAdvance {
		t.Fatalf("expected TooFarInAdvance, got %v", err)
	}
}

func TestRunSerializable_RetriesOnce(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	calls := 0
	err := runSerializable(ctx, e.store, time.Second, func(*repository.Store) error {
		calls++
		if calls == 1 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("second attempt must succeed, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestRunSerializable_PersistentConflict(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	calls := 0
	conflict := &pgconn.PgError{Code: "40001"}
	err := runSerializable(ctx, e.store, time.Second, func(*repository.Store) error {
		calls++
		return conflict
	})
	assertKind(t, err, KindTableUnavailable)
	if calls != 2 {
		t.Fatalf("expected exactly one retry, got %d attempts", calls)
	}
	if !errors.Is(err, conflict) {
		t.Fatalf("cause must be kept: %v", err)
	}

	// ошибка без конфликта не повторяется
	calls = 0
	err = runSerializable(ctx, e.store, time.Second, func(*repository.Store) error {
		calls++
		return errors.New("disk full")
	})
	assertKind(t, err, KindStorageFailure)
	if calls != 1 {
		t.Fatalf("non-retryable error must not be retried, got %d attempts", calls)
	}
}

func TestRunSerializable_Deadline(t *testing.T) {
	e := newTestEnv(t)

	err := runSerializable(context.Background(), e.store, time.Nanosecond, func(*repository.Store) error {
		time.Sleep(10 * time.Millisecond)
		return nil
	})
	assertKind(t, err, KindAdmissionTimedOut)
}

func TestCreateReservation_TimedOut(t *testing.T) {
	e := newTestEnv(t)
	r := e.seedRestaurant(t, model.ReservationSettings{})
	tb := e.seedTable(t, r.ID, 1, 4)
	admission := NewAdmissionService(e.store, e.schedule, e.clock, e.publisher, time.Nanosecond)

	_, err := admission.CreateReservation(context.Background(), r.ID, CreateRequest{
		TableID:      &tb.ID,
		CustomerName: "Anna",
		ReservedAt:   dinner,
		PartySize:    2,
	}, nil)
	assertKind(t, err, KindAdmissionTimedOut)

	if got := e.publisher.names(); len(got) != 0 {
		t.Fatalf("timed out admission must not publish, got %v", got)
	}
}
