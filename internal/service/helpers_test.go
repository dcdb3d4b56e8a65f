package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Leganyst/reservation-core/internal/model"
	"github.com/Leganyst/reservation-core/internal/repository"
)

// Понедельник, 10:00 UTC.
var testNow = time.Date(2030, 6, 10, 10, 0, 0, 0, time.UTC)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Name)
	}
	return out
}

type testEnv struct {
	store        *repository.Store
	clock        *fixedClock
	publisher    *recordingPublisher
	schedule     *ScheduleService
	inventory    *InventoryService
	availability *AvailabilityService
	admission    *AdmissionService
	lifecycle    *LifecycleService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := model.AutoMigrate(db); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	store := repository.NewStore(db)
	clock := &fixedClock{now: testNow}
	pub := &recordingPublisher{}

	schedule := NewScheduleService(store)
	inventory := NewInventoryService(store)
	return &testEnv{
		store:        store,
		clock:        clock,
		publisher:    pub,
		schedule:     schedule,
		inventory:    inventory,
		availability: NewAvailabilityService(store, schedule, inventory, clock),
		admission:    NewAdmissionService(store, schedule, clock, pub, 5*time.Second),
		lifecycle:    NewLifecycleService(store, clock, pub, 5*time.Second),
	}
}

// seedRestaurant создаёт ресторан в UTC, открытый каждый день 12:00-23:00.
func (e *testEnv) seedRestaurant(t *testing.T, settings model.ReservationSettings) *model.Restaurant {
	t.Helper()
	ctx := context.Background()

	r := &model.Restaurant{
		OwnerID:             uuid.New(),
		Name:                "Trattoria",
		TimeZone:            "UTC",
		IsActive:            true,
		AcceptsReservations: true,
		Settings:            model.NewSettings(settings),
	}
	if err := e.store.Restaurants.Create(ctx, r); err != nil {
		t.Fatalf("seed restaurant: %v", err)
	}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		iv := &model.OperatingInterval{RestaurantID: r.ID, Weekday: wd, OpenTime: "12:00", CloseTime: "23:00", IsActive: true}
		if err := e.store.Intervals.Create(ctx, iv); err != nil {
			t.Fatalf("seed interval: %v", err)
		}
	}
	return r
}

func (e *testEnv) seedTable(t *testing.T, restaurantID uuid.UUID, number, capacity int) *model.Table {
	t.Helper()
	tb := &model.Table{RestaurantID: restaurantID, Number: number, Capacity: capacity, IsActive: true}
	if err := e.store.Tables.Create(context.Background(), tb); err != nil {
		t.Fatalf("seed table: %v", err)
	}
	return tb
}

func (e *testEnv) book(t *testing.T, restaurantID uuid.UUID, tableID *uuid.UUID, at time.Time, party int) *model.Reservation {
	t.Helper()
	res, err := e.admission.CreateReservation(context.Background(), restaurantID, CreateRequest{
		TableID:      tableID,
		CustomerName: "Anna",
		ReservedAt:   at,
		PartySize:    party,
	}, nil)
	if err != nil {
		t.Fatalf("create reservation: %v", err)
	}
	return res
}

func intPtr(v int) *int       { return &v }
func boolPtr(v bool) *bool    { return &v }
func strPtr(v string) *string { return &v }

func assertKind(t *testing.T, err error, want Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", want)
	}
	if got := KindOf(err); got != want {
		t.Fatalf("expected kind %s, got %s (%v)", want, got, err)
	}
	if !errors.Is(err, &Error{Kind: want}) {
		t.Fatalf("errors.Is does not match kind %s", want)
	}
}
