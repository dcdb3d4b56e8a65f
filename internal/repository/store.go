package repository

import (
	"context"
	"database/sql"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockMode — пессимистическая блокировка строк внутри транзакции.
// SQLite блокировки строк не поддерживает, драйвер опускает FOR-клаузу;
// там транзакции и так сериализуются на уровне базы.
type LockMode int

const (
	LockNone LockMode = iota
	LockShare
	LockUpdate
)

func withLock(q *gorm.DB, mode LockMode) *gorm.DB {
	switch mode {
	case LockShare:
		return q.Clauses(clause.Locking{Strength: "SHARE"})
	case LockUpdate:
		return q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

// Store собирает все репозитории над одним соединением (или одной транзакцией).
type Store struct {
	db *gorm.DB

	Restaurants  RestaurantRepository
	Tables       TableRepository
	Intervals    IntervalRepository
	Reservations ReservationRepository
	Customers    CustomerRepository
	Outbox       OutboxRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:           db,
		Restaurants:  NewGormRestaurantRepository(db),
		Tables:       NewGormTableRepository(db),
		Intervals:    NewGormIntervalRepository(db),
		Reservations: NewGormReservationRepository(db),
		Customers:    NewGormCustomerRepository(db),
		Outbox:       NewGormOutboxRepository(db),
	}
}

// InTx выполняет fn в транзакции. Внутри fn нужно пользоваться только
// переданным tx-хранилищем: на одном соединении обращение к внешнему
// Store заблокируется до конца транзакции.
func (s *Store) InTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	}, opts)
}
