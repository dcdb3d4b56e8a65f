package model

import "gorm.io/gorm"

// AutoMigrate выполняет миграцию всех сущностей ядра бронирования.
// Порядок: сначала родительские таблицы, затем зависимые.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Restaurant{},
		&Table{},
		&OperatingInterval{},
		&Customer{},
		&Reservation{},
		&OutboxMessage{},
	)
}
