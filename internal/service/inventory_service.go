package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/Leganyst/reservation-core/internal/model"
	"github.com/Leganyst/reservation-core/internal/repository"
)

// InventoryService — чтение столов ресторана. Столы ведёт внешний сервис,
// ядро их только читает.
type InventoryService struct {
	store *repository.Store
}

func NewInventoryService(store *repository.Store) *InventoryService {
	return &InventoryService{store: store}
}

func (s *InventoryService) ActiveTables(ctx context.Context, restaurantID uuid.UUID) ([]model.Table, error) {
	tables, err := s.store.Tables.ListActive(ctx, restaurantID, 0, repository.LockNone)
	if err != nil {
		return nil, storageFailure("list tables", err)
	}
	return tables, nil
}

// TablesWithCapacityAtLeast возвращает подходящие столы, сначала самые маленькие.
func (s *InventoryService) TablesWithCapacityAtLeast(ctx context.Context, restaurantID uuid.UUID, partySize int) ([]model.Table, error) {
	if partySize < 1 {
		return nil, newError(KindInvalidPartySize, "party size must be at least 1")
	}
	tables, err := s.store.Tables.ListActive(ctx, restaurantID, partySize, repository.LockNone)
	if err != nil {
		return nil, storageFailure("list tables", err)
	}
	return tables, nil
}

// freeTables считает столы без пересекающихся броней. Каждая бронь без стола
// занимает один из свободных столов. Результат не бывает отрицательным.
func freeTables(tables []model.Table, overlapping []model.Reservation) int {
	if free := tableBalance(tables, overlapping); free > 0 {
		return free
	}
	return 0
}

// tableBalance: свободные столы минус брони без стола. Отрицательное значение
// означает, что броням без стола не хватает мест.
func tableBalance(tables []model.Table, overlapping []model.Reservation) int {
	busy := make(map[uuid.UUID]struct{}, len(overlapping))
	untabled := 0
	for _, r := range overlapping {
		if r.TableID == nil {
			untabled++
			continue
		}
		busy[*r.TableID] = struct{}{}
	}

	free := 0
	for _, t := range tables {
		if _, ok := busy[t.ID]; !ok {
			free++
		}
	}
	return free - untabled
}
