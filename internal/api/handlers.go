package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Leganyst/reservation-core/internal/model"
	"github.com/Leganyst/reservation-core/internal/notify"
	"github.com/Leganyst/reservation-core/internal/service"
)

// Handler — HTTP-обёртка над сервисами ядра бронирования.
type Handler struct {
	availability *service.AvailabilityService
	admission    *service.AdmissionService
	lifecycle    *service.LifecycleService
	schedule     *service.ScheduleService
	hub          *notify.Hub
}

func NewHandler(
	availability *service.AvailabilityService,
	admission *service.AdmissionService,
	lifecycle *service.LifecycleService,
	schedule *service.ScheduleService,
	hub *notify.Hub,
) *Handler {
	return &Handler{
		availability: availability,
		admission:    admission,
		lifecycle:    lifecycle,
		schedule:     schedule,
		hub:          hub,
	}
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, name+" must be an integer")
		return 0, false
	}
	return v, true
}

func reservationViews(items []model.Reservation) []service.ReservationView {
	out := make([]service.ReservationView, 0, len(items))
	for i := range items {
		out = append(out, service.NewReservationView(&items[i]))
	}
	return out
}

// ===== Availability =====

// GET /api/restaurants/:id/availability?date=YYYY-MM-DD&partySize=N
func (h *Handler) Availability(c *gin.Context) {
	restaurantID, valid := uuidParam(c, "id")
	if !valid {
		return
	}
	date := c.Query("date")
	if date == "" {
		badRequest(c, "date is required")
		return
	}
	partySize, valid := queryInt(c, "partySize", 0)
	if !valid {
		return
	}

	slots, err := h.availability.GetAvailability(c.Request.Context(), restaurantID, date, partySize)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"date": date, "partySize": partySize, "slots": slots})
}

// ===== Reservations =====

type createReservationReq struct {
	TableID                  *uuid.UUID `json:"tableId"`
	CustomerName             string     `json:"customerName"`
	CustomerEmail            string     `json:"customerEmail"`
	CustomerPhone            string     `json:"customerPhone"`
	ReservationInstant       time.Time  `json:"reservationInstant" binding:"required"`
	PartySize                int        `json:"partySize"`
	EstimatedDurationMinutes int        `json:"estimatedDurationMinutes"`
	SpecialRequests          string     `json:"specialRequests"`
}

// POST /api/restaurants/:id/reservations
func (h *Handler) CreateReservation(c *gin.Context) {
	restaurantID, valid := uuidParam(c, "id")
	if !valid {
		return
	}
	var req createReservationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	var callerID *uuid.UUID
	if caller, authed := currentCaller(c); authed {
		callerID = &caller.ID
	}

	res, err := h.admission.CreateReservation(c.Request.Context(), restaurantID, service.CreateRequest{
		TableID:         req.TableID,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		ReservedAt:      req.ReservationInstant,
		PartySize:       req.PartySize,
		DurationMinutes: req.EstimatedDurationMinutes,
		SpecialRequests: req.SpecialRequests,
	}, callerID)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, service.NewReservationView(res))
}

// GET /api/restaurants/:id/reservations?date=&status=&page=&pageSize=
func (h *Handler) ListReservations(c *gin.Context) {
	restaurantID, valid := uuidParam(c, "id")
	if !valid {
		return
	}
	page, valid := queryInt(c, "page", 1)
	if !valid {
		return
	}
	pageSize, valid := queryInt(c, "pageSize", 0)
	if !valid {
		return
	}

	p, err := h.lifecycle.ListReservations(c.Request.Context(), restaurantID, c.Query("date"), c.Query("status"), page, pageSize)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{
		"items":    reservationViews(p.Items),
		"page":     p.Page,
		"pageSize": p.PageSize,
		"hasNext":  p.HasNext,
		"hasPrev":  p.HasPrev,
		"total":    p.Total,
	})
}

// GET /api/restaurants/:id/reservations/code/:code
func (h *Handler) FindByCode(c *gin.Context) {
	restaurantID, valid := uuidParam(c, "id")
	if !valid {
		return
	}
	res, err := h.lifecycle.FindByConfirmationCode(c.Request.Context(), restaurantID, c.Param("code"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, service.NewReservationView(res))
}

// GET /api/reservations/:id. Клиенту своя бронь, персоналу любая.
func (h *Handler) GetReservation(c *gin.Context) {
	id, valid := uuidParam(c, "id")
	if !valid {
		return
	}
	res, err := h.lifecycle.GetReservation(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}

	caller, _ := currentCaller(c)
	if !caller.IsStaff() && (res.CustomerID == nil || *res.CustomerID != caller.ID) {
		c.JSON(http.StatusForbidden, gin.H{"ok": false, "error": "forbidden", "kind": service.KindUnauthorized})
		return
	}
	ok(c, service.NewReservationView(res))
}

type updateReservationReq struct {
	CustomerName             *string    `json:"customerName"`
	CustomerEmail            *string    `json:"customerEmail"`
	CustomerPhone            *string    `json:"customerPhone"`
	PartySize                *int       `json:"partySize"`
	EstimatedDurationMinutes *int       `json:"estimatedDurationMinutes"`
	TableID                  *uuid.UUID `json:"tableId"`
	ClearTable               bool       `json:"clearTable"`
	SpecialRequests          *string    `json:"specialRequests"`
}

// PATCH /api/reservations/:id
func (h *Handler) UpdateReservation(c *gin.Context) {
	id, valid := uuidParam(c, "id")
	if !valid {
		return
	}
	var req updateReservationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	caller, _ := currentCaller(c)

	res, err := h.lifecycle.UpdateReservation(c.Request.Context(), id, service.Patch{
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		PartySize:       req.PartySize,
		DurationMinutes: req.EstimatedDurationMinutes,
		TableID:         req.TableID,
		ClearTable:      req.ClearTable,
		SpecialRequests: req.SpecialRequests,
	}, caller)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, service.NewReservationView(res))
}

type cancelReq struct {
	Reason string `json:"reason"`
}

// POST /api/reservations/:id/cancel
func (h *Handler) CancelReservation(c *gin.Context) {
	id, valid := uuidParam(c, "id")
	if !valid {
		return
	}
	var req cancelReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	caller, _ := currentCaller(c)

	res, err := h.lifecycle.CancelReservation(c.Request.Context(), id, req.Reason, caller)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, service.NewReservationView(res))
}

// transition: общий обработчик confirm/seat/complete/no-show.
func (h *Handler) transition(c *gin.Context, do func(id uuid.UUID) (*model.Reservation, error)) {
	id, valid := uuidParam(c, "id")
	if !valid {
		return
	}
	res, err := do(id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, service.NewReservationView(res))
}

// POST /api/reservations/:id/confirm
func (h *Handler) Confirm(c *gin.Context) {
	h.transition(c, func(id uuid.UUID) (*model.Reservation, error) {
		return h.lifecycle.ConfirmReservation(c.Request.Context(), id)
	})
}

// POST /api/reservations/:id/seat
func (h *Handler) Seat(c *gin.Context) {
	h.transition(c, func(id uuid.UUID) (*model.Reservation, error) {
		return h.lifecycle.SeatReservation(c.Request.Context(), id)
	})
}

// POST /api/reservations/:id/complete
func (h *Handler) Complete(c *gin.Context) {
	h.transition(c, func(id uuid.UUID) (*model.Reservation, error) {
		return h.lifecycle.CompleteReservation(c.Request.Context(), id)
	})
}

// POST /api/reservations/:id/no-show
func (h *Handler) NoShow(c *gin.Context) {
	h.transition(c, func(id uuid.UUID) (*model.Reservation, error) {
		return h.lifecycle.MarkNoShow(c.Request.Context(), id)
	})
}

// ===== Operating intervals =====

type intervalReq struct {
	Weekday   *int   `json:"weekday" binding:"required"`
	OpenTime  string `json:"openTime" binding:"required"`
	CloseTime string `json:"closeTime" binding:"required"`
	Overnight bool   `json:"overnight"`
}

func (r intervalReq) input() service.IntervalInput {
	return service.IntervalInput{
		Weekday:   time.Weekday(*r.Weekday),
		Open:      r.OpenTime,
		Close:     r.CloseTime,
		Overnight: r.Overnight,
	}
}

type intervalView struct {
	ID        uuid.UUID `json:"id"`
	Weekday   int       `json:"weekday"`
	OpenTime  string    `json:"openTime"`
	CloseTime string    `json:"closeTime"`
	Overnight bool      `json:"overnight"`
	IsActive  bool      `json:"isActive"`
}

func newIntervalView(iv *model.OperatingInterval) intervalView {
	return intervalView{
		ID:        iv.ID,
		Weekday:   int(iv.Weekday),
		OpenTime:  iv.OpenTime,
		CloseTime: iv.CloseTime,
		Overnight: iv.CloseTime <= iv.OpenTime,
		IsActive:  iv.IsActive,
	}
}

// POST /api/restaurants/:id/intervals
func (h *Handler) CreateInterval(c *gin.Context) {
	restaurantID, valid := uuidParam(c, "id")
	if !valid {
		return
	}
	var req intervalReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	iv, err := h.schedule.CreateInterval(c.Request.Context(), restaurantID, req.input())
	if err != nil {
		fail(c, err)
		return
	}
	created(c, newIntervalView(iv))
}

// PUT /api/intervals/:id
func (h *Handler) UpdateInterval(c *gin.Context) {
	id, valid := uuidParam(c, "id")
	if !valid {
		return
	}
	var req intervalReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	iv, err := h.schedule.UpdateInterval(c.Request.Context(), id, req.input())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, newIntervalView(iv))
}

// DELETE /api/intervals/:id
func (h *Handler) DeactivateInterval(c *gin.Context) {
	id, valid := uuidParam(c, "id")
	if !valid {
		return
	}
	if err := h.schedule.DeactivateInterval(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"id": id, "isActive": false})
}

// ===== Live updates =====

// GET /ws/restaurants/:id
func (h *Handler) Stream(c *gin.Context) {
	restaurantID, valid := uuidParam(c, "id")
	if !valid {
		return
	}
	if err := h.hub.Serve(c.Writer, c.Request, restaurantID); err != nil {
		log.Printf("ws: upgrade error: %v", err)
	}
}
