package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter собирает HTTP-маршруты ядра бронирования.
func NewRouter(h *Handler, jwtSecret string, corsOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	allowCredentials := true
	for _, origin := range corsOrigins {
		if origin == "*" {
			allowCredentials = false
			break
		}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: allowCredentials,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "status": "up"})
	})

	auth := AuthMiddleware(jwtSecret, false)
	staff := RequireStaff()

	api := r.Group("/api")
	{
		restaurants := api.Group("/restaurants/:id")
		restaurants.GET("/availability", h.Availability)
		restaurants.POST("/reservations", AuthMiddleware(jwtSecret, true), h.CreateReservation)
		restaurants.GET("/reservations", auth, staff, h.ListReservations)
		restaurants.GET("/reservations/code/:code", auth, staff, h.FindByCode)
		restaurants.POST("/intervals", auth, staff, h.CreateInterval)

		reservations := api.Group("/reservations/:id", auth)
		reservations.GET("", h.GetReservation)
		reservations.PATCH("", h.UpdateReservation)
		reservations.POST("/cancel", h.CancelReservation)
		reservations.POST("/confirm", staff, h.Confirm)
		reservations.POST("/seat", staff, h.Seat)
		reservations.POST("/complete", staff, h.Complete)
		reservations.POST("/no-show", staff, h.NoShow)

		intervals := api.Group("/intervals/:id", auth, staff)
		intervals.PUT("", h.UpdateInterval)
		intervals.DELETE("", h.DeactivateInterval)
	}

	r.GET("/ws/restaurants/:id", WSAuthMiddleware(jwtSecret), staff, h.Stream)

	return r
}
