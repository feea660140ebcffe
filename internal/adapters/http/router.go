package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/edgemeet/huddle/internal/adapters/signal"
	"github.com/edgemeet/huddle/internal/app"
	"github.com/edgemeet/huddle/internal/config"
	"github.com/edgemeet/huddle/internal/domain"
)

type createRoomRequest struct {
	Name string `json:"name" binding:"required,max=128"`
}

func SetupRouter(ctx context.Context, cfg *config.Config, ctl *signal.Controller, rooms *app.RoomDirectory) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	log.Info().Str("module", "adapters.http").Msg("router setup")

	api := r.Group("/api")

	api.GET("/ws", func(c *gin.Context) {
		ctl.HandleSignal(ctx, c)
	})

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, rooms.List())
	})

	api.POST("/rooms", func(c *gin.Context) {
		var req createRoomRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid name"})
			return
		}
		rec := rooms.Create(req.Name)
		log.Info().Str("module", "adapters.http").Str("room", string(rec.ID)).Str("name", rec.Name).Msg("room record created")
		c.JSON(http.StatusCreated, rec)
	})

	api.GET("/rooms/:id", func(c *gin.Context) {
		status, ok := rooms.Get(domain.RoomID(c.Param("id")))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusOK, status)
	})

	return r
}
