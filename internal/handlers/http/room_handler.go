package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"watchsync/internal/core/domain"
	"watchsync/internal/core/ports"
	apperrors "watchsync/pkg/errors"
	"watchsync/pkg/validation"
)

type RoomHandler struct {
	roomService ports.RoomService
}

func NewRoomHandler(roomService ports.RoomService) *RoomHandler {
	return &RoomHandler{roomService: roomService}
}

var _ ports.RoomHTTPHandler = (*RoomHandler)(nil)

func (h *RoomHandler) SetupRoutes(router gin.IRouter) {
	api := router.Group("/api/v1")
	{
		api.POST("/rooms", h.CreateRoom)
		api.GET("/rooms", h.ListRooms)
		api.GET("/rooms/:code", h.GetRoom)
		api.POST("/rooms/:code/close", h.CloseRoom)
	}
}

type createRoomRequest struct {
	DisplayName string `json:"displayName"`
}

func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	// body is optional
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(apperrors.NewInvalidInputError("invalid request body"))
			return
		}
	}
	if req.DisplayName != "" {
		if err := validation.ValidateDisplayName(req.DisplayName); err != nil {
			_ = c.Error(apperrors.NewInvalidInputError(err.Error()))
			return
		}
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), req.DisplayName)
	if err != nil {
		_ = c.Error(apperrors.WrapError(err, apperrors.ErrCodeInternal, "failed to create room", http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"roomCode": room.Code,
	})
}

func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.roomService.GetRoom(c.Request.Context(), c.Param("code"))
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"exists": false})
			return
		}
		_ = c.Error(apperrors.WrapError(err, apperrors.ErrCodeInternal, "failed to look up room", http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"exists": true,
		"room":   room,
	})
}

func (h *RoomHandler) CloseRoom(c *gin.Context) {
	if err := h.roomService.CloseRoom(c.Request.Context(), c.Param("code")); err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			_ = c.Error(apperrors.NewNotFoundError("room"))
			return
		}
		_ = c.Error(apperrors.WrapError(err, apperrors.ErrCodeInternal, "failed to close room", http.StatusInternalServerError))
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.roomService.ListRooms(c.Request.Context())
	if err != nil {
		_ = c.Error(apperrors.WrapError(err, apperrors.ErrCodeInternal, "failed to list rooms", http.StatusInternalServerError))
		return
	}
	if rooms == nil {
		rooms = []*domain.Room{}
	}

	c.JSON(http.StatusOK, gin.H{
		"rooms": rooms,
		"count": len(rooms),
	})
}
