package ports

import (
	"github.com/gin-gonic/gin"
)

type RoomHTTPHandler interface {
	CreateRoom(c *gin.Context)
	GetRoom(c *gin.Context)
	CloseRoom(c *gin.Context)
	ListRooms(c *gin.Context)
}
