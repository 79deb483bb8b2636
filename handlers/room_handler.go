package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"vibelink/models"
	"vibelink/response"
	"vibelink/services"
)

const qrSize = 320

// Presence reports which room members hold a live socket.
type Presence interface {
	OnlineUsers(roomID uuid.UUID) []uuid.UUID
}

type RoomHandler struct {
	roomService *services.RoomService
	presence    Presence
	appURL      string
}

func NewRoomHandler(roomService *services.RoomService, presence Presence, appURL string) *RoomHandler {
	return &RoomHandler{roomService: roomService, presence: presence, appURL: appURL}
}

func (h *RoomHandler) List(c *gin.Context) {
	var q services.ListRoomsQuery
	if !bindQuery(c, &q) {
		return
	}

	rooms, err := h.roomService.List(c.Request.Context(), q)
	if err != nil {
		fail(c, err)
		return
	}
	if rooms == nil {
		rooms = []models.Room{}
	}
	response.OK(c, gin.H{"rooms": rooms, "total": len(rooms)})
}

func (h *RoomHandler) Create(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var req services.CreateRoomRequest
	if !bindJSON(c, &req) {
		return
	}

	room, err := h.roomService.Create(c.Request.Context(), userID, &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, gin.H{"room": room})
}

func (h *RoomHandler) Get(c *gin.Context) {
	roomID, ok := uuidParam(c, "roomId")
	if !ok {
		return
	}

	room, err := h.roomService.Get(c.Request.Context(), roomID)
	if err != nil {
		fail(c, err)
		return
	}
	online := []uuid.UUID{}
	if h.presence != nil {
		if ids := h.presence.OnlineUsers(roomID); ids != nil {
			online = ids
		}
	}
	response.OK(c, gin.H{"room": room, "online": online})
}

func (h *RoomHandler) Join(c *gin.Context) {
	h.membership(c, h.roomService.Join, "Joined room successfully")
}

func (h *RoomHandler) Leave(c *gin.Context) {
	h.membership(c, h.roomService.Leave, "Left room successfully")
}

func (h *RoomHandler) Close(c *gin.Context) {
	h.membership(c, h.roomService.Close, "Room closed successfully")
}

// QRCode renders a PNG that points at the room's join page.
func (h *RoomHandler) QRCode(c *gin.Context) {
	roomID, ok := uuidParam(c, "roomId")
	if !ok {
		return
	}
	if _, err := h.roomService.Get(c.Request.Context(), roomID); err != nil {
		fail(c, err)
		return
	}

	png, err := qrcode.Encode(h.joinURL(roomID), qrcode.Medium, qrSize)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=300")
	c.Data(http.StatusOK, "image/png", png)
}

func (h *RoomHandler) joinURL(roomID uuid.UUID) string {
	return h.appURL + "/rooms/" + roomID.String() + "/join"
}

type roomAction func(ctx context.Context, roomID, userID uuid.UUID) (*models.Room, error)

func (h *RoomHandler) membership(c *gin.Context, action roomAction, message string) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	roomID, ok := uuidParam(c, "roomId")
	if !ok {
		return
	}

	room, err := action(c.Request.Context(), roomID, userID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Message(c, message, gin.H{"room": room})
}
