package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/maestroprog/wschatserver/internal/chat"
)

// AdminHandlers provides HTTP handlers for the room administration API.
// The wire protocol reserves create_room/remove_room tags but exposes no
// client-facing variants; room management happens here instead.
type AdminHandlers struct {
	chat         *chat.Server
	saveSnapshot func() error
	log          *zerolog.Logger
}

// NewAdminHandlers creates a new admin handlers instance.
func NewAdminHandlers(chatSrv *chat.Server, saveSnapshot func() error, logger *zerolog.Logger) *AdminHandlers {
	return &AdminHandlers{
		chat:         chatSrv,
		saveSnapshot: saveSnapshot,
		log:          logger,
	}
}

// CreateRoomRequest represents the create room request body.
type CreateRoomRequest struct {
	Name    string `json:"name" binding:"required,min=1,max=64"`
	OwnerID int64  `json:"owner_id"`
}

// BanRequest represents a ban or unban request body. Exactly one of the
// fields is expected to be set.
type BanRequest struct {
	Nick   string `json:"nick"`
	IP     string `json:"ip"`
	UserID int64  `json:"user_id"`
}

// ModeratorRequest represents a moderator grant/revoke request body.
type ModeratorRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// CreateRoom handles room creation.
// POST /api/rooms
func (h *AdminHandlers) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.chat.CreateRoom(req.Name); err != nil {
		if errors.Is(err, chat.ErrRoomExists) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "room with this name already exists"})
			return
		}
		h.log.Error().Err(err).Str("room_name", req.Name).Msg("failed to create room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	if req.OwnerID != 0 {
		_ = h.chat.WithRoom(req.Name, func(r *chat.Room) error {
			r.SetOwner(req.OwnerID)
			return nil
		})
	}

	h.log.Info().Str("room_name", req.Name).Int64("owner_id", req.OwnerID).Msg("room created via admin api")
	c.Status(http.StatusCreated)
}

// ListRooms handles listing all rooms.
// GET /api/rooms
func (h *AdminHandlers) ListRooms(c *gin.Context) {
	infos := h.chat.RoomsInfo()
	if infos == nil {
		infos = []chat.RoomInfo{}
	}
	c.JSON(http.StatusOK, infos)
}

// RemoveRoom handles room removal; every live member leaves first.
// DELETE /api/rooms/:name
func (h *AdminHandlers) RemoveRoom(c *gin.Context) {
	name := c.Param("name")
	if err := h.chat.RemoveRoom(name); err != nil {
		if errors.Is(err, chat.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		h.log.Error().Err(err).Str("room_name", name).Msg("failed to remove room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.Status(http.StatusNoContent)
}

// AddBan adds a nick, IP, or user id to the room's ban lists.
// POST /api/rooms/:name/bans
func (h *AdminHandlers) AddBan(c *gin.Context) {
	h.updateBans(c, func(r *chat.Room, req BanRequest) {
		if req.Nick != "" {
			r.BanNick(req.Nick)
		}
		if req.IP != "" {
			r.BanIP(req.IP)
		}
		if req.UserID != 0 {
			r.BanUID(req.UserID)
		}
	})
}

// RemoveBan removes a nick, IP, or user id from the room's ban lists.
// DELETE /api/rooms/:name/bans
func (h *AdminHandlers) RemoveBan(c *gin.Context) {
	h.updateBans(c, func(r *chat.Room, req BanRequest) {
		if req.Nick != "" {
			r.UnbanNick(req.Nick)
		}
		if req.IP != "" {
			r.UnbanIP(req.IP)
		}
		if req.UserID != 0 {
			r.UnbanUID(req.UserID)
		}
	})
}

func (h *AdminHandlers) updateBans(c *gin.Context, apply func(*chat.Room, BanRequest)) {
	var req BanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.Nick == "" && req.IP == "" && req.UserID == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "nick, ip or user_id required"})
		return
	}

	err := h.chat.WithRoom(c.Param("name"), func(r *chat.Room) error {
		apply(r, req)
		return nil
	})
	if errors.Is(err, chat.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// AddModerator grants room moderator rights to a user id.
// POST /api/rooms/:name/moderators
func (h *AdminHandlers) AddModerator(c *gin.Context) {
	h.updateModerators(c, func(r *chat.Room, uid int64) { r.AddModerator(uid) })
}

// RemoveModerator revokes room moderator rights from a user id.
// DELETE /api/rooms/:name/moderators
func (h *AdminHandlers) RemoveModerator(c *gin.Context) {
	h.updateModerators(c, func(r *chat.Room, uid int64) { r.RemoveModerator(uid) })
}

func (h *AdminHandlers) updateModerators(c *gin.Context, apply func(*chat.Room, int64)) {
	var req ModeratorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	err := h.chat.WithRoom(c.Param("name"), func(r *chat.Room) error {
		apply(r, req.UserID)
		return nil
	})
	if errors.Is(err, chat.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// SaveSnapshot persists the room directory to disk.
// POST /api/snapshot
func (h *AdminHandlers) SaveSnapshot(c *gin.Context) {
	if h.saveSnapshot == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "snapshot persistence disabled"})
		return
	}
	if err := h.saveSnapshot(); err != nil {
		h.log.Error().Err(err).Msg("failed to save snapshot")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.Status(http.StatusNoContent)
}
