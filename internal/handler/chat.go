package handler

import (
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/family-kitchen/internal/model"
)

// MaxMessageLength caps a single chat message, in characters.
const MaxMessageLength = 2000

// ListMessages handles GET /messages?limit=, oldest first.
func (h *KitchenHandler) ListMessages(c echo.Context) error {
	limit := 0
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return badRequest(c, "limit must be a positive integer")
		}
		limit = n
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	msgs, err := h.Chat.ListByFamily(ctx, caller(c).FamilyCode, limit)
	if err != nil {
		return storeError(c, err, "message")
	}
	return c.JSON(http.StatusOK, msgs)
}

// SendMessage handles POST /messages. The sender snapshot comes from the
// live profile.
func (h *KitchenHandler) SendMessage(c echo.Context) error {
	var req struct {
		Message string `json:"message"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return badRequest(c, "message is required")
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return badRequest(c, "message too long")
	}
	p := caller(c)
	msg := &model.ChatMessage{
		SenderID:    p.ID,
		Message:     text,
		FamilyCode:  p.FamilyCode,
		ProfileData: p.Snapshot(),
	}

	ctx, cancel := dbCtx(c)
	defer cancel()
	if err := h.Chat.Create(ctx, msg); err != nil {
		return storeError(c, err, "message")
	}
	h.notify.changed(c, p.FamilyCode, model.TableMessages, model.ChangeInsert, msg.ID)
	return c.JSON(http.StatusCreated, msg)
}
