package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/family-kitchen/internal/model"
	"github.com/iliyamo/family-kitchen/internal/realtime"
)

// ChangesHandler serves the family change feed as Server-Sent Events.
type ChangesHandler struct {
	Hub *realtime.Hub
}

func NewChangesHandler(hub *realtime.Hub) *ChangesHandler { return &ChangesHandler{Hub: hub} }

// Stream handles GET /changes. Every row change of the caller's family is
// delivered as one "change" event, whatever the table or fields.
func (h *ChangesHandler) Stream(c echo.Context) error {
	p := caller(c)
	client := h.Hub.NewClient(p.ID)
	h.Hub.Subscribe(client, model.FamilyChannel(p.FamilyCode))
	defer h.Hub.Close(client)

	h.Hub.ServeHTTP(c.Response(), c.Request(), client)
	return nil
}
