package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-raffle/internal/middleware"
	"github.com/iliyamo/event-raffle/internal/model"
	"github.com/iliyamo/event-raffle/internal/raffle"
)

// RaffleHandler exposes the raffle engine under /v1/events/:event_id.
// Every route assumes JWTAuth and RequireRole already ran.
type RaffleHandler struct {
	Svc *raffle.Service
}

// NewRaffleHandler panics when svc is nil.
func NewRaffleHandler(svc *raffle.Service) *RaffleHandler {
	if svc == nil {
		panic("nil service passed to NewRaffleHandler")
	}
	return &RaffleHandler{Svc: svc}
}

// eventAndPrize parses the two path ids shared by the per-prize routes.
// On failure the 400 response has already been written.
func eventAndPrize(c echo.Context) (eventID, prizeID uint64, ok bool) {
	if eventID, ok = parseID(c, "event_id"); !ok {
		_ = badParam(c, "event_id")
		return 0, 0, false
	}
	if prizeID, ok = parseID(c, "prize_id"); !ok {
		_ = badParam(c, "prize_id")
		return 0, 0, false
	}
	return eventID, prizeID, true
}

// CreateEntries handles POST /prizes/:prize_id/entries.  It enrolls every
// eligible guest that has no live entry yet.
func (h *RaffleHandler) CreateEntries(c echo.Context) error {
	eventID, prizeID, ok := eventAndPrize(c)
	if !ok {
		return nil
	}
	res, err := h.Svc.CreateEntries(c.Request().Context(), eventID, prizeID, middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// Draw handles POST /prizes/:prize_id/draw with body
// {"quantity": n, "notify": bool, "mark_losers": bool}.
func (h *RaffleHandler) Draw(c echo.Context) error {
	eventID, prizeID, ok := eventAndPrize(c)
	if !ok {
		return nil
	}
	var body struct {
		Quantity   int  `json:"quantity"`
		Notify     bool `json:"notify"`
		MarkLosers bool `json:"mark_losers"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	res, err := h.Svc.Draw(c.Request().Context(), raffle.DrawRequest{
		EventID:    eventID,
		PrizeID:    prizeID,
		Quantity:   body.Quantity,
		Notify:     body.Notify,
		MarkLosers: body.MarkLosers,
		UserID:     middleware.UserID(c),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Cancel handles POST /prizes/:prize_id/cancel.
func (h *RaffleHandler) Cancel(c echo.Context) error {
	eventID, prizeID, ok := eventAndPrize(c)
	if !ok {
		return nil
	}
	n, err := h.Svc.Cancel(c.Request().Context(), eventID, prizeID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"cancelled": n})
}

// SelectManual handles POST /prizes/:prize_id/select with body
// {"guest_id": id, "notify": bool}.
func (h *RaffleHandler) SelectManual(c echo.Context) error {
	eventID, prizeID, ok := eventAndPrize(c)
	if !ok {
		return nil
	}
	var body struct {
		GuestID uint64 `json:"guest_id"`
		Notify  bool   `json:"notify"`
	}
	if err := c.Bind(&body); err != nil || body.GuestID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "guest_id is required"})
	}
	res, err := h.Svc.SelectManual(c.Request().Context(), raffle.SelectRequest{
		EventID: eventID,
		PrizeID: prizeID,
		GuestID: body.GuestID,
		Notify:  body.Notify,
		UserID:  middleware.UserID(c),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// ResetEntry handles POST /prizes/:prize_id/entries/:entry_id/reset.
func (h *RaffleHandler) ResetEntry(c echo.Context) error {
	eventID, prizeID, ok := eventAndPrize(c)
	if !ok {
		return nil
	}
	entryID, ok := parseID(c, "entry_id")
	if !ok {
		return badParam(c, "entry_id")
	}
	res, err := h.Svc.ResetEntry(c.Request().Context(), eventID, prizeID, entryID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// DeleteEntry handles DELETE /prizes/:prize_id/entries/:entry_id.
func (h *RaffleHandler) DeleteEntry(c echo.Context) error {
	eventID, prizeID, ok := eventAndPrize(c)
	if !ok {
		return nil
	}
	entryID, ok := parseID(c, "entry_id")
	if !ok {
		return badParam(c, "entry_id")
	}
	if err := h.Svc.DeleteEntry(c.Request().Context(), eventID, prizeID, entryID); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Entries handles GET /prizes/:prize_id/entries.
func (h *RaffleHandler) Entries(c echo.Context) error {
	eventID, prizeID, ok := eventAndPrize(c)
	if !ok {
		return nil
	}
	entries, err := h.Svc.Entries(c.Request().Context(), eventID, prizeID)
	if err != nil {
		return fail(c, err)
	}
	if entries == nil {
		entries = []model.RaffleEntry{}
	}
	return c.JSON(http.StatusOK, echo.Map{"entries": entries})
}

// DrawGeneral handles POST /general/draw with an optional {"notify": bool}.
func (h *RaffleHandler) DrawGeneral(c echo.Context) error {
	eventID, ok := parseID(c, "event_id")
	if !ok {
		return badParam(c, "event_id")
	}
	var body struct {
		Notify bool `json:"notify"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	res, err := h.Svc.DrawGeneral(c.Request().Context(), eventID, body.Notify, middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// ReselectGeneral handles POST /general/reselect with body
// {"guest_id": id, "notify": bool}.
func (h *RaffleHandler) ReselectGeneral(c echo.Context) error {
	eventID, ok := parseID(c, "event_id")
	if !ok {
		return badParam(c, "event_id")
	}
	var body struct {
		GuestID uint64 `json:"guest_id"`
		Notify  bool   `json:"notify"`
	}
	if err := c.Bind(&body); err != nil || body.GuestID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "guest_id is required"})
	}
	res, err := h.Svc.ReselectGeneral(c.Request().Context(), eventID, body.GuestID, body.Notify, middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// GeneralWinners handles GET /general/winners.
func (h *RaffleHandler) GeneralWinners(c echo.Context) error {
	eventID, ok := parseID(c, "event_id")
	if !ok {
		return badParam(c, "event_id")
	}
	rows, err := h.Svc.GeneralWinners(c.Request().Context(), eventID)
	if err != nil {
		return fail(c, err)
	}
	if rows == nil {
		rows = []model.RaffleLog{}
	}
	return c.JSON(http.StatusOK, echo.Map{"winners": rows})
}

// Logs handles GET /raffle/logs?type=&prize_id=&guest_id=&confirmed=.
func (h *RaffleHandler) Logs(c echo.Context) error {
	eventID, ok := parseID(c, "event_id")
	if !ok {
		return badParam(c, "event_id")
	}
	var f model.LogFilter
	switch t := model.RaffleType(c.QueryParam("type")); t {
	case "":
	case model.RafflePublic, model.RaffleGeneral:
		f.RaffleType = t
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "type must be public or general"})
	}
	for name, dst := range map[string]*uint64{"prize_id": &f.PrizeID, "guest_id": &f.GuestID} {
		if v := c.QueryParam(name); v != "" {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return badParam(c, name)
			}
			*dst = n
		}
	}
	if v := c.QueryParam("confirmed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return badParam(c, "confirmed")
		}
		f.Confirmed = &b
	}
	rows, err := h.Svc.Logs(c.Request().Context(), eventID, f)
	if err != nil {
		return fail(c, err)
	}
	if rows == nil {
		rows = []model.RaffleLog{}
	}
	return c.JSON(http.StatusOK, echo.Map{"logs": rows})
}

// Stats handles GET /raffle/stats.
func (h *RaffleHandler) Stats(c echo.Context) error {
	eventID, ok := parseID(c, "event_id")
	if !ok {
		return badParam(c, "event_id")
	}
	st, err := h.Svc.Stats(c.Request().Context(), eventID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// CheckStock handles GET /raffle/consistency.
func (h *RaffleHandler) CheckStock(c echo.Context) error {
	eventID, ok := parseID(c, "event_id")
	if !ok {
		return badParam(c, "event_id")
	}
	res, err := h.Svc.CheckStock(c.Request().Context(), eventID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
