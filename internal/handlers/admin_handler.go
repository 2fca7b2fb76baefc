package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/farellandr/ticketgate/internal/helpers"
	"github.com/farellandr/ticketgate/internal/middleware"
	"github.com/farellandr/ticketgate/internal/registrations"
	"github.com/gin-gonic/gin"
)

func (h *Handler) SearchRegistrations(c *gin.Context) {
	rows, err := h.Registrations.Search(c.Request.Context(), registrations.SearchQuery{
		Query:     c.Query("q"),
		EventSlug: c.Query("eventSlug"),
		Limit:     helpers.QueryInt(c.Query("limit"), 0),
		Offset:    helpers.QueryInt(c.Query("offset"), 0),
	})
	if err != nil {
		helpers.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "rows": rows, "count": len(rows)})
}

func (h *Handler) GetRegistration(c *gin.Context) {
	id, err := helpers.ParseID(c.Param("id"))
	if err != nil {
		helpers.RespondWithAppError(c, err)
		return
	}
	reg, err := h.Registrations.Get(c.Request.Context(), id)
	if err != nil {
		helpers.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "row": reg, "qrUrl": h.Issuer.QRLink(reg)})
}

// ResendTicket re-runs delivery for one row. Partial failures still answer 200
// with the errors listed, since the row itself is fine.
func (h *Handler) ResendTicket(c *gin.Context) {
	id, err := helpers.ParseID(c.Param("id"))
	if err != nil {
		helpers.RespondWithAppError(c, err)
		return
	}

	res, err := h.Issuer.Resend(c.Request.Context(), id)
	if err != nil {
		helpers.RespondWithAppError(c, err)
		return
	}

	body := gin.H{
		"ok":       res.Err() == nil,
		"qrIssued": res.QRIssued,
		"emailed":  res.Emailed,
		"row":      res.Registration,
	}
	if res.QRErr != nil {
		body["qrError"] = res.QRErr.Error()
	}
	if res.EmailErr != nil {
		body["emailError"] = res.EmailErr.Error()
	}

	h.Log.Info().Uint64("registration_id", id).Str("operator", middleware.GetOperator(c)).
		Bool("emailed", res.Emailed).Msg("ticket resent")
	c.JSON(http.StatusOK, body)
}

func (h *Handler) EventStats(c *gin.Context) {
	stats, err := h.Registrations.StatsByEvent(c.Request.Context())
	if err != nil {
		helpers.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "stats": stats})
}

type probe struct {
	OK        bool   `json:"ok"`
	LatencyMs int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

func runProbe(ctx context.Context, p Pinger) probe {
	if p == nil {
		return probe{Error: "not configured"}
	}
	start := time.Now()
	err := p.Ping(ctx)
	res := probe{OK: err == nil, LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

// Diagnostics probes each dependency in turn.
func (h *Handler) Diagnostics(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	checks := gin.H{
		"database": runProbe(ctx, h.Registrations),
		"gateway":  runProbe(ctx, h.Gateway),
		"storage":  runProbe(ctx, h.Bucket),
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "version": h.Release, "checks": checks})
}
