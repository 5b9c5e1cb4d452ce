package health

import (
	"math"
	"net/http"
	"time"

	"github.com/KyleWhite22/GameGeniusAI/internal/api/handlers"
)

// HealthHandler reports liveness and process uptime
type HealthHandler struct {
	started time.Time
	now     func() time.Time
}

// NewHealthHandler creates a health handler anchored at the given start time
func NewHealthHandler(started time.Time) *HealthHandler {
	return &HealthHandler{started: started, now: time.Now}
}

// HandleHealth returns {"ok":true,"uptime":<seconds>}
// GET /health
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	uptime := h.now().Sub(h.started).Seconds()
	handlers.WriteJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"uptime": math.Round(uptime*1000) / 1000,
	})
}
