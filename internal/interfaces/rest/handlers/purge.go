package handlers

import (
	"net/http"

	"github.com/MrSlyte/rinhabackend3/internal/interfaces/rest"
)

// HandlePurge wipes the ledger and idempotency claims. The load-test harness
// calls this between runs; it has no place in normal traffic.
func (h *Handlers) HandlePurge(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Purge(r.Context()); err != nil {
		h.logger.Error("purge failed", "error", err)
		rest.WriteError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, map[string]string{"status": "purged"})
}
