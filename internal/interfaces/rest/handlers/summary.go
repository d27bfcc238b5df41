package handlers

import (
	"net/http"

	"github.com/MrSlyte/rinhabackend3/internal/application"
	"github.com/MrSlyte/rinhabackend3/internal/interfaces/rest"
)

// HandleSummary aggregates the ledger per processor over the optional
// [from, to] window. Both bounds are inclusive; an absent bound is
// unbounded on that side.
func (h *Handlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	from, err := rest.ParseTimeParam(query, "from")
	if err != nil {
		rest.WriteError(w, application.NewInvalidInputError(err))
		return
	}
	to, err := rest.ParseTimeParam(query, "to")
	if err != nil {
		rest.WriteError(w, application.NewInvalidInputError(err))
		return
	}

	summary, err := h.service.Summarize(r.Context(), from, to)
	if err != nil {
		h.logger.Error("summary query failed", "error", err)
		rest.WriteError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, summary)
}
