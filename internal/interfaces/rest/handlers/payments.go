package handlers

import (
	"net/http"

	"github.com/MrSlyte/rinhabackend3/internal/application"
	"github.com/MrSlyte/rinhabackend3/internal/domain"
	"github.com/MrSlyte/rinhabackend3/internal/interfaces/rest"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// HandleSubmitPayment admits one payment for asynchronous processing. The
// 202 goes out as soon as the payment is queued; no processor is contacted
// on this path.
func (h *Handlers) HandleSubmitPayment(w http.ResponseWriter, r *http.Request) {
	var payment domain.PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&payment); err != nil {
		rest.WriteError(w, application.NewInvalidInputError(err))
		return
	}

	if err := h.service.Submit(r.Context(), payment); err != nil {
		rest.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
