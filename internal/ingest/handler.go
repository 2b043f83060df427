package ingest

import (
	"errors"
	"io"
	"net/http"

	"github.com/antonminaichev/zion-orders/internal/httpx"
	"github.com/antonminaichev/zion-orders/internal/validation"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Webhook expects the signature middleware in front of it.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, ErrInvalidJSON.Error())
		return
	}
	res, err := h.svc.Ingest(r.Context(), raw)
	var verr *validation.Error
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, res)
	case errors.Is(err, ErrInvalidJSON), errors.Is(err, ErrMissingOrder):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &verr):
		httpx.WriteError(w, http.StatusBadRequest, verr.Error())
	default:
		httpx.Internal(w, r, err)
	}
}
