package operator

import (
	"net/http"

	"github.com/antonminaichev/zion-orders/internal/httpx"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type loginReq struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	token, err := h.svc.Authenticate(r.Context(), req.Login, req.Password)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, ErrInvalidCreds.Error())
		return
	}
	w.Header().Set("Authorization", "Bearer "+token)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"token": token})
}
