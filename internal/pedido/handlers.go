package pedido

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/antonminaichev/zion-orders/internal/httpx"
	"github.com/antonminaichev/zion-orders/internal/types/pedido"
	"github.com/antonminaichev/zion-orders/internal/validation"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

// Register adds the order and item routes to r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/pedidos", h.ListPedidos)
	r.Post("/pedidos", h.CreatePedido)
	r.Get("/pedidos/agrupados", h.AgruparPedidos)
	r.Get("/pedidos/{id}", h.GetPedido)
	r.Patch("/pedidos/{id}", h.UpdatePedido)
	r.Delete("/pedidos/{id}", h.DeletePedido)
	r.Get("/pedidos/{id}/total", h.TotalPedido)
	r.Get("/pedidos/{id}/itens", h.ListItens)
	r.Post("/pedidos/{id}/itens", h.CreateItem)
	r.Patch("/itens/{id}", h.UpdateItem)
	r.Delete("/itens/{id}", h.DeleteItem)
	r.Post("/itens/{id}/toggle-enviado", h.ToggleItemEnviado)
	r.Post("/vendas", h.CreateVenda)
}

func (h *Handler) ListPedidos(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	pedidos, err := h.svc.ListPedidos(r.Context(), limit, offset)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, pedidos)
}

func (h *Handler) CreatePedido(w http.ResponseWriter, r *http.Request) {
	req := pedido.PedidoCreate{Status: pedido.StatusPending}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	p, err := h.svc.CreatePedido(r.Context(), req)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) AgruparPedidos(w http.ResponseWriter, r *http.Request) {
	grupos, err := h.svc.AgruparPorCodigo(r.Context(), r.URL.Query().Get("codigo"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, grupos)
}

func (h *Handler) GetPedido(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.IDParam(r, "id")
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "Pedido não encontrado")
		return
	}
	p, err := h.svc.GetPedido(r.Context(), id)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) UpdatePedido(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.IDParam(r, "id")
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "Pedido não encontrado")
		return
	}
	var patch pedido.PedidoUpdate
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	p, err := h.svc.UpdatePedido(r.Context(), id, patch)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) DeletePedido(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.IDParam(r, "id")
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "Pedido não encontrado")
		return
	}
	if err := h.svc.DeletePedido(r.Context(), id); err != nil {
		h.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type totalResponse struct {
	PedidoID int64   `json:"pedido_id"`
	Total    float64 `json:"total"`
}

func (h *Handler) TotalPedido(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.IDParam(r, "id")
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "Pedido não encontrado")
		return
	}
	total, err := h.svc.TotalPedido(r.Context(), id)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, totalResponse{PedidoID: id, Total: total.InexactFloat64()})
}

func (h *Handler) ListItens(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.IDParam(r, "id")
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "Pedido não encontrado")
		return
	}
	itens, err := h.svc.ListItens(r.Context(), id)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, itens)
}

func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.IDParam(r, "id")
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "Pedido não encontrado")
		return
	}
	req := pedido.ItemCreate{Quantidade: 1}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	it, err := h.svc.CreateItem(r.Context(), id, req)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, it)
}

func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.IDParam(r, "id")
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "Item não encontrado")
		return
	}
	var patch pedido.ItemUpdate
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	it, err := h.svc.UpdateItem(r.Context(), id, patch)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, it)
}

func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.IDParam(r, "id")
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "Item não encontrado")
		return
	}
	if err := h.svc.DeleteItem(r.Context(), id); err != nil {
		h.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ToggleItemEnviado(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.IDParam(r, "id")
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "Item não encontrado")
		return
	}
	it, err := h.svc.ToggleItemEnviado(r.Context(), id)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, it)
}

type vendaResponse struct {
	Pedido pedido.Pedido `json:"pedido"`
	Item   pedido.Item   `json:"item"`
}

func (h *Handler) CreateVenda(w http.ResponseWriter, r *http.Request) {
	req := pedido.VendaCreate{
		PedidoCreate: pedido.PedidoCreate{Status: pedido.StatusPaid},
		ItemCreate:   pedido.ItemCreate{Quantidade: 1},
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	p, err := h.svc.CreateVenda(r.Context(), req)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	resp := vendaResponse{Pedido: *p, Item: p.Itens[0]}
	resp.Pedido.Itens = nil
	httpx.WriteJSON(w, http.StatusCreated, resp)
}

func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		httpx.WriteError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, ErrPedidoNotFound):
		httpx.WriteError(w, http.StatusNotFound, "Pedido não encontrado")
	case errors.Is(err, ErrItemNotFound):
		httpx.WriteError(w, http.StatusNotFound, "Item não encontrado")
	default:
		httpx.Internal(w, r, err)
	}
}
