package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/antonminaichev/zion-orders/internal/events"
	"github.com/antonminaichev/zion-orders/internal/httpx"
	"github.com/antonminaichev/zion-orders/internal/logger"
	"github.com/antonminaichev/zion-orders/internal/storage"
)

type StatusUpdater interface {
	UpdateStatusByRef(ctx context.Context, ref, status string) (storage.RefMatch, error)
}

type Handler struct {
	dispatcher *Dispatcher
	updater    StatusUpdater
	deliveries *DeliveryQueue
	publisher  events.Publisher
}

func NewHandler(d *Dispatcher, u StatusUpdater, q *DeliveryQueue, p events.Publisher) *Handler {
	return &Handler{dispatcher: d, updater: u, deliveries: q, publisher: p}
}

type createReq struct {
	PedidoID       int64  `json:"pedido_id"`
	IdempotencyKey string `json:"idempotency_key"`
	Variant        string `json:"variant"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	if req.PedidoID <= 0 {
		httpx.WriteError(w, http.StatusBadRequest, "pedido_id: deve ser maior que 0")
		return
	}

	res, err := h.dispatcher.Dispatch(r.Context(), req.PedidoID, Options{
		IdempotencyKey: strings.TrimSpace(req.IdempotencyKey),
		Variant:        req.Variant,
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrNotConfigured):
		httpx.WriteError(w, http.StatusInternalServerError, "Configuração ausente (N8N_WEBHOOK_URL / N8N_HMAC_SECRET)")
		return
	case errors.Is(err, storage.ErrPedidoNotFound):
		httpx.WriteError(w, http.StatusNotFound, "Pedido não encontrado")
		return
	case errors.Is(err, ErrUpstream):
		body := map[string]string{"detail": "Falha ao contatar o motor de automação"}
		if res != nil {
			body["idempotency_key"] = res.IdempotencyKey
		}
		httpx.WriteJSON(w, http.StatusBadGateway, body)
		return
	default:
		httpx.Internal(w, r, err)
		return
	}

	code := http.StatusOK
	if !res.OK {
		code = res.Status
	}
	httpx.WriteJSON(w, code, res)
}

type statusReq struct {
	OrderID  httpx.FlexString `json:"order_id"`
	Status   string           `json:"status"`
	Timeline json.RawMessage  `json:"timeline,omitempty"`
}

// Status handles the engine callback. The signature has already been
// checked by the middleware, so every well-formed callback is acknowledged.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	var req statusReq
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "JSON inválido")
			return
		}
	}
	ref := strings.TrimSpace(req.OrderID.String())
	status := strings.ToUpper(strings.TrimSpace(req.Status))
	ctx := r.Context()

	// A numeric ref that did not match a codigo is a local id and means
	// nothing to the storefront.
	storefrontRef := !isNumeric(ref)
	if ref != "" && status != "" {
		m, err := h.updater.UpdateStatusByRef(ctx, ref, status)
		switch {
		case err != nil:
			logger.Log.ErrorContext(ctx, "update status from callback", "order_id", ref, "status", status, "error", err)
		case m.Updated == 0:
			logger.Log.WarnContext(ctx, "status callback for unknown order", "order_id", ref, "status", status)
			storefrontRef = false
		default:
			storefrontRef = m.ByCodigo
		}
		events.PublishLogged(ctx, h.publisher, events.New(events.TypeFulfillment, ref, req))
	}

	if storefrontRef && status == "DELIVERED" && h.deliveries != nil {
		h.deliveries.Enqueue(ref)
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func isNumeric(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}
