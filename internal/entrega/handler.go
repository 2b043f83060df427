// Package entrega records the delivery of account credentials for an item
// and hands the notification to the mailer through an event.
package entrega

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/antonminaichev/zion-orders/internal/events"
	"github.com/antonminaichev/zion-orders/internal/httpx"
	"github.com/antonminaichev/zion-orders/internal/ingest"
	"github.com/antonminaichev/zion-orders/internal/storage"
	"github.com/antonminaichev/zion-orders/internal/types/pedido"
	"github.com/antonminaichev/zion-orders/internal/validation"
)

const maxFormMemory = 1 << 20

type ItemUpdater interface {
	UpdateItem(ctx context.Context, itemID int64, patch pedido.ItemUpdate) (*pedido.Item, error)
}

type Handler struct {
	itens     ItemUpdater
	publisher events.Publisher
	fields    ingest.FieldMap
}

func NewHandler(itens ItemUpdater, p events.Publisher) *Handler {
	return &Handler{itens: itens, publisher: p, fields: ingest.DeliveryFields}
}

// Entregue is the payload of the item.entregue event.
type Entregue struct {
	ItemID       int64  `json:"item_id"`
	Destinatario string `json:"destinatario"`
	ClienteNome  string `json:"cliente_nome"`
	PedidoCodigo string `json:"pedido_codigo"`
	Jogo         string `json:"jogo"`
	TemplateTipo string `json:"template_tipo"`
}

type response struct {
	OK        bool       `json:"ok"`
	ItemID    int64      `json:"item_id"`
	EnviadoEm *time.Time `json:"enviado_em"`
}

func (h *Handler) Entregar(w http.ResponseWriter, r *http.Request) {
	raw, err := readPayload(r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Payload inválido")
		return
	}
	f := h.fields.Resolve(raw)

	itemID, err := strconv.ParseInt(f["item_id"], 10, 64)
	if err != nil || itemID <= 0 {
		httpx.WriteError(w, http.StatusBadRequest, "item_id: deve ser um inteiro maior que 0")
		return
	}

	enviado := true
	patch := pedido.ItemUpdate{
		EmailConta:     optional(f["login"]),
		SenhaConta:     optional(f["senha"]),
		CodigoAtivacao: optional(f["codigo"]),
		Enviado:        &enviado,
	}
	it, err := h.itens.UpdateItem(r.Context(), itemID, patch)
	var verr *validation.Error
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrItemNotFound), errors.Is(err, storage.ErrPedidoNotFound):
		httpx.WriteError(w, http.StatusNotFound, "Item não encontrado")
		return
	case errors.As(err, &verr):
		httpx.WriteError(w, http.StatusBadRequest, verr.Error())
		return
	default:
		httpx.Internal(w, r, err)
		return
	}

	ev := Entregue{
		ItemID:       it.ID,
		Destinatario: ingest.NormalizeEmail(f["destinatario"]),
		ClienteNome:  f["cliente_nome"],
		PedidoCodigo: f["pedido_codigo"],
		Jogo:         f["jogo"],
		TemplateTipo: f["template_tipo"],
	}
	if ev.Jogo == "" {
		ev.Jogo = it.NomeProduto
	}
	events.PublishLogged(r.Context(), h.publisher, events.New(events.TypeItemEntregue, strconv.FormatInt(it.ID, 10), ev))

	httpx.WriteJSON(w, http.StatusOK, response{OK: true, ItemID: it.ID, EnviadoEm: it.EnviadoEm})
}

func readPayload(r *http.Request) (map[string]interface{}, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxFormMemory); err != nil {
			return nil, err
		}
		return ingest.FromValues(r.MultipartForm.Value), nil
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		return ingest.FromValues(r.PostForm), nil
	}

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
