package ingest

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/antonminaichev/zion-orders/internal/httpx"
	"github.com/antonminaichev/zion-orders/internal/types/pedido"
)

const (
	EventOrderCreated = "order.created"
	EventOrderPaid    = "order.paid"
)

type YampiCustomer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type YampiItem struct {
	ID          httpx.FlexString `json:"id"`
	SKU         httpx.FlexString `json:"sku"`
	Name        string           `json:"name"`
	Quantity    *int             `json:"quantity"`
	Price       *decimal.Decimal `json:"price"`
	VariantName string           `json:"variant_name"`
	Platform    string           `json:"platform"`
}

type YampiOrder struct {
	ID        httpx.FlexString `json:"id"`
	Code      httpx.FlexString `json:"code"`
	Status    string           `json:"status"`
	CreatedAt string           `json:"created_at"`
	Customer  *YampiCustomer   `json:"customer"`
	Items     []YampiItem      `json:"items"`
}

type envelope struct {
	Event    string          `json:"event"`
	Order    json.RawMessage `json:"order"`
	Resource json.RawMessage `json:"resource"`
}

// orderPayload returns the order object of either {event, order} or
// {event, resource: {order}}. A resource without an order key is taken as
// the order itself.
func (e envelope) orderPayload() json.RawMessage {
	if present(e.Order) {
		return e.Order
	}
	if !present(e.Resource) {
		return nil
	}
	var res struct {
		Order json.RawMessage `json:"order"`
	}
	if err := json.Unmarshal(e.Resource, &res); err == nil && present(res.Order) {
		return res.Order
	}
	return e.Resource
}

func present(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s != "" && s != "null" && s != "{}"
}

// Creates reports whether event should produce a local order.
func Creates(event string) bool {
	return event == EventOrderCreated || event == EventOrderPaid
}

type Translator struct {
	Platforms PlatformTable
	now       func() time.Time
}

func NewTranslator(platforms PlatformTable) *Translator {
	return &Translator{Platforms: platforms, now: time.Now}
}

func MapStatus(event, status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "paid", "approved":
		return pedido.StatusPaid
	case "":
		if event == EventOrderPaid {
			return pedido.StatusPaid
		}
	}
	return pedido.StatusPending
}

func (t *Translator) Translate(event string, o YampiOrder) (pedido.PedidoCreate, []pedido.ItemCreate) {
	codigo := strings.TrimSpace(o.Code.String())
	if codigo == "" {
		codigo = strings.TrimSpace(o.ID.String())
	}

	var c YampiCustomer
	if o.Customer != nil {
		c = *o.Customer
	}
	in := pedido.PedidoCreate{
		Status:       MapStatus(event, o.Status),
		DataCriacao:  t.now().UTC().Format("2006-01-02"),
		ClienteNome:  strings.TrimSpace(c.Name),
		ClienteEmail: NormalizeEmail(c.Email),
	}
	if codigo != "" {
		in.Codigo = &codigo
	}
	if phone := strings.TrimSpace(c.Phone); phone != "" {
		in.Telefone = &phone
	}

	itens := make([]pedido.ItemCreate, 0, len(o.Items))
	for _, it := range o.Items {
		item := pedido.ItemCreate{
			NomeProduto:   it.Name,
			Plataforma:    t.Platforms.Resolve(it.Platform, it.VariantName),
			Quantidade:    1,
			PrecoUnitario: decimal.Zero,
		}
		if sku := strings.TrimSpace(it.SKU.String()); sku != "" {
			item.SKU = &sku
		}
		if it.Quantity != nil && *it.Quantity > 0 {
			item.Quantidade = *it.Quantity
		}
		if it.Price != nil {
			item.PrecoUnitario = *it.Price
		}
		itens = append(itens, item)
	}
	return in, itens
}
