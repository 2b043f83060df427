package fulfillment

import (
	"strconv"

	"github.com/antonminaichev/zion-orders/internal/types/pedido"
)

type RequestItem struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
	Name     string `json:"name"`
	Variant  string `json:"variant"`
}

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Request is the body posted to the automation engine.
type Request struct {
	OrderID        string        `json:"order_id"`
	Channel        string        `json:"channel"`
	Variant        string        `json:"variant"`
	Items          []RequestItem `json:"items"`
	Customer       Customer      `json:"customer"`
	IdempotencyKey string        `json:"idempotency_key"`
}

// VariantFunc picks the order-level variant label.
type VariantFunc func(itens []pedido.Item) string

// FirstItemVariant labels the order after its first item.
func FirstItemVariant(itens []pedido.Item) string {
	if len(itens) == 0 {
		return ""
	}
	return itens[0].Plataforma.Label()
}

func BuildRequest(p *pedido.Pedido, channel string, variant VariantFunc) Request {
	if variant == nil {
		variant = FirstItemVariant
	}
	req := Request{
		OrderID: p.GroupKey(),
		Channel: channel,
		Variant: variant(p.Itens),
		Items:   make([]RequestItem, 0, len(p.Itens)),
		Customer: Customer{
			Name:  p.ClienteNome,
			Email: p.ClienteEmail,
			Phone: deref(p.Telefone),
		},
	}
	if p.Codigo == nil || *p.Codigo == "" {
		req.OrderID = strconv.FormatInt(p.ID, 10)
	}
	for _, it := range p.Itens {
		req.Items = append(req.Items, RequestItem{
			SKU:      deref(it.SKU),
			Quantity: it.Quantidade,
			Name:     it.NomeProduto,
			Variant:  it.Plataforma.Label(),
		})
	}
	return req
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
