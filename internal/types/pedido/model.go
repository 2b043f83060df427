package pedido

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Plataforma string

const (
	PlataformaPS4  Plataforma = "PS4"
	PlataformaPS4s Plataforma = "PS4s"
	PlataformaPS5  Plataforma = "PS5"
	PlataformaPS5s Plataforma = "PS5s"
)

var plataformaLabels = map[Plataforma]string{
	PlataformaPS4:  "PS4 Primária",
	PlataformaPS4s: "PS4 Secundária",
	PlataformaPS5:  "PS5 Primária",
	PlataformaPS5s: "PS5 Secundária",
}

func (p Plataforma) Valid() bool {
	_, ok := plataformaLabels[p]
	return ok
}

// Label is the human-readable variant name sent to the automation engine.
func (p Plataforma) Label() string {
	if l, ok := plataformaLabels[p]; ok {
		return l
	}
	return string(p)
}

const (
	StatusPaid    = "PAID"
	StatusPending = "PENDING"
)

// SemCodigo groups orders that have no external code.
const SemCodigo = "(sem código)"

type Pedido struct {
	ID           int64      `db:"id" json:"id"`
	Codigo       *string    `db:"codigo" json:"codigo"`
	Status       string     `db:"status" json:"status"`
	DataCriacao  string     `db:"data_criacao" json:"data_criacao"`
	ClienteNome  string     `db:"cliente_nome" json:"cliente_nome"`
	ClienteEmail string     `db:"cliente_email" json:"cliente_email"`
	Telefone     *string    `db:"telefone" json:"telefone"`
	Enviado      bool       `db:"enviado" json:"enviado"`
	EnviadoEm    *time.Time `db:"enviado_em" json:"enviado_em"`
	Itens        []Item     `db:"-" json:"itens,omitempty"`
}

// GroupKey returns the external code or the placeholder label.
func (p Pedido) GroupKey() string {
	if p.Codigo == nil || *p.Codigo == "" {
		return SemCodigo
	}
	return *p.Codigo
}

// Total sums the line totals of the attached items.
func (p Pedido) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range p.Itens {
		total = total.Add(it.Total())
	}
	return total
}

// Recompute derives Enviado/EnviadoEm from a fresh item list.
// It reports whether any of the two fields changed.
func (p *Pedido) Recompute(itens []Item, now time.Time) bool {
	all := len(itens) > 0
	for _, it := range itens {
		if !it.Enviado {
			all = false
			break
		}
	}

	prevEnviado, prevEm := p.Enviado, p.EnviadoEm
	if all {
		p.Enviado = true
		if p.EnviadoEm == nil {
			t := now.UTC().Truncate(time.Second)
			p.EnviadoEm = &t
		}
	} else {
		p.Enviado = false
		p.EnviadoEm = nil
	}
	return prevEnviado != p.Enviado || prevEm != p.EnviadoEm
}

type Item struct {
	ID             int64           `db:"id" json:"id"`
	PedidoID       int64           `db:"pedido_id" json:"pedido_id"`
	SKU            *string         `db:"sku" json:"sku"`
	NomeProduto    string          `db:"nome_produto" json:"nome_produto"`
	Plataforma     Plataforma      `db:"plataforma" json:"plataforma"`
	Quantidade     int             `db:"quantidade" json:"quantidade"`
	PrecoUnitario  decimal.Decimal `db:"preco_unitario" json:"preco_unitario"`
	EmailConta     *string         `db:"email_conta" json:"email_conta"`
	SenhaConta     *string         `db:"senha_conta" json:"senha_conta"`
	NickConta      *string         `db:"nick_conta" json:"nick_conta"`
	CodigoAtivacao *string         `db:"codigo_ativacao" json:"codigo_ativacao"`
	Enviado        bool            `db:"enviado" json:"enviado"`
	EnviadoEm      *time.Time      `db:"enviado_em" json:"enviado_em"`
}

func (i Item) Total() decimal.Decimal {
	return i.PrecoUnitario.Mul(decimal.NewFromInt(int64(i.Quantidade)))
}

// SetEnviado changes the shipped flag and stamps or clears EnviadoEm
// only when the flag actually flips.
func (i *Item) SetEnviado(v bool, now time.Time) {
	if i.Enviado == v {
		return
	}
	i.Enviado = v
	if v {
		t := now.UTC().Truncate(time.Second)
		i.EnviadoEm = &t
	} else {
		i.EnviadoEm = nil
	}
}

// MarshalJSON renders money as numbers and adds total_item.
func (i Item) MarshalJSON() ([]byte, error) {
	type alias Item
	return json.Marshal(struct {
		alias
		PrecoUnitario float64 `json:"preco_unitario"`
		TotalItem     float64 `json:"total_item"`
	}{
		alias:         alias(i),
		PrecoUnitario: i.PrecoUnitario.InexactFloat64(),
		TotalItem:     i.Total().InexactFloat64(),
	})
}

type PedidoCreate struct {
	Codigo       *string `json:"codigo" validate:"omitnil,max=64"`
	Status       string  `json:"status" validate:"required,max=32"`
	DataCriacao  string  `json:"data_criacao" validate:"omitempty,datetime=2006-01-02"`
	ClienteNome  string  `json:"cliente_nome" validate:"max=255"`
	ClienteEmail string  `json:"cliente_email" validate:"required,email"`
	Telefone     *string `json:"telefone" validate:"omitnil,max=64"`
}

// PedidoUpdate is a partial patch; nil fields stay untouched.
type PedidoUpdate struct {
	Codigo       *string `json:"codigo" validate:"omitnil,max=64"`
	Status       *string `json:"status" validate:"omitnil,min=1,max=32"`
	DataCriacao  *string `json:"data_criacao" validate:"omitnil,datetime=2006-01-02"`
	ClienteNome  *string `json:"cliente_nome" validate:"omitnil,max=255"`
	ClienteEmail *string `json:"cliente_email" validate:"omitnil,email"`
	Telefone     *string `json:"telefone" validate:"omitnil,max=64"`
}

func (u PedidoUpdate) Apply(p *Pedido) {
	if u.Codigo != nil {
		p.Codigo = u.Codigo
	}
	if u.Status != nil {
		p.Status = *u.Status
	}
	if u.DataCriacao != nil {
		p.DataCriacao = *u.DataCriacao
	}
	if u.ClienteNome != nil {
		p.ClienteNome = *u.ClienteNome
	}
	if u.ClienteEmail != nil {
		p.ClienteEmail = *u.ClienteEmail
	}
	if u.Telefone != nil {
		p.Telefone = u.Telefone
	}
}

type ItemCreate struct {
	SKU            *string         `json:"sku" validate:"omitnil,max=64"`
	NomeProduto    string          `json:"nome_produto" validate:"max=255"`
	Plataforma     Plataforma      `json:"plataforma" validate:"required,plataforma"`
	Quantidade     int             `json:"quantidade" validate:"min=1"`
	PrecoUnitario  decimal.Decimal `json:"preco_unitario" validate:"gte=0"`
	EmailConta     *string         `json:"email_conta"`
	SenhaConta     *string         `json:"senha_conta"`
	NickConta      *string         `json:"nick_conta"`
	CodigoAtivacao *string         `json:"codigo_ativacao"`
	Enviado        bool            `json:"enviado"`
}

func (c ItemCreate) Item(pedidoID int64, now time.Time) Item {
	it := Item{
		PedidoID:       pedidoID,
		SKU:            c.SKU,
		NomeProduto:    c.NomeProduto,
		Plataforma:     c.Plataforma,
		Quantidade:     c.Quantidade,
		PrecoUnitario:  c.PrecoUnitario,
		EmailConta:     c.EmailConta,
		SenhaConta:     c.SenhaConta,
		NickConta:      c.NickConta,
		CodigoAtivacao: c.CodigoAtivacao,
	}
	it.SetEnviado(c.Enviado, now)
	return it
}

// ItemUpdate is a partial patch; nil fields stay untouched.
type ItemUpdate struct {
	SKU            *string          `json:"sku" validate:"omitnil,max=64"`
	NomeProduto    *string          `json:"nome_produto" validate:"omitnil,max=255"`
	Plataforma     *Plataforma      `json:"plataforma" validate:"omitnil,plataforma"`
	Quantidade     *int             `json:"quantidade" validate:"omitnil,min=1"`
	PrecoUnitario  *decimal.Decimal `json:"preco_unitario" validate:"omitnil,gte=0"`
	EmailConta     *string          `json:"email_conta"`
	SenhaConta     *string          `json:"senha_conta"`
	NickConta      *string          `json:"nick_conta"`
	CodigoAtivacao *string          `json:"codigo_ativacao"`
	Enviado        *bool            `json:"enviado"`
}

func (u ItemUpdate) Apply(it *Item, now time.Time) {
	if u.SKU != nil {
		it.SKU = u.SKU
	}
	if u.NomeProduto != nil {
		it.NomeProduto = *u.NomeProduto
	}
	if u.Plataforma != nil {
		it.Plataforma = *u.Plataforma
	}
	if u.Quantidade != nil {
		it.Quantidade = *u.Quantidade
	}
	if u.PrecoUnitario != nil {
		it.PrecoUnitario = *u.PrecoUnitario
	}
	if u.EmailConta != nil {
		it.EmailConta = u.EmailConta
	}
	if u.SenhaConta != nil {
		it.SenhaConta = u.SenhaConta
	}
	if u.NickConta != nil {
		it.NickConta = u.NickConta
	}
	if u.CodigoAtivacao != nil {
		it.CodigoAtivacao = u.CodigoAtivacao
	}
	if u.Enviado != nil {
		it.SetEnviado(*u.Enviado, now)
	}
}

// VendaCreate creates an order with exactly one item.
type VendaCreate struct {
	PedidoCreate
	ItemCreate
}

type GrupoPedidos struct {
	Codigo       string   `json:"codigo"`
	TotalPedidos int      `json:"total_pedidos"`
	TotalItens   int      `json:"total_itens"`
	ValorTotal   float64  `json:"valor_total"`
	Pedidos      []Pedido `json:"pedidos"`
}
