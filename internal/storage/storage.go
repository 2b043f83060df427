package storage

import (
	"context"
	"errors"
	"time"

	"github.com/antonminaichev/zion-orders/internal/types/pedido"
)

var (
	ErrPedidoNotFound = errors.New("pedido não encontrado")
	ErrItemNotFound   = errors.New("item não encontrado")
)

// ItemTx описывает операции над позициями одного заказа внутри транзакции,
// которая удерживает блокировку строки заказа.
type ItemTx interface {
	// Pedido возвращает заказ, прочитанный под блокировкой.
	Pedido() *pedido.Pedido
	Item(ctx context.Context, itemID int64) (*pedido.Item, error)
	// Itens всегда перечитывает позиции из БД.
	Itens(ctx context.Context) ([]pedido.Item, error)
	InsertItem(ctx context.Context, it *pedido.Item) error
	SaveItem(ctx context.Context, it *pedido.Item) error
	DeleteItem(ctx context.Context, itemID int64) error
	SaveEnviado(ctx context.Context, enviado bool, enviadoEm *time.Time) error
}

// PedidoRepository отвечает за заказы.
type PedidoRepository interface {
	CreatePedido(ctx context.Context, p *pedido.Pedido) error
	GetPedido(ctx context.Context, id int64) (*pedido.Pedido, error)
	ListPedidos(ctx context.Context, limit, offset int) ([]pedido.Pedido, error)
	SavePedido(ctx context.Context, p *pedido.Pedido) error
	DeletePedido(ctx context.Context, id int64) error
	// ListPedidosComItens возвращает заказы с позициями в порядке создания.
	ListPedidosComItens(ctx context.Context, codigo string) ([]pedido.Pedido, error)
	SetStatusByRef(ctx context.Context, ref string, status string) (RefMatch, error)
}

// RefMatch сообщает, сколько заказов обновлено и найдены ли они по codigo.
type RefMatch struct {
	Updated  int64
	ByCodigo bool
}

// ItemRepository отвечает за позиции заказов.
type ItemRepository interface {
	ListItens(ctx context.Context, pedidoID int64) ([]pedido.Item, error)
	PedidoIDForItem(ctx context.Context, itemID int64) (int64, error)
	// WithPedidoLock выполняет fn в транзакции под блокировкой заказа.
	WithPedidoLock(ctx context.Context, pedidoID int64, fn func(tx ItemTx) error) error
}

// Storage объединяет все репозитории.
type Storage interface {
	PedidoRepository
	ItemRepository

	// Для управления соединением
	Ping(ctx context.Context) error
	Close() error
}
