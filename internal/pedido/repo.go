package pedido

import "github.com/antonminaichev/zion-orders/internal/storage"

type Repository interface {
	storage.PedidoRepository
	storage.ItemRepository
}
