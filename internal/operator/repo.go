package operator

import (
	"context"

	"github.com/antonminaichev/zion-orders/internal/types/operator"
)

type Repository interface {
	FindByLogin(ctx context.Context, login string) (*operator.Operator, error)
}

// StaticRepository serves the operators configured through the environment.
type StaticRepository struct {
	operators map[string]operator.Operator
}

func NewStaticRepository(ops ...operator.Operator) *StaticRepository {
	r := &StaticRepository{operators: make(map[string]operator.Operator, len(ops))}
	for _, op := range ops {
		if op.Login == "" || op.PasswordHash == "" {
			continue
		}
		r.operators[op.Login] = op
	}
	return r
}

func (r *StaticRepository) FindByLogin(ctx context.Context, login string) (*operator.Operator, error) {
	op, ok := r.operators[login]
	if !ok {
		return nil, ErrOperatorNotFound
	}
	return &op, nil
}
