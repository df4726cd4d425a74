package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/geoworld/engine/internal/core/ecs"
	"github.com/jackc/pgx/v5"
)

// Pool kinds as stored in id_pools.kind.
const (
	PoolGeometry = "geometry"
)

// PoolRepo persists identifier pool counters so ids stay unique across
// restarts.
type PoolRepo struct {
	db *DB
}

func NewPoolRepo(db *DB) *PoolRepo {
	return &PoolRepo{db: db}
}

type poolState struct {
	next      uint64
	exhausted bool
}

func (r *PoolRepo) load(ctx context.Context, kind string) (poolState, bool, error) {
	var (
		next int64
		st   poolState
	)
	err := r.db.Pool.QueryRow(ctx,
		`SELECT next_value, exhausted FROM id_pools WHERE kind = $1`, kind,
	).Scan(&next, &st.exhausted)
	if errors.Is(err, pgx.ErrNoRows) {
		return st, false, nil
	}
	if err != nil {
		return st, false, fmt.Errorf("load pool %s: %w", kind, err)
	}
	st.next = fromDB(next)
	return st, true, nil
}

func (r *PoolRepo) save(ctx context.Context, kind string, st poolState) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO id_pools (kind, next_value, exhausted) VALUES ($1, $2, $3)
		 ON CONFLICT (kind) DO UPDATE SET next_value = EXCLUDED.next_value, exhausted = EXCLUDED.exhausted`,
		kind, toDB(st.next), st.exhausted,
	)
	if err != nil {
		return fmt.Errorf("save pool %s: %w", kind, err)
	}
	return nil
}

// LoadPool restores the pool stored under kind. When none is stored it returns
// fallback.
func LoadPool[T ecs.ID[T]](ctx context.Context, r *PoolRepo, kind string, fallback *ecs.Pool[T]) (*ecs.Pool[T], error) {
	st, ok, err := r.load(ctx, kind)
	if err != nil {
		return nil, err
	}
	switch {
	case !ok:
		return fallback, nil
	case st.exhausted:
		return ecs.NewExhaustedPool[T](), nil
	default:
		return ecs.NewPoolFrom(T(st.next)), nil
	}
}

// SavePool stores the counter of p under kind.
func SavePool[T ecs.ID[T]](ctx context.Context, r *PoolRepo, kind string, p *ecs.Pool[T]) error {
	next, ok := p.Peek()
	return r.save(ctx, kind, poolState{next: uint64(next), exhausted: !ok})
}
