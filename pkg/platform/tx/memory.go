package tx

import (
	"context"
	"sync"
	"time"

	dErrors "trustscore/pkg/domain-errors"
)

// numShards spreads unrelated entities over independent locks so that only
// units touching the same entity serialize.
const numShards = 128

// MemoryRunner is the in-memory counterpart of SQLRunner. Units sharing a shard
// key run one at a time. Memory stores stage their writes on the unit and
// publish them through OnCommit, so nothing a unit writes is visible outside it
// until fn has returned without error.
type MemoryRunner struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

func NewMemoryRunner() *MemoryRunner {
	return &MemoryRunner{timeout: DefaultTimeout}
}

func (r *MemoryRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := unitFrom(ctx); ok {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	shard := &r.shards[hashKey(shardKeyFrom(ctx))%numShards]
	shard.Lock()
	defer shard.Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	u := &unit{values: make(map[any]any)}
	if err := fn(context.WithValue(ctx, unitKey{}, u)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	u.commit()
	return nil
}

type unitKey struct{}

type unit struct {
	mu      sync.Mutex
	values  map[any]any
	publish []func()
}

// commit runs the publish funcs in registration order. It is called with the
// shard lock held, so units on the same key publish in the order they ran.
func (u *unit) commit() {
	u.mu.Lock()
	publish := u.publish
	u.publish = nil
	u.mu.Unlock()
	for _, fn := range publish {
		fn()
	}
}

func unitFrom(ctx context.Context) (*unit, bool) {
	u, ok := ctx.Value(unitKey{}).(*unit)
	return u, ok
}

// OnCommit registers fn to run once the unit commits. A failed unit drops it.
// Outside a unit there is nothing to wait for and OnCommit reports false; the
// caller applies its write directly.
func OnCommit(ctx context.Context, fn func()) bool {
	u, ok := unitFrom(ctx)
	if !ok {
		return false
	}
	u.mu.Lock()
	u.publish = append(u.publish, fn)
	u.mu.Unlock()
	return true
}

// UnitValue returns the value stored under key for the current unit, calling
// init to create it on first use. init runs under the unit's lock and must not
// call back into this package. ok is false outside a unit.
func UnitValue(ctx context.Context, key any, init func() any) (v any, ok bool) {
	u, ok := unitFrom(ctx)
	if !ok {
		return nil, false
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	v, found := u.values[key]
	if !found {
		v = init()
		u.values[key] = v
	}
	return v, true
}

// hashKey is FNV-1a.
func hashKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
