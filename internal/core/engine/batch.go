package engine

import (
	"context"
)

// BatchItemResult is the outcome for one item of a batch operation. Items
// are attempted independently; a failure never rolls back earlier
// successes.
type BatchItemResult struct {
	ID  string
	Err error
}

// BatchCursor is a restartable bulk operation. Each Step processes one
// bounded chunk and then yields, so the host scheduler decides when to
// resume; other public calls may interleave between steps and callers must
// not assume atomicity across the whole batch.
type BatchCursor struct {
	engine  *Engine
	add     []EntitySpec
	remove  []string
	next    int
	results []BatchItemResult
}

// NewAddBatch prepares a bulk insert. No entity is touched until Step runs.
func (e *Engine) NewAddBatch(specs []EntitySpec) *BatchCursor {
	return &BatchCursor{
		engine:  e,
		add:     specs,
		results: make([]BatchItemResult, 0, len(specs)),
	}
}

// NewRemoveBatch prepares a bulk removal.
func (e *Engine) NewRemoveBatch(ids []string) *BatchCursor {
	return &BatchCursor{
		engine:  e,
		remove:  ids,
		results: make([]BatchItemResult, 0, len(ids)),
	}
}

// Step processes up to the engine's batch chunk size and reports whether
// the batch is finished. Cancellation is honored between chunks, never
// inside one.
func (c *BatchCursor) Step(ctx context.Context) (bool, error) {
	if c.Done() {
		return true, ErrBatchExhausted
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return false, err
		}
	}

	chunk := c.engine.cfg.BatchChunkSize
	for i := 0; i < chunk && !c.Done(); i++ {
		if c.add != nil {
			spec := c.add[c.next]
			c.results = append(c.results, BatchItemResult{ID: spec.ID, Err: c.engine.AddEntity(spec)})
		} else {
			id := c.remove[c.next]
			c.results = append(c.results, BatchItemResult{ID: id, Err: c.engine.RemoveEntity(id)})
		}
		c.next++
	}
	return c.Done(), nil
}

// Run drives the cursor to completion, checking ctx between chunks.
func (c *BatchCursor) Run(ctx context.Context) error {
	for !c.Done() {
		if _, err := c.Step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Done reports whether every item has been attempted.
func (c *BatchCursor) Done() bool {
	return c.next >= len(c.add)+len(c.remove)
}

// Remaining returns the number of unattempted items.
func (c *BatchCursor) Remaining() int {
	return len(c.add) + len(c.remove) - c.next
}

// Results returns the per-item outcomes attempted so far, in input order.
func (c *BatchCursor) Results() []BatchItemResult {
	return c.results
}

// AddEntitiesBatch is the convenience form of NewAddBatch + Run: every item
// is attempted, partial failure does not roll back successes, and the
// per-item results are returned. A cancellation error still returns the
// results gathered so far.
func (e *Engine) AddEntitiesBatch(ctx context.Context, specs []EntitySpec) ([]BatchItemResult, error) {
	cur := e.NewAddBatch(specs)
	err := cur.Run(ctx)
	return cur.Results(), err
}

// RemoveEntitiesBatch is the convenience form of NewRemoveBatch + Run.
func (e *Engine) RemoveEntitiesBatch(ctx context.Context, ids []string) ([]BatchItemResult, error) {
	cur := e.NewRemoveBatch(ids)
	err := cur.Run(ctx)
	return cur.Results(), err
}
