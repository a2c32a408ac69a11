package server

import (
	"context"

	docmerge "github.com/avela/go-docmerge"
)

// PooledRenderer adapts a RendererPool to the PDFRenderer interface,
// checking one renderer out per request so a browser instance is never
// shared mid-render.
type PooledRenderer struct {
	pool *docmerge.RendererPool
}

// Compile-time interface check.
var _ PDFRenderer = (*PooledRenderer)(nil)

// NewPooledRenderer wraps the given pool.
func NewPooledRenderer(pool *docmerge.RendererPool) *PooledRenderer {
	return &PooledRenderer{pool: pool}
}

// Render acquires a renderer, renders, and returns it to the pool.
func (p *PooledRenderer) Render(ctx context.Context, markdown string) ([]byte, error) {
	r := p.pool.Acquire()
	defer p.pool.Release(r)
	return r.Render(ctx, markdown)
}
