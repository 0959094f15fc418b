package framebuf

import (
	"fmt"
	"sync"

	"github.com/gogpu/screenfx"
)

// Pool hands out buffers and takes them back for reuse.
//
// Pool groups released buffers by dimensions and format so identically-sized
// requests reuse storage. It tracks every buffer it has handed out and not yet
// taken back; Outstanding reports that count, and Release rejects buffers the
// pool does not consider outstanding.
//
// Thread safety: all methods are safe for concurrent use.
type Pool struct {
	mu             sync.Mutex
	buckets        map[poolKey][]*Buffer
	live           map[*Buffer]struct{}
	maxPerBucket   int
	maxOutstanding int
	allocated      int
}

// poolKey identifies a bucket of interchangeable buffers.
type poolKey struct {
	width  int
	height int
	format Format
}

// PoolOption configures a Pool.
type PoolOption func(*poolOptions)

type poolOptions struct {
	maxPerBucket   int
	maxOutstanding int
}

// WithMaxPerBucket limits how many released buffers of each size and format
// are retained. Zero means unlimited.
func WithMaxPerBucket(n int) PoolOption {
	return func(o *poolOptions) {
		o.maxPerBucket = n
	}
}

// WithMaxOutstanding limits how many buffers may be acquired and not yet
// released at once. Acquiring past the limit fails with ErrPoolExhausted.
// Zero means unlimited.
func WithMaxOutstanding(n int) PoolOption {
	return func(o *poolOptions) {
		o.maxOutstanding = n
	}
}

// NewPool creates an empty pool.
func NewPool(opts ...PoolOption) *Pool {
	o := poolOptions{maxPerBucket: 8}
	for _, opt := range opts {
		opt(&o)
	}
	return &Pool{
		buckets:        make(map[poolKey][]*Buffer),
		live:           make(map[*Buffer]struct{}),
		maxPerBucket:   o.maxPerBucket,
		maxOutstanding: o.maxOutstanding,
	}
}

// Acquire returns a zeroed temporary buffer with the given shape.
func (p *Pool) Acquire(width, height int, format Format) (*Buffer, error) {
	return p.acquire(width, height, format, Temporary)
}

// AcquirePersistent returns a zeroed buffer meant to outlive the frame.
// It counts as outstanding until released.
func (p *Pool) AcquirePersistent(width, height int, format Format) (*Buffer, error) {
	return p.acquire(width, height, format, Persistent)
}

func (p *Pool) acquire(width, height int, format Format, lifetime Lifetime) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if !format.IsValid() {
		return nil, ErrInvalidFormat
	}
	key := poolKey{width: width, height: height, format: format}

	p.mu.Lock()
	if p.maxOutstanding > 0 && len(p.live) >= p.maxOutstanding {
		n := len(p.live)
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %d buffers outstanding", ErrPoolExhausted, n)
	}

	var buf *Buffer
	if bucket := p.buckets[key]; len(bucket) > 0 {
		buf = bucket[len(bucket)-1]
		p.buckets[key] = bucket[:len(bucket)-1]
	} else {
		buf = &Buffer{
			data:     make([]float32, width*height*format.Channels()),
			width:    width,
			height:   height,
			channels: format.Channels(),
			format:   format,
			owner:    p,
		}
		p.allocated++
	}
	buf.lifetime = lifetime
	p.live[buf] = struct{}{}
	p.mu.Unlock()

	screenfx.Logger().Debug("framebuf: acquire",
		"width", width, "height", height, "format", format, "lifetime", lifetime)
	return buf, nil
}

// Release returns buf to the pool. Releasing nil is a no-op.
// Releasing a buffer that is not outstanding in this pool fails with
// ErrForeignBuffer and leaves the pool unchanged.
func (p *Pool) Release(buf *Buffer) error {
	if buf == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.live[buf]; !ok || buf.owner != p {
		return ErrForeignBuffer
	}
	delete(p.live, buf)

	buf.Clear()
	key := poolKey{width: buf.width, height: buf.height, format: buf.format}
	bucket := p.buckets[key]
	if p.maxPerBucket > 0 && len(bucket) >= p.maxPerBucket {
		return nil
	}
	p.buckets[key] = append(bucket, buf)
	return nil
}

// Outstanding returns how many buffers are acquired and not yet released.
func (p *Pool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

// Allocated returns how many distinct buffers the pool has ever created.
func (p *Pool) Allocated() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocated
}

// Idle returns how many released buffers are retained for reuse.
func (p *Pool) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.buckets {
		n += len(b)
	}
	return n
}

// Scope starts a scoped acquisition. Every buffer acquired through the scope
// is released when the scope is closed.
func (p *Pool) Scope() *Scope {
	return &Scope{pool: p}
}
