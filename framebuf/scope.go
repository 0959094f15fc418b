package framebuf

import "errors"

// Scope groups buffers acquired from a Pool so they can be released together.
//
// A Scope is owned by one goroutine. The usual pattern is:
//
//	scope := pool.Scope()
//	defer scope.Close()
//	tmp, err := scope.Acquire(w, h, framebuf.FormatRGBA32Float)
type Scope struct {
	pool   *Pool
	bufs   []*Buffer
	closed bool
}

// Acquire acquires a temporary buffer owned by the scope.
func (s *Scope) Acquire(width, height int, format Format) (*Buffer, error) {
	if s.closed {
		return nil, ErrScopeClosed
	}
	buf, err := s.pool.Acquire(width, height, format)
	if err != nil {
		return nil, err
	}
	s.bufs = append(s.bufs, buf)
	return buf, nil
}

// AcquireLike acquires a buffer with the same shape as ref.
func (s *Scope) AcquireLike(ref *Buffer) (*Buffer, error) {
	return s.Acquire(ref.width, ref.height, ref.format)
}

// Len returns the number of buffers held by the scope.
func (s *Scope) Len() int { return len(s.bufs) }

// Close releases every buffer acquired through the scope, in reverse order.
// All buffers are released even if some releases fail; the errors are joined.
// Close is safe to call multiple times.
func (s *Scope) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var errs []error
	for i := len(s.bufs) - 1; i >= 0; i-- {
		if err := s.pool.Release(s.bufs[i]); err != nil {
			errs = append(errs, err)
		}
	}
	s.bufs = nil
	return errors.Join(errs...)
}
