package internal

import (
	"bytes"
	"context"
	"maps"
	"net/http"
	"sync"
)

// RunBuffered runs h on its own goroutine against a copy of c whose request
// context is ctx and whose response is held in memory.
//
// When h returns first, the request state it changed, its AfterResponse
// callbacks and the buffered response are applied to c, and its error is
// returned. When ctx is done first, the buffer is discarded, later writes
// by h fail with http.ErrHandlerTimeout, and ctx.Err() is returned. Nothing
// h does after that reaches c. A panic in h is re-raised on the calling
// goroutine.
func RunBuffered(ctx context.Context, c Context, h HandlerFunc) error {
	rc, ok := c.(*requestContext)
	if !ok {
		return h(c)
	}

	buf := newBufferedResponse(rc.response.Header())
	forked := rc.fork(ctx, buf)

	done := make(chan error, 1)
	panicked := make(chan any, 1)
	go func() {
		defer func() {
			if v := recover(); v != nil {
				panicked <- v
			}
		}()
		done <- h(forked)
	}()

	select {
	case v := <-panicked:
		panic(v)
	case err := <-done:
		rc.adopt(forked)
		if werr := buf.copyTo(rc.response); werr != nil && err == nil {
			err = werr
		}
		return err
	case <-ctx.Done():
		buf.discard()
		return ctx.Err()
	}
}

// bufferedResponse is an http.ResponseWriter kept in memory. Once
// discarded, writes fail with http.ErrHandlerTimeout.
type bufferedResponse struct {
	header    http.Header
	body      bytes.Buffer
	code      int
	mu        sync.Mutex
	wrote     bool
	discarded bool
}

func newBufferedResponse(header http.Header) *bufferedResponse {
	return &bufferedResponse{header: header.Clone(), code: http.StatusOK}
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(code int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.discarded || b.wrote {
		return
	}
	b.wrote = true
	b.code = code
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.discarded {
		return 0, http.ErrHandlerTimeout
	}
	b.wrote = true
	return b.body.Write(p)
}

func (b *bufferedResponse) discard() {
	b.mu.Lock()
	b.discarded = true
	b.mu.Unlock()
}

// copyTo replaces w's headers with the buffered ones and writes the status
// and body when anything was written.
func (b *bufferedResponse) copyTo(w http.ResponseWriter) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	dst := w.Header()
	clear(dst)
	maps.Copy(dst, b.header)
	if !b.wrote {
		return nil
	}
	w.WriteHeader(b.code)
	_, err := w.Write(b.body.Bytes())
	return err
}
