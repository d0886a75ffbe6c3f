package internal

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResponseWriter_WriteHeader(t *testing.T) {
	w := httptest.NewRecorder()
	rw := NewResponseWriter(w)

	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusOK) // ignored

	if rw.Status() != http.StatusNotFound {
		t.Errorf("Status() = %d, want %d", rw.Status(), http.StatusNotFound)
	}
	if w.Code != http.StatusNotFound {
		t.Errorf("underlying status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if !rw.Written() {
		t.Error("Written() = false, want true")
	}
}

func TestResponseWriter_Write(t *testing.T) {
	w := httptest.NewRecorder()
	rw := NewResponseWriter(w)

	n, err := rw.Write([]byte("hello world"))
	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if n != 11 || rw.Size() != 11 {
		t.Errorf("Write() = %d, Size() = %d, want 11", n, rw.Size())
	}
	if w.Code != http.StatusOK {
		t.Errorf("implicit status = %d, want 200", w.Code)
	}
	if w.Body.String() != "hello world" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestResponseWriter_OnBeforeWrite(t *testing.T) {
	w := httptest.NewRecorder()
	rw := NewResponseWriter(w)

	var order []int
	rw.OnBeforeWrite(func() { order = append(order, 1) })
	rw.OnBeforeWrite(func() {
		order = append(order, 2)
		rw.Header().Set("Set-Cookie", "sid=abc")
	})

	rw.WriteHeader(http.StatusCreated)
	_, _ = rw.Write([]byte("data"))

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("hooks ran %v, want [1 2] once", order)
	}
	if got := w.Header().Get("Set-Cookie"); got != "sid=abc" {
		t.Errorf("header set in hook = %q, want it flushed with the status", got)
	}
}

func TestResponseWriter_OnBeforeWrite_FirstWrite(t *testing.T) {
	w := httptest.NewRecorder()
	rw := NewResponseWriter(w)

	var called bool
	rw.OnBeforeWrite(func() { called = true })
	_, _ = rw.Write([]byte("data"))

	if !called {
		t.Error("hook was not called on Write")
	}
}

func TestResponseWriter_Flush(t *testing.T) {
	w := httptest.NewRecorder()
	rw := NewResponseWriter(w)

	rw.Flush()

	if !w.Flushed {
		t.Error("underlying flusher not called")
	}
	if rw.Unwrap() != w {
		t.Error("Unwrap() did not return underlying writer")
	}
}

func TestResponseWriter_FlushRunsHooks(t *testing.T) {
	w := httptest.NewRecorder()
	rw := NewResponseWriter(w)

	var called bool
	rw.OnBeforeWrite(func() { called = true })
	rw.Flush()

	if !called {
		t.Error("hook was not called before Flush")
	}
	if !rw.Written() {
		t.Error("Written() = false after Flush")
	}
}
