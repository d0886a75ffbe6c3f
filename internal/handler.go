package internal

import "context"

// Handler declares routes on a router.
//
// Example:
//
//	type PhotoHandler struct {
//	    repo *repository.Queries
//	}
//
//	func (h *PhotoHandler) Routes(r keel.Router) {
//	    r.GET("/photos", h.index).SetName("photos.index")
//	    r.POST("/photos", h.store).Middleware("auth")
//	}
type Handler interface {
	Routes(r Router)
}

// HandlerFunc is the signature for route handlers.
// It receives a Context and returns an error.
// Returning a non-nil error hands the error to the exception handler.
type HandlerFunc func(c Context) error

// Middleware wraps a HandlerFunc to add cross-cutting concerns.
// Middleware can inspect/modify the request, short-circuit processing,
// or wrap the response.
//
// Example:
//
//	func Admin(next keel.HandlerFunc) keel.HandlerFunc {
//	    return func(c keel.Context) error {
//	        if !c.Can("admin") {
//	            return keel.ErrForbidden("admins only")
//	        }
//	        return next(c)
//	    }
//	}
type Middleware func(next HandlerFunc) HandlerFunc

// ErrorHandler handles errors returned from handlers.
// It replaces the built-in exception handler entirely.
type ErrorHandler func(Context, error) error

// Reporter receives errors the exception handler decided to report.
type Reporter func(ctx context.Context, err error)
