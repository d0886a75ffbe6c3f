package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/keel/pkg/sanitizer"
	"github.com/dmitrymomot/keel/pkg/session"
)

// errorBody is the JSON shape of rendered errors.
type errorBody struct {
	Errors    map[string][]string `json:"errors,omitempty"`
	Message   string              `json:"message"`
	ErrorCode string              `json:"code,omitempty"`
	RequestID string              `json:"request_id,omitempty"`
	Exception []string            `json:"exception,omitempty"`
}

// handleError turns err into a response. A custom ErrorHandler replaces the
// built-in behavior entirely.
func (a *App) handleError(c Context, err error) {
	if err == nil {
		return
	}
	if c.Written() {
		a.report(c, err)
		return
	}
	if a.errorHandler != nil {
		if herr := a.errorHandler(c, err); herr != nil {
			c.LogError("error handler failed", slog.Any("error", herr), slog.Any("original", err))
			if !c.Written() {
				http.Error(c.Response(), http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}
		return
	}

	a.report(c, err)
	if a.redirectForError(c, err) {
		return
	}
	a.render(c, err)
}

// report logs server errors and hands them to registered reporters.
// Client errors (4xx) are expected and never reported.
func (a *App) report(c Context, err error) {
	he := ToHTTPError(err)
	if he.Code < http.StatusInternalServerError {
		return
	}

	r := c.Request()
	c.LogError("unhandled error",
		slog.Any("error", err),
		slog.Int("status", he.Code),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("route", c.RouteName()),
	)
	for _, rep := range a.reporters {
		rep(c, err)
	}
}

// redirectForError handles the errors that HTML clients receive as
// redirects. It returns false when the regular error page should render.
func (a *App) redirectForError(c Context, err error) bool {
	if c.WantsJSON() {
		return false
	}

	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		target := authErr.RedirectTo
		if target == "" {
			if !a.routes.HasName("login") {
				return false
			}
			u, uerr := a.urls.Route("login", nil)
			if uerr != nil {
				return false
			}
			target = u
		}
		r := c.Request()
		if r.Method == http.MethodGet && !isAjax(r) && a.sessionManager != nil {
			_ = c.SetSessionValue(session.KeyIntendedURL, r.URL.RequestURI())
		}
		_ = c.Redirect(http.StatusFound, target)
		return true
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		if a.sessionManager == nil {
			return false
		}
		sess, serr := c.Session()
		if serr != nil {
			return false
		}
		sess.Flash(session.KeyErrors, map[string][]string(valErr.Errors))
		input := valErr.Input
		if input == nil {
			input = formInput(c.Request())
		}
		sess.FlashInput(input)

		target := valErr.RedirectTo
		if target == "" {
			if rc, ok := c.(*requestContext); ok {
				target = rc.previousURL("/")
			} else {
				target = "/"
			}
		}
		_ = c.Redirect(http.StatusFound, target)
		return true
	}

	return false
}

func (a *App) render(c Context, err error) {
	he := ToHTTPError(err)
	if he.RequestID == "" {
		he.RequestID = c.Response().Header().Get("X-Request-ID")
	}
	for name, values := range he.Headers {
		c.Response().Header()[name] = values
	}

	message := he.Message
	if a.debug && he.Code >= http.StatusInternalServerError && he.Err != nil {
		message = he.Err.Error()
	}

	if c.WantsJSON() {
		body := errorBody{
			Message:   message,
			Errors:    he.Errors,
			ErrorCode: he.ErrorCode,
			RequestID: he.RequestID,
		}
		if a.debug {
			body.Exception = errorChain(err)
		}
		if jerr := c.JSON(he.Code, body); jerr != nil {
			c.LogError("failed to write error response", slog.Any("error", jerr))
		}
		return
	}

	var chain []string
	if a.debug {
		chain = errorChain(err)
	}
	if rerr := c.Render(he.Code, errorPage(he, message, chain)); rerr != nil {
		c.LogError("failed to render error page", slog.Any("error", rerr))
	}
}

// errorChain lists the messages of err and everything it wraps.
func errorChain(err error) []string {
	var out []string
	for err != nil && len(out) < 16 {
		out = append(out, fmt.Sprintf("%T: %s", err, err.Error()))
		err = errors.Unwrap(err)
	}
	return out
}

func errorTitle(he *HTTPError) string {
	if he.Title != "" {
		return he.Title
	}
	if t := http.StatusText(he.Code); t != "" {
		return t
	}
	return "Error"
}

const errorPageStyle = "body{font-family:system-ui,sans-serif;color:#1f2937;display:flex;justify-content:center;padding:10vh 1rem}" +
	"main{max-width:40rem}h1{font-size:1.25rem}small{color:#6b7280}pre{background:#f3f4f6;padding:1rem;overflow:auto}"

// errorPage is the minimal built-in HTML error page.
func errorPage(he *HTTPError, message string, chain []string) templ.Component {
	heading := strconv.Itoa(he.Code) + " " + errorTitle(he)
	return templ.Join(
		templ.Raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`+
			`<meta name="viewport" content="width=device-width, initial-scale=1">`),
		element("title", heading),
		templ.Raw("<style>"+errorPageStyle+"</style></head><body><main>"),
		element("h1", strconv.Itoa(he.Code)+" | "+errorTitle(he)),
		element("p", message),
		errorDetail(he.Detail),
		fieldErrors(he.Errors),
		requestIDNote(he.RequestID),
		errorChainBlock(chain),
		templ.Raw("</main></body></html>"),
	)
}

// element renders escaped text inside a tag.
func element(tag, text string) templ.Component {
	return templ.Raw("<" + tag + ">" + templ.EscapeString(text) + "</" + tag + ">")
}

// errorDetail renders the detail as sanitized HTML.
func errorDetail(detail string) templ.Component {
	if detail == "" {
		return templ.NopComponent
	}
	return templ.Raw("<div>" + sanitizer.HTML(detail) + "</div>")
}

// fieldErrors lists validation messages, fields in name order.
func fieldErrors(errs map[string][]string) templ.Component {
	if len(errs) == 0 {
		return templ.NopComponent
	}
	var b strings.Builder
	b.WriteString("<ul>")
	for _, field := range slices.Sorted(maps.Keys(errs)) {
		for _, msg := range errs[field] {
			b.WriteString("<li><strong>" + templ.EscapeString(field) + "</strong>: " + templ.EscapeString(msg) + "</li>")
		}
	}
	b.WriteString("</ul>")
	return templ.Raw(b.String())
}

func requestIDNote(requestID string) templ.Component {
	if requestID == "" {
		return templ.NopComponent
	}
	return templ.Raw("<p><small>Request ID: " + templ.EscapeString(requestID) + "</small></p>")
}

func errorChainBlock(chain []string) templ.Component {
	if len(chain) == 0 {
		return templ.NopComponent
	}
	var b strings.Builder
	b.WriteString("<pre>")
	for _, line := range chain {
		b.WriteString(templ.EscapeString(sanitizer.Text(line)) + "\n")
	}
	b.WriteString("</pre>")
	return templ.Raw(b.String())
}
