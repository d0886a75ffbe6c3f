package handlers

import (
	"net/http"

	"github.com/dmitrymomot/keel"
	"github.com/dmitrymomot/keel/example/requests"
)

// AuthHandler signs users in with a fixed demo account.
type AuthHandler struct {
	email    string
	password string
}

func NewAuthHandler(email, password string) *AuthHandler {
	return &AuthHandler{email: email, password: password}
}

func (h *AuthHandler) Routes(r keel.Router) {
	r.Group(keel.GroupAttributes{Middleware: []string{"web"}}, func(r keel.Router) {
		r.GET("/login", h.form).SetName("login").Middleware("guest")
		r.POST("/login", h.login).Middleware("guest", "throttle:5,1")
		r.POST("/logout", h.logout).SetName("logout").Middleware("auth")
	})
}

func (h *AuthHandler) form(c keel.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"_token": c.CSRFToken()})
}

func (h *AuthHandler) login(c keel.Context) error {
	var req requests.Login
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.Email != h.email || req.Password != h.password {
		return keel.NewValidationError(keel.ValidationErrors{
			"email": {"These credentials do not match our records."},
		})
	}
	if err := c.Login(req.Email); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/posts")
}

func (h *AuthHandler) logout(c keel.Context) error {
	if err := c.Logout(); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/")
}
