package requests

// StorePost is the form data for creating or updating a post.
type StorePost struct {
	Title string `form:"title" json:"title" validate:"required,min=3,max=120"`
	Body  string `form:"body"  json:"body"  validate:"required"`
}

// Login is the form data for signing in.
type Login struct {
	Email    string `form:"email"    json:"email"    validate:"required,email"`
	Password string `form:"password" json:"password" validate:"required,min=8"`
}
