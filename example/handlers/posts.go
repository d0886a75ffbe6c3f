package handlers

import (
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dmitrymomot/keel"
	"github.com/dmitrymomot/keel/example/requests"
	"github.com/dmitrymomot/keel/pkg/id"
	"github.com/dmitrymomot/keel/pkg/sanitizer"
)

// Post is a blog post owned by a user.
type Post struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
}

// PostStore keeps posts in memory.
type PostStore struct {
	posts map[string]*Post
	mu    sync.RWMutex
}

func NewPostStore() *PostStore {
	return &PostStore{posts: make(map[string]*Post)}
}

// Find resolves the "post" route parameter.
func (s *PostStore) Find(_ keel.Context, value, _ string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[value]
	if !ok {
		return nil, keel.ErrModelNotFound
	}
	return p, nil
}

func (s *PostStore) all() []*Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Post, 0, len(s.posts))
	for _, p := range s.posts {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *Post) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out
}

func (s *PostStore) save(p *Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[p.ID] = p
}

func (s *PostStore) delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.posts, id)
}

// PostHandler exposes posts as a resource. Writes require a signed-in user,
// updates and deletes require the "update-post" ability.
type PostHandler struct {
	store *PostStore
}

func NewPostHandler(store *PostStore) *PostHandler {
	return &PostHandler{store: store}
}

func (h *PostHandler) Routes(r keel.Router) {
	r.Group(keel.GroupAttributes{Prefix: "/api", Name: "api.", Middleware: []string{"api", "throttle:api"}}, func(r keel.Router) {
		r.APIResource("posts", h, keel.ResourceOnly(keel.ActionIndex, keel.ActionShow))
	})

	r.Group(keel.GroupAttributes{Middleware: []string{"web"}}, func(r keel.Router) {
		r.Resource("posts", h, keel.ResourceExcept(keel.ActionCreate, keel.ActionEdit))
	})
}

func (h *PostHandler) Index(c keel.Context) error {
	return c.JSON(http.StatusOK, h.store.all())
}

func (h *PostHandler) Show(c keel.Context) error {
	post, _ := keel.Model[*Post](c, "post")
	return c.JSON(http.StatusOK, post)
}

func (h *PostHandler) Store(c keel.Context) error {
	if _, err := c.Authenticate(); err != nil {
		return err
	}
	var req requests.StorePost
	if err := c.Bind(&req); err != nil {
		return err
	}

	post := &Post{
		ID:        id.NewULID(),
		AuthorID:  c.UserID(),
		Title:     sanitizer.Text(req.Title),
		Body:      sanitizer.HTML(req.Body),
		CreatedAt: time.Now(),
	}
	h.store.save(post)
	c.LogInfo("post created", "post_id", post.ID)

	if c.WantsJSON() {
		return c.JSON(http.StatusCreated, post)
	}
	return c.RedirectRoute("posts.show", map[string]string{"post": post.ID})
}

func (h *PostHandler) Update(c keel.Context) error {
	post, _ := keel.Model[*Post](c, "post")
	if err := c.Authorize("update-post", post); err != nil {
		return err
	}
	var req requests.StorePost
	if err := c.Bind(&req); err != nil {
		return err
	}

	updated := *post
	updated.Title = sanitizer.Text(req.Title)
	updated.Body = sanitizer.HTML(req.Body)
	h.store.save(&updated)
	return c.JSON(http.StatusOK, &updated)
}

func (h *PostHandler) Destroy(c keel.Context) error {
	post, _ := keel.Model[*Post](c, "post")
	if err := c.Authorize("update-post", post); err != nil {
		return err
	}
	h.store.delete(post.ID)
	return c.NoContent(http.StatusNoContent)
}

// CanUpdatePost lets authors change their own posts.
func CanUpdatePost(_ keel.Context, user *keel.Identity, args ...any) bool {
	if len(args) == 0 {
		return false
	}
	post, ok := args[0].(*Post)
	return ok && strings.EqualFold(post.AuthorID, user.ID)
}
