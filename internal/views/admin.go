package views

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/petermazzocco/photostockage/internal/backend"
	"github.com/petermazzocco/photostockage/models"
)

// Page sizes of the moderation tables.
const (
	AdminPhotosPerPage   = 12
	AdminUsersPerPage    = 10
	AdminCommentsPerPage = 10
)

// Table is a paginated moderation list.
type Table[T any] struct {
	res *Resource[[]T]

	mu    sync.Mutex
	pager *Pager
}

func newTable[T any](name string, size int, fetch Fetcher[[]T], d Deps) *Table[T] {
	t := &Table[T]{res: NewResource(name, fetch, 0, d.Log), pager: NewPager(size)}
	t.res.OnChange(func() {
		n := len(t.res.Snapshot().Data)
		t.mu.Lock()
		t.pager.SetTotal(n)
		t.mu.Unlock()
	})
	return t
}

func (t *Table[T]) Mount(ctx context.Context) error { return t.res.Mount(ctx) }
func (t *Table[T]) Unmount()                        { t.res.Unmount() }

func (t *Table[T]) Resource() *Resource[[]T] { return t.res }

// Rows is the current page.
func (t *Table[T]) Rows() []T {
	items := t.res.Snapshot().Data
	t.mu.Lock()
	defer t.mu.Unlock()
	return PageOf(t.pager, items)
}

func (t *Table[T]) Page() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pager.Page()
}

func (t *Table[T]) TotalPages() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pager.TotalPages()
}

func (t *Table[T]) HasNext() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pager.HasNext()
}

func (t *Table[T]) HasPrev() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pager.HasPrev()
}

func (t *Table[T]) Goto(page int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pager.Goto(page)
}

func (t *Table[T]) Next() bool { return t.Goto(t.Page() + 1) }
func (t *Table[T]) Prev() bool { return t.Goto(t.Page() - 1) }

// AdminPhotos moderates every photo, hidden ones included.
type AdminPhotos struct {
	*Table[models.Photo]
	d Deps
}

func NewAdminPhotos(d Deps) *AdminPhotos {
	return &AdminPhotos{Table: newTable("admin-photos", AdminPhotosPerPage, d.API.AdminPhotos, d), d: d}
}

func (a *AdminPhotos) Delete(ctx context.Context, photoID string) error {
	if !a.d.confirm("Are you sure you want to delete this photo?") {
		return nil
	}
	if err := a.d.API.DeletePhoto(ctx, photoID); err != nil {
		a.d.Log.Warn().Err(err).Str("photo_id", photoID).Msg("failed to delete photo")
		return err
	}
	return a.res.refetch(ctx)
}

// AdminUsers moderates accounts.
type AdminUsers struct {
	*Table[models.User]
	d Deps
}

func NewAdminUsers(d Deps) *AdminUsers {
	return &AdminUsers{Table: newTable("admin-users", AdminUsersPerPage, d.API.Users, d), d: d}
}

// currentEmail reads the admin's own email from the backend token cookie,
// falling back to the loaded user list.
func (a *AdminUsers) currentEmail(ctx context.Context) string {
	for _, c := range a.d.API.Cookies() {
		if c.Name != "token" {
			continue
		}
		if claims, err := backend.ParseToken(c.Value); err == nil && claims.Email != "" {
			return claims.Email
		}
	}
	id := a.d.Session.Current(ctx).UserID
	for _, u := range a.res.Snapshot().Data {
		if id != "" && u.ID.String() == id {
			return u.Email
		}
	}
	return ""
}

// Delete removes an account by email. Deleting one's own account also ends
// the session and leaves the dashboard.
func (a *AdminUsers) Delete(ctx context.Context, email string) error {
	own := strings.EqualFold(email, a.currentEmail(ctx))
	prompt := fmt.Sprintf("Are you sure you want to delete the user: %s?", email)
	if own {
		prompt = "Are you sure you want to delete your own admin account? This will log you out."
	}
	if !a.d.confirm(prompt) {
		return nil
	}
	if err := a.d.API.DeleteUser(ctx, email); err != nil {
		a.d.Log.Warn().Err(err).Str("email", email).Msg("failed to delete user")
		return err
	}
	if own {
		if err := a.d.Session.Logout(ctx); err != nil {
			return err
		}
		a.d.navigate(RouteLogin)
		return nil
	}
	return a.res.refetch(ctx)
}

// ModeratedComment is a comment with its photo and author.
type ModeratedComment struct {
	models.Comment
	Photo *models.Photo
	User  *models.User
}

func (m ModeratedComment) Username() string {
	if m.User == nil || m.User.Username == "" {
		return UnknownUser
	}
	return m.User.Username
}

// AdminComments moderates every comment.
type AdminComments struct {
	*Table[ModeratedComment]
	d Deps
}

func NewAdminComments(d Deps) *AdminComments {
	a := &AdminComments{d: d}
	a.Table = newTable("admin-comments", AdminCommentsPerPage, a.load, d)
	return a
}

func (a *AdminComments) load(ctx context.Context) ([]ModeratedComment, error) {
	comments, err := a.d.API.Comments(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ModeratedComment, len(comments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, c := range comments {
		out[i].Comment = c
		g.Go(func() error {
			photo, user, err := both(gctx,
				func(ctx context.Context) (*models.Photo, error) { return a.d.API.Photo(ctx, c.PhotoID.String()) },
				func(ctx context.Context) (*models.User, error) { return a.d.API.User(ctx, c.UserID.String()) },
			)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				a.d.Log.Debug().Err(err).Str("comment_id", c.ID.String()).Msg("comment details missing")
				return nil
			}
			out[i].Photo, out[i].User = photo, user
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *AdminComments) Delete(ctx context.Context, commentID string) error {
	if !a.d.confirm("Are you sure you want to delete this comment?") {
		return nil
	}
	if err := a.d.API.DeleteComment(ctx, commentID); err != nil {
		a.d.Log.Warn().Err(err).Str("comment_id", commentID).Msg("failed to delete comment")
		return err
	}
	return a.res.refetch(ctx)
}

// CategoryForm adds a category when ID is empty and edits it otherwise.
type CategoryForm struct {
	ID          string
	Name        string `form:"name" validate:"required"`
	Description string `form:"description" validate:"required"`
}

// ErrCategoryIncomplete is the single message shown for a partial form.
var ErrCategoryIncomplete = errors.New("Name and description are required")

// Categories is the category editor.
type Categories struct {
	d   Deps
	res *Resource[[]models.Category]
}

func NewCategories(d Deps) *Categories {
	return &Categories{d: d, res: NewResource("categories", d.API.Categories, 0, d.Log)}
}

func (c *Categories) Mount(ctx context.Context) error { return c.res.Mount(ctx) }
func (c *Categories) Unmount()                        { c.res.Unmount() }

func (c *Categories) Resource() *Resource[[]models.Category] { return c.res }

func (c *Categories) Save(ctx context.Context, form CategoryForm) error {
	form.Name = strings.TrimSpace(form.Name)
	form.Description = strings.TrimSpace(form.Description)
	if err := check(form, nil); err != nil {
		if asFormErrors(err) != nil {
			return ErrCategoryIncomplete
		}
		return err
	}
	in := backend.CategoryInput{Name: form.Name, Description: form.Description}
	var err error
	if form.ID == "" {
		err = c.d.API.AddCategory(ctx, in)
	} else {
		err = c.d.API.EditCategory(ctx, form.ID, in)
	}
	if err != nil {
		c.d.Log.Warn().Err(err).Str("category_id", form.ID).Msg("failed to save category")
		return err
	}
	return c.res.refetch(ctx)
}

func (c *Categories) Delete(ctx context.Context, categoryID string) error {
	if !c.d.confirm("Are you sure you want to delete this category?") {
		return nil
	}
	if err := c.d.API.DeleteCategory(ctx, categoryID); err != nil {
		c.d.Log.Warn().Err(err).Str("category_id", categoryID).Msg("failed to delete category")
		return err
	}
	return c.res.refetch(ctx)
}
