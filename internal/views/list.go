package views

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/petermazzocco/photostockage/models"
)

// Pager slices an in-memory collection into fixed size pages. Pages are
// numbered from 1.
type Pager struct {
	size int
	page int
	n    int
}

func NewPager(size int) *Pager {
	if size < 1 {
		size = 1
	}
	return &Pager{size: size, page: 1}
}

// SetTotal records the collection size after a load. The current page is
// pulled back inside the new bounds.
func (p *Pager) SetTotal(n int) {
	p.n = n
	if last := max(p.TotalPages(), 1); p.page > last {
		p.page = last
	}
}

func (p *Pager) TotalPages() int { return (p.n + p.size - 1) / p.size }

func (p *Pager) Page() int     { return p.page }
func (p *Pager) PageSize() int { return p.size }

func (p *Pager) HasPrev() bool { return p.page > 1 }
func (p *Pager) HasNext() bool { return p.page < p.TotalPages() }

// Goto moves to page and reports whether it was in range. Out of range
// pages leave the pager untouched.
func (p *Pager) Goto(page int) bool {
	if page < 1 || page > p.TotalPages() {
		return false
	}
	p.page = page
	return true
}

func (p *Pager) Next() bool { return p.Goto(p.page + 1) }
func (p *Pager) Prev() bool { return p.Goto(p.page - 1) }

// Bounds is the half-open index range of the current page.
func (p *Pager) Bounds() (start, end int) {
	start = min((p.page-1)*p.size, p.n)
	end = min(p.page*p.size, p.n)
	return start, end
}

// PageOf returns the current page of items.
func PageOf[T any](p *Pager, items []T) []T {
	p.SetTotal(len(items))
	start, end := p.Bounds()
	return items[start:end]
}

// LikeLabel renders the aggregate like count. Only the exact string "1" is
// singular.
func LikeLabel(counts []models.LikeCount) string {
	n := "0"
	if len(counts) > 0 && counts[0].Count != "" {
		n = counts[0].Count
	}
	if n == "1" {
		return "1 Like"
	}
	return n + " Likes"
}

// Placeholders for comment authors missing from the user list.
const UnknownUser = "Unknown User"

// CommentView is a comment joined with its author.
type CommentView struct {
	models.Comment
	Username string
	UserIcon string
	Email    string
}

// Enrich joins comments with users by id. Unmatched authors get the
// placeholders.
func Enrich(comments []models.Comment, users []models.User) []CommentView {
	byID := make(map[models.ID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	out := make([]CommentView, 0, len(comments))
	for _, c := range comments {
		v := CommentView{Comment: c, Username: UnknownUser}
		if u, ok := byID[c.UserID]; ok {
			if u.Username != "" {
				v.Username = u.Username
			}
			v.UserIcon = u.UserIcon
			v.Email = u.Email
		}
		out = append(out, v)
	}
	return out
}

// both runs two independent fetches and returns when the slower one is done.
// The first error cancels the other call.
func both[A, B any](ctx context.Context, fa func(context.Context) (A, error), fb func(context.Context) (B, error)) (A, B, error) {
	var (
		a A
		b B
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		a, err = fa(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		b, err = fb(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		var za A
		var zb B
		return za, zb, err
	}
	return a, b, nil
}

// photosFor fetches each referenced photo. Photos that fail to load are
// skipped.
func photosFor(ctx context.Context, d Deps, ids []models.ID) ([]models.Photo, error) {
	photos := make([]*models.Photo, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, id := range ids {
		g.Go(func() error {
			p, err := d.API.Photo(gctx, id.String())
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				d.Log.Debug().Err(err).Str("photo_id", id.String()).Msg("photo lookup failed")
				return nil
			}
			photos[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load photos: %w", err)
	}
	out := make([]models.Photo, 0, len(photos))
	for _, p := range photos {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}
