package views

import (
	"context"
	"errors"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/petermazzocco/photostockage/internal/backend"
	"github.com/petermazzocco/photostockage/models"
)

// AllCategories is the filter value for the unscoped gallery.
const AllCategories = "all"

type GalleryData struct {
	Photos     []models.Photo
	Categories []models.Category
}

// Gallery is the photo grid with its category filter.
type Gallery struct {
	d   Deps
	res *Resource[GalleryData]

	mu       sync.Mutex
	category string
}

func NewGallery(d Deps) *Gallery {
	g := &Gallery{d: d, category: AllCategories}
	g.res = NewResource("gallery", g.fetcher(AllCategories), 0, d.Log)
	return g
}

func (g *Gallery) fetcher(category string) Fetcher[GalleryData] {
	photos := g.d.API.Photos
	if category != AllCategories {
		photos = func(ctx context.Context) ([]models.Photo, error) {
			return g.d.API.PhotosByCategory(ctx, category)
		}
	}
	return func(ctx context.Context) (GalleryData, error) {
		ps, cs, err := both(ctx, photos, g.d.API.Categories)
		return GalleryData{Photos: ps, Categories: cs}, err
	}
}

func (g *Gallery) Mount(ctx context.Context) error { return g.res.Mount(ctx) }
func (g *Gallery) Unmount()                        { g.res.Unmount() }

func (g *Gallery) Resource() *Resource[GalleryData] { return g.res }

func (g *Gallery) Category() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.category
}

// SelectCategory re-scopes the grid. The backend does the filtering.
func (g *Gallery) SelectCategory(ctx context.Context, id string) error {
	if id == "" {
		id = AllCategories
	}
	g.mu.Lock()
	g.category = id
	g.mu.Unlock()
	g.res.SetFetcher(g.fetcher(id))
	return g.res.refetch(ctx)
}

type PhotoData struct {
	Photo      models.Photo
	Categories []models.Category
	Owner      *models.User
}

// Category is the first associated category, if any.
func (p PhotoData) Category() *models.Category {
	if len(p.Categories) == 0 {
		return nil
	}
	return &p.Categories[0]
}

// PhotoDetail is the single photo page.
type PhotoDetail struct {
	d     Deps
	id    string
	res   *Resource[PhotoData]
	watch *sessionWatch
}

func NewPhotoDetail(d Deps, photoID string) *PhotoDetail {
	p := &PhotoDetail{d: d, id: photoID, watch: &sessionWatch{session: d.Session}}
	p.res = NewResource("photo", p.load, 0, d.Log)
	return p
}

func (p *PhotoDetail) load(ctx context.Context) (PhotoData, error) {
	photo, cats, err := both(ctx,
		func(ctx context.Context) (*models.Photo, error) { return p.d.API.Photo(ctx, p.id) },
		func(ctx context.Context) ([]models.Category, error) { return p.d.API.CategoriesByPhoto(ctx, p.id) },
	)
	if err != nil {
		return PhotoData{}, err
	}
	data := PhotoData{Photo: *photo, Categories: cats}
	if photo.UserID != "" {
		owner, err := p.d.API.User(ctx, photo.UserID.String())
		if err != nil && !errors.Is(err, backend.ErrNotFound) {
			return PhotoData{}, err
		}
		data.Owner = owner
	}
	return data, nil
}

func (p *PhotoDetail) Mount(ctx context.Context) error {
	p.watch.start(ctx)
	return p.res.Mount(ctx)
}

func (p *PhotoDetail) Unmount() {
	p.watch.stop()
	p.res.Unmount()
}

func (p *PhotoDetail) Resource() *Resource[PhotoData] { return p.res }

// Download records the download for signed-in users, then fetches the
// file. A failed record does not stop the download.
func (p *PhotoDetail) Download(ctx context.Context) (*DownloadedFile, error) {
	snap := p.res.Snapshot()
	if snap.Err != nil || snap.Data.Photo.Path == "" {
		return nil, errors.New("photo not loaded")
	}
	photo := snap.Data.Photo

	if _, ok := p.watch.current(); ok {
		if err := p.d.API.RecordDownload(ctx, photo.ID.String()); err != nil {
			p.d.Log.Warn().Err(err).Str("photo_id", photo.ID.String()).Msg("failed to track download")
		}
	}

	src := p.d.Origin
	if src == nil {
		src = p.d.API
	}
	data, ct, err := src.Raw(ctx, photo.Path)
	if err != nil {
		p.d.Log.Error().Err(err).Str("path", photo.Path).Msg("download failed")
		return nil, err
	}
	return &DownloadedFile{Name: DownloadName(photo), ContentType: ct, Data: data}, nil
}

type DownloadedFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// DownloadName is the photo name with the stored file's extension.
func DownloadName(p models.Photo) string {
	ext := strings.TrimPrefix(path.Ext(p.Path), ".")
	if ext == "" {
		ext = "jpg"
	}
	return p.Name + "." + ext
}

// Likes is the like counter under a photo.
type Likes struct {
	d     Deps
	id    string
	watch *sessionWatch

	mu     sync.Mutex
	counts []models.LikeCount
	liked  bool
	err    error
	busy   bool
	user   string
	life   context.Context

	res *Resource[likeState]
}

type likeState struct {
	Counts []models.LikeCount
	Liked  bool
}

func NewLikes(d Deps, photoID string) *Likes {
	l := &Likes{d: d, id: photoID, watch: &sessionWatch{session: d.Session}}
	l.res = NewResource("likes", l.load, 0, d.Log)
	l.res.OnChange(l.adopt)
	l.watch.onChange(l.sessionChanged)
	return l
}

func (l *Likes) load(ctx context.Context) (likeState, error) {
	counts, err := l.d.API.LikeCounts(ctx, l.id)
	if err != nil {
		return likeState{}, err
	}
	st := likeState{Counts: counts}
	if _, ok := l.watch.current(); ok {
		if st.Liked, err = l.d.API.HasLiked(ctx, l.id); err != nil {
			return likeState{}, err
		}
	}
	return st, nil
}

func (l *Likes) Mount(ctx context.Context) error {
	l.mu.Lock()
	l.life = ctx
	l.mu.Unlock()
	l.watch.start(ctx)
	return l.res.Mount(ctx)
}

// sessionChanged drops the liked flag on logout and recomputes it for
// whoever is signed in now.
func (l *Likes) sessionChanged() {
	sess, ok := l.watch.current()
	user := ""
	if ok {
		user = sess.UserID
	}
	l.mu.Lock()
	if user == l.user {
		l.mu.Unlock()
		return
	}
	l.user = user
	if !ok {
		l.liked = false
	}
	ctx := l.life
	l.mu.Unlock()

	if ctx == nil || !l.res.Mounted() {
		return
	}
	go func() {
		if err := l.res.refetch(ctx); err != nil && !errors.Is(err, ErrNotMounted) {
			l.d.Log.Debug().Err(err).Str("photo_id", l.id).Msg("like status refresh failed")
		}
	}()
}

func (l *Likes) Unmount() {
	l.watch.stop()
	l.res.Unmount()
}

// adopt copies a settled load into the toggle's own fields.
func (l *Likes) adopt() {
	snap := l.res.Snapshot()
	if snap.Loading {
		return
	}
	l.mu.Lock()
	l.counts, l.liked, l.err = snap.Data.Counts, snap.Data.Liked, snap.Err
	l.mu.Unlock()
}

func (l *Likes) Label() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return LikeLabel(l.counts)
}

func (l *Likes) Liked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.liked
}

func (l *Likes) Loading() bool { return l.res.Snapshot().Loading }

func (l *Likes) Message() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err == nil {
		return ""
	}
	return l.err.Error()
}

// Toggle likes or unlikes. Signed-out users are sent to the login view and
// nothing is sent to the backend. On success only the count is refetched.
func (l *Likes) Toggle(ctx context.Context) error {
	if _, ok := l.watch.current(); !ok {
		l.d.navigate(RouteLogin)
		return nil
	}

	l.mu.Lock()
	if l.busy {
		l.mu.Unlock()
		return nil
	}
	l.busy = true
	liked := l.liked
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.busy = false
		l.mu.Unlock()
	}()

	var err error
	if liked {
		err = l.d.API.Unlike(ctx, l.id)
	} else {
		err = l.d.API.Like(ctx, l.id)
	}
	var counts []models.LikeCount
	if err == nil {
		counts, err = l.d.API.LikeCounts(ctx, l.id)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.err = err
		l.d.Log.Warn().Err(err).Str("photo_id", l.id).Msg("like toggle failed")
		return err
	}
	l.counts = counts
	l.liked = !liked
	l.err = nil
	return nil
}

// CommentRefresh is how often an open comment list is reloaded.
const CommentRefresh = 5 * time.Second

// Comments is the live comment list under a photo.
type Comments struct {
	d     Deps
	id    string
	res   *Resource[[]CommentView]
	watch *sessionWatch
}

func NewComments(d Deps, photoID string) *Comments {
	return newComments(d, photoID, CommentRefresh)
}

func newComments(d Deps, photoID string, refresh time.Duration) *Comments {
	c := &Comments{d: d, id: photoID, watch: &sessionWatch{session: d.Session}}
	c.res = NewResource("comments", c.load, refresh, d.Log)
	return c
}

func (c *Comments) load(ctx context.Context) ([]CommentView, error) {
	comments, users, err := both(ctx,
		func(ctx context.Context) ([]models.Comment, error) { return c.d.API.CommentsByPhoto(ctx, c.id) },
		c.d.API.Users,
	)
	if err != nil {
		return nil, err
	}
	return Enrich(comments, users), nil
}

func (c *Comments) Mount(ctx context.Context) error {
	c.watch.start(ctx)
	return c.res.Mount(ctx)
}

func (c *Comments) Unmount() {
	c.watch.stop()
	c.res.Unmount()
}

func (c *Comments) Resource() *Resource[[]CommentView] { return c.res }

// CanComment is false while signed out and whenever the list failed to load.
func (c *Comments) CanComment() bool {
	if _, ok := c.watch.current(); !ok {
		return false
	}
	snap := c.res.Snapshot()
	return snap.Err == nil && !snap.Loading
}

// Submit posts a comment and reloads the list.
func (c *Comments) Submit(ctx context.Context, content string) error {
	if _, ok := c.watch.current(); !ok {
		c.d.navigate(RouteLogin)
		return nil
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return FormErrors{"content": "Comment cannot be empty"}
	}
	if err := c.d.API.AddComment(ctx, c.id, content); err != nil {
		c.d.Log.Warn().Err(err).Str("photo_id", c.id).Msg("comment submit failed")
		return err
	}
	return c.res.refetch(ctx)
}
