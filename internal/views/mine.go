package views

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/petermazzocco/photostockage/internal/backend"
	"github.com/petermazzocco/photostockage/models"
)

// ErrNoUser is the error shown by owner-scoped views without a stored user
// id.
var ErrNoUser = errors.New("User ID not found")

func currentUserID(ctx context.Context, d Deps) (string, error) {
	id := d.Session.Current(ctx).UserID
	if id == "" {
		return "", ErrNoUser
	}
	return id, nil
}

// PhotoEdit is the edit form of one owned photo.
type PhotoEdit struct {
	Photo       models.Photo
	Name        string `form:"name" validate:"required"`
	Description string `form:"description"`
	Status      bool   `form:"status"`
	CategoryID  string `form:"category"`

	Categories []models.Category
	Comments   []CommentView

	currentCategory string
}

var photoEditMessages = messages{"name": "Please enter a name for the photo"}

// MyPhotos lists and edits the signed-in user's photos.
type MyPhotos struct {
	d   Deps
	res *Resource[[]models.Photo]

	mu      sync.Mutex
	editing *PhotoEdit
}

func NewMyPhotos(d Deps) *MyPhotos {
	m := &MyPhotos{d: d}
	m.res = NewResource("my-photos", func(ctx context.Context) ([]models.Photo, error) {
		id, err := currentUserID(ctx, d)
		if err != nil {
			return nil, err
		}
		return d.API.PhotosByUser(ctx, id)
	}, 0, d.Log)
	return m
}

func (m *MyPhotos) Mount(ctx context.Context) error { return m.res.Mount(ctx) }
func (m *MyPhotos) Unmount()                        { m.res.Unmount() }

func (m *MyPhotos) Resource() *Resource[[]models.Photo] { return m.res }

func (m *MyPhotos) Editing() *PhotoEdit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.editing
}

// Edit opens the edit form for a loaded photo with its categories and
// comments. Comment failures leave the list empty.
func (m *MyPhotos) Edit(ctx context.Context, photoID string) (*PhotoEdit, error) {
	var photo *models.Photo
	for _, p := range m.res.Snapshot().Data {
		if p.ID.String() == photoID {
			photo = &p
			break
		}
	}
	if photo == nil {
		return nil, backend.ErrNotFound
	}

	edit := &PhotoEdit{
		Photo:       *photo,
		Name:        photo.Name,
		Description: photo.Description,
		Status:      photo.Status,
	}
	all, current, err := both(ctx, m.d.API.Categories,
		func(ctx context.Context) ([]models.Category, error) { return m.d.API.CategoriesByPhoto(ctx, photoID) })
	if err != nil {
		m.d.Log.Warn().Err(err).Str("photo_id", photoID).Msg("error fetching categories")
	}
	edit.Categories = all
	if len(current) > 0 {
		edit.currentCategory = current[0].ID.String()
		edit.CategoryID = edit.currentCategory
	}

	comments, users, err := both(ctx,
		func(ctx context.Context) ([]models.Comment, error) { return m.d.API.CommentsByPhoto(ctx, photoID) },
		m.d.API.Users)
	if err != nil {
		m.d.Log.Warn().Err(err).Str("photo_id", photoID).Msg("error fetching comments")
	} else {
		edit.Comments = Enrich(comments, users)
	}

	m.mu.Lock()
	m.editing = edit
	m.mu.Unlock()
	return edit, nil
}

// Cancel closes the edit form.
func (m *MyPhotos) Cancel() {
	m.mu.Lock()
	m.editing = nil
	m.mu.Unlock()
}

// Save writes the edited fields. The category is only associated when it
// differs from the one loaded by Edit, since the backend can only add.
func (m *MyPhotos) Save(ctx context.Context, edit *PhotoEdit) error {
	edit.Name = strings.TrimSpace(edit.Name)
	edit.Description = strings.TrimSpace(edit.Description)
	if err := check(edit, photoEditMessages); err != nil {
		return err
	}
	id := edit.Photo.ID.String()
	err := m.d.API.EditPhoto(ctx, id, backend.PhotoInput{
		Name:        edit.Name,
		Description: edit.Description,
		Status:      edit.Status,
	})
	if err != nil {
		m.d.Log.Warn().Err(err).Str("photo_id", id).Msg("error updating photo")
		return err
	}
	if edit.CategoryID != "" && edit.CategoryID != edit.currentCategory {
		if err := m.d.API.AddPhotoCategory(ctx, id, edit.CategoryID); err != nil {
			m.d.Log.Warn().Err(err).Str("photo_id", id).Msg("error updating category")
			return err
		}
		edit.currentCategory = edit.CategoryID
	}
	m.Cancel()
	return m.res.refetch(ctx)
}

func (m *MyPhotos) Delete(ctx context.Context, photoID string) error {
	if !m.d.confirm("Are you sure you want to delete this photo? This action cannot be undone.") {
		return nil
	}
	if err := m.d.API.DeletePhoto(ctx, photoID); err != nil {
		m.d.Log.Warn().Err(err).Str("photo_id", photoID).Msg("error deleting photo")
		return err
	}
	m.Cancel()
	return m.res.refetch(ctx)
}

// MyComments lists and edits the signed-in user's comments.
type MyComments struct {
	d   Deps
	res *Resource[[]models.UserComment]
}

func NewMyComments(d Deps) *MyComments {
	return &MyComments{d: d, res: NewResource("my-comments", func(ctx context.Context) ([]models.UserComment, error) {
		id, err := currentUserID(ctx, d)
		if err != nil {
			return nil, err
		}
		return d.API.CommentsByUser(ctx, id)
	}, 0, d.Log)}
}

func (m *MyComments) Mount(ctx context.Context) error { return m.res.Mount(ctx) }
func (m *MyComments) Unmount()                        { m.res.Unmount() }

func (m *MyComments) Resource() *Resource[[]models.UserComment] { return m.res }

func (m *MyComments) Save(ctx context.Context, commentID, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return FormErrors{"content": "Comment cannot be empty"}
	}
	if err := m.d.API.EditComment(ctx, commentID, content); err != nil {
		m.d.Log.Warn().Err(err).Str("comment_id", commentID).Msg("error updating comment")
		return err
	}
	return m.res.refetch(ctx)
}

func (m *MyComments) Delete(ctx context.Context, commentID string) error {
	if !m.d.confirm("Are you sure you want to delete this comment? This action cannot be undone.") {
		return nil
	}
	if err := m.d.API.DeleteComment(ctx, commentID); err != nil {
		m.d.Log.Warn().Err(err).Str("comment_id", commentID).Msg("error deleting comment")
		return err
	}
	return m.res.refetch(ctx)
}

// PhotoShelf is a read-only list of photos the user touched: likes or
// downloads.
type PhotoShelf struct {
	res *Resource[[]models.Photo]
}

func NewMyLikes(d Deps) *PhotoShelf {
	return newShelf(d, "my-likes", func(ctx context.Context, userID string) ([]models.ID, error) {
		recs, err := d.API.LikesByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		ids := make([]models.ID, len(recs))
		for i, r := range recs {
			ids[i] = r.PhotoID
		}
		return ids, nil
	})
}

func NewMyDownloads(d Deps) *PhotoShelf {
	return newShelf(d, "my-downloads", func(ctx context.Context, userID string) ([]models.ID, error) {
		recs, err := d.API.DownloadsByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		ids := make([]models.ID, len(recs))
		for i, r := range recs {
			ids[i] = r.PhotoID
		}
		return ids, nil
	})
}

func newShelf(d Deps, name string, records func(context.Context, string) ([]models.ID, error)) *PhotoShelf {
	return &PhotoShelf{res: NewResource(name, func(ctx context.Context) ([]models.Photo, error) {
		userID, err := currentUserID(ctx, d)
		if err != nil {
			return nil, err
		}
		ids, err := records(ctx, userID)
		if err != nil {
			return nil, err
		}
		return photosFor(ctx, d, dedupe(ids))
	}, 0, d.Log)}
}

func (s *PhotoShelf) Mount(ctx context.Context) error { return s.res.Mount(ctx) }
func (s *PhotoShelf) Unmount()                        { s.res.Unmount() }

func (s *PhotoShelf) Resource() *Resource[[]models.Photo] { return s.res }

// dedupe keeps the first occurrence of each id. A photo downloaded twice
// is listed once.
func dedupe(ids []models.ID) []models.ID {
	seen := make(map[models.ID]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
