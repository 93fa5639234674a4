package backend

import (
	"context"
	"net/http"

	"github.com/petermazzocco/photostockage/models"
)

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	UserIcon string `json:"user_icon"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UpdateUserRequest struct {
	Username string `json:"username"`
	UserIcon string `json:"user_icon"`
}

type ChangePasswordRequest struct {
	Email           string `json:"email"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type PhotoInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Path        string `json:"path,omitempty"`
	Status      bool   `json:"status"`
}

type CategoryInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type created struct {
	ID models.ID `json:"id"`
}

func getList[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var out []T
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ---- user ----

func (c *Client) Register(ctx context.Context, in RegisterRequest) error {
	return c.do(ctx, http.MethodPost, "user/register", in, nil)
}

// Login returns the session token. The backend also sets its session cookie
// on the jar.
func (c *Client) Login(ctx context.Context, in LoginRequest) (string, error) {
	var out struct {
		Token   string `json:"token"`
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "user/login", in, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		msg := out.Message
		if msg == "" {
			msg = "Login failed"
		}
		return "", &HTTPError{Method: http.MethodPost, Path: "user/login", Status: http.StatusOK, Message: msg}
	}
	return out.Token, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "user/logout", struct{}{}, nil)
}

// User fetches one public profile. The backend answers with a one element
// array.
func (c *Client) User(ctx context.Context, id string) (*models.User, error) {
	var users []models.User
	if err := c.do(ctx, http.MethodGet, "user/user/"+seg(id), nil, &users); err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, ErrNotFound
	}
	return &users[0], nil
}

func (c *Client) Users(ctx context.Context) ([]models.User, error) {
	return getList[models.User](ctx, c, "user/users")
}

func (c *Client) UpdateUser(ctx context.Context, id string, in UpdateUserRequest) error {
	return c.do(ctx, http.MethodPut, "user/changeuser/"+seg(id), in, nil)
}

func (c *Client) ChangePassword(ctx context.Context, in ChangePasswordRequest) error {
	return c.do(ctx, http.MethodPut, "user/changepass", in, nil)
}

func (c *Client) DeleteUser(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodDelete, "user/delete/"+seg(email), nil, nil)
}

// ---- photos ----

func (c *Client) Photos(ctx context.Context) ([]models.Photo, error) {
	return getList[models.Photo](ctx, c, "photos/photos")
}

func (c *Client) Photo(ctx context.Context, id string) (*models.Photo, error) {
	var p models.Photo
	if err := c.do(ctx, http.MethodGet, "photos/photo/"+seg(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) PhotosByUser(ctx context.Context, userID string) ([]models.Photo, error) {
	return getList[models.Photo](ctx, c, "photos/photos/user/"+seg(userID))
}

// AdminPhotos lists every photo, hidden ones included.
func (c *Client) AdminPhotos(ctx context.Context) ([]models.Photo, error) {
	return getList[models.Photo](ctx, c, "photos/admin")
}

func (c *Client) AddPhoto(ctx context.Context, in PhotoInput) (models.ID, error) {
	var out created
	if err := c.do(ctx, http.MethodPost, "photos/add_photo", in, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) EditPhoto(ctx context.Context, id string, in PhotoInput) error {
	return c.do(ctx, http.MethodPut, "photos/edit/"+seg(id), in, nil)
}

func (c *Client) DeletePhoto(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "photos/delete/"+seg(id), nil, nil)
}

// ---- comments ----

func (c *Client) CommentsByPhoto(ctx context.Context, photoID string) ([]models.Comment, error) {
	return getList[models.Comment](ctx, c, "comments/photo/"+seg(photoID))
}

func (c *Client) CommentsByUser(ctx context.Context, userID string) ([]models.UserComment, error) {
	return getList[models.UserComment](ctx, c, "comments/user/"+seg(userID))
}

// Comments lists every comment for moderation.
func (c *Client) Comments(ctx context.Context) ([]models.Comment, error) {
	return getList[models.Comment](ctx, c, "comments")
}

func (c *Client) AddComment(ctx context.Context, photoID, content string) error {
	return c.do(ctx, http.MethodPost, "comments/add/"+seg(photoID), map[string]string{"content": content}, nil)
}

func (c *Client) EditComment(ctx context.Context, id, content string) error {
	return c.do(ctx, http.MethodPut, "comments/edit/"+seg(id), map[string]string{"content": content}, nil)
}

func (c *Client) DeleteComment(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "comments/delete/"+seg(id), nil, nil)
}

// ---- likes ----

func (c *Client) LikeCounts(ctx context.Context, photoID string) ([]models.LikeCount, error) {
	return getList[models.LikeCount](ctx, c, "likes/likes/"+seg(photoID))
}

func (c *Client) HasLiked(ctx context.Context, photoID string) (bool, error) {
	var st models.LikeStatus
	if err := c.do(ctx, http.MethodGet, "likes/check/"+seg(photoID), nil, &st); err != nil {
		return false, err
	}
	return st.HasLiked, nil
}

func (c *Client) Like(ctx context.Context, photoID string) error {
	return c.do(ctx, http.MethodPost, "likes/like/"+seg(photoID), nil, nil)
}

func (c *Client) Unlike(ctx context.Context, photoID string) error {
	return c.do(ctx, http.MethodDelete, "likes/like/"+seg(photoID), nil, nil)
}

func (c *Client) LikesByUser(ctx context.Context, userID string) ([]models.LikeRecord, error) {
	return getList[models.LikeRecord](ctx, c, "likes/user/"+seg(userID))
}

// ---- downloads ----

func (c *Client) RecordDownload(ctx context.Context, photoID string) error {
	return c.do(ctx, http.MethodPost, "downloads/download/"+seg(photoID), nil, nil)
}

func (c *Client) DownloadsByUser(ctx context.Context, userID string) ([]models.DownloadRecord, error) {
	return getList[models.DownloadRecord](ctx, c, "downloads/user/"+seg(userID))
}

// ---- categories ----

func (c *Client) Categories(ctx context.Context) ([]models.Category, error) {
	return getList[models.Category](ctx, c, "categories")
}

func (c *Client) AddCategory(ctx context.Context, in CategoryInput) error {
	return c.do(ctx, http.MethodPost, "categories", in, nil)
}

func (c *Client) EditCategory(ctx context.Context, id string, in CategoryInput) error {
	return c.do(ctx, http.MethodPut, "categories/edit/"+seg(id), in, nil)
}

func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "categories/delete/"+seg(id), nil, nil)
}

// ---- photos_categories ----

// AddPhotoCategory associates a photo with a category. The backend offers
// no remove or replace call.
func (c *Client) AddPhotoCategory(ctx context.Context, photoID, categoryID string) error {
	body := models.PhotoCategory{PhotoID: models.ID(photoID), CategoryID: models.ID(categoryID)}
	return c.do(ctx, http.MethodPost, "photos_categories/add", body, nil)
}

func (c *Client) PhotosByCategory(ctx context.Context, categoryID string) ([]models.Photo, error) {
	return getList[models.Photo](ctx, c, "photos_categories/category/"+seg(categoryID))
}

func (c *Client) CategoriesByPhoto(ctx context.Context, photoID string) ([]models.Category, error) {
	return getList[models.Category](ctx, c, "photos_categories/photo/"+seg(photoID))
}
