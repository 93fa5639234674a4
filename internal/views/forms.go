package views

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/petermazzocco/photostockage/internal/auth"
	"github.com/petermazzocco/photostockage/internal/backend"
	"github.com/petermazzocco/photostockage/internal/upload"
	"github.com/petermazzocco/photostockage/models"
)

// Credentials is the login form.
type Credentials struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
}

var loginMessages = messages{
	"email.required":    "Email field cannot be empty",
	"email.email":       "Please enter a valid email address",
	"password.required": "Password field cannot be empty",
}

// LoginForm signs the user in and starts the 30 day session.
type LoginForm struct {
	d Deps
}

func NewLoginForm(d Deps) *LoginForm { return &LoginForm{d: d} }

// Mount sends signed-in users home.
func (f *LoginForm) Mount(ctx context.Context) {
	if f.d.Session.IsAuthenticated(ctx) {
		f.d.navigate(RouteHome)
	}
}

func (f *LoginForm) Submit(ctx context.Context, in Credentials) error {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Password = strings.TrimSpace(in.Password)
	if err := check(in, loginMessages); err != nil {
		return err
	}

	token, err := f.d.API.Login(ctx, backend.LoginRequest{Email: in.Email, Password: in.Password})
	if err != nil {
		f.d.Log.Warn().Err(err).Msg("login error")
		return err
	}
	claims, err := backend.ParseToken(token)
	if err != nil {
		return err
	}
	user, err := f.d.API.User(ctx, claims.UserID)
	if err != nil {
		return err
	}

	level := auth.AccessUser
	if claims.Admin {
		level = auth.AccessAdmin
	}
	sess := auth.NewSession(claims.UserID, level, user.UserIcon, f.d.Session.Now())
	if err := f.d.Session.Login(ctx, sess); err != nil {
		return err
	}
	f.d.navigate(RouteHome)
	return nil
}

// Registration is the sign-up form. Avatar is optional.
type Registration struct {
	Username        string       `form:"username" validate:"required,min=3"`
	Email           string       `form:"email" validate:"required,email"`
	Password        string       `form:"password" validate:"required,min=6"`
	ConfirmPassword string       `form:"confirmPassword" validate:"required,eqfield=Password"`
	Avatar          *upload.File `form:"user_icon" validate:"-"`
}

var registerMessages = messages{
	"username.required":        "Username is required",
	"username.min":             "Username must be at least 3 characters long",
	"email.required":           "Email is required",
	"email.email":              "Please enter a valid email address",
	"password.required":        "Password is required",
	"password.min":             "Password must be at least 6 characters long",
	"confirmPassword.required": "Please confirm your password",
	"confirmPassword.eqfield":  "Passwords do not match",
}

type RegisterForm struct {
	d Deps
}

func NewRegisterForm(d Deps) *RegisterForm { return &RegisterForm{d: d} }

// Submit uploads the avatar, when one was picked, then creates the
// account.
func (f *RegisterForm) Submit(ctx context.Context, in Registration) error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	errs := asFormErrors(check(in, registerMessages))
	if errs == nil {
		errs = FormErrors{}
	}
	if in.Avatar != nil {
		if err := upload.Validate(in.Avatar); err != nil {
			errs["user_icon"] = err.Error()
		}
	}
	if len(errs) > 0 {
		return errs
	}

	register := func(ctx context.Context, icon string) error {
		return f.d.API.Register(ctx, backend.RegisterRequest{
			Username: in.Username,
			Email:    in.Email,
			Password: in.Password,
			UserIcon: icon,
		})
	}
	var err error
	if in.Avatar != nil {
		_, err = f.d.Uploads.Run(ctx, in.Avatar, register)
	} else {
		err = register(ctx, "")
	}
	if err != nil {
		f.d.Log.Warn().Err(err).Msg("registration error")
		return err
	}
	return nil
}

// Contact is the contact form.
type Contact struct {
	Name    string `form:"name" validate:"required"`
	Email   string `form:"email" validate:"required,email"`
	Message string `form:"message" validate:"required"`
}

// ErrContactFailed is shown whatever the cause.
var ErrContactFailed = errors.New("Failed to send message. Please try again.")

type ContactForm struct {
	d Deps
}

func NewContactForm(d Deps) *ContactForm { return &ContactForm{d: d} }

func (f *ContactForm) Submit(ctx context.Context, in Contact) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if err := check(in, nil); err != nil {
		return err
	}
	err := f.d.Origin.SendContact(ctx, backend.ContactMessage{Name: in.Name, Email: in.Email, Message: in.Message})
	if err != nil {
		f.d.Log.Warn().Err(err).Msg("contact form failed")
		return ErrContactFailed
	}
	return nil
}

// NewPhoto is the add-photo form.
type NewPhoto struct {
	Name        string       `form:"name" validate:"required"`
	Description string       `form:"description"`
	CategoryID  string       `form:"category"`
	File        *upload.File `form:"file" validate:"-"`
}

var newPhotoMessages = messages{"name": "Please enter a name for the photo"}

// AddPhoto uploads a new photo and files it under a category.
type AddPhoto struct {
	d   Deps
	res *Resource[[]models.Category]

	mu     sync.Mutex
	failed *upload.RecordError
	retry  upload.RecordFunc
}

func NewAddPhoto(d Deps) *AddPhoto {
	return &AddPhoto{d: d, res: NewResource("add-photo-categories", d.API.Categories, 0, d.Log)}
}

func (a *AddPhoto) Mount(ctx context.Context) error { return a.res.Mount(ctx) }
func (a *AddPhoto) Unmount()                        { a.res.Unmount() }

func (a *AddPhoto) Categories() []models.Category { return a.res.Snapshot().Data }

// Submit validates everything before any request, then runs the upload
// pipeline. The record step creates the photo and adds the category.
func (a *AddPhoto) Submit(ctx context.Context, in NewPhoto) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	errs := FormErrors{}
	if err := upload.Validate(in.File); err != nil {
		errs["file"] = err.Error()
	}
	if fe := asFormErrors(check(in, newPhotoMessages)); fe != nil {
		for k, v := range fe {
			errs[k] = v
		}
	}
	if len(errs) > 0 {
		return errs
	}

	record := func(ctx context.Context, path string) error {
		id, err := a.d.API.AddPhoto(ctx, backend.PhotoInput{
			Name:        in.Name,
			Description: in.Description,
			Path:        path,
			Status:      true,
		})
		if err != nil {
			return err
		}
		if in.CategoryID == "" {
			return nil
		}
		return a.d.API.AddPhotoCategory(ctx, id.String(), in.CategoryID)
	}

	_, err := a.d.Uploads.Run(ctx, in.File, record)
	a.mu.Lock()
	defer a.mu.Unlock()
	var rerr *upload.RecordError
	if errors.As(err, &rerr) && !rerr.Reclaimed {
		a.failed, a.retry = rerr, record
	} else {
		a.failed, a.retry = nil, nil
	}
	if err != nil {
		a.d.Log.Warn().Err(err).Msg("error uploading photo")
	}
	return err
}

// CanRetry reports a stored file whose record write failed.
func (a *AddPhoto) CanRetry() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failed != nil
}

// Retry re-runs only the record step of the last failed Submit.
func (a *AddPhoto) Retry(ctx context.Context) error {
	a.mu.Lock()
	failed, record := a.failed, a.retry
	a.mu.Unlock()
	if failed == nil {
		return nil
	}
	if err := a.d.Uploads.Retry(ctx, failed, record); err != nil {
		return err
	}
	a.mu.Lock()
	a.failed, a.retry = nil, nil
	a.mu.Unlock()
	return nil
}

// Profile is the account form. Avatar is optional.
type Profile struct {
	Username string       `form:"username" validate:"required"`
	Avatar   *upload.File `form:"user_icon" validate:"-"`
}

// PasswordChange is the password form.
type PasswordChange struct {
	Current string `form:"oldPassword" validate:"required"`
	New     string `form:"newPassword" validate:"required,min=6"`
	Confirm string `form:"confirmPassword" validate:"required,eqfield=New"`
}

var (
	profileMessages  = messages{"username": "Username is required"}
	passwordMessages = messages{
		"oldPassword.required":     "Current password is required",
		"newPassword.required":     "New password is required",
		"newPassword.min":          "Password must be at least 6 characters",
		"confirmPassword.required": "Please confirm your new password",
		"confirmPassword.eqfield":  "Passwords do not match",
	}
)

const (
	MsgProfileUpdated  = "Profile updated successfully!"
	MsgPasswordChanged = "Password changed successfully!"
)

// ErrProfileUpdate is shown for any failed profile update.
var ErrProfileUpdate = errors.New("Failed to update profile")

// Account is the signed-in user's own account page.
type Account struct {
	d   Deps
	res *Resource[*models.User]
}

func NewAccount(d Deps) *Account {
	return &Account{d: d, res: NewResource("account", func(ctx context.Context) (*models.User, error) {
		id, err := currentUserID(ctx, d)
		if err != nil {
			return nil, err
		}
		return d.API.User(ctx, id)
	}, 0, d.Log)}
}

func (a *Account) Mount(ctx context.Context) error { return a.res.Mount(ctx) }
func (a *Account) Unmount()                        { a.res.Unmount() }

func (a *Account) Resource() *Resource[*models.User] { return a.res }

func (a *Account) user() (*models.User, error) {
	snap := a.res.Snapshot()
	if snap.Err != nil {
		return nil, snap.Err
	}
	if snap.Data == nil {
		return nil, errors.New("account not loaded")
	}
	return snap.Data, nil
}

// UpdateProfile renames the user and optionally replaces the avatar. The
// new icon is published to every mounted view.
func (a *Account) UpdateProfile(ctx context.Context, in Profile) error {
	in.Username = strings.TrimSpace(in.Username)
	if err := check(in, profileMessages); err != nil {
		return err
	}
	if in.Avatar != nil {
		if err := upload.Validate(in.Avatar); err != nil {
			return FormErrors{"user_icon": err.Error()}
		}
	}
	u, err := a.user()
	if err != nil {
		return err
	}

	icon := u.UserIcon
	record := func(ctx context.Context, path string) error {
		icon = path
		return a.d.API.UpdateUser(ctx, u.ID.String(), backend.UpdateUserRequest{Username: in.Username, UserIcon: path})
	}
	if in.Avatar != nil {
		_, err = a.d.Uploads.Run(ctx, in.Avatar, record)
	} else {
		err = record(ctx, icon)
	}
	if err != nil {
		a.d.Log.Warn().Err(err).Msg("profile update failed")
		return ErrProfileUpdate
	}
	if err := a.d.Session.SetUserIcon(ctx, icon); err != nil {
		return err
	}
	return a.res.refetch(ctx)
}

func (a *Account) ChangePassword(ctx context.Context, in PasswordChange) error {
	if err := check(in, passwordMessages); err != nil {
		return err
	}
	u, err := a.user()
	if err != nil {
		return err
	}
	err = a.d.API.ChangePassword(ctx, backend.ChangePasswordRequest{
		Email:           u.Email,
		CurrentPassword: in.Current,
		NewPassword:     in.New,
	})
	if err != nil {
		a.d.Log.Warn().Err(err).Msg("password change failed")
		return err
	}
	return nil
}

// DeleteAccount removes the account and ends the session.
func (a *Account) DeleteAccount(ctx context.Context) error {
	if !a.d.confirm("Are you sure you want to delete your account? This action cannot be undone.") {
		return nil
	}
	u, err := a.user()
	if err != nil {
		return err
	}
	if err := a.d.API.DeleteUser(ctx, u.Email); err != nil {
		a.d.Log.Error().Err(err).Msg("error deleting account")
		return err
	}
	if err := a.d.Session.Logout(ctx); err != nil {
		return err
	}
	a.d.navigate(RouteHome)
	return nil
}
