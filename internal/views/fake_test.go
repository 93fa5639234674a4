package views

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/petermazzocco/photostockage/internal/auth"
	"github.com/petermazzocco/photostockage/internal/backend"
	"github.com/petermazzocco/photostockage/internal/upload"
	"github.com/petermazzocco/photostockage/models"
)

// fakeAPI is an in-memory stand-in for the REST backend and the
// same-origin server.
type fakeAPI struct {
	mu         sync.Mutex
	calls      []string
	users      []models.User
	photos     []models.Photo
	comments   []models.Comment
	categories []models.Category
	photoCats  map[string][]string
	likes      map[string]int
	liked      map[string]bool
	downloads  []models.DownloadRecord
	uploads    []string
	deleted    []string
	failures   map[string]int
	nextID     int
	loginAs    models.User
	admin      bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		photoCats: map[string][]string{},
		likes:     map[string]int{},
		liked:     map[string]bool{},
		failures:  map[string]int{},
		nextID:    100,
	}
}

// fail makes every request whose "METHOD path" starts with prefix answer
// with status.
func (f *fakeAPI) fail(prefix string, status int) {
	f.mu.Lock()
	f.failures[prefix] = status
	f.mu.Unlock()
}

func (f *fakeAPI) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) count(prefix string) int {
	n := 0
	for _, c := range f.callLog() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeAPI) id() models.ID {
	f.nextID++
	return models.ID(strconv.Itoa(f.nextID))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	f.mu.Lock()
	f.calls = append(f.calls, key)
	for prefix, status := range f.failures {
		if strings.HasPrefix(key, prefix) {
			f.mu.Unlock()
			w.WriteHeader(status)
			return
		}
	}
	f.mu.Unlock()
	f.routes().ServeHTTP(w, r)
}

func (f *fakeAPI) routes() *http.ServeMux {
	mux := http.NewServeMux()
	lock := func(h func(w http.ResponseWriter, r *http.Request)) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			defer f.mu.Unlock()
			h(w, r)
		}
	}

	mux.HandleFunc("POST /user/login", lock(func(w http.ResponseWriter, r *http.Request) {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"id":           f.loginAs.ID.String(),
			"email":        f.loginAs.Email,
			"access_level": f.admin,
		})
		signed, _ := tok.SignedString([]byte("backend-secret"))
		http.SetCookie(w, &http.Cookie{Name: "token", Value: signed, Path: "/"})
		writeJSON(w, http.StatusOK, map[string]string{"token": signed})
	}))
	mux.HandleFunc("POST /user/logout", lock(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	}))
	mux.HandleFunc("POST /user/register", lock(func(w http.ResponseWriter, r *http.Request) {
		var in backend.RegisterRequest
		_ = json.NewDecoder(r.Body).Decode(&in)
		f.users = append(f.users, models.User{ID: f.id(), Username: in.Username, Email: in.Email, UserIcon: in.UserIcon})
		writeJSON(w, http.StatusCreated, map[string]string{"message": "created"})
	}))
	mux.HandleFunc("GET /user/users", lock(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, f.users)
	}))
	mux.HandleFunc("GET /user/user/{id}", lock(func(w http.ResponseWriter, r *http.Request) {
		out := []models.User{}
		for _, u := range f.users {
			if u.ID.String() == r.PathValue("id") {
				out = append(out, u)
			}
		}
		writeJSON(w, http.StatusOK, out)
	}))
	mux.HandleFunc("PUT /user/changeuser/{id}", lock(func(w http.ResponseWriter, r *http.Request) {
		var in backend.UpdateUserRequest
		_ = json.NewDecoder(r.Body).Decode(&in)
		for i := range f.users {
			if f.users[i].ID.String() == r.PathValue("id") {
				f.users[i].Username, f.users[i].UserIcon = in.Username, in.UserIcon
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{})
	}))
	mux.HandleFunc("PUT /user/changepass", lock(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{})
	}))
	mux.HandleFunc("DELETE /user/delete/{email}", lock(func(w http.ResponseWriter, r *http.Request) {
		kept := f.users[:0]
		for _, u := range f.users {
			if u.Email != r.PathValue("email") {
				kept = append(kept, u)
			}
		}
		f.users = kept
		w.WriteHeader(http.StatusNoContent)
	}))

	mux.HandleFunc("GET /photos/photos", lock(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, f.photos)
	}))
	mux.HandleFunc("GET /photos/admin", lock(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, f.photos)
	}))
	mux.HandleFunc("GET /photos/photo/{id}", lock(func(w http.ResponseWriter, r *http.Request) {
		for _, p := range f.photos {
			if p.ID.String() == r.PathValue("id") {
				writeJSON(w, http.StatusOK, p)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Photo not found"})
	}))
	mux.HandleFunc("GET /photos/photos/user/{id}", lock(func(w http.ResponseWriter, r *http.Request) {
		out := []models.Photo{}
		for _, p := range f.photos {
			if p.UserID.String() == r.PathValue("id") {
				out = append(out, p)
			}
		}
		writeJSON(w, http.StatusOK, out)
	}))
	mux.HandleFunc("POST /photos/add_photo", lock(func(w http.ResponseWriter, r *http.Request) {
		var in backend.PhotoInput
		_ = json.NewDecoder(r.Body).Decode(&in)
		p := models.Photo{ID: f.id(), Name: in.Name, Description: in.Description, Path: in.Path, Status: in.Status}
		f.photos = append(f.photos, p)
		writeJSON(w, http.StatusCreated, map[string]string{"id": p.ID.String()})
	}))
	mux.HandleFunc("PUT /photos/edit/{id}", lock(func(w http.ResponseWriter, r *http.Request) {
		var in backend.PhotoInput
		_ = json.NewDecoder(r.Body).Decode(&in)
		for i := range f.photos {
			if f.photos[i].ID.String() == r.PathValue("id") {
				f.photos[i].Name, f.photos[i].Description, f.photos[i].Status = in.Name, in.Description, in.Status
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{})
	}))
	mux.HandleFunc("DELETE /photos/delete/{id}", lock(func(w http.ResponseWriter, r *http.Request) {
		kept := f.photos[:0]
		for _, p := range f.photos {
			if p.ID.String() != r.PathValue("id") {
				kept = append(kept, p)
			}
		}
		f.photos = kept
		w.WriteHeader(http.StatusNoContent)
	}))

	mux.HandleFunc("GET /comments", lock(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, f.comments)
	}))
	mux.HandleFunc("GET /comments/photo/{id}", lock(func(w http.ResponseWriter, r *http.Request) {
		out := []models.Comment{}
		for _, c := range f.comments {
			if c.PhotoID.String() == r.PathValue("id") {
				out = append(out, c)
			}
		}
		writeJSON(w, http.StatusOK, out)
	}))
	mux.HandleFunc("POST /comments/add/{id}", lock(func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Content string `json:"content"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		f.comments = append(f.comments, models.Comment{ID: f.id(), Content: in.Content, PhotoID: models.ID(r.PathValue("id")), UserID: f.loginAs.ID, Status: true})
		writeJSON(w, http.StatusCreated, map[string]string{})
	}))
	mux.HandleFunc("DELETE /comments/delete/{id}", lock(func(w http.ResponseWriter, r *http.Request) {
		kept := f.comments[:0]
		for _, c := range f.comments {
			if c.ID.String() != r.PathValue("id") {
				kept = append(kept, c)
			}
		}
		f.comments = kept
		w.WriteHeader(http.StatusNoContent)
	}))

	mux.HandleFunc("GET /likes/likes/{id}", lock(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.LikeCount{{Count: strconv.Itoa(f.likes[r.PathValue("id")])}})
	}))
	mux.HandleFunc("GET /likes/check/{id}", lock(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.LikeStatus{HasLiked: f.liked[r.PathValue("id")]})
	}))
	mux.HandleFunc("POST /likes/like/{id}", lock(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !f.liked[id] {
			f.liked[id] = true
			f.likes[id]++
		}
		writeJSON(w, http.StatusOK, map[string]string{})
	}))
	mux.HandleFunc("DELETE /likes/like/{id}", lock(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if f.liked[id] {
			f.liked[id] = false
			f.likes[id]--
		}
		writeJSON(w, http.StatusOK, map[string]string{})
	}))
	mux.HandleFunc("GET /likes/user/{id}", lock(func(w http.ResponseWriter, r *http.Request) {
		out := []models.LikeRecord{}
		for pid, ok := range f.liked {
			if ok {
				out = append(out, models.LikeRecord{PhotoID: models.ID(pid), UserID: models.ID(r.PathValue("id"))})
			}
		}
		writeJSON(w, http.StatusOK, out)
	}))

	mux.HandleFunc("POST /downloads/download/{id}", lock(func(w http.ResponseWriter, r *http.Request) {
		f.downloads = append(f.downloads, models.DownloadRecord{PhotoID: models.ID(r.PathValue("id")), UserID: f.loginAs.ID})
		writeJSON(w, http.StatusOK, map[string]string{})
	}))
	mux.HandleFunc("GET /downloads/user/{id}", lock(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, f.downloads)
	}))

	mux.HandleFunc("GET /categories", lock(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, f.categories)
	}))
	mux.HandleFunc("POST /categories", lock(func(w http.ResponseWriter, r *http.Request) {
		var in backend.CategoryInput
		_ = json.NewDecoder(r.Body).Decode(&in)
		f.categories = append(f.categories, models.Category{ID: f.id(), Name: in.Name, Description: in.Description})
		writeJSON(w, http.StatusCreated, map[string]string{})
	}))
	mux.HandleFunc("POST /photos_categories/add", lock(func(w http.ResponseWriter, r *http.Request) {
		var in models.PhotoCategory
		_ = json.NewDecoder(r.Body).Decode(&in)
		f.photoCats[in.PhotoID.String()] = append(f.photoCats[in.PhotoID.String()], in.CategoryID.String())
		writeJSON(w, http.StatusCreated, map[string]string{})
	}))
	mux.HandleFunc("GET /photos_categories/photo/{id}", lock(func(w http.ResponseWriter, r *http.Request) {
		out := []models.Category{}
		for _, cid := range f.photoCats[r.PathValue("id")] {
			for _, c := range f.categories {
				if c.ID.String() == cid {
					out = append(out, c)
				}
			}
		}
		writeJSON(w, http.StatusOK, out)
	}))
	mux.HandleFunc("GET /photos_categories/category/{id}", lock(func(w http.ResponseWriter, r *http.Request) {
		out := []models.Photo{}
		for _, p := range f.photos {
			for _, cid := range f.photoCats[p.ID.String()] {
				if cid == r.PathValue("id") {
					out = append(out, p)
				}
			}
		}
		writeJSON(w, http.StatusOK, out)
	}))

	mux.HandleFunc("POST /api/upload", lock(func(w http.ResponseWriter, r *http.Request) {
		id := r.FormValue("identifier")
		file, hdr, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "No file uploaded"})
			return
		}
		_, _ = io.Copy(io.Discard, file)
		name := id + hdr.Filename[strings.LastIndex(hdr.Filename, "."):]
		f.uploads = append(f.uploads, name)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "fileUrl": "/images/users/" + name})
	}))
	mux.HandleFunc("DELETE /api/upload/{name}", lock(func(w http.ResponseWriter, r *http.Request) {
		f.deleted = append(f.deleted, r.PathValue("name"))
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.HandleFunc("POST /api/email", lock(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"id": "email-1"})
	}))
	mux.HandleFunc("GET /images/users/{name}", lock(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = io.WriteString(w, "PNGDATA")
	}))
	return mux
}

type navRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (n *navRecorder) Navigate(path string) {
	n.mu.Lock()
	n.paths = append(n.paths, path)
	n.mu.Unlock()
}

func (n *navRecorder) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.paths) == 0 {
		return ""
	}
	return n.paths[len(n.paths)-1]
}

type confirmRecorder struct {
	answer  bool
	prompts []string
}

func (c *confirmRecorder) Confirm(prompt string) bool {
	c.prompts = append(c.prompts, prompt)
	return c.answer
}

type harness struct {
	api     *fakeAPI
	deps    Deps
	store   *auth.MemoryStore
	nav     *navRecorder
	confirm *confirmRecorder
	now     time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	api := newFakeAPI()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	client, err := backend.New(srv.URL)
	if err != nil {
		t.Fatalf("backend client: %v", err)
	}
	h := &harness{
		api:     api,
		store:   auth.NewMemoryStore(),
		nav:     &navRecorder{},
		confirm: &confirmRecorder{answer: true},
		now:     time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	session := auth.NewSynchronizer(h.store, nil, zerolog.Nop(), auth.WithClock(func() time.Time { return h.now }))
	pipeline := upload.New(client, zerolog.Nop(), upload.WithIdentifiers(func() uuid.UUID {
		return uuid.MustParse("11111111-2222-3333-4444-555555555555")
	}))
	h.deps = Deps{
		Session: session,
		API:     client,
		Origin:  client,
		Uploads: pipeline,
		Nav:     h.nav,
		Confirm: h.confirm,
		Log:     zerolog.Nop(),
	}
	return h
}

// signIn writes a valid session without going through the login form.
func (h *harness) signIn(t *testing.T, u models.User, admin bool) {
	t.Helper()
	level := auth.AccessUser
	if admin {
		level = auth.AccessAdmin
	}
	h.api.mu.Lock()
	h.api.loginAs, h.api.admin = u, admin
	h.api.mu.Unlock()
	if err := h.deps.Session.Login(context.Background(), auth.NewSession(u.ID.String(), level, u.UserIcon, h.now)); err != nil {
		t.Fatalf("sign in: %v", err)
	}
}
