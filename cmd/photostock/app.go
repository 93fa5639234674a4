package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/petermazzocco/photostockage/internal/auth"
	"github.com/petermazzocco/photostockage/internal/backend"
	"github.com/petermazzocco/photostockage/internal/config"
	"github.com/petermazzocco/photostockage/internal/upload"
	"github.com/petermazzocco/photostockage/internal/views"
)

// cookieKey holds the backend's auth cookies next to the session keys so a
// later invocation is still signed in.
const cookieKey = "backendCookies"

type app struct {
	cfg   *config.Config
	log   zerolog.Logger
	store auth.Store
	deps  views.Deps
	out   io.Writer
	in    *bufio.Reader

	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger, in io.Reader, out io.Writer) (*app, error) {
	a := &app{cfg: cfg, log: log, out: out, in: bufio.NewReader(in)}

	var broker auth.Broker
	switch cfg.Session.Store {
	case "redis":
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("SESSION_STORE=redis needs REDIS_ADDR")
		}
		rdb, err := auth.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		runCtx, cancel := context.WithCancel(ctx)
		rb := auth.NewRedisBroker(rdb, cfg.Session.Profile, log)
		go func() {
			if err := rb.Run(runCtx, nil); err != nil {
				log.Debug().Err(err).Msg("session broker stopped")
			}
		}()
		a.closers = append(a.closers, cancel, func() { _ = rdb.Close() })
		a.store, broker = auth.NewRedisStore(rdb, cfg.Session.Profile), rb
	default:
		a.store, broker = auth.NewFileStore(cfg.Session.StateFile), auth.NewLocalBroker()
	}

	api, err := backend.New(cfg.BackendURL, backend.WithLogger(log))
	if err != nil {
		a.close()
		return nil, err
	}
	origin, err := backend.New(cfg.PublicURL, backend.WithLogger(log))
	if err != nil {
		a.close()
		return nil, err
	}

	a.deps = views.Deps{
		Session: auth.NewSynchronizer(a.store, broker, log),
		API:     api,
		Origin:  origin,
		Uploads: upload.New(origin, log),
		Nav:     views.NavigatorFunc(a.navigate),
		Confirm: views.ConfirmerFunc(a.confirm),
		Log:     log,
	}
	if err := a.restoreCookies(ctx); err != nil {
		log.Warn().Err(err).Msg("ignoring saved backend cookies")
	}
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) restoreCookies(ctx context.Context) error {
	raw, ok, err := a.store.Get(ctx, cookieKey)
	if err != nil || !ok {
		return err
	}
	var cookies []*http.Cookie
	if err := json.Unmarshal([]byte(raw), &cookies); err != nil {
		return err
	}
	a.deps.API.SetCookies(cookies)
	return nil
}

// saveCookies persists whatever the backend left in the jar. An empty jar
// removes the key.
func (a *app) saveCookies(ctx context.Context) error {
	cookies := a.deps.API.Cookies()
	if len(cookies) == 0 {
		return a.store.Delete(ctx, cookieKey)
	}
	raw, err := json.Marshal(cookies)
	if err != nil {
		return err
	}
	return a.store.Set(ctx, cookieKey, string(raw))
}

func (a *app) navigate(path string) {
	fmt.Fprintf(os.Stderr, "-> %s\n", path)
}

func (a *app) confirm(prompt string) bool {
	fmt.Fprintf(a.out, "%s [y/N] ", prompt)
	line, err := a.in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// openImage wraps a local file for the upload pipeline. The content type
// comes from the extension, then from the leading bytes.
func openImage(path string) (*upload.File, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	br := bufio.NewReader(f)
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if ct == "" {
		head, _ := br.Peek(512)
		ct = http.DetectContentType(head)
	}
	return &upload.File{
		Name:        filepath.Base(path),
		Size:        info.Size(),
		ContentType: ct,
		Body:        br,
	}, f.Close, nil
}

// writeDownload saves the file under dir, keeping its download name.
func writeDownload(dir string, file *views.DownloadedFile) (string, error) {
	target := filepath.Join(dir, filepath.Base(file.Name))
	if err := os.WriteFile(target, file.Data, 0o644); err != nil {
		return "", err
	}
	return target, nil
}

func readLine(r *bufio.Reader) string {
	line, _ := r.ReadString('\n')
	return strings.TrimSpace(line)
}

// printErr lists form errors one field per line, sorted.
func printErr(w io.Writer, err error) {
	var fe views.FormErrors
	if !errors.As(err, &fe) {
		fmt.Fprintln(w, err)
		return
	}
	fields := make([]string, 0, len(fe))
	for field := range fe {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		fmt.Fprintf(w, "%s: %s\n", field, fe[field])
	}
}
