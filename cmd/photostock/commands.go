package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/petermazzocco/photostockage/internal/views"
	"github.com/petermazzocco/photostockage/models"
)

type command struct {
	name string
	help string
	run  func(ctx context.Context, a *app, args []string) error
}

var commands []command

func init() {
	commands = []command{
		{"login", "sign in: login <email> [password]", runLogin},
		{"logout", "end the session", runLogout},
		{"whoami", "show the session and dashboard menu", runWhoami},
		{"register", "create an account: register [-icon file] <username> <email> <password>", runRegister},
		{"contact", "send a message: contact <name> <email> <message>", runContact},
		{"gallery", "list photos: gallery [-category id]", runGallery},
		{"photo", "show one photo with likes and comments: photo <id>", runPhoto},
		{"like", "toggle your like: like <photo-id>", runLike},
		{"comment", "comment on a photo: comment <photo-id> <text>", runComment},
		{"download", "save a photo: download [-dir path] <photo-id>", runDownload},
		{"upload", "add a photo: upload [-description d] [-category id] <file> <name>", runUpload},
		{"account", "profile: account [show|update [-icon file] <username>|password <old> <new>|delete]", runAccount},
		{"my-photos", "your photos: my-photos [edit [flags] <id>|delete <id>]", runMyPhotos},
		{"my-comments", "your comments: my-comments [edit <id> <text>|delete <id>]", runMyComments},
		{"likes", "photos you liked", runShelf(views.NewMyLikes)},
		{"downloads", "photos you downloaded", runShelf(views.NewMyDownloads)},
		{"categories", "categories: categories [add <name> <desc>|edit <id> <name> <desc>|delete <id>]", runCategories},
		{"admin", "moderation: admin photos|users|comments [-page n] [delete <id>]", runAdmin},
		{"cookies", "show or accept the cookie notice: cookies [accept]", runCookies},
		{"watch", "follow session changes (other processes need SESSION_STORE=redis) and expire stale sessions", runWatch},
	}
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

var errUsage = errors.New("wrong arguments, run photostock -h")

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

// mountable is any controller that loads on mount.
type mountable interface {
	Mount(ctx context.Context) error
	Unmount()
}

// mounted mounts v, reports the load error, and leaves v mounted for the
// caller to unmount.
func mounted[T mountable](ctx context.Context, v T) (T, error) {
	if err := v.Mount(ctx); err != nil {
		v.Unmount()
		return v, err
	}
	return v, nil
}

func runLogin(ctx context.Context, a *app, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errUsage
	}
	in := views.Credentials{Email: args[0]}
	if len(args) == 2 {
		in.Password = args[1]
	} else {
		fmt.Fprint(a.out, "Password: ")
		in.Password = readLine(a.in)
	}
	form := views.NewLoginForm(a.deps)
	form.Mount(ctx)
	if err := form.Submit(ctx, in); err != nil {
		return err
	}
	return runWhoami(ctx, a, nil)
}

func runLogout(ctx context.Context, a *app, _ []string) error {
	h := views.NewHeader(a.deps)
	h.Mount(ctx)
	defer h.Unmount()
	if !h.Authenticated() {
		fmt.Fprintln(a.out, "not signed in")
		return nil
	}
	return h.Logout(ctx)
}

func runWhoami(ctx context.Context, a *app, _ []string) error {
	sess := a.deps.Session.Current(ctx)
	if !sess.Authenticated(a.deps.Session.Now()) {
		fmt.Fprintln(a.out, "not signed in")
		return nil
	}
	db := views.NewDashboard(a.deps)
	db.Mount(ctx)
	defer db.Unmount()

	tw := table(a.out)
	fmt.Fprintf(tw, "user\t%s\n", sess.UserID)
	fmt.Fprintf(tw, "role\t%s\n", db.Role())
	fmt.Fprintf(tw, "expires\t%s\n", sess.ExpiresAt.Format(time.RFC1123))
	if sess.UserIcon != "" {
		fmt.Fprintf(tw, "icon\t%s\n", sess.UserIcon)
	}
	for _, item := range db.Menu() {
		fmt.Fprintf(tw, "menu\t%s\n", item.Label)
	}
	return tw.Flush()
}

func runRegister(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	icon := fs.String("icon", "", "avatar image")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 3 {
		return errUsage
	}
	in := views.Registration{
		Username:        fs.Arg(0),
		Email:           fs.Arg(1),
		Password:        fs.Arg(2),
		ConfirmPassword: fs.Arg(2),
	}
	if *icon != "" {
		f, closeFn, err := openImage(*icon)
		if err != nil {
			return err
		}
		defer closeFn()
		in.Avatar = f
	}
	if err := views.NewRegisterForm(a.deps).Submit(ctx, in); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Account created, you can now log in.")
	return nil
}

func runContact(ctx context.Context, a *app, args []string) error {
	if len(args) != 3 {
		return errUsage
	}
	err := views.NewContactForm(a.deps).Submit(ctx, views.Contact{Name: args[0], Email: args[1], Message: args[2]})
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Message sent.")
	return nil
}

func printPhotos(w io.Writer, photos []models.Photo) error {
	tw := table(w)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tPATH")
	for _, p := range photos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.StatusLabel(), p.Path)
	}
	return tw.Flush()
}

func runGallery(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("gallery", flag.ContinueOnError)
	category := fs.String("category", views.AllCategories, "category id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	g, err := mounted(ctx, views.NewGallery(a.deps))
	if err != nil {
		return err
	}
	defer g.Unmount()
	if *category != views.AllCategories {
		if err := g.SelectCategory(ctx, *category); err != nil {
			return err
		}
	}
	data := g.Resource().Snapshot().Data
	if len(data.Photos) == 0 {
		fmt.Fprintln(a.out, "No photos found.")
	} else if err := printPhotos(a.out, data.Photos); err != nil {
		return err
	}
	fmt.Fprintln(a.out)
	tw := table(a.out)
	fmt.Fprintf(tw, "CATEGORY\tNAME\n%s\tAll\n", views.AllCategories)
	for _, c := range data.Categories {
		fmt.Fprintf(tw, "%s\t%s\n", c.ID, c.Name)
	}
	return tw.Flush()
}

func runPhoto(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	id := args[0]
	p, err := mounted(ctx, views.NewPhotoDetail(a.deps, id))
	if err != nil {
		return err
	}
	defer p.Unmount()
	likes, err := mounted(ctx, views.NewLikes(a.deps, id))
	if err != nil {
		return err
	}
	defer likes.Unmount()
	comments := views.NewComments(a.deps, id)
	// A failed comment list hides the form but not the photo.
	_ = comments.Mount(ctx)
	defer comments.Unmount()

	data := p.Resource().Snapshot().Data
	tw := table(a.out)
	fmt.Fprintf(tw, "name\t%s\n", data.Photo.Name)
	fmt.Fprintf(tw, "description\t%s\n", data.Photo.Description)
	if c := data.Category(); c != nil {
		fmt.Fprintf(tw, "category\t%s\n", c.Name)
	}
	if data.Owner != nil {
		fmt.Fprintf(tw, "by\t%s\n", data.Owner.Username)
	}
	fmt.Fprintf(tw, "likes\t%s\n", likes.Label())
	if err := tw.Flush(); err != nil {
		return err
	}

	if msg := comments.Resource().Message(); msg != "" {
		fmt.Fprintln(a.out, msg)
		return nil
	}
	for _, c := range comments.Resource().Snapshot().Data {
		fmt.Fprintf(a.out, "\n%s: %s\n", c.Username, c.Content)
	}
	return nil
}

func runLike(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	likes, err := mounted(ctx, views.NewLikes(a.deps, args[0]))
	if err != nil {
		return err
	}
	defer likes.Unmount()
	if err := likes.Toggle(ctx); err != nil {
		return err
	}
	if msg := likes.Message(); msg != "" {
		return errors.New(msg)
	}
	fmt.Fprintf(a.out, "%s (liked: %t)\n", likes.Label(), likes.Liked())
	return nil
}

func runComment(ctx context.Context, a *app, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	c, err := mounted(ctx, views.NewComments(a.deps, args[0]))
	if err != nil {
		return err
	}
	defer c.Unmount()
	if err := c.Submit(ctx, args[1]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d comments\n", len(c.Resource().Snapshot().Data))
	return nil
}

func runDownload(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	dir := fs.String("dir", ".", "target directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errUsage
	}
	p, err := mounted(ctx, views.NewPhotoDetail(a.deps, fs.Arg(0)))
	if err != nil {
		return err
	}
	defer p.Unmount()
	file, err := p.Download(ctx)
	if err != nil {
		return err
	}
	target, err := writeDownload(*dir, file)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "saved %s (%d bytes)\n", target, len(file.Data))
	return nil
}

func runUpload(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	description := fs.String("description", "", "photo description")
	category := fs.String("category", "", "category id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errUsage
	}
	form, err := mounted(ctx, views.NewAddPhoto(a.deps))
	if err != nil {
		return err
	}
	defer form.Unmount()

	file, closeFn, err := openImage(fs.Arg(0))
	if err != nil {
		return err
	}
	defer closeFn()

	err = form.Submit(ctx, views.NewPhoto{
		Name:        fs.Arg(1),
		Description: *description,
		CategoryID:  *category,
		File:        file,
	})
	if err != nil && form.CanRetry() && a.confirm("Photo stored but not recorded. Retry?") {
		err = form.Retry(ctx)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Photo added.")
	return nil
}

func runAccount(ctx context.Context, a *app, args []string) error {
	acct, err := mounted(ctx, views.NewAccount(a.deps))
	if err != nil {
		return err
	}
	defer acct.Unmount()

	action := "show"
	if len(args) > 0 {
		action, args = args[0], args[1:]
	}
	switch action {
	case "show":
		u := acct.Resource().Snapshot().Data
		if u == nil {
			return views.ErrNoUser
		}
		tw := table(a.out)
		fmt.Fprintf(tw, "username\t%s\nemail\t%s\nicon\t%s\n", u.Username, u.Email, u.UserIcon)
		return tw.Flush()
	case "update":
		fs := flag.NewFlagSet("account update", flag.ContinueOnError)
		icon := fs.String("icon", "", "new avatar image")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return errUsage
		}
		in := views.Profile{Username: fs.Arg(0)}
		if *icon != "" {
			f, closeFn, err := openImage(*icon)
			if err != nil {
				return err
			}
			defer closeFn()
			in.Avatar = f
		}
		if err := acct.UpdateProfile(ctx, in); err != nil {
			return err
		}
		fmt.Fprintln(a.out, views.MsgProfileUpdated)
	case "password":
		if len(args) != 2 {
			return errUsage
		}
		err := acct.ChangePassword(ctx, views.PasswordChange{Current: args[0], New: args[1], Confirm: args[1]})
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, views.MsgPasswordChanged)
	case "delete":
		return acct.DeleteAccount(ctx)
	default:
		return errUsage
	}
	return nil
}

func runMyPhotos(ctx context.Context, a *app, args []string) error {
	m, err := mounted(ctx, views.NewMyPhotos(a.deps))
	if err != nil {
		return err
	}
	defer m.Unmount()

	if len(args) == 0 {
		return printPhotos(a.out, m.Resource().Snapshot().Data)
	}
	switch args[0] {
	case "delete":
		if len(args) != 2 {
			return errUsage
		}
		return m.Delete(ctx, args[1])
	case "edit":
		fs := flag.NewFlagSet("my-photos edit", flag.ContinueOnError)
		name := fs.String("name", "", "new name")
		description := fs.String("description", "", "new description")
		status := fs.String("status", "", "visible or hidden")
		category := fs.String("category", "", "category id")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return errUsage
		}
		edit, err := m.Edit(ctx, fs.Arg(0))
		if err != nil {
			return err
		}
		if *name != "" {
			edit.Name = *name
		}
		if *description != "" {
			edit.Description = *description
		}
		switch *status {
		case "visible":
			edit.Status = true
		case "hidden":
			edit.Status = false
		}
		if *category != "" {
			edit.CategoryID = *category
		}
		return m.Save(ctx, edit)
	}
	return errUsage
}

func runMyComments(ctx context.Context, a *app, args []string) error {
	m, err := mounted(ctx, views.NewMyComments(a.deps))
	if err != nil {
		return err
	}
	defer m.Unmount()

	if len(args) == 0 {
		tw := table(a.out)
		fmt.Fprintln(tw, "ID\tPHOTO\tCOMMENT")
		for _, c := range m.Resource().Snapshot().Data {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", c.CommentID, c.PhotoName, c.Content)
		}
		return tw.Flush()
	}
	switch {
	case args[0] == "edit" && len(args) == 3:
		return m.Save(ctx, args[1], args[2])
	case args[0] == "delete" && len(args) == 2:
		return m.Delete(ctx, args[1])
	}
	return errUsage
}

func runShelf(build func(views.Deps) *views.PhotoShelf) func(context.Context, *app, []string) error {
	return func(ctx context.Context, a *app, _ []string) error {
		s, err := mounted(ctx, build(a.deps))
		if err != nil {
			return err
		}
		defer s.Unmount()
		return printPhotos(a.out, s.Resource().Snapshot().Data)
	}
}

func runCategories(ctx context.Context, a *app, args []string) error {
	c, err := mounted(ctx, views.NewCategories(a.deps))
	if err != nil {
		return err
	}
	defer c.Unmount()

	switch {
	case len(args) == 0:
		tw := table(a.out)
		fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION")
		for _, cat := range c.Resource().Snapshot().Data {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", cat.ID, cat.Name, cat.Description)
		}
		return tw.Flush()
	case args[0] == "add" && len(args) == 3:
		return c.Save(ctx, views.CategoryForm{Name: args[1], Description: args[2]})
	case args[0] == "edit" && len(args) == 4:
		return c.Save(ctx, views.CategoryForm{ID: args[1], Name: args[2], Description: args[3]})
	case args[0] == "delete" && len(args) == 2:
		return c.Delete(ctx, args[1])
	}
	return errUsage
}

// pageable is the paging surface every admin table shares.
type pageable interface {
	mountable
	Goto(page int) bool
	Page() int
	TotalPages() int
}

func runAdmin(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	kind := args[0]
	fs := flag.NewFlagSet("admin "+kind, flag.ContinueOnError)
	page := fs.Int("page", 1, "page number")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	rest := fs.Args()
	deleting := len(rest) == 2 && rest[0] == "delete"
	if len(rest) != 0 && !deleting {
		return errUsage
	}

	var (
		t      pageable
		del    func(context.Context, string) error
		render func(io.Writer) error
	)
	switch kind {
	case "photos":
		v := views.NewAdminPhotos(a.deps)
		t, del = v, v.Delete
		render = func(w io.Writer) error {
			tw := table(w)
			fmt.Fprintln(tw, "ID\tNAME\tOWNER\tSTATUS")
			for _, p := range v.Rows() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.UserID, p.StatusLabel())
			}
			return tw.Flush()
		}
	case "users":
		v := views.NewAdminUsers(a.deps)
		t, del = v, v.Delete
		render = func(w io.Writer) error {
			tw := table(w)
			fmt.Fprintln(tw, "ID\tUSERNAME\tEMAIL")
			for _, u := range v.Rows() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", u.ID, u.Username, u.Email)
			}
			return tw.Flush()
		}
	case "comments":
		v := views.NewAdminComments(a.deps)
		t, del = v, v.Delete
		render = func(w io.Writer) error {
			tw := table(w)
			fmt.Fprintln(tw, "ID\tPHOTO\tUSER\tCOMMENT")
			for _, c := range v.Rows() {
				photo := ""
				if c.Photo != nil {
					photo = c.Photo.Name
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, photo, c.Username(), c.Content)
			}
			return tw.Flush()
		}
	default:
		return errUsage
	}

	if _, err := mounted(ctx, t); err != nil {
		return err
	}
	defer t.Unmount()

	if deleting {
		return del(ctx, rest[1])
	}
	if !t.Goto(*page) && *page != 1 {
		return fmt.Errorf("page %d out of range (1-%d)", *page, t.TotalPages())
	}
	if err := render(a.out); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "\npage %d of %d\n", t.Page(), max(t.TotalPages(), 1))
	return nil
}

func runCookies(ctx context.Context, a *app, args []string) error {
	c := views.NewCookieConsent(a.deps)
	if len(args) == 1 && args[0] == "accept" {
		return c.Accept(ctx)
	}
	if c.Visible(ctx) {
		fmt.Fprintln(a.out, "This site uses cookies. Run `photostock cookies accept` to dismiss.")
	}
	return nil
}

// runWatch prints the header state whenever the session changes until
// interrupted. Changes made by other processes arrive only through the
// Redis broker; the file store signals within this process.
func runWatch(ctx context.Context, a *app, _ []string) error {
	if a.cfg.Session.Store != "redis" {
		fmt.Fprintln(a.out, "watching this process only; set SESSION_STORE=redis to follow other invocations")
	}
	h := views.NewHeader(a.deps)
	report := func() {
		if h.Authenticated() {
			fmt.Fprintf(a.out, "%s signed in (icon %q)\n", time.Now().Format(time.TimeOnly), h.UserIcon())
			return
		}
		fmt.Fprintf(a.out, "%s signed out\n", time.Now().Format(time.TimeOnly))
	}
	h.OnChange(report)
	h.Mount(ctx)
	defer h.Unmount()

	a.deps.Session.RunExpiry(ctx, a.cfg.Session.ExpiryTick)
	return nil
}
