package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"booknest/internal/screen"
	"booknest/pkg/domain"
	"booknest/pkg/storage"
)

func commands() []command {
	return []command{
		{"login", "-email addr [-password pw]", cmdLogin},
		{"register", "-username name -email addr [-password pw]", cmdRegister},
		{"logout", "", cmdLogout},
		{"whoami", "", cmdWhoami},
		{"search", "[-genre a,b] [-trope t] [-country c] [-author a] [-age 16+] [-year-from y] [-year-to y] [-pages-from n] [-pages-to n] [-sort key] [-page n] [query]", cmdSearch},
		{"book", "<id>", cmdBook},
		{"favorite", "<book-id>", cmdFavorite},
		{"comment", "[-rating 1-5] <book-id> <text>", cmdComment},
		{"read", "<book-id>", cmdRead},
		{"dashboard", "", cmdDashboard},
		{"profile", "[-username u] [-email e] [-age n] [-city c] [-bio b]", cmdProfile},
		{"avatar", "<image-file>", cmdAvatar},
		{"charts", "", cmdCharts},
		{"chart", "<id>", cmdChart},
		{"chart-create", "-title t [-description d] [-public] [-cover file] [book-id...]", cmdChartCreate},
		{"chart-delete", "[-yes] <id>", cmdChartDelete},
		{"lang", "[ru|en|kk]", cmdLang},
		{"home", "", cmdHome},
		{"watch", "", cmdWatch},
	}
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return usageError{}
	}
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, usageError{}
	}
	return id, nil
}

// singleID parses args holding exactly one id.
func singleID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, usageError{}
	}
	return parseID(args[0])
}

func (a *app) password(given string) string {
	if given != "" {
		return given
	}
	fmt.Fprint(a.out, "password: ")
	line, _ := a.in.ReadString('\n')
	return strings.TrimRight(line, "\r\n")
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlags("login")
	email := fs.String("email", "", "")
	pw := fs.String("password", "", "")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *email == "" {
		return usageError{}
	}
	out := a.session.Login(ctx, *email, a.password(*pw))
	if !out.Success {
		return errors.New(out.Message)
	}
	fmt.Fprintf(a.out, "logged in as %s\n", out.Session.User.Username)
	return nil
}

func cmdRegister(ctx context.Context, a *app, args []string) error {
	fs := newFlags("register")
	username := fs.String("username", "", "")
	email := fs.String("email", "", "")
	pw := fs.String("password", "", "")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *username == "" || *email == "" {
		return usageError{}
	}
	out := a.session.Register(ctx, domain.Registration{
		Username: *username,
		Email:    *email,
		Password: a.password(*pw),
	})
	if !out.Success {
		return errors.New(out.Message)
	}
	fmt.Fprintf(a.out, "registered and logged in as %s\n", out.Session.User.Username)
	return nil
}

func cmdLogout(ctx context.Context, a *app, _ []string) error {
	if !a.session.LoggedIn() {
		fmt.Fprintln(a.out, "not logged in")
		return nil
	}
	a.session.Logout(ctx)
	fmt.Fprintln(a.out, "logged out")
	return nil
}

func cmdWhoami(_ context.Context, a *app, _ []string) error {
	sess, ok := a.session.Current()
	if !ok {
		fmt.Fprintln(a.out, "not logged in")
		return nil
	}
	fmt.Fprintf(a.out, "%s <%s>\n", sess.User.Username, sess.User.Email)
	return nil
}

func cmdSearch(ctx context.Context, a *app, args []string) error {
	fs := newFlags("search")
	genres := fs.String("genre", "", "")
	tropes := fs.String("trope", "", "")
	countries := fs.String("country", "", "")
	authors := fs.String("author", "", "")
	ages := fs.String("age", "", "")
	yearFrom := fs.Int("year-from", 0, "")
	yearTo := fs.Int("year-to", 0, "")
	pagesFrom := fs.Int("pages-from", 0, "")
	pagesTo := fs.Int("pages-to", 0, "")
	sortBy := fs.String("sort", screen.DefaultSort, "")
	page := fs.Int("page", 1, "")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	catalog := screen.NewCatalog(a.client, a.notify, a.cfg.PageSize)
	err := catalog.Restore(ctx, domain.SearchFilters{
		Query:      strings.Join(fs.Args(), " "),
		Genres:     splitList(*genres),
		Tropes:     splitList(*tropes),
		Countries:  splitList(*countries),
		Authors:    splitList(*authors),
		AgeRatings: splitList(*ages),
		YearFrom:   *yearFrom,
		YearTo:     *yearTo,
		PagesFrom:  *pagesFrom,
		PagesTo:    *pagesTo,
		SortBy:     *sortBy,
	}, *page)
	if err != nil {
		return err
	}
	s := catalog.State()
	fmt.Fprintf(a.out, "%s %d (%d/%d)\n", a.tr.T("search.booksFound"), s.Total, s.Page, s.TotalPages())
	if len(s.Books) == 0 {
		fmt.Fprintln(a.out, a.tr.T("search.noBooksFound"))
		return nil
	}
	printBooks(a.out, s.Books)
	return nil
}

func cmdBook(ctx context.Context, a *app, args []string) error {
	id, err := singleID(args)
	if err != nil {
		return err
	}
	detail, err := openBook(ctx, a, id)
	if err != nil {
		return err
	}
	printBook(a, detail.State())
	return nil
}

// openBook loads the book page and fails when the book itself is missing.
func openBook(ctx context.Context, a *app, id int64) (*screen.BookDetail, error) {
	detail := screen.NewBookDetail(a.client, a.notify)
	err := detail.Open(ctx, id)
	if detail.State().Book == nil {
		if err == nil {
			err = errors.New(a.tr.T("book.notFound"))
		}
		return nil, err
	}
	return detail, nil
}

func cmdFavorite(ctx context.Context, a *app, args []string) error {
	id, err := singleID(args)
	if err != nil {
		return err
	}
	detail, err := openBook(ctx, a, id)
	if err != nil {
		return err
	}
	fav, err := detail.ToggleFavorite(ctx)
	if err != nil {
		return err
	}
	if fav {
		fmt.Fprintln(a.out, a.tr.T("book.inFavorites"))
	} else {
		fmt.Fprintln(a.out, "removed from favorites")
	}
	return nil
}

func cmdComment(ctx context.Context, a *app, args []string) error {
	fs := newFlags("comment")
	rating := fs.Int("rating", 0, "")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() < 2 || *rating < 0 || *rating > 5 {
		return usageError{}
	}
	id, err := parseID(fs.Arg(0))
	if err != nil {
		return err
	}
	detail, err := openBook(ctx, a, id)
	if err != nil {
		return err
	}
	c, err := detail.SubmitComment(ctx, strings.Join(fs.Args()[1:], " "), *rating)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "comment %d posted\n", c.ID)
	return nil
}

func cmdRead(ctx context.Context, a *app, args []string) error {
	id, err := singleID(args)
	if err != nil {
		return err
	}
	detail, err := openBook(ctx, a, id)
	if err != nil {
		return err
	}
	cur, err := detail.StartReading(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: %s, %s %d\n", a.tr.T("dashboard.currentlyReading"), cur.Book.Title, a.tr.T("dashboard.page"), cur.CurrentPage)
	return nil
}

func cmdDashboard(ctx context.Context, a *app, _ []string) error {
	dash := screen.NewDashboard(a.client, a.notify)
	_ = dash.Load(ctx)
	printDashboard(a, dash.State())
	return nil
}

func cmdProfile(ctx context.Context, a *app, args []string) error {
	fs := newFlags("profile")
	username := fs.String("username", "", "")
	email := fs.String("email", "", "")
	age := fs.Int("age", 0, "")
	city := fs.String("city", "", "")
	bio := fs.String("bio", "", "")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	dash := screen.NewDashboard(a.client, a.notify)
	if err := dash.Load(ctx); dash.State().Profile.Username == "" {
		return err
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if len(set) == 0 {
		printProfile(a, dash.State().Profile)
		return nil
	}
	dash.BeginEdit()
	_ = dash.EditDraft(func(p *domain.UserProfile) {
		if set["username"] {
			p.Username = *username
		}
		if set["email"] {
			p.Email = *email
		}
		if set["age"] {
			p.Age = *age
		}
		if set["city"] {
			p.City = *city
		}
		if set["bio"] {
			p.Bio = *bio
		}
	})
	profile, err := dash.SaveProfile(ctx)
	if err != nil {
		dash.CancelEdit()
		return err
	}
	printProfile(a, profile)
	return nil
}

func cmdAvatar(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return usageError{}
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	dash := screen.NewDashboard(a.client, a.notify)
	_ = dash.Load(ctx)
	avatar, err := dash.UploadAvatar(ctx, args[0], data)
	if err != nil {
		fmt.Fprintf(a.out, "avatar %s, still %s\n", avatar.Status, a.media(avatar.URL))
		return err
	}
	fmt.Fprintf(a.out, "avatar %s: %s\n", avatar.Status, a.media(avatar.URL))
	return nil
}

func cmdCharts(ctx context.Context, a *app, _ []string) error {
	editor := screen.NewChartEditor(a.client, a.notify, nil, a.policy)
	if err := editor.LoadCharts(ctx); err != nil {
		return err
	}
	charts := editor.State().Charts
	if len(charts) == 0 {
		fmt.Fprintln(a.out, a.tr.T("chart.noCharts"))
		return nil
	}
	printCharts(a, charts)
	return nil
}

func cmdChart(ctx context.Context, a *app, args []string) error {
	id, err := singleID(args)
	if err != nil {
		return err
	}
	view := screen.NewChartView(a.client, a.session, a.notify, nil)
	if err := view.Load(ctx, id); err != nil {
		return err
	}
	printChart(a, *view.State().Chart, view.IsOwner())
	return nil
}

func cmdChartCreate(ctx context.Context, a *app, args []string) error {
	fs := newFlags("chart-create")
	title := fs.String("title", "", "")
	desc := fs.String("description", "", "")
	public := fs.Bool("public", false, "")
	cover := fs.String("cover", "", "")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	editor := screen.NewChartEditor(a.client, a.notify, nil, a.policy)
	for _, arg := range fs.Args() {
		id, err := parseID(arg)
		if err != nil {
			return err
		}
		if err := editor.PreselectBook(ctx, id); err != nil {
			return err
		}
	}
	editor.SetTitle(*title)
	editor.SetDescription(*desc)
	editor.SetPublic(*public)
	if *cover != "" {
		data, err := os.ReadFile(*cover)
		if err != nil {
			return err
		}
		editor.SetCover(*cover, data)
	}
	res, err := editor.Save(ctx)
	if errors.Is(err, screen.ErrBlankTitle) {
		return usageError{}
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "chart %d %q created with %d %s\n", res.Chart.ID, res.Chart.Title, len(res.Attached), a.tr.T("chart.books"))
	for _, f := range res.Failures {
		fmt.Fprintf(a.out, "  book %d not added: %v\n", f.BookID, f.Err)
	}
	return nil
}

func cmdChartDelete(ctx context.Context, a *app, args []string) error {
	fs := newFlags("chart-delete")
	yes := fs.Bool("yes", false, "")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	id, err := singleID(fs.Args())
	if err != nil {
		return err
	}
	confirm := screen.ConfirmFunc(a.confirm)
	if *yes {
		confirm = func(string) bool { return true }
	}
	editor := screen.NewChartEditor(a.client, a.notify, confirm, a.policy)
	deleted, err := editor.DeleteChart(ctx, id)
	if err != nil {
		return err
	}
	if deleted {
		fmt.Fprintf(a.out, "chart %d deleted\n", id)
	}
	return nil
}

func cmdLang(ctx context.Context, a *app, args []string) error {
	header := screen.NewHeader(a.client, a.session, a.tr, a.notify)
	if len(args) == 0 {
		fmt.Fprintln(a.out, a.tr.Language())
		return nil
	}
	if len(args) != 1 {
		return usageError{}
	}
	lang, err := header.SetLanguage(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, lang)
	return nil
}

func cmdHome(ctx context.Context, a *app, _ []string) error {
	header := screen.NewHeader(a.client, a.session, a.tr, a.notify)
	_ = header.Load(ctx)
	h := header.State()
	fmt.Fprintln(a.out, a.tr.T("home.title"))
	if h.LoggedIn {
		fmt.Fprintf(a.out, "%s (%s)\n", h.Username, a.media(h.Avatar))
	} else {
		fmt.Fprintf(a.out, "%s: booknest login\n", a.tr.T("header.login"))
	}
	cols, err := a.client.Collections(ctx)
	if err != nil {
		a.notify.Notify(screen.Notice{Op: "load collections", Err: err})
		return err
	}
	fmt.Fprintf(a.out, "\n%s\n", a.tr.T("home.popularCollections"))
	printCollections(a, cols)
	return nil
}

// cmdWatch prints the session whenever another process logs in or out
// through the same file storage.
func cmdWatch(ctx context.Context, a *app, _ []string) error {
	fileStore, ok := a.store.(*storage.FileStorage)
	if !ok {
		return errors.New("watch needs the file storage driver")
	}
	updates, cancel := a.session.Subscribe()
	defer cancel()
	go func() {
		err := fileStore.Watch(ctx, func(key string) {
			if key != storage.KeyToken && key != storage.KeyCurrentUser {
				return
			}
			if err := a.session.Reload(ctx); err != nil {
				a.logger.Warn("session reload failed", "err", err)
			}
		})
		if err != nil && ctx.Err() == nil {
			a.logger.Error("storage watch stopped", "err", err)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case sess, ok := <-updates:
			if !ok {
				return nil
			}
			if sess.Valid() {
				fmt.Fprintf(a.out, "logged in as %s\n", sess.User.Username)
			} else {
				fmt.Fprintln(a.out, "logged out")
			}
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
