package screen

import (
	"context"
	"fmt"
	"sync"

	"booknest/internal/util"
	"booknest/pkg/api"
	"booknest/pkg/domain"
)

// fakeAPI is an in-memory stand-in for the REST API. Hooks override single
// calls; everything else is served from the maps.
type fakeAPI struct {
	mu sync.Mutex

	books     map[int64]domain.Book
	favorites map[int64]bool
	comments  map[int64][]domain.Comment
	charts    map[int64]domain.Chart
	profile   domain.UserProfile
	current   *domain.CurrentBook
	nextID    int64

	searchPages  []int
	searchTotal  int
	deleteCalls  []int64
	progressSet  map[int64]int
	attachFailID map[int64]bool

	searchHook func(filters domain.SearchFilters, page int) (domain.BookPage, error)
	attachHook func(chartID, bookID int64) error
	uploadHook func(ctx context.Context) (string, error)
	coverErr   error
	updateErr  error
	failOps    map[string]error
	requestIDs []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		books: map[int64]domain.Book{
			1: {ID: 1, Title: "Dune", Rating: 4.6},
			2: {ID: 2, Title: "Solaris", Rating: 4.1},
			3: {ID: 3, Title: "Abai Zholy", Rating: 4.9},
		},
		favorites:    map[int64]bool{},
		comments:     map[int64][]domain.Comment{},
		charts:       map[int64]domain.Chart{},
		progressSet:  map[int64]int{},
		attachFailID: map[int64]bool{},
		failOps:      map[string]error{},
		nextID:       100,
	}
}

// seen records the request id a call was made under.
func (f *fakeAPI) seen(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requestIDs = append(f.requestIDs, util.RequestIDFromContext(ctx))
}

func (f *fakeAPI) fail(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failOps[op]
}

func (f *fakeAPI) SearchBooks(_ context.Context, filters domain.SearchFilters, page, _ int) (domain.BookPage, error) {
	f.mu.Lock()
	f.searchPages = append(f.searchPages, page)
	hook, total := f.searchHook, f.searchTotal
	f.mu.Unlock()
	if hook != nil {
		return hook(filters, page)
	}
	if err := f.fail("search"); err != nil {
		return domain.BookPage{}, err
	}
	return domain.BookPage{Books: []domain.Book{{ID: int64(page), Title: fmt.Sprintf("page %d", page)}}, Total: total}, nil
}

func (f *fakeAPI) pagesRequested() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.searchPages...)
}

func (f *fakeAPI) FilterOptions(_ context.Context, kind domain.FilterKind) ([]string, error) {
	if err := f.fail("filter:" + string(kind)); err != nil {
		return nil, err
	}
	return []string{string(kind) + "-a", string(kind) + "-b"}, nil
}

func (f *fakeAPI) Book(ctx context.Context, id int64) (domain.Book, error) {
	f.seen(ctx)
	if err := f.fail("book"); err != nil {
		return domain.Book{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.books[id]
	if !ok {
		return domain.Book{}, &api.APIError{Status: 404, Message: "Not found."}
	}
	return b, nil
}

func (f *fakeAPI) IsFavorite(ctx context.Context, id int64) (bool, error) {
	f.seen(ctx)
	if err := f.fail("is favorite"); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.favorites[id], nil
}

func (f *fakeAPI) AddFavorite(_ context.Context, id int64) (domain.FavoriteBook, error) {
	if err := f.fail("add favorite"); err != nil {
		return domain.FavoriteBook{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.favorites[id] = true
	return domain.FavoriteBook{Book: f.books[id]}, nil
}

func (f *fakeAPI) RemoveFavorite(_ context.Context, id int64) error {
	if err := f.fail("remove favorite"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.favorites, id)
	return nil
}

func (f *fakeAPI) Favorites(context.Context) ([]domain.FavoriteBook, error) {
	if err := f.fail("favorites"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.FavoriteBook
	for id := range f.favorites {
		out = append(out, domain.FavoriteBook{ID: id, Book: f.books[id]})
	}
	return out, nil
}

func (f *fakeAPI) Comments(ctx context.Context, id int64) ([]domain.Comment, error) {
	f.seen(ctx)
	if err := f.fail("comments"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Comment(nil), f.comments[id]...), nil
}

func (f *fakeAPI) AddComment(_ context.Context, id int64, text string, rating int) (domain.Comment, error) {
	if err := f.fail("add comment"); err != nil {
		return domain.Comment{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c := domain.Comment{ID: f.nextID, Comment: text, Rating: rating, User: domain.CommentAuthor{Username: "ann"}}
	f.comments[id] = append([]domain.Comment{c}, f.comments[id]...)
	return c, nil
}

func (f *fakeAPI) UpdateReadingProgress(_ context.Context, id int64, page int) (domain.CurrentBook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progressSet[id] = page
	return domain.CurrentBook{Book: f.books[id], CurrentPage: page}, nil
}

func (f *fakeAPI) CurrentBook(context.Context) (*domain.CurrentBook, error) {
	if err := f.fail("current book"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, nil
}

func (f *fakeAPI) Profile(context.Context) (domain.UserProfile, error) {
	if err := f.fail("profile"); err != nil {
		return domain.UserProfile{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profile, nil
}

func (f *fakeAPI) UpdateProfile(_ context.Context, u domain.ProfileUpdate) (domain.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return domain.UserProfile{}, f.updateErr
	}
	if u.Username != nil {
		f.profile.Username = *u.Username
	}
	if u.Email != nil {
		f.profile.Email = *u.Email
	}
	if u.Age != nil {
		f.profile.Age = *u.Age
	}
	if u.City != nil {
		f.profile.City = *u.City
	}
	if u.Bio != nil {
		f.profile.Bio = *u.Bio
	}
	return f.profile, nil
}

func (f *fakeAPI) UploadAvatar(ctx context.Context, _ string, _ []byte) (string, error) {
	if f.uploadHook != nil {
		return f.uploadHook(ctx)
	}
	return "/media/avatars/new.png", nil
}

func (f *fakeAPI) Charts(ctx context.Context) ([]domain.Chart, error) {
	f.seen(ctx)
	if err := f.fail("charts"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Chart
	for _, c := range f.charts {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeAPI) Chart(_ context.Context, id int64) (domain.Chart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.charts[id]
	if !ok {
		return domain.Chart{}, &api.APIError{Status: 404, Message: "Not found."}
	}
	return c, nil
}

func (f *fakeAPI) CreateChart(_ context.Context, in domain.ChartInput) (domain.Chart, error) {
	if err := f.fail("create chart"); err != nil {
		return domain.Chart{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c := domain.Chart{ID: f.nextID, UserID: 1, Title: in.Title, Description: in.Description, IsPublic: in.IsPublic}
	f.charts[c.ID] = c
	return c, nil
}

func (f *fakeAPI) UpdateChart(_ context.Context, id int64, u domain.ChartUpdate) (domain.Chart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.charts[id]
	if u.Title != nil {
		c.Title = *u.Title
	}
	if u.Description != nil {
		c.Description = *u.Description
	}
	if u.IsPublic != nil {
		c.IsPublic = *u.IsPublic
	}
	f.charts[id] = c
	return c, nil
}

func (f *fakeAPI) DeleteChart(_ context.Context, id int64) error {
	if err := f.fail("delete chart"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, id)
	delete(f.charts, id)
	return nil
}

func (f *fakeAPI) AddBookToChart(_ context.Context, chartID, bookID int64) (domain.Chart, error) {
	if f.attachHook != nil {
		if err := f.attachHook(chartID, bookID); err != nil {
			return domain.Chart{}, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attachFailID[bookID] {
		return domain.Chart{}, &api.APIError{Status: 500, Message: "attach failed"}
	}
	c := f.charts[chartID]
	c.Books = append(c.Books, f.books[bookID])
	f.charts[chartID] = c
	return c, nil
}

func (f *fakeAPI) RemoveBookFromChart(_ context.Context, chartID, bookID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.charts[chartID]
	for i, b := range c.Books {
		if b.ID == bookID {
			c.Books = append(c.Books[:i:i], c.Books[i+1:]...)
			break
		}
	}
	f.charts[chartID] = c
	return nil
}

func (f *fakeAPI) UploadChartCover(_ context.Context, chartID int64, _ string, _ []byte) (string, error) {
	if f.coverErr != nil {
		return "", f.coverErr
	}
	return fmt.Sprintf("/media/covers/%d.png", chartID), nil
}

// recorder collects notices.
type recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recorder) ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.notices))
	for _, n := range r.notices {
		out = append(out, n.Op)
	}
	return out
}

type staticSession struct {
	sess domain.Session
}

func (s staticSession) Current() (domain.Session, bool) {
	return s.sess, s.sess.Valid()
}
