package screen

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"booknest/pkg/domain"
	"booknest/pkg/present"
)

var (
	// ErrBusy rejects a second submission while the first is in flight.
	ErrBusy         = errors.New("request already in progress")
	ErrBlankComment = errors.New("comment text is required")
	ErrNoBook       = errors.New("no book is open")
)

type BookAPI interface {
	Book(ctx context.Context, id int64) (domain.Book, error)
	IsFavorite(ctx context.Context, bookID int64) (bool, error)
	AddFavorite(ctx context.Context, bookID int64) (domain.FavoriteBook, error)
	RemoveFavorite(ctx context.Context, bookID int64) error
	Comments(ctx context.Context, bookID int64) ([]domain.Comment, error)
	AddComment(ctx context.Context, bookID int64, text string, rating int) (domain.Comment, error)
	Charts(ctx context.Context) ([]domain.Chart, error)
	AddBookToChart(ctx context.Context, chartID, bookID int64) (domain.Chart, error)
	UpdateReadingProgress(ctx context.Context, bookID int64, currentPage int) (domain.CurrentBook, error)
}

type BookState struct {
	BookID     int64
	Book       *domain.Book
	IsFavorite bool
	Comments   []domain.Comment
	Charts     []domain.Chart

	LoadingBook     bool
	LoadingFavorite bool
	LoadingComments bool
	LoadingCharts   bool
	FavoriteBusy    bool
	CommentBusy     bool
	DraftComment    string
	DraftRating     int
}

// Stars renders the open book's rating.
func (s BookState) Stars() []present.Star {
	if s.Book == nil {
		return present.Stars(0)
	}
	return present.Stars(s.Book.Rating)
}

// BookDetail coordinates the book page.
type BookDetail struct {
	api    BookAPI
	notify Notifier

	mu    sync.Mutex
	state BookState
	gen   uint64
}

func NewBookDetail(api BookAPI, notify Notifier) *BookDetail {
	return &BookDetail{api: api, notify: notifierOrDefault(notify)}
}

func (b *BookDetail) State() BookState {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.state
	if s.Book != nil {
		book := *s.Book
		s.Book = &book
	}
	s.Comments = slices.Clone(s.Comments)
	s.Charts = slices.Clone(s.Charts)
	return s
}

// Open loads the book, its favorite flag, its comments and the user's charts
// concurrently. Each slice is written as soon as its fetch completes.
func (b *BookDetail) Open(ctx context.Context, bookID int64) error {
	ctx = sharedRequestID(ctx)
	b.mu.Lock()
	b.gen++
	gen := b.gen
	b.state = BookState{
		BookID:          bookID,
		LoadingBook:     true,
		LoadingFavorite: true,
		LoadingComments: true,
		LoadingCharts:   true,
	}
	b.mu.Unlock()

	// apply writes one slice unless a newer Open replaced this one.
	apply := func(fn func(s *BookState)) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if gen == b.gen && ctx.Err() == nil {
			fn(&b.state)
		}
	}

	errs := make([]error, 4)
	var g errgroup.Group
	g.Go(func() error {
		book, err := b.api.Book(ctx, bookID)
		errs[0] = err
		apply(func(s *BookState) {
			s.LoadingBook = false
			if err == nil {
				s.Book = &book
			}
		})
		return nil
	})
	g.Go(func() error {
		fav, err := b.api.IsFavorite(ctx, bookID)
		errs[1] = err
		apply(func(s *BookState) {
			s.LoadingFavorite = false
			s.IsFavorite = err == nil && fav
		})
		return nil
	})
	g.Go(func() error {
		comments, err := b.api.Comments(ctx, bookID)
		errs[2] = err
		apply(func(s *BookState) {
			s.LoadingComments = false
			s.Comments = comments
		})
		return nil
	})
	g.Go(func() error {
		charts, err := b.api.Charts(ctx)
		errs[3] = err
		apply(func(s *BookState) {
			s.LoadingCharts = false
			s.Charts = charts
		})
		return nil
	})
	_ = g.Wait()

	for i, op := range []string{"load book", "check favorite", "load comments", "load charts"} {
		report(b.notify, op, errs[i])
	}
	return errors.Join(errs...)
}

// ToggleFavorite adds or removes the open book from favorites. The local
// flag flips only once the server confirms.
func (b *BookDetail) ToggleFavorite(ctx context.Context) (bool, error) {
	b.mu.Lock()
	if b.state.FavoriteBusy {
		b.mu.Unlock()
		return false, ErrBusy
	}
	if b.state.BookID == 0 {
		b.mu.Unlock()
		return false, ErrNoBook
	}
	id, was := b.state.BookID, b.state.IsFavorite
	b.state.FavoriteBusy = true
	b.mu.Unlock()

	var err error
	if was {
		err = b.api.RemoveFavorite(ctx, id)
	} else {
		_, err = b.api.AddFavorite(ctx, id)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.FavoriteBusy = false
	if err != nil {
		report(b.notify, "toggle favorite", err)
		return was, err
	}
	if b.state.BookID == id {
		b.state.IsFavorite = !was
	}
	return !was, nil
}

// SubmitComment posts a comment on the open book. The server's record is
// prepended to the list and the draft cleared; on failure the draft is kept.
func (b *BookDetail) SubmitComment(ctx context.Context, text string, rating int) (domain.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Comment{}, ErrBlankComment
	}
	b.mu.Lock()
	if b.state.CommentBusy {
		b.mu.Unlock()
		return domain.Comment{}, ErrBusy
	}
	if b.state.BookID == 0 {
		b.mu.Unlock()
		return domain.Comment{}, ErrNoBook
	}
	id := b.state.BookID
	b.state.CommentBusy = true
	b.state.DraftComment, b.state.DraftRating = text, rating
	b.mu.Unlock()

	comment, err := b.api.AddComment(ctx, id, text, rating)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.CommentBusy = false
	if err != nil {
		report(b.notify, "submit comment", err)
		return domain.Comment{}, err
	}
	if b.state.BookID == id {
		b.state.Comments = append([]domain.Comment{comment}, b.state.Comments...)
		b.state.DraftComment, b.state.DraftRating = "", 0
	}
	return comment, nil
}

// StartReading marks the open book as being read from page 1.
func (b *BookDetail) StartReading(ctx context.Context) (domain.CurrentBook, error) {
	id := b.State().BookID
	if id == 0 {
		return domain.CurrentBook{}, ErrNoBook
	}
	cur, err := b.api.UpdateReadingProgress(ctx, id, 1)
	if err != nil {
		report(b.notify, "start reading", err)
		return domain.CurrentBook{}, err
	}
	return cur, nil
}

// AddToChart attaches the open book to one of the user's charts.
func (b *BookDetail) AddToChart(ctx context.Context, chartID int64) (domain.Chart, error) {
	id := b.State().BookID
	if id == 0 {
		return domain.Chart{}, ErrNoBook
	}
	chart, err := b.api.AddBookToChart(ctx, chartID, id)
	if err != nil {
		report(b.notify, "add to chart", err)
		return domain.Chart{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.state.Charts {
		if b.state.Charts[i].ID == chartID {
			b.state.Charts[i] = chart
		}
	}
	return chart, nil
}
