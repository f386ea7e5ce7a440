package screen

import (
	"context"
	"errors"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"booknest/pkg/domain"
	"booknest/pkg/present"
)

var ErrNotEditing = errors.New("profile is not in edit mode")

type DashboardAPI interface {
	Profile(ctx context.Context) (domain.UserProfile, error)
	UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (domain.UserProfile, error)
	UploadAvatar(ctx context.Context, filename string, data []byte) (string, error)
	CurrentBook(ctx context.Context) (*domain.CurrentBook, error)
	Favorites(ctx context.Context) ([]domain.FavoriteBook, error)
	RemoveFavorite(ctx context.Context, bookID int64) error
	Charts(ctx context.Context) ([]domain.Chart, error)
}

// AvatarStatus tracks an avatar upload.
type AvatarStatus int

const (
	AvatarIdle AvatarStatus = iota
	// AvatarPending shows the local preview while the upload runs.
	AvatarPending
	AvatarConfirmed
	// AvatarRolledBack restored the previous avatar after a failed upload.
	AvatarRolledBack
)

func (s AvatarStatus) String() string {
	switch s {
	case AvatarPending:
		return "pending"
	case AvatarConfirmed:
		return "confirmed"
	case AvatarRolledBack:
		return "rolled back"
	default:
		return "idle"
	}
}

// Avatar is the displayed avatar and the state of its last upload.
type Avatar struct {
	Status AvatarStatus
	// URL is what to display: the data URL preview while pending.
	URL    string
	Err    error
}

type DashboardState struct {
	Profile     domain.UserProfile
	Draft       domain.UserProfile
	Editing     bool
	Saving      bool
	Avatar      Avatar
	CurrentBook *domain.CurrentBook
	Favorites   []domain.FavoriteBook
	Charts      []domain.Chart

	LoadingProfile     bool
	LoadingCurrentBook bool
	LoadingFavorites   bool
	LoadingCharts      bool
}

// Dashboard coordinates the user's own page.
type Dashboard struct {
	api    DashboardAPI
	notify Notifier

	mu    sync.Mutex
	state DashboardState
}

func NewDashboard(api DashboardAPI, notify Notifier) *Dashboard {
	return &Dashboard{api: api, notify: notifierOrDefault(notify)}
}

func (d *Dashboard) State() DashboardState {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.state
	if s.CurrentBook != nil {
		cur := *s.CurrentBook
		s.CurrentBook = &cur
	}
	s.Favorites = slices.Clone(s.Favorites)
	s.Charts = slices.Clone(s.Charts)
	return s
}

// Load fetches the four dashboard slices concurrently. Each has its own
// loading flag and is written as soon as it arrives.
func (d *Dashboard) Load(ctx context.Context) error {
	ctx = sharedRequestID(ctx)
	d.mu.Lock()
	d.state.LoadingProfile = true
	d.state.LoadingCurrentBook = true
	d.state.LoadingFavorites = true
	d.state.LoadingCharts = true
	d.mu.Unlock()

	apply := func(fn func(s *DashboardState)) {
		d.mu.Lock()
		defer d.mu.Unlock()
		fn(&d.state)
	}

	errs := make([]error, 4)
	var g errgroup.Group
	g.Go(func() error {
		profile, err := d.api.Profile(ctx)
		errs[0] = err
		apply(func(s *DashboardState) {
			s.LoadingProfile = false
			if err == nil {
				s.Profile = profile
				if !s.Editing {
					s.Draft = profile
				}
				if s.Avatar.Status != AvatarPending {
					s.Avatar = Avatar{URL: profile.Avatar}
				}
			}
		})
		return nil
	})
	g.Go(func() error {
		cur, err := d.api.CurrentBook(ctx)
		errs[1] = err
		apply(func(s *DashboardState) {
			s.LoadingCurrentBook = false
			if err == nil {
				s.CurrentBook = cur
			}
		})
		return nil
	})
	g.Go(func() error {
		favs, err := d.api.Favorites(ctx)
		errs[2] = err
		apply(func(s *DashboardState) {
			s.LoadingFavorites = false
			if err == nil {
				s.Favorites = favs
			}
		})
		return nil
	})
	g.Go(func() error {
		charts, err := d.api.Charts(ctx)
		errs[3] = err
		apply(func(s *DashboardState) {
			s.LoadingCharts = false
			if err == nil {
				s.Charts = charts
			}
		})
		return nil
	})
	_ = g.Wait()

	for i, op := range []string{"load profile", "load current book", "load favorites", "load charts"} {
		report(d.notify, op, errs[i])
	}
	return errors.Join(errs...)
}

// BeginEdit copies the committed profile into the draft.
func (d *Dashboard) BeginEdit() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Draft = d.state.Profile
	d.state.Editing = true
}

// EditDraft mutates the draft only.
func (d *Dashboard) EditDraft(fn func(p *domain.UserProfile)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.state.Editing {
		return ErrNotEditing
	}
	fn(&d.state.Draft)
	return nil
}

// CancelEdit discards the draft.
func (d *Dashboard) CancelEdit() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Draft = d.state.Profile
	d.state.Editing = false
}

// SaveProfile sends the changed draft fields. On success the server's record
// becomes the committed profile; on failure the draft and edit mode stay.
func (d *Dashboard) SaveProfile(ctx context.Context) (domain.UserProfile, error) {
	d.mu.Lock()
	if !d.state.Editing {
		d.mu.Unlock()
		return domain.UserProfile{}, ErrNotEditing
	}
	if d.state.Saving {
		d.mu.Unlock()
		return domain.UserProfile{}, ErrBusy
	}
	update := d.state.Draft.Diff(d.state.Profile)
	if update.Empty() {
		d.state.Editing = false
		profile := d.state.Profile
		d.mu.Unlock()
		return profile, nil
	}
	d.state.Saving = true
	d.mu.Unlock()

	profile, err := d.api.UpdateProfile(ctx, update)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Saving = false
	if err != nil {
		report(d.notify, "save profile", err)
		return domain.UserProfile{}, err
	}
	d.state.Profile = profile
	d.state.Draft = profile
	d.state.Editing = false
	return profile, nil
}

// UploadAvatar shows data as a local preview at once, then either confirms
// the server's URL or rolls back to the previous avatar.
func (d *Dashboard) UploadAvatar(ctx context.Context, filename string, data []byte) (Avatar, error) {
	d.mu.Lock()
	if d.state.Avatar.Status == AvatarPending {
		d.mu.Unlock()
		return Avatar{}, ErrBusy
	}
	previous := d.state.Profile.Avatar
	d.state.Avatar = Avatar{Status: AvatarPending, URL: present.DataURL(data)}
	d.mu.Unlock()

	url, err := d.api.UploadAvatar(ctx, filename, data)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.state.Avatar = Avatar{Status: AvatarRolledBack, URL: previous, Err: err}
		report(d.notify, "upload avatar", err)
		return d.state.Avatar, err
	}
	d.state.Profile.Avatar = url
	d.state.Draft.Avatar = url
	d.state.Avatar = Avatar{Status: AvatarConfirmed, URL: url}
	return d.state.Avatar, nil
}

// RemoveFavorite drops a book from favorites once the server confirms.
func (d *Dashboard) RemoveFavorite(ctx context.Context, bookID int64) error {
	if err := d.api.RemoveFavorite(ctx, bookID); err != nil {
		report(d.notify, "remove favorite", err)
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Favorites = slices.DeleteFunc(slices.Clone(d.state.Favorites), func(f domain.FavoriteBook) bool {
		return f.Book.ID == bookID
	})
	return nil
}

// ContinueReading returns the id of the book being read.
func (d *Dashboard) ContinueReading() (int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.CurrentBook == nil {
		return 0, false
	}
	return d.state.CurrentBook.Book.ID, true
}
