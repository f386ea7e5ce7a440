package screen

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"booknest/pkg/domain"
)

func loadedDashboard(t *testing.T) (*Dashboard, *fakeAPI) {
	t.Helper()
	fake := newFakeAPI()
	fake.profile = domain.UserProfile{ID: 1, Username: "ann", City: "Almaty", Age: 30, Avatar: "/media/avatars/ann.png"}
	d := NewDashboard(fake, &recorder{})
	if err := d.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return d, fake
}

func TestDashboardLoadWithoutCurrentBook(t *testing.T) {
	d, _ := loadedDashboard(t)
	s := d.State()
	if s.CurrentBook != nil {
		t.Fatalf("expected no current book")
	}
	if _, ok := d.ContinueReading(); ok {
		t.Fatalf("nothing to continue")
	}
	if s.Profile.Username != "ann" || s.Avatar.URL != "/media/avatars/ann.png" {
		t.Fatalf("unexpected profile %+v", s)
	}
	if s.LoadingProfile || s.LoadingCurrentBook || s.LoadingFavorites || s.LoadingCharts {
		t.Fatalf("loading flags should clear")
	}
}

func TestDashboardSliceFailureIsIsolated(t *testing.T) {
	fake := newFakeAPI()
	fake.current = &domain.CurrentBook{Book: domain.Book{ID: 3}, CurrentPage: 12}
	fake.favorites[1] = true
	fake.failOps["charts"] = errors.New("charts down")
	rec := &recorder{}
	d := NewDashboard(fake, rec)
	if err := d.Load(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	s := d.State()
	if s.CurrentBook == nil || len(s.Favorites) != 1 || s.Charts != nil {
		t.Fatalf("unexpected state %+v", s)
	}
	if id, ok := d.ContinueReading(); !ok || id != 3 {
		t.Fatalf("continue reading %d %v", id, ok)
	}
	if ops := rec.ops(); len(ops) != 1 || ops[0] != "load charts" {
		t.Fatalf("unexpected notices %v", ops)
	}
}

func TestCancelEditRestoresProfile(t *testing.T) {
	d, _ := loadedDashboard(t)
	before := d.State().Profile

	d.BeginEdit()
	if err := d.EditDraft(func(p *domain.UserProfile) {
		p.City = "Astana"
		p.Bio = "changed"
	}); err != nil {
		t.Fatalf("edit draft: %v", err)
	}
	if d.State().Profile.City != "Almaty" {
		t.Fatalf("editing must not touch the committed profile")
	}
	d.CancelEdit()
	s := d.State()
	if s.Editing || s.Draft != before || s.Profile != before {
		t.Fatalf("cancel should restore: %+v", s)
	}
	if err := d.EditDraft(func(*domain.UserProfile) {}); !errors.Is(err, ErrNotEditing) {
		t.Fatalf("expected ErrNotEditing, got %v", err)
	}
}

func TestSaveProfileCommitsServerRecord(t *testing.T) {
	d, fake := loadedDashboard(t)
	d.BeginEdit()
	_ = d.EditDraft(func(p *domain.UserProfile) { p.City = "Astana" })
	profile, err := d.SaveProfile(context.Background())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if profile.City != "Astana" || fake.profile.City != "Astana" {
		t.Fatalf("unexpected profile %+v", profile)
	}
	if s := d.State(); s.Editing || s.Profile.City != "Astana" {
		t.Fatalf("unexpected state %+v", s)
	}
}

func TestSaveProfileFailureKeepsDraft(t *testing.T) {
	d, fake := loadedDashboard(t)
	fake.updateErr = errors.New("invalid age")
	d.BeginEdit()
	_ = d.EditDraft(func(p *domain.UserProfile) { p.Age = -1 })
	if _, err := d.SaveProfile(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	s := d.State()
	if !s.Editing || s.Draft.Age != -1 || s.Profile.Age != 30 {
		t.Fatalf("draft and edit mode should stay: %+v", s)
	}
}

func TestAvatarUploadConfirmed(t *testing.T) {
	d, fake := loadedDashboard(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	fake.uploadHook = func(context.Context) (string, error) {
		close(entered)
		<-release
		return "/media/avatars/new.png", nil
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = d.UploadAvatar(context.Background(), "new.png", []byte("\x89PNG\r\n\x1a\n"))
	}()
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatalf("upload never started")
	}
	pending := d.State().Avatar
	if pending.Status != AvatarPending || !strings.HasPrefix(pending.URL, "data:image/png;base64,") {
		t.Fatalf("expected pending preview, got %+v", pending)
	}
	close(release)
	wg.Wait()

	s := d.State()
	if s.Avatar.Status != AvatarConfirmed || s.Avatar.URL != "/media/avatars/new.png" || s.Profile.Avatar != "/media/avatars/new.png" {
		t.Fatalf("expected confirmed avatar, got %+v", s.Avatar)
	}
}

func TestAvatarUploadRollsBack(t *testing.T) {
	d, fake := loadedDashboard(t)
	fake.uploadHook = func(context.Context) (string, error) {
		return "", errors.New("file too large")
	}
	avatar, err := d.UploadAvatar(context.Background(), "big.png", []byte("\x89PNG\r\n\x1a\n"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if avatar.Status != AvatarRolledBack || avatar.URL != "/media/avatars/ann.png" || avatar.Err == nil {
		t.Fatalf("expected rollback to previous avatar, got %+v", avatar)
	}
	if d.State().Profile.Avatar != "/media/avatars/ann.png" {
		t.Fatalf("profile avatar should be unchanged")
	}
}

func TestDashboardRemoveFavorite(t *testing.T) {
	fake := newFakeAPI()
	fake.favorites[1] = true
	fake.favorites[2] = true
	d := NewDashboard(fake, nil)
	_ = d.Load(context.Background())
	if err := d.RemoveFavorite(context.Background(), 1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	favs := d.State().Favorites
	if len(favs) != 1 || favs[0].Book.ID != 2 {
		t.Fatalf("unexpected favorites %+v", favs)
	}
}
