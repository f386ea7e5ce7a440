package screen

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"booknest/pkg/domain"
)

func selectBooks(t *testing.T, e *ChartEditor, fake *fakeAPI, ids ...int64) {
	t.Helper()
	for _, id := range ids {
		if !e.AddBook(fake.books[id]) {
			t.Fatalf("book %d rejected", id)
		}
	}
}

func sortedIDs(books []domain.Book) []int64 {
	ids := make([]int64, 0, len(books))
	for _, b := range books {
		ids = append(ids, b.ID)
	}
	slices.Sort(ids)
	return ids
}

func TestCreateChartWithTwoBooksAnyCompletionOrder(t *testing.T) {
	for _, slow := range []int64{1, 2} {
		fake := newFakeAPI()
		fake.attachHook = func(_, bookID int64) error {
			if bookID == slow {
				time.Sleep(30 * time.Millisecond)
			}
			return nil
		}
		e := NewChartEditor(fake, &recorder{}, nil, BestEffort)
		e.SetTitle("My List")
		selectBooks(t, e, fake, 1, 2)

		res, err := e.Save(context.Background())
		if err != nil {
			t.Fatalf("save (slow=%d): %v", slow, err)
		}
		if got := res.Chart.BookIDs(); !slices.Equal(got, []int64{1, 2}) {
			t.Fatalf("slow=%d: chart books %v", slow, got)
		}
		server := fake.charts[res.Chart.ID]
		if got := sortedIDs(server.Books); !slices.Equal(got, []int64{1, 2}) {
			t.Fatalf("slow=%d: server chart books %v", slow, got)
		}
		if server.Title != "My List" || res.Partial() {
			t.Fatalf("unexpected result %+v", res)
		}
		s := e.State()
		if len(s.Draft.Books) != 0 || s.Draft.Title != "" || s.Tab != TabManage {
			t.Fatalf("buffer should reset after save: %+v", s)
		}
		if len(s.Charts) != 1 || s.Charts[0].ID != res.Chart.ID {
			t.Fatalf("chart should be listed: %+v", s.Charts)
		}
	}
}

func TestAddBookIsUniqueByID(t *testing.T) {
	fake := newFakeAPI()
	e := NewChartEditor(fake, nil, nil, BestEffort)
	if !e.AddBook(fake.books[1]) {
		t.Fatalf("first add rejected")
	}
	if e.AddBook(fake.books[1]) {
		t.Fatalf("duplicate accepted")
	}
	e.AddBook(fake.books[2])
	e.RemoveBook(1)
	if got := e.State().Draft.Books; len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("unexpected selection %+v", got)
	}
}

func TestSaveRejectsBlankTitle(t *testing.T) {
	fake := newFakeAPI()
	e := NewChartEditor(fake, nil, nil, BestEffort)
	e.SetTitle("   ")
	if _, err := e.Save(context.Background()); !errors.Is(err, ErrBlankTitle) {
		t.Fatalf("expected ErrBlankTitle, got %v", err)
	}
	if len(fake.charts) != 0 {
		t.Fatalf("no chart should be created")
	}
}

func TestSaveToleratesCoverFailure(t *testing.T) {
	fake := newFakeAPI()
	fake.coverErr = errors.New("too large")
	rec := &recorder{}
	e := NewChartEditor(fake, rec, nil, BestEffort)
	e.SetTitle("Covers")
	e.SetCover("cover.png", []byte("\x89PNG\r\n\x1a\n"))
	selectBooks(t, e, fake, 3)

	res, err := e.Save(context.Background())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if res.CoverErr == nil || !res.Partial() {
		t.Fatalf("cover failure should be recorded: %+v", res)
	}
	if !slices.Equal(res.Attached, []int64{3}) {
		t.Fatalf("books should still attach: %v", res.Attached)
	}
	if ops := rec.ops(); !slices.Contains(ops, "upload chart cover") {
		t.Fatalf("cover failure not reported: %v", ops)
	}
}

func TestSaveUploadsCover(t *testing.T) {
	fake := newFakeAPI()
	e := NewChartEditor(fake, nil, nil, BestEffort)
	e.SetTitle("Covers")
	e.SetCover("cover.png", []byte("\x89PNG\r\n\x1a\n"))
	if p := e.State().Draft.Cover.Preview; p == "" {
		t.Fatalf("expected preview")
	}
	res, err := e.Save(context.Background())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if res.Chart.CoverImage == "" {
		t.Fatalf("cover url missing")
	}
}

func TestBestEffortKeepsPartialChart(t *testing.T) {
	fake := newFakeAPI()
	fake.attachFailID[2] = true
	rec := &recorder{}
	e := NewChartEditor(fake, rec, nil, BestEffort)
	e.SetTitle("Partial")
	selectBooks(t, e, fake, 1, 2, 3)

	res, err := e.Save(context.Background())
	if err != nil {
		t.Fatalf("best effort save should succeed: %v", err)
	}
	if !slices.Equal(res.Chart.BookIDs(), []int64{1, 3}) {
		t.Fatalf("unexpected books %v", res.Chart.BookIDs())
	}
	if len(res.Failures) != 1 || res.Failures[0].BookID != 2 {
		t.Fatalf("unexpected failures %+v", res.Failures)
	}
	if _, ok := fake.charts[res.Chart.ID]; !ok {
		t.Fatalf("chart should remain")
	}
	if ops := rec.ops(); !slices.Contains(ops, "add books to chart") {
		t.Fatalf("missing books not reported: %v", ops)
	}
}

func TestRollbackDeletesChartOnAttachFailure(t *testing.T) {
	fake := newFakeAPI()
	fake.attachFailID[1] = true
	e := NewChartEditor(fake, &recorder{}, nil, Rollback)
	e.SetTitle("All or nothing")
	selectBooks(t, e, fake, 1, 2)

	res, err := e.Save(context.Background())
	if !errors.Is(err, ErrAttachFailed) {
		t.Fatalf("expected ErrAttachFailed, got %v", err)
	}
	if !res.RolledBack || len(fake.charts) != 0 {
		t.Fatalf("chart should be deleted: %+v", fake.charts)
	}
	if s := e.State(); s.Draft.Title != "All or nothing" || len(s.Draft.Books) != 2 {
		t.Fatalf("buffer should be kept for retry: %+v", s.Draft)
	}
}

func TestRollbackFailureKeepsChartVisible(t *testing.T) {
	fake := newFakeAPI()
	fake.attachFailID[2] = true
	fake.failOps["delete chart"] = errors.New("delete refused")
	notes := &recorder{}
	e := NewChartEditor(fake, notes, nil, Rollback)
	e.SetTitle("Stuck")
	selectBooks(t, e, fake, 1, 2)

	res, err := e.Save(context.Background())
	if !errors.Is(err, ErrAttachFailed) {
		t.Fatalf("expected ErrAttachFailed, got %v", err)
	}
	if res.RolledBack {
		t.Fatalf("chart %d was not deleted, result must not claim a rollback", res.Chart.ID)
	}
	if _, ok := fake.charts[res.Chart.ID]; !ok {
		t.Fatalf("chart should still exist on the server")
	}
	charts := e.State().Charts
	if len(charts) != 1 || charts[0].ID != res.Chart.ID || !slices.Equal(charts[0].BookIDs(), []int64{1}) {
		t.Fatalf("partial chart should be listed locally: %+v", charts)
	}
	if !slices.Contains(notes.ops(), "roll back chart") {
		t.Fatalf("rollback failure should be reported, got %v", notes.ops())
	}
}

func TestAttachFailuresNameTheBook(t *testing.T) {
	fake := newFakeAPI()
	fake.attachFailID[2] = true
	notes := &recorder{}
	e := NewChartEditor(fake, notes, nil, BestEffort)
	e.SetTitle("Partial")
	selectBooks(t, e, fake, 1, 2)

	if _, err := e.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(notes.notices) != 1 {
		t.Fatalf("expected one notice, got %v", notes.ops())
	}
	msg := notes.notices[0].Err.Error()
	if msg != "book 2: attach failed" {
		t.Fatalf("unexpected failure message %q", msg)
	}
}

func TestDeleteWithoutConfirmerIsDenied(t *testing.T) {
	ctx := context.Background()
	fake := newFakeAPI()
	fake.charts[5] = domain.Chart{ID: 5, UserID: 1, Title: "Safe"}

	e := NewChartEditor(fake, nil, nil, BestEffort)
	if deleted, err := e.DeleteChart(ctx, 5); deleted || err != nil {
		t.Fatalf("editor delete: deleted=%v err=%v", deleted, err)
	}
	v := NewChartView(fake, nil, nil, nil)
	if err := v.Load(ctx, 5); err != nil {
		t.Fatalf("load: %v", err)
	}
	if deleted, err := v.Delete(ctx); deleted || err != nil {
		t.Fatalf("view delete: deleted=%v err=%v", deleted, err)
	}
	if len(fake.deleteCalls) != 0 {
		t.Fatalf("nothing may reach the server without confirmation: %v", fake.deleteCalls)
	}
}

func TestEditChartSyncsBooks(t *testing.T) {
	fake := newFakeAPI()
	fake.charts[50] = domain.Chart{ID: 50, UserID: 1, Title: "Old", Books: []domain.Book{fake.books[1], fake.books[2]}}
	e := NewChartEditor(fake, nil, nil, BestEffort)
	e.Edit(fake.charts[50])
	if s := e.State(); s.Tab != TabCreate || s.Draft.ChartID != 50 {
		t.Fatalf("edit should load the buffer: %+v", s)
	}
	e.SetTitle("New")
	e.RemoveBook(1)
	selectBooks(t, e, fake, 3)

	res, err := e.Save(context.Background())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !slices.Equal(res.Attached, []int64{3}) || !slices.Equal(res.Removed, []int64{1}) {
		t.Fatalf("unexpected sync %+v", res)
	}
	server := fake.charts[50]
	if server.Title != "New" || !slices.Equal(sortedIDs(server.Books), []int64{2, 3}) {
		t.Fatalf("server chart %+v", server)
	}
	if !slices.Equal(res.Chart.BookIDs(), []int64{2, 3}) {
		t.Fatalf("result chart books %v", res.Chart.BookIDs())
	}
}

func TestDeleteChartRequiresConfirmation(t *testing.T) {
	ctx := context.Background()
	fake := newFakeAPI()
	fake.charts[5] = domain.Chart{ID: 5, Title: "Keep?"}
	answer := false
	e := NewChartEditor(fake, nil, ConfirmFunc(func(string) bool { return answer }), BestEffort)
	if err := e.LoadCharts(ctx); err != nil {
		t.Fatalf("load charts: %v", err)
	}

	deleted, err := e.DeleteChart(ctx, 5)
	if deleted || err != nil || len(fake.deleteCalls) != 0 {
		t.Fatalf("declined delete must not reach the server: deleted=%v err=%v", deleted, err)
	}
	answer = true
	fake.failOps["delete chart"] = errors.New("boom")
	if _, err := e.DeleteChart(ctx, 5); err == nil {
		t.Fatalf("expected failure")
	}
	if len(e.State().Charts) != 1 {
		t.Fatalf("chart must stay until the server confirms")
	}
	delete(fake.failOps, "delete chart")
	if deleted, err := e.DeleteChart(ctx, 5); !deleted || err != nil {
		t.Fatalf("delete: deleted=%v err=%v", deleted, err)
	}
	if len(e.State().Charts) != 0 {
		t.Fatalf("chart should leave the list")
	}
}

func TestPreselectAndSearchBooks(t *testing.T) {
	ctx := context.Background()
	fake := newFakeAPI()
	e := NewChartEditor(fake, nil, nil, BestEffort)
	e.SetTab(TabManage)
	if err := e.PreselectBook(ctx, 2); err != nil {
		t.Fatalf("preselect: %v", err)
	}
	s := e.State()
	if s.Tab != TabCreate || len(s.Draft.Books) != 1 || s.Draft.Books[0].ID != 2 {
		t.Fatalf("unexpected state %+v", s)
	}

	if err := e.SearchBooks(ctx, "dune"); err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(e.State().SearchResults) == 0 {
		t.Fatalf("expected results")
	}
	if err := e.SearchBooks(ctx, "  "); err != nil {
		t.Fatalf("blank search: %v", err)
	}
	if len(e.State().SearchResults) != 0 {
		t.Fatalf("blank query should clear results")
	}
}

func TestChartViewOwnershipAndDelete(t *testing.T) {
	ctx := context.Background()
	fake := newFakeAPI()
	fake.charts[8] = domain.Chart{ID: 8, UserID: 1, Title: "Shared"}
	owner := staticSession{sess: domain.Session{User: domain.User{ID: 1}, Token: "t"}}
	other := staticSession{sess: domain.Session{User: domain.User{ID: 2}, Token: "t"}}

	v := NewChartView(fake, other, nil, ConfirmFunc(func(string) bool { return true }))
	if err := v.Load(ctx, 8); err != nil {
		t.Fatalf("load: %v", err)
	}
	if v.IsOwner() {
		t.Fatalf("user 2 does not own the chart")
	}

	v = NewChartView(fake, owner, nil, ConfirmFunc(func(string) bool { return true }))
	_ = v.Load(ctx, 8)
	if !v.IsOwner() {
		t.Fatalf("user 1 owns the chart")
	}
	if deleted, err := v.Delete(ctx); !deleted || err != nil {
		t.Fatalf("delete: %v %v", deleted, err)
	}
	if v.State().Chart != nil {
		t.Fatalf("chart should be cleared")
	}
	if err := v.Load(ctx, 8); err == nil {
		t.Fatalf("expected not found after delete")
	}
}
