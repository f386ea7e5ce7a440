package screen

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"booknest/pkg/batch"
	"booknest/pkg/domain"
	"booknest/pkg/present"
)

var (
	ErrBlankTitle = errors.New("chart title is required")
	// ErrAttachFailed is returned under the Rollback policy when a book could
	// not be attached and the new chart was deleted.
	ErrAttachFailed = errors.New("some books could not be added to the chart")
)

const (
	attachConcurrency = 4
	searchPageSize    = 10
)

type ChartAPI interface {
	Charts(ctx context.Context) ([]domain.Chart, error)
	Chart(ctx context.Context, id int64) (domain.Chart, error)
	CreateChart(ctx context.Context, in domain.ChartInput) (domain.Chart, error)
	UpdateChart(ctx context.Context, id int64, update domain.ChartUpdate) (domain.Chart, error)
	DeleteChart(ctx context.Context, id int64) error
	AddBookToChart(ctx context.Context, chartID, bookID int64) (domain.Chart, error)
	RemoveBookFromChart(ctx context.Context, chartID, bookID int64) error
	UploadChartCover(ctx context.Context, chartID int64, filename string, data []byte) (string, error)
	Book(ctx context.Context, id int64) (domain.Book, error)
	SearchBooks(ctx context.Context, filters domain.SearchFilters, page, pageSize int) (domain.BookPage, error)
}

type Tab int

const (
	TabCreate Tab = iota
	TabManage
)

// AttachPolicy decides what happens to a new chart when some books fail to
// attach.
type AttachPolicy int

const (
	// BestEffort keeps the chart with the books that did attach.
	BestEffort AttachPolicy = iota
	// Rollback deletes the chart.
	Rollback
)

// Cover is a locally chosen cover image.
type Cover struct {
	Filename string
	Data     []byte
	Preview  string
}

// ChartDraft is the editing buffer, kept apart from the remote record.
type ChartDraft struct {
	// ChartID is 0 for a new chart.
	ChartID     int64
	Title       string
	Description string
	IsPublic    bool
	Cover       *Cover
	Books       []domain.Book

	original []int64
}

type ChartEditorState struct {
	Tab           Tab
	Draft         ChartDraft
	Charts        []domain.Chart
	SearchQuery   string
	SearchResults []domain.Book
	Searching     bool
	Saving        bool
	LoadingCharts bool
}

// BookFailure is a book that could not be attached or removed.
type BookFailure struct {
	BookID int64
	Err    error
}

// CreateResult describes a finished save.
type CreateResult struct {
	Chart    domain.Chart
	CoverErr error
	Attached []int64
	Removed  []int64
	Failures []BookFailure

	// RolledBack is set when the chart was deleted under the Rollback policy.
	RolledBack bool
}

// Partial reports whether the save left something undone.
func (r CreateResult) Partial() bool {
	return r.CoverErr != nil || len(r.Failures) > 0
}

// ChartEditor coordinates the chart creation and management screen.
type ChartEditor struct {
	api     ChartAPI
	notify  Notifier
	confirm Confirmer
	policy  AttachPolicy

	mu    sync.Mutex
	state ChartEditorState
	seq   uint64
}

func NewChartEditor(api ChartAPI, notify Notifier, confirm Confirmer, policy AttachPolicy) *ChartEditor {
	return &ChartEditor{
		api:     api,
		notify:  notifierOrDefault(notify),
		confirm: confirm,
		policy:  policy,
	}
}

func (e *ChartEditor) State() ChartEditorState {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state
	s.Draft.Books = slices.Clone(s.Draft.Books)
	s.Draft.original = nil
	s.Charts = slices.Clone(s.Charts)
	s.SearchResults = slices.Clone(s.SearchResults)
	return s
}

func (e *ChartEditor) SetTab(tab Tab) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Tab = tab
}

func (e *ChartEditor) SetTitle(title string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Draft.Title = title
}

func (e *ChartEditor) SetDescription(desc string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Draft.Description = desc
}

func (e *ChartEditor) SetPublic(public bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Draft.IsPublic = public
}

// SetCover chooses a cover image and builds its preview.
func (e *ChartEditor) SetCover(filename string, data []byte) {
	cover := &Cover{Filename: filename, Data: slices.Clone(data), Preview: present.DataURL(data)}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Draft.Cover = cover
}

func (e *ChartEditor) ClearCover() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Draft.Cover = nil
}

// AddBook appends book to the selection unless it is already there.
func (e *ChartEditor) AddBook(book domain.Book) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if hasBook(e.state.Draft.Books, book.ID) {
		return false
	}
	e.state.Draft.Books = append(e.state.Draft.Books, book)
	return true
}

func (e *ChartEditor) RemoveBook(id int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Draft.Books = slices.DeleteFunc(slices.Clone(e.state.Draft.Books), func(b domain.Book) bool {
		return b.ID == id
	})
}

// PreselectBook loads a book into the selection, for "new chart from this
// book".
func (e *ChartEditor) PreselectBook(ctx context.Context, id int64) error {
	book, err := e.api.Book(ctx, id)
	if err != nil {
		report(e.notify, "load book", err)
		return err
	}
	e.AddBook(book)
	e.SetTab(TabCreate)
	return nil
}

// SearchBooks looks up candidate books. A blank query clears the results.
func (e *ChartEditor) SearchBooks(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	e.mu.Lock()
	e.seq++
	seq := e.seq
	e.state.SearchQuery = query
	if query == "" {
		e.state.SearchResults = nil
		e.state.Searching = false
		e.mu.Unlock()
		return nil
	}
	e.state.Searching = true
	e.mu.Unlock()

	page, err := e.api.SearchBooks(ctx, domain.SearchFilters{Query: query}, 1, searchPageSize)

	e.mu.Lock()
	defer e.mu.Unlock()
	if seq != e.seq {
		return err
	}
	e.state.Searching = false
	if err != nil {
		report(e.notify, "search books", err)
		return err
	}
	e.state.SearchResults = page.Books
	return nil
}

// LoadCharts fills the manage tab.
func (e *ChartEditor) LoadCharts(ctx context.Context) error {
	e.mu.Lock()
	e.state.LoadingCharts = true
	e.mu.Unlock()

	charts, err := e.api.Charts(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.LoadingCharts = false
	if err != nil {
		report(e.notify, "load charts", err)
		return err
	}
	e.state.Charts = charts
	return nil
}

// Edit loads chart into the buffer and switches to the create tab.
func (e *ChartEditor) Edit(chart domain.Chart) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Draft = ChartDraft{
		ChartID:     chart.ID,
		Title:       chart.Title,
		Description: chart.Description,
		IsPublic:    chart.IsPublic,
		Books:       slices.Clone(chart.Books),
		original:    chart.BookIDs(),
	}
	e.state.Tab = TabCreate
}

// Reset empties the buffer.
func (e *ChartEditor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Draft = ChartDraft{}
}

// Save creates or updates the chart held in the buffer. Books are attached
// concurrently and Save returns only once every attach has resolved.
func (e *ChartEditor) Save(ctx context.Context) (CreateResult, error) {
	e.mu.Lock()
	if e.state.Saving {
		e.mu.Unlock()
		return CreateResult{}, ErrBusy
	}
	draft := e.state.Draft
	draft.Books = slices.Clone(draft.Books)
	if strings.TrimSpace(draft.Title) == "" {
		e.mu.Unlock()
		return CreateResult{}, ErrBlankTitle
	}
	e.state.Saving = true
	e.mu.Unlock()

	var (
		res CreateResult
		err error
	)
	if draft.ChartID == 0 {
		res, err = e.create(ctx, draft)
	} else {
		res, err = e.update(ctx, draft)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Saving = false
	if err != nil {
		// a chart that could not be rolled back still exists on the server
		if res.Chart.ID != 0 && !res.RolledBack {
			e.state.Charts = upsertChart(e.state.Charts, res.Chart)
		}
		return res, err
	}
	e.state.Charts = upsertChart(e.state.Charts, res.Chart)
	e.state.Draft = ChartDraft{}
	e.state.Tab = TabManage
	return res, nil
}

func (e *ChartEditor) create(ctx context.Context, draft ChartDraft) (CreateResult, error) {
	chart, err := e.api.CreateChart(ctx, domain.ChartInput{
		Title:       strings.TrimSpace(draft.Title),
		Description: draft.Description,
		IsPublic:    draft.IsPublic,
	})
	if err != nil {
		report(e.notify, "create chart", err)
		return CreateResult{}, err
	}
	res := CreateResult{Chart: chart}
	e.uploadCover(ctx, draft, &res)

	attached := batch.Run(ctx, draft.Books, attachConcurrency, func(ctx context.Context, b domain.Book) error {
		_, err := e.api.AddBookToChart(ctx, chart.ID, b.ID)
		return err
	})
	res.Chart.Books = attached.Succeeded()
	res.Attached = res.Chart.BookIDs()
	res.Failures = bookFailures(attached)

	if len(res.Failures) == 0 {
		return res, nil
	}
	if e.policy == Rollback {
		err := fmt.Errorf("%w: %w", ErrAttachFailed, failuresErr(res.Failures))
		if delErr := e.api.DeleteChart(ctx, chart.ID); delErr != nil {
			report(e.notify, "roll back chart", delErr)
			err = errors.Join(err, fmt.Errorf("roll back chart %d: %w", chart.ID, delErr))
		} else {
			res.RolledBack = true
		}
		report(e.notify, "create chart", err)
		return res, err
	}
	report(e.notify, "add books to chart", failuresErr(res.Failures))
	return res, nil
}

func (e *ChartEditor) update(ctx context.Context, draft ChartDraft) (CreateResult, error) {
	title := strings.TrimSpace(draft.Title)
	chart, err := e.api.UpdateChart(ctx, draft.ChartID, domain.ChartUpdate{
		Title:       &title,
		Description: &draft.Description,
		IsPublic:    &draft.IsPublic,
	})
	if err != nil {
		report(e.notify, "update chart", err)
		return CreateResult{}, err
	}
	res := CreateResult{Chart: chart}
	e.uploadCover(ctx, draft, &res)

	var added []domain.Book
	for _, b := range draft.Books {
		if !slices.Contains(draft.original, b.ID) {
			added = append(added, b)
		}
	}
	var removed []int64
	for _, id := range draft.original {
		if !hasBook(draft.Books, id) {
			removed = append(removed, id)
		}
	}

	adds := batch.Run(ctx, added, attachConcurrency, func(ctx context.Context, b domain.Book) error {
		_, err := e.api.AddBookToChart(ctx, chart.ID, b.ID)
		return err
	})
	removes := batch.Run(ctx, removed, attachConcurrency, func(ctx context.Context, id int64) error {
		return e.api.RemoveBookFromChart(ctx, chart.ID, id)
	})

	failedAdd := make(map[int64]bool)
	for _, f := range adds.Failed() {
		failedAdd[f.Item.ID] = true
	}
	books := make([]domain.Book, 0, len(draft.Books))
	for _, b := range draft.Books {
		if !failedAdd[b.ID] {
			books = append(books, b)
		}
	}
	// books whose removal failed are still on the server
	for _, f := range removes.Failed() {
		if i := slices.IndexFunc(chart.Books, func(b domain.Book) bool { return b.ID == f.Item }); i >= 0 {
			books = append(books, chart.Books[i])
		} else {
			books = append(books, domain.Book{ID: f.Item})
		}
	}
	res.Chart.Books = books
	for _, b := range adds.Succeeded() {
		res.Attached = append(res.Attached, b.ID)
	}
	res.Removed = removes.Succeeded()
	res.Failures = bookFailures(adds)
	for _, f := range removes.Failed() {
		res.Failures = append(res.Failures, BookFailure{BookID: f.Item, Err: f.Err})
	}
	if err := failuresErr(res.Failures); err != nil {
		report(e.notify, "update chart books", err)
	}
	return res, nil
}

// uploadCover sends the chosen cover. A failure is recorded and reported but
// does not stop the save.
func (e *ChartEditor) uploadCover(ctx context.Context, draft ChartDraft, res *CreateResult) {
	if draft.Cover == nil {
		return
	}
	url, err := e.api.UploadChartCover(ctx, res.Chart.ID, draft.Cover.Filename, draft.Cover.Data)
	if err != nil {
		res.CoverErr = err
		report(e.notify, "upload chart cover", err)
		return
	}
	res.Chart.CoverImage = url
}

// DeleteChart removes a chart after confirmation. It reports false when the
// user declined or no Confirmer was given.
func (e *ChartEditor) DeleteChart(ctx context.Context, id int64) (bool, error) {
	if !confirmed(e.confirm) {
		return false, nil
	}
	if err := e.api.DeleteChart(ctx, id); err != nil {
		report(e.notify, "delete chart", err)
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Charts = slices.DeleteFunc(slices.Clone(e.state.Charts), func(c domain.Chart) bool {
		return c.ID == id
	})
	if e.state.Draft.ChartID == id {
		e.state.Draft = ChartDraft{}
	}
	return true, nil
}

// ChartViewState is the state of the single-chart page.
type ChartViewState struct {
	Chart   *domain.Chart
	Loading bool
}

// ChartView coordinates the page showing one chart.
type ChartView struct {
	api     ChartAPI
	session SessionView
	notify  Notifier
	confirm Confirmer

	mu    sync.Mutex
	state ChartViewState
}

func NewChartView(api ChartAPI, session SessionView, notify Notifier, confirm Confirmer) *ChartView {
	return &ChartView{api: api, session: session, notify: notifierOrDefault(notify), confirm: confirm}
}

func (v *ChartView) State() ChartViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := v.state
	if s.Chart != nil {
		c := *s.Chart
		c.Books = slices.Clone(c.Books)
		s.Chart = &c
	}
	return s
}

func (v *ChartView) Load(ctx context.Context, id int64) error {
	v.mu.Lock()
	v.state = ChartViewState{Loading: true}
	v.mu.Unlock()

	chart, err := v.api.Chart(ctx, id)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.Loading = false
	if err != nil {
		report(v.notify, "load chart", err)
		return err
	}
	v.state.Chart = &chart
	return nil
}

// IsOwner reports whether the logged-in user owns the loaded chart.
func (v *ChartView) IsOwner() bool {
	chart := v.State().Chart
	if chart == nil || v.session == nil {
		return false
	}
	sess, ok := v.session.Current()
	return ok && sess.User.ID != 0 && sess.User.ID == chart.UserID
}

// Delete removes the loaded chart after confirmation.
func (v *ChartView) Delete(ctx context.Context) (bool, error) {
	chart := v.State().Chart
	if chart == nil {
		return false, nil
	}
	if !confirmed(v.confirm) {
		return false, nil
	}
	if err := v.api.DeleteChart(ctx, chart.ID); err != nil {
		report(v.notify, "delete chart", err)
		return false, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.Chart = nil
	return true, nil
}

func hasBook(books []domain.Book, id int64) bool {
	return slices.ContainsFunc(books, func(b domain.Book) bool { return b.ID == id })
}

func bookFailures(rs batch.Results[domain.Book]) []BookFailure {
	var out []BookFailure
	for _, f := range rs.Failed() {
		out = append(out, BookFailure{BookID: f.Item.ID, Err: f.Err})
	}
	return out
}

// failuresErr joins the failures, each annotated with its book id.
func failuresErr(fs []BookFailure) error {
	errs := make([]error, 0, len(fs))
	for _, f := range fs {
		errs = append(errs, fmt.Errorf("book %d: %w", f.BookID, f.Err))
	}
	return errors.Join(errs...)
}

func upsertChart(charts []domain.Chart, chart domain.Chart) []domain.Chart {
	out := slices.Clone(charts)
	for i := range out {
		if out[i].ID == chart.ID {
			out[i] = chart
			return out
		}
	}
	return append(out, chart)
}
