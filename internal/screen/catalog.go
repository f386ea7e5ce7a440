package screen

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"booknest/pkg/domain"
)

const (
	DefaultPageSize = 20
	DefaultSort     = "rating"
)

// CatalogAPI is the part of the API the catalog screen uses.
type CatalogAPI interface {
	SearchBooks(ctx context.Context, filters domain.SearchFilters, page, pageSize int) (domain.BookPage, error)
	FilterOptions(ctx context.Context, kind domain.FilterKind) ([]string, error)
}

// FilterOptions are the values offered in the filter panel.
type FilterOptions struct {
	Genres     []string
	Tropes     []string
	Countries  []string
	Authors    []string
	AgeRatings []string
}

type CatalogState struct {
	Filters  domain.SearchFilters
	Page     int
	PageSize int
	Total    int
	Books    []domain.Book
	Loading  bool
	Options  FilterOptions
}

// TotalPages is ceil(Total / PageSize).
func (s CatalogState) TotalPages() int {
	if s.PageSize <= 0 {
		return 0
	}
	return (s.Total + s.PageSize - 1) / s.PageSize
}

// Catalog coordinates the search screen. Every filter change goes back to
// page 1 before searching.
type Catalog struct {
	api    CatalogAPI
	notify Notifier

	mu    sync.Mutex
	state CatalogState
	seq   uint64
}

func NewCatalog(api CatalogAPI, notify Notifier, pageSize int) *Catalog {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Catalog{
		api:    api,
		notify: notifierOrDefault(notify),
		state: CatalogState{
			Filters:  domain.SearchFilters{SortBy: DefaultSort},
			Page:     1,
			PageSize: pageSize,
			Options:  FilterOptions{AgeRatings: slices.Clone(domain.AgeRatings)},
		},
	}
}

func (c *Catalog) State() CatalogState {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Filters = cloneFilters(s.Filters)
	s.Books = slices.Clone(s.Books)
	return s
}

func (c *Catalog) TotalPages() int {
	return c.State().TotalPages()
}

// Search requests the current page. A failed search keeps the previous
// results. Replies to superseded searches are dropped.
func (c *Catalog) Search(ctx context.Context) error {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	filters := compactFilters(c.state.Filters)
	page, size := c.state.Page, c.state.PageSize
	c.state.Loading = true
	c.mu.Unlock()

	result, err := c.api.SearchBooks(ctx, filters, page, size)

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq {
		return err
	}
	c.state.Loading = false
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		report(c.notify, "search", err)
		return err
	}
	c.state.Books = result.Books
	c.state.Total = result.Total
	return nil
}

// mutate applies fn to the filters, resets to page 1 and searches.
func (c *Catalog) mutate(ctx context.Context, fn func(f *domain.SearchFilters)) error {
	c.mu.Lock()
	fn(&c.state.Filters)
	c.state.Page = 1
	c.mu.Unlock()
	return c.Search(ctx)
}

func (c *Catalog) SetQuery(ctx context.Context, query string) error {
	return c.mutate(ctx, func(f *domain.SearchFilters) { f.Query = query })
}

func (c *Catalog) ToggleGenre(ctx context.Context, v string) error {
	return c.mutate(ctx, func(f *domain.SearchFilters) { f.Genres = toggle(f.Genres, v) })
}

func (c *Catalog) ToggleTrope(ctx context.Context, v string) error {
	return c.mutate(ctx, func(f *domain.SearchFilters) { f.Tropes = toggle(f.Tropes, v) })
}

func (c *Catalog) ToggleCountry(ctx context.Context, v string) error {
	return c.mutate(ctx, func(f *domain.SearchFilters) { f.Countries = toggle(f.Countries, v) })
}

func (c *Catalog) ToggleAuthor(ctx context.Context, v string) error {
	return c.mutate(ctx, func(f *domain.SearchFilters) { f.Authors = toggle(f.Authors, v) })
}

func (c *Catalog) ToggleAgeRating(ctx context.Context, v string) error {
	return c.mutate(ctx, func(f *domain.SearchFilters) { f.AgeRatings = toggle(f.AgeRatings, v) })
}

// SetYearRange sets publication year bounds; 0 means unbounded.
func (c *Catalog) SetYearRange(ctx context.Context, from, to int) error {
	return c.mutate(ctx, func(f *domain.SearchFilters) { f.YearFrom, f.YearTo = from, to })
}

func (c *Catalog) SetPagesRange(ctx context.Context, from, to int) error {
	return c.mutate(ctx, func(f *domain.SearchFilters) { f.PagesFrom, f.PagesTo = from, to })
}

func (c *Catalog) SetSort(ctx context.Context, key string) error {
	if key == "" {
		key = DefaultSort
	}
	return c.mutate(ctx, func(f *domain.SearchFilters) { f.SortBy = key })
}

// ClearFilters drops every filter except the query and sort key.
func (c *Catalog) ClearFilters(ctx context.Context) error {
	return c.mutate(ctx, func(f *domain.SearchFilters) {
		*f = domain.SearchFilters{Query: f.Query, SortBy: f.SortBy}
	})
}

// Restore replaces the whole filter state and page at once, as when a saved
// search is reopened, and searches.
func (c *Catalog) Restore(ctx context.Context, filters domain.SearchFilters, page int) error {
	if filters.SortBy == "" {
		filters.SortBy = DefaultSort
	}
	if page < 1 {
		page = 1
	}
	c.mu.Lock()
	c.state.Filters = cloneFilters(filters)
	c.state.Page = page
	c.mu.Unlock()
	return c.Search(ctx)
}

// NextPage advances while more results exist and reports whether it moved.
func (c *Catalog) NextPage(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.state.Page*c.state.PageSize >= c.state.Total {
		c.mu.Unlock()
		return false, nil
	}
	c.state.Page++
	c.mu.Unlock()
	return true, c.Search(ctx)
}

func (c *Catalog) PreviousPage(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.state.Page <= 1 {
		c.mu.Unlock()
		return false, nil
	}
	c.state.Page--
	c.mu.Unlock()
	return true, c.Search(ctx)
}

// LoadFilterOptions fetches the four option lists concurrently. Each list is
// stored as soon as it arrives; failures are reported one by one.
func (c *Catalog) LoadFilterOptions(ctx context.Context) error {
	kinds := []domain.FilterKind{domain.FilterGenres, domain.FilterTropes, domain.FilterCountries, domain.FilterAuthors}
	errs := make([]error, len(kinds))
	var g errgroup.Group
	for i, kind := range kinds {
		i, kind := i, kind
		g.Go(func() error {
			values, err := c.api.FilterOptions(ctx, kind)
			if err != nil {
				errs[i] = err
				report(c.notify, "load "+string(kind), err)
				return nil
			}
			c.mu.Lock()
			defer c.mu.Unlock()
			switch kind {
			case domain.FilterGenres:
				c.state.Options.Genres = values
			case domain.FilterTropes:
				c.state.Options.Tropes = values
			case domain.FilterCountries:
				c.state.Options.Countries = values
			case domain.FilterAuthors:
				c.state.Options.Authors = values
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func toggle(set []string, v string) []string {
	if i := slices.Index(set, v); i >= 0 {
		return slices.Delete(slices.Clone(set), i, i+1)
	}
	return append(slices.Clone(set), v)
}

func compactFilters(f domain.SearchFilters) domain.SearchFilters {
	f = cloneFilters(f)
	f.Query = strings.TrimSpace(f.Query)
	return f
}

func cloneFilters(f domain.SearchFilters) domain.SearchFilters {
	f.Genres = slices.Clone(f.Genres)
	f.Tropes = slices.Clone(f.Tropes)
	f.Countries = slices.Clone(f.Countries)
	f.Authors = slices.Clone(f.Authors)
	f.AgeRatings = slices.Clone(f.AgeRatings)
	return f
}
