package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"booknest/pkg/domain"
)

const defaultPageSize = 20

func (c *Client) Books(ctx context.Context, page, pageSize int) (domain.BookPage, error) {
	var resp domain.BookPage
	if err := c.get(ctx, "/books/", pageQuery(page, pageSize), &resp); err != nil {
		return domain.BookPage{}, err
	}
	return resp, nil
}

func (c *Client) Book(ctx context.Context, id int64) (domain.Book, error) {
	var book domain.Book
	if err := c.get(ctx, fmt.Sprintf("/books/%d/", id), nil, &book); err != nil {
		return domain.Book{}, err
	}
	return book, nil
}

// SearchBooks requests one page of books matching filters.
func (c *Client) SearchBooks(ctx context.Context, filters domain.SearchFilters, page, pageSize int) (domain.BookPage, error) {
	var resp domain.BookPage
	if err := c.get(ctx, "/books/search/", SearchQuery(filters, page, pageSize), &resp); err != nil {
		return domain.BookPage{}, err
	}
	return resp, nil
}

// SearchQuery encodes filters as query parameters. Empty lists and zero
// numbers are omitted; lists are comma-joined.
func SearchQuery(f domain.SearchFilters, page, pageSize int) url.Values {
	q := pageQuery(page, pageSize)
	setString(q, "query", f.Query)
	setList(q, "genres", f.Genres)
	setList(q, "tropes", f.Tropes)
	setList(q, "countries", f.Countries)
	setInt(q, "year_from", f.YearFrom)
	setInt(q, "year_to", f.YearTo)
	setList(q, "age_rating", f.AgeRatings)
	setInt(q, "pages_from", f.PagesFrom)
	setInt(q, "pages_to", f.PagesTo)
	setList(q, "authors", f.Authors)
	setString(q, "sort_by", f.SortBy)
	return q
}

// FilterOptions returns the distinct values of one filter dimension.
func (c *Client) FilterOptions(ctx context.Context, kind domain.FilterKind) ([]string, error) {
	var values []string
	if err := c.get(ctx, "/filters/"+string(kind)+"/", nil, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (c *Client) Genres(ctx context.Context) ([]string, error) {
	return c.FilterOptions(ctx, domain.FilterGenres)
}

func (c *Client) Tropes(ctx context.Context) ([]string, error) {
	return c.FilterOptions(ctx, domain.FilterTropes)
}

func (c *Client) Countries(ctx context.Context) ([]string, error) {
	return c.FilterOptions(ctx, domain.FilterCountries)
}

func (c *Client) Authors(ctx context.Context) ([]string, error) {
	return c.FilterOptions(ctx, domain.FilterAuthors)
}

func (c *Client) Collections(ctx context.Context) ([]domain.Collection, error) {
	var cols []domain.Collection
	if err := c.get(ctx, "/collections/", nil, &cols); err != nil {
		return nil, err
	}
	return cols, nil
}

func (c *Client) Collection(ctx context.Context, id int64) (domain.Collection, error) {
	var col domain.Collection
	if err := c.get(ctx, fmt.Sprintf("/collections/%d/", id), nil, &col); err != nil {
		return domain.Collection{}, err
	}
	return col, nil
}

func pageQuery(page, pageSize int) url.Values {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	return q
}

func setString(q url.Values, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		q.Set(key, value)
	}
}

func setInt(q url.Values, key string, value int) {
	if value != 0 {
		q.Set(key, strconv.Itoa(value))
	}
}

func setList(q url.Values, key string, values []string) {
	if len(values) > 0 {
		q.Set(key, strings.Join(values, ","))
	}
}
