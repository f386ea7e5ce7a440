package api

import (
	"context"
	"fmt"
	"net/http"

	"booknest/pkg/domain"
)

// CurrentBook returns the book the user is reading, or nil when there is none.
// The server answers 404 in that case, which is not a failure.
func (c *Client) CurrentBook(ctx context.Context) (*domain.CurrentBook, error) {
	var cur domain.CurrentBook
	if err := c.get(ctx, "/user/current-book/", nil, &cur); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &cur, nil
}

func (c *Client) UpdateReadingProgress(ctx context.Context, bookID int64, currentPage int) (domain.CurrentBook, error) {
	payload := map[string]any{"book_id": bookID, "current_page": currentPage}
	var cur domain.CurrentBook
	if err := c.doJSON(ctx, http.MethodPost, "/user/reading-progress/", payload, &cur); err != nil {
		return domain.CurrentBook{}, err
	}
	return cur, nil
}

func (c *Client) Favorites(ctx context.Context) ([]domain.FavoriteBook, error) {
	var favs []domain.FavoriteBook
	if err := c.get(ctx, "/user/favorites/", nil, &favs); err != nil {
		return nil, err
	}
	return favs, nil
}

func (c *Client) AddFavorite(ctx context.Context, bookID int64) (domain.FavoriteBook, error) {
	payload := map[string]int64{"book_id": bookID}
	var fav domain.FavoriteBook
	if err := c.doJSON(ctx, http.MethodPost, "/user/favorites/", payload, &fav); err != nil {
		return domain.FavoriteBook{}, err
	}
	return fav, nil
}

func (c *Client) RemoveFavorite(ctx context.Context, bookID int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/user/favorites/%d/", bookID), nil, nil)
}

func (c *Client) IsFavorite(ctx context.Context, bookID int64) (bool, error) {
	var resp struct {
		IsFavorite bool `json:"is_favorite"`
	}
	if err := c.get(ctx, fmt.Sprintf("/user/favorites/%d/check/", bookID), nil, &resp); err != nil {
		return false, err
	}
	return resp.IsFavorite, nil
}
