package api

import (
	"context"
	"fmt"
	"net/http"

	"booknest/pkg/domain"
)

func (c *Client) Charts(ctx context.Context) ([]domain.Chart, error) {
	var charts []domain.Chart
	if err := c.get(ctx, "/user/charts/", nil, &charts); err != nil {
		return nil, err
	}
	return charts, nil
}

func (c *Client) Chart(ctx context.Context, id int64) (domain.Chart, error) {
	var chart domain.Chart
	if err := c.get(ctx, chartPath(id), nil, &chart); err != nil {
		return domain.Chart{}, err
	}
	return chart, nil
}

func (c *Client) CreateChart(ctx context.Context, in domain.ChartInput) (domain.Chart, error) {
	var chart domain.Chart
	if err := c.doJSON(ctx, http.MethodPost, "/user/charts/", in, &chart); err != nil {
		return domain.Chart{}, err
	}
	return chart, nil
}

func (c *Client) UpdateChart(ctx context.Context, id int64, update domain.ChartUpdate) (domain.Chart, error) {
	var chart domain.Chart
	if err := c.doJSON(ctx, http.MethodPatch, chartPath(id), update, &chart); err != nil {
		return domain.Chart{}, err
	}
	return chart, nil
}

func (c *Client) DeleteChart(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, chartPath(id), nil, nil)
}

// AddBookToChart attaches one book and returns the server's view of the chart.
func (c *Client) AddBookToChart(ctx context.Context, chartID, bookID int64) (domain.Chart, error) {
	payload := map[string]int64{"book_id": bookID}
	var chart domain.Chart
	if err := c.doJSON(ctx, http.MethodPost, chartPath(chartID)+"books/", payload, &chart); err != nil {
		return domain.Chart{}, err
	}
	return chart, nil
}

func (c *Client) RemoveBookFromChart(ctx context.Context, chartID, bookID int64) error {
	path := fmt.Sprintf("%sbooks/%d/", chartPath(chartID), bookID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// UploadChartCover sends a cover image and returns its URL.
func (c *Client) UploadChartCover(ctx context.Context, chartID int64, filename string, data []byte) (string, error) {
	var resp struct {
		CoverURL string `json:"cover_url"`
	}
	if err := c.upload(ctx, chartPath(chartID)+"cover/", "cover", filename, data, &resp); err != nil {
		return "", err
	}
	return resp.CoverURL, nil
}

func (c *Client) Comments(ctx context.Context, bookID int64) ([]domain.Comment, error) {
	var comments []domain.Comment
	if err := c.get(ctx, commentsPath(bookID), nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// AddComment posts a comment; a zero rating is omitted.
func (c *Client) AddComment(ctx context.Context, bookID int64, text string, rating int) (domain.Comment, error) {
	payload := map[string]any{"comment": text}
	if rating > 0 {
		payload["rating"] = rating
	}
	var comment domain.Comment
	if err := c.doJSON(ctx, http.MethodPost, commentsPath(bookID), payload, &comment); err != nil {
		return domain.Comment{}, err
	}
	return comment, nil
}

func chartPath(id int64) string {
	return fmt.Sprintf("/user/charts/%d/", id)
}

func commentsPath(bookID int64) string {
	return fmt.Sprintf("/books/%d/comments/", bookID)
}
