// Package present turns domain records into display values: rating stars,
// media URLs, localized strings and text previews.
package present

import (
	"encoding/base64"
	"fmt"
	"math"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/net/html"

	"booknest/pkg/domain"
)

// Star is one glyph of a five-star rating.
type Star string

const (
	StarFull  Star = "full"
	StarEmpty Star = "empty"
)

const maxStars = 5

// Stars renders rating as five glyphs, one full glyph per whole point.
func Stars(rating float64) []Star {
	full := int(math.Floor(rating))
	stars := make([]Star, maxStars)
	for i := range stars {
		if i < full {
			stars[i] = StarFull
		} else {
			stars[i] = StarEmpty
		}
	}
	return stars
}

// StarString renders stars as text, e.g. "★★★☆☆".
func StarString(rating float64) string {
	var b strings.Builder
	for _, s := range Stars(rating) {
		if s == StarFull {
			b.WriteString("★")
		} else {
			b.WriteString("☆")
		}
	}
	return b.String()
}

const (
	PlaceholderCover = "assets/books/placeholder-book.svg"
	DefaultAvatar    = "/media/avatars/default-avatar.png"
)

// MediaURL resolves a media path returned by the API against base, the
// server origin.
func MediaURL(base, path string) string {
	base = strings.TrimRight(base, "/")
	switch {
	case path == "":
		return PlaceholderCover
	case strings.HasPrefix(path, "http://"), strings.HasPrefix(path, "https://"):
		return path
	case strings.HasPrefix(path, "/media"), strings.HasPrefix(path, "/static"):
		return base + path
	case strings.HasPrefix(path, "media/"), strings.HasPrefix(path, "static/"):
		return base + "/" + path
	case strings.HasPrefix(path, "assets/"):
		return path
	default:
		return base + "/media/" + path
	}
}

// PlainText strips markup from an HTML fragment and collapses whitespace.
// Input that does not parse is returned trimmed.
func PlainText(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(strings.Fields(b.String()), " ")
}

// DataURL encodes data as a data: URL for previews, typed by content sniffing.
func DataURL(data []byte) string {
	mtype := strings.ReplaceAll(mimetype.Detect(data).String(), " ", "")
	return "data:" + mtype + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Progress formats reading progress as a whole percentage. When the server
// sent no percentage it is derived from the page counts.
func Progress(cur domain.CurrentBook) string {
	p := cur.Progress
	if p <= 0 && cur.TotalPages > 0 {
		p = float64(cur.CurrentPage) / float64(cur.TotalPages) * 100
	}
	p = math.Max(0, math.Min(100, p))
	return fmt.Sprintf("%.0f%%", p)
}
