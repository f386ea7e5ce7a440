package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"booknest/internal/screen"
	"booknest/pkg/domain"
	"booknest/pkg/present"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func printBooks(w io.Writer, books []domain.Book) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tYEAR\tRATING")
	for _, b := range books {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", b.ID, b.Title, b.Author, b.Year, present.StarString(b.Rating))
	}
	_ = tw.Flush()
}

func printBook(a *app, s screen.BookState) {
	b := s.Book
	fmt.Fprintf(a.out, "%s\n%s\n\n", b.Title, b.Author)
	tw := newTable(a.out)
	fmt.Fprintf(tw, "rating\t%s %.1f\n", present.StarString(b.Rating), b.Rating)
	fmt.Fprintf(tw, "%s\t%s\n", a.tr.T("book.genres"), strings.Join(b.Genres, ", "))
	if len(b.Tropes) > 0 {
		fmt.Fprintf(tw, "%s\t%s\n", a.tr.T("book.tropes"), strings.Join(b.Tropes, ", "))
	}
	fmt.Fprintf(tw, "%s\t%s\n", a.tr.T("book.country"), b.Country)
	fmt.Fprintf(tw, "%s\t%d\n", a.tr.T("book.year"), b.Year)
	fmt.Fprintf(tw, "%s\t%d\n", a.tr.T("book.pages"), b.Pages)
	if b.AgeRating != "" {
		fmt.Fprintf(tw, "%s\t%s\n", a.tr.T("book.ageRating"), b.AgeRating)
	}
	fmt.Fprintf(tw, "cover\t%s\n", a.media(b.Cover))
	if s.IsFavorite {
		fmt.Fprintf(tw, "\t%s\n", a.tr.T("book.inFavorites"))
	}
	_ = tw.Flush()

	if desc := present.PlainText(b.Description); desc != "" {
		fmt.Fprintf(a.out, "\n%s\n", desc)
	}

	fmt.Fprintf(a.out, "\n%s (%d)\n", a.tr.T("book.reviewsComments"), len(s.Comments))
	for _, c := range s.Comments {
		stars := ""
		if c.Rating > 0 {
			stars = " " + present.StarString(float64(c.Rating))
		}
		fmt.Fprintf(a.out, "  %s%s, %s\n    %s\n", c.User.Username, stars, c.CreatedDate, c.Comment)
	}
}

func printProfile(a *app, p domain.UserProfile) {
	tw := newTable(a.out)
	fmt.Fprintf(tw, "%s\t%s\n", a.tr.T("dashboard.username"), p.Username)
	fmt.Fprintf(tw, "email\t%s\n", p.Email)
	if p.Age > 0 {
		fmt.Fprintf(tw, "%s\t%d\n", a.tr.T("dashboard.age"), p.Age)
	}
	if p.City != "" {
		fmt.Fprintf(tw, "%s\t%s\n", a.tr.T("dashboard.city"), p.City)
	}
	if p.Bio != "" {
		fmt.Fprintf(tw, "%s\t%s\n", a.tr.T("dashboard.aboutMe"), p.Bio)
	}
	avatar := p.Avatar
	if avatar == "" {
		avatar = present.DefaultAvatar
	}
	fmt.Fprintf(tw, "avatar\t%s\n", a.media(avatar))
	fmt.Fprintf(tw, "%s\t%s\n", a.tr.T("dashboard.onSiteSince"), p.JoinedDate)
	_ = tw.Flush()
}

func printDashboard(a *app, s screen.DashboardState) {
	printProfile(a, s.Profile)

	fmt.Fprintf(a.out, "\n%s\n", a.tr.T("dashboard.currentlyReading"))
	if cur := s.CurrentBook; cur != nil {
		fmt.Fprintf(a.out, "  %s, %s %d %s %d (%s)\n", cur.Book.Title,
			a.tr.T("dashboard.page"), cur.CurrentPage, a.tr.T("dashboard.of"), cur.TotalPages, present.Progress(*cur))
	} else {
		fmt.Fprintf(a.out, "  %s\n", a.tr.T("dashboard.noCurrentBook"))
	}

	fmt.Fprintf(a.out, "\n%s\n", a.tr.T("dashboard.favorites"))
	if len(s.Favorites) == 0 {
		fmt.Fprintf(a.out, "  %s\n", a.tr.T("dashboard.noFavorites"))
	} else {
		books := make([]domain.Book, 0, len(s.Favorites))
		for _, f := range s.Favorites {
			books = append(books, f.Book)
		}
		printBooks(a.out, books)
	}

	fmt.Fprintf(a.out, "\n%s\n", a.tr.T("dashboard.charts"))
	if len(s.Charts) == 0 {
		fmt.Fprintf(a.out, "  %s\n", a.tr.T("dashboard.noCharts"))
		return
	}
	printCharts(a, s.Charts)
}

func printCharts(a *app, charts []domain.Chart) {
	tw := newTable(a.out)
	fmt.Fprintln(tw, "ID\tTITLE\tBOOKS\tVISIBILITY")
	for _, c := range charts {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", c.ID, c.Title, len(c.Books), visibility(a, c.IsPublic))
	}
	_ = tw.Flush()
}

func printChart(a *app, c domain.Chart, owner bool) {
	fmt.Fprintf(a.out, "%s (%s)\n", c.Title, visibility(a, c.IsPublic))
	if c.Description != "" {
		fmt.Fprintln(a.out, c.Description)
	}
	if c.CoverImage != "" {
		fmt.Fprintf(a.out, "cover: %s\n", a.media(c.CoverImage))
	}
	if owner {
		fmt.Fprintf(a.out, "booknest chart-delete %d\n", c.ID)
	}
	fmt.Fprintf(a.out, "\n%s: %d\n", a.tr.T("chart.booksInChart"), len(c.Books))
	printBooks(a.out, c.Books)
}

func printCollections(a *app, cols []domain.Collection) {
	for _, col := range cols {
		fmt.Fprintf(a.out, "\n%s (%d %s)\n", col.Title, len(col.Books), a.tr.T("chart.books"))
		if col.Description != "" {
			fmt.Fprintf(a.out, "  %s\n", present.PlainText(col.Description))
		}
		for _, b := range col.Books {
			fmt.Fprintf(a.out, "  %d  %s, %s\n", b.ID, b.Title, b.Author)
		}
	}
}

func visibility(a *app, public bool) string {
	if public {
		return a.tr.T("dashboard.public")
	}
	return a.tr.T("dashboard.private")
}
