package domain

// AgeRatings lists the age ratings the catalog uses, youngest first.
var AgeRatings = []string{"0+", "6+", "12+", "16+", "18+"}

type User struct {
	ID       int64  `json:"id,omitempty"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role,omitempty"`
}

// Session is the authenticated identity of this client.
type Session struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// Valid reports whether the session carries both a token and a user.
func (s Session) Valid() bool {
	return s.Token != "" && (s.User.ID != 0 || s.User.Username != "")
}

type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is the reply of the register and login endpoints.
type AuthResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Token   string `json:"token,omitempty"`
	User    *User  `json:"user,omitempty"`
}

type Book struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Author      string   `json:"author"`
	Cover       string   `json:"cover"`
	Description string   `json:"description"`
	Genres      []string `json:"genre"`
	Tropes      []string `json:"tropes"`
	Country     string   `json:"country"`
	Year        int      `json:"year"`
	Pages       int      `json:"pages"`
	Rating      float64  `json:"rating"`
	AgeRating   string   `json:"age_rating"`
}

// BookPage is one page of a book listing or search.
type BookPage struct {
	Books []Book `json:"books"`
	Total int    `json:"total"`
}

type UserProfile struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Avatar     string `json:"avatar,omitempty"`
	Age        int    `json:"age,omitempty"`
	City       string `json:"city,omitempty"`
	Bio        string `json:"bio,omitempty"`
	JoinedDate string `json:"joined_date"`
}

// ProfileUpdate is a partial profile update; nil fields are left untouched.
type ProfileUpdate struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
	Age      *int    `json:"age,omitempty"`
	City     *string `json:"city,omitempty"`
	Bio      *string `json:"bio,omitempty"`
}

// Diff returns the update that turns base into p.
func (p UserProfile) Diff(base UserProfile) ProfileUpdate {
	var u ProfileUpdate
	if p.Username != base.Username {
		u.Username = &p.Username
	}
	if p.Email != base.Email {
		u.Email = &p.Email
	}
	if p.Age != base.Age {
		u.Age = &p.Age
	}
	if p.City != base.City {
		u.City = &p.City
	}
	if p.Bio != base.Bio {
		u.Bio = &p.Bio
	}
	return u
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.Username == nil && u.Email == nil && u.Age == nil && u.City == nil && u.Bio == nil
}

type CurrentBook struct {
	ID          int64   `json:"id"`
	Book        Book    `json:"book"`
	CurrentPage int     `json:"current_page"`
	TotalPages  int     `json:"total_pages"`
	Progress    float64 `json:"progress"`
	LastRead    string  `json:"last_read"`
}

type FavoriteBook struct {
	ID        int64  `json:"id"`
	Book      Book   `json:"book"`
	AddedDate string `json:"added_date"`
}

type Chart struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"user_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	CoverImage  string `json:"cover_image,omitempty"`
	Books       []Book `json:"books"`
	CreatedDate string `json:"created_date"`
	IsPublic    bool   `json:"is_public"`
}

// BookIDs returns the ids of the chart's books in order.
func (c Chart) BookIDs() []int64 {
	ids := make([]int64, 0, len(c.Books))
	for _, b := range c.Books {
		ids = append(ids, b.ID)
	}
	return ids
}

// ChartInput is the metadata sent when creating a chart.
type ChartInput struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	IsPublic    bool   `json:"is_public"`
}

// ChartUpdate is a partial chart update; nil fields are left untouched.
type ChartUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	IsPublic    *bool   `json:"is_public,omitempty"`
}

type CommentAuthor struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

type Comment struct {
	ID          int64         `json:"id"`
	User        CommentAuthor `json:"user"`
	Comment     string        `json:"comment"`
	Rating      int           `json:"rating,omitempty"`
	CreatedDate string        `json:"created_date"`
}

// Collection is an editorial book collection shown on the home screen.
type Collection struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Books       []Book `json:"books"`
}

// SearchFilters narrows a catalog search. Zero values mean "no constraint".
type SearchFilters struct {
	Query      string
	Genres     []string
	Tropes     []string
	Countries  []string
	Authors    []string
	AgeRatings []string
	YearFrom   int
	YearTo     int
	PagesFrom  int
	PagesTo    int
	SortBy     string
}

// FilterKind names one of the distinct-value lists served for the filter panel.
type FilterKind string

const (
	FilterGenres    FilterKind = "genres"
	FilterTropes    FilterKind = "tropes"
	FilterCountries FilterKind = "countries"
	FilterAuthors   FilterKind = "authors"
)
