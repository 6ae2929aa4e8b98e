package geotagger

import (
	"net/url"
	"strings"
	"time"
)

// Game is a published photo with a hidden location.
type Game struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	ImageURL    string     `json:"imageUrl,omitempty"`
	UserID      UserID     `json:"userId,omitempty"`
	UserEmail   string     `json:"userEmail,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
}

// NormalizeImageURL repairs the double slash the object store emits after
// its host name.
func NormalizeImageURL(raw string) string {
	return strings.Replace(raw, "supabase.co//", "supabase.co/", 1)
}

// ShareURL is the public link to a game's detail page.
func ShareURL(publicURL, gameID string) string {
	return strings.TrimRight(publicURL, "/") + "/game/" + url.PathEscape(gameID)
}

// CreatorName is the display name of whoever published the game: the local
// part of their email with dots as spaces, else their id, else "-".
func (g Game) CreatorName() string {
	if g.UserEmail != "" {
		local, _, _ := strings.Cut(g.UserEmail, "@")
		return strings.Join(strings.Split(local, "."), " ")
	}
	if g.UserID != "" {
		return string(g.UserID)
	}
	return "-"
}

func (g Game) CreatorInitials() string {
	var b strings.Builder
	for _, part := range strings.Split(g.CreatorName(), " ") {
		if part == "" {
			continue
		}
		r := []rune(part)
		b.WriteRune(r[0])
	}
	return firstRunes(strings.ToUpper(b.String()), 2)
}

// Initials derives up to two upper-case letters from a user name split on
// dots, underscores, dashes and spaces.
func Initials(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == ' '
	})
	var b strings.Builder
	for _, p := range parts {
		b.WriteRune([]rune(p)[0])
	}
	if b.Len() == 0 {
		return strings.ToUpper(firstRunes(name, 2))
	}
	return strings.ToUpper(firstRunes(b.String(), 2))
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}
