package models

import "time"

// Privacy controls who may see a post in assembled feeds.
type Privacy string

const (
	PrivacyPublic       Privacy = "public"
	PrivacyFollowerOnly Privacy = "follower_only"
	PrivacyPrivate      Privacy = "private"
)

// UserRef is the projection of a user embedded in hydrated feed output.
type UserRef struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profile_picture"`
}

type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	ProfilePicture string    `json:"profile_picture"`
	Created        time.Time `json:"created"`
}

// Like is a (post, user) edge. At most one per pair exists at any time.
type Like struct {
	ID   string  `json:"id"`
	User UserRef `json:"user"`
}

type Comment struct {
	ID      string    `json:"id"`
	Content string    `json:"content"`
	Created time.Time `json:"created"`
	User    UserRef   `json:"user"`
}

// Post is the fully hydrated feed view of a post. A post carries image URLs
// or video URLs or neither, never both.
type Post struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	ImageURLs []string  `json:"image_urls"`
	VideoURLs []string  `json:"video_urls"`
	Privacy   Privacy   `json:"privacy"`
	Created   time.Time `json:"created"`
	Updated   time.Time `json:"updated"`
	Author    UserRef   `json:"author"`
	Likes     []Like    `json:"likes"`
	Comments  []Comment `json:"comments"`
}

type Follow struct {
	FollowerID string `json:"follower_id"`
	FolloweeID string `json:"followee_id"`
}

// PostCreatedEvent is the broker payload published after a post is stored.
// The worker uses it to refresh warm feed caches.
type PostCreatedEvent struct {
	PostID   string    `json:"post_id"`
	AuthorID string    `json:"author_id"`
	Privacy  Privacy   `json:"privacy"`
	Created  time.Time `json:"created"`
}
