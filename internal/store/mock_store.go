package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"example.com/socialfeed/internal/models"
)

// MockStore simulates the Postgres store in memory for testing.
type MockStore struct {
	mu          sync.Mutex
	userCounter int
	likeCounter int

	Users      map[string]models.User
	Follows    map[string]map[string]bool // follower id -> followee id set
	Posts      map[string]models.Post     // bare posts; likes/comments attached on read
	Likes      map[string]map[string]string // post id -> user id -> like id
	Comments   map[string][]models.Comment
	ShouldFail bool // flag to simulate failures
}

// NewMock initializes a new mock store
func NewMock() *MockStore {
	return &MockStore{
		Users:    make(map[string]models.User),
		Follows:  make(map[string]map[string]bool),
		Posts:    make(map[string]models.Post),
		Likes:    make(map[string]map[string]string),
		Comments: make(map[string][]models.Comment),
	}
}

func (m *MockStore) Close() {}

func (m *MockStore) CreateUser(ctx context.Context, name, email, profilePicture string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.User{}, errors.New("mock: create user failed")
	}
	for _, u := range m.Users {
		if u.Email == email {
			return u, nil
		}
	}
	m.userCounter++
	u := models.User{
		ID:             fmt.Sprintf("user_%d", m.userCounter),
		Name:           name,
		Email:          email,
		ProfilePicture: profilePicture,
		Created:        time.Now().UTC(),
	}
	m.Users[u.ID] = u
	return u, nil
}

func (m *MockStore) GetUser(ctx context.Context, id string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.User{}, errors.New("mock: get user failed")
	}
	u, ok := m.Users[id]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return u, nil
}

func (m *MockStore) GetUserIDByEmail(ctx context.Context, email string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.Users {
		if u.Email == email {
			return id, nil
		}
	}
	return "", nil
}

func (m *MockStore) CreateFollow(ctx context.Context, followerID, followeeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errors.New("mock: follow failed")
	}
	if m.Follows[followerID] == nil {
		m.Follows[followerID] = make(map[string]bool)
	}
	m.Follows[followerID][followeeID] = true
	return nil
}

func (m *MockStore) GetFollowing(ctx context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errors.New("mock: get following failed")
	}
	if _, ok := m.Users[userID]; !ok {
		return nil, ErrUserNotFound
	}
	var res []string
	for id := range m.Follows[userID] {
		res = append(res, id)
	}
	sort.Strings(res)
	return res, nil
}

func (m *MockStore) GetFollowers(ctx context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errors.New("mock: get followers failed")
	}
	var res []string
	for follower, set := range m.Follows {
		if set[userID] {
			res = append(res, follower)
		}
	}
	sort.Strings(res)
	return res, nil
}

func (m *MockStore) AddPost(ctx context.Context, post models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errors.New("mock: add post failed")
	}
	m.Posts[post.ID] = post
	return nil
}

func (m *MockStore) GetPost(ctx context.Context, id string) (models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.Post{}, errors.New("mock: get post failed")
	}
	p, ok := m.Posts[id]
	if !ok {
		return models.Post{}, ErrPostNotFound
	}
	return p, nil
}

// SetPrivacy rewrites a stored post's privacy, used to model a post whose
// visibility changed after its id was cached.
func (m *MockStore) SetPrivacy(postID string, privacy models.Privacy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.Posts[postID]
	p.Privacy = privacy
	m.Posts[postID] = p
}

func (m *MockStore) PublicPostsPage(ctx context.Context, limit int) ([]models.Post, error) {
	return m.queryPosts(func(p models.Post) bool {
		return p.Privacy == models.PrivacyPublic
	}, limit)
}

func (m *MockStore) PostsByIDsPublic(ctx context.Context, ids []string, limit int) ([]models.Post, error) {
	idSet := toSet(ids)
	return m.queryPosts(func(p models.Post) bool {
		return idSet[p.ID] && p.Privacy == models.PrivacyPublic
	}, limit)
}

func (m *MockStore) PostsByIDs(ctx context.Context, ids []string, limit int) ([]models.Post, error) {
	idSet := toSet(ids)
	return m.queryPosts(func(p models.Post) bool {
		return idSet[p.ID]
	}, limit)
}

func (m *MockStore) PersonalFeedCandidates(ctx context.Context, viewerID string, followingIDs []string, limit int) ([]models.Post, error) {
	following := toSet(followingIDs)
	return m.queryPosts(func(p models.Post) bool {
		if p.Privacy == models.PrivacyPublic {
			return true
		}
		if following[p.Author.ID] && p.Privacy == models.PrivacyFollowerOnly {
			return true
		}
		return p.Author.ID == viewerID
	}, limit)
}

func (m *MockStore) ToggleLike(ctx context.Context, postID, userID string, liked bool) (*models.Like, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errors.New("mock: toggle like failed")
	}
	edges := m.Likes[postID]
	if !liked {
		delete(edges, userID)
		return nil, nil
	}
	if edges == nil {
		edges = make(map[string]string)
		m.Likes[postID] = edges
	}
	id, ok := edges[userID]
	if !ok {
		m.likeCounter++
		id = fmt.Sprintf("like_%d", m.likeCounter)
		edges[userID] = id
	}
	u := m.Users[userID]
	return &models.Like{ID: id, User: userRef(u)}, nil
}

func (m *MockStore) AddComment(ctx context.Context, postID, userID, content string) (models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.Comment{}, errors.New("mock: add comment failed")
	}
	u := m.Users[userID]
	c := models.Comment{
		ID:      fmt.Sprintf("comment_%d", len(m.Comments[postID])+1),
		Content: content,
		Created: time.Now().UTC(),
		User:    userRef(u),
	}
	m.Comments[postID] = append(m.Comments[postID], c)
	return c, nil
}

// queryPosts filters, orders newest-first, limits and hydrates, matching the
// shape of every store feed query.
func (m *MockStore) queryPosts(match func(models.Post) bool, limit int) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errors.New("mock: query posts failed")
	}

	var posts []models.Post
	for _, p := range m.Posts {
		if match(p) {
			posts = append(posts, p)
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		return posts[i].Created.After(posts[j].Created)
	})
	if len(posts) > limit {
		posts = posts[:limit]
	}

	for i := range posts {
		posts[i].Likes = []models.Like{}
		posts[i].Comments = []models.Comment{}
		for userID, likeID := range m.Likes[posts[i].ID] {
			posts[i].Likes = append(posts[i].Likes, models.Like{
				ID:   likeID,
				User: userRef(m.Users[userID]),
			})
		}
		posts[i].Comments = append(posts[i].Comments, m.Comments[posts[i].ID]...)
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return posts, nil
}

func userRef(u models.User) models.UserRef {
	return models.UserRef{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		ProfilePicture: u.ProfilePicture,
	}
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// ---------------------------------------------
// MockStoreFail always returns errors for negative tests
type MockStoreFail struct{}

func (m *MockStoreFail) Close() {}

func (m *MockStoreFail) CreateUser(ctx context.Context, name, email, profilePicture string) (models.User, error) {
	return models.User{}, errors.New("mock store create user failed")
}

func (m *MockStoreFail) GetUser(ctx context.Context, id string) (models.User, error) {
	return models.User{}, errors.New("mock store get user failed")
}

func (m *MockStoreFail) GetUserIDByEmail(ctx context.Context, email string) (string, error) {
	return "", errors.New("mock store get user by email failed")
}

func (m *MockStoreFail) CreateFollow(ctx context.Context, followerID, followeeID string) error {
	return errors.New("mock store create follow failed")
}

func (m *MockStoreFail) GetFollowing(ctx context.Context, userID string) ([]string, error) {
	return nil, errors.New("mock store get following failed")
}

func (m *MockStoreFail) GetFollowers(ctx context.Context, userID string) ([]string, error) {
	return nil, errors.New("mock store get followers failed")
}

func (m *MockStoreFail) AddPost(ctx context.Context, post models.Post) error {
	return errors.New("mock store add post failed")
}

func (m *MockStoreFail) GetPost(ctx context.Context, id string) (models.Post, error) {
	return models.Post{}, errors.New("mock store get post failed")
}

func (m *MockStoreFail) PublicPostsPage(ctx context.Context, limit int) ([]models.Post, error) {
	return nil, errors.New("mock store public posts page failed")
}

func (m *MockStoreFail) PostsByIDsPublic(ctx context.Context, ids []string, limit int) ([]models.Post, error) {
	return nil, errors.New("mock store posts by ids public failed")
}

func (m *MockStoreFail) PostsByIDs(ctx context.Context, ids []string, limit int) ([]models.Post, error) {
	return nil, errors.New("mock store posts by ids failed")
}

func (m *MockStoreFail) PersonalFeedCandidates(ctx context.Context, viewerID string, followingIDs []string, limit int) ([]models.Post, error) {
	return nil, errors.New("mock store personal feed candidates failed")
}

func (m *MockStoreFail) ToggleLike(ctx context.Context, postID, userID string, liked bool) (*models.Like, error) {
	return nil, errors.New("mock store toggle like failed")
}

func (m *MockStoreFail) AddComment(ctx context.Context, postID, userID, content string) (models.Comment, error) {
	return models.Comment{}, errors.New("mock store add comment failed")
}
