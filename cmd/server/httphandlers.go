package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	appkafka "example.com/socialfeed/internal/broker"
	"example.com/socialfeed/internal/feed"
	"example.com/socialfeed/internal/middleware"
	"example.com/socialfeed/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

// --- HTTP Handlers ---

// writeEngineError maps the feed engine's error kinds onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, feed.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, feed.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, feed.ErrUnavailable):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// parseLimit reads the limit query parameter, falling back to the server
// default when absent. Non-numeric values are a client error; non-positive
// values pass through so the engine rejects them consistently.
func (s *Server) parseLimit(r *http.Request) (int, error) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return s.defaultLimit, nil
	}
	return strconv.Atoi(limitStr)
}

// createUserHandler handles POST requests to create a new user.
// Expects JSON body: {"name": "...", "email": "...", "profile_picture": "..."}
// Returns JSON response: {"user": {...}, "token": <jwt>}
func (s *Server) createUserHandler(w http.ResponseWriter, r *http.Request) {
	type req struct {
		Name           string `json:"name"`
		Email          string `json:"email"`
		ProfilePicture string `json:"profile_picture"`
	}
	var body req

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logg.Error("http/users", "Invalid request body", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if len(body.Name) == 0 || len(body.Name) > 50 || len(body.Email) == 0 {
		logg.Info("http/users", "Invalid name or email")
		http.Error(w, "name must be 1-50 characters and email must be set", http.StatusBadRequest)
		return
	}

	user, err := s.store.CreateUser(r.Context(), body.Name, body.Email, body.ProfilePicture)
	if err != nil {
		logg.Error("http/users", "Failed to create user", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	logg.Info("http/users", "User created successfully with user_id="+user.ID)

	secret := []byte(os.Getenv("JWT_SECRET"))
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"exp":     time.Now().Add(time.Hour * 24).Unix(),
	})
	tokenStr, err := token.SignedString(secret)
	if err != nil {
		http.Error(w, "failed to generate token", http.StatusInternalServerError)
		return
	}

	resp := map[string]any{
		"user":  user,
		"token": tokenStr,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// followHandler creates a "follow" relationship between users.
// Expects JSON body: {"followee_id": "<id>"}
// Uses the viewer id from the JWT token.
func (s *Server) followHandler(w http.ResponseWriter, r *http.Request) {
	type req struct {
		FolloweeID string `json:"followee_id"`
	}
	var body req

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logg.Error("http/follow", "Invalid request body", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	viewerID, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		logg.Info("http/follow", "Unauthorized follow attempt")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := s.store.CreateFollow(r.Context(), viewerID, body.FolloweeID); err != nil {
		logg.Error("http/follow", "Failed to create follow relationship", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	logg.Info("http/follow", "User "+viewerID+" followed "+body.FolloweeID)
	w.WriteHeader(http.StatusOK)
}

// createPostHandler stores a new post and publishes a post_created event.
// Expects JSON body: {"content": "...", "privacy": "public",
// "media": "<base64>", "media_type": "image"}
// Returns the hydrated post.
func (s *Server) createPostHandler(w http.ResponseWriter, r *http.Request) {
	type req struct {
		Content   string `json:"content"`
		Privacy   string `json:"privacy"`
		Media     string `json:"media"`
		MediaType string `json:"media_type"`
	}
	var body req

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logg.Error("http/posts", "Invalid request body", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	viewerID, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		logg.Info("http/posts", "Unauthorized post creation attempt")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if len(body.Content) > 1000 {
		logg.Info("http/posts", "Post content length invalid for user_id="+viewerID)
		http.Error(w, "post content must be at most 1000 characters", http.StatusBadRequest)
		return
	}

	var media []byte
	if body.Media != "" {
		decoded, err := base64.StdEncoding.DecodeString(body.Media)
		if err != nil {
			http.Error(w, "media must be base64 encoded", http.StatusBadRequest)
			return
		}
		media = decoded
	}

	post, err := s.feed.CreatePost(r.Context(), feed.CreatePostInput{
		AuthorID:  viewerID,
		Content:   body.Content,
		Privacy:   models.Privacy(body.Privacy),
		Media:     media,
		MediaType: feed.MediaType(body.MediaType),
	})
	if err != nil {
		logg.Error("http/posts", "Failed to create post", err)
		writeEngineError(w, err)
		return
	}

	// The event only refreshes warm caches; a failed publish costs
	// freshness, not correctness, so the request still succeeds.
	event := models.PostCreatedEvent{
		PostID:   post.ID,
		AuthorID: post.Author.ID,
		Privacy:  post.Privacy,
		Created:  post.Created,
	}
	if err := appkafka.PublishPostCreated(s.kafkaWriter, event); err != nil {
		logg.Warn("http/posts", "Failed to publish post_created event", err)
	}

	logg.Info("http/posts", "Post created successfully by user_id="+viewerID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(post)
}

// getPublicFeedHandler serves the shared public feed.
// Query parameters: ?limit=20
func (s *Server) getPublicFeedHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := s.parseLimit(r)
	if err != nil {
		http.Error(w, "limit must be an integer", http.StatusBadRequest)
		return
	}

	posts, err := s.feed.GetPublicFeed(r.Context(), limit)
	if err != nil {
		logg.Error("http/feed", "Failed to get public feed", err)
		writeEngineError(w, err)
		return
	}

	logg.Info("http/feed", "Public feed retrieved with limit="+strconv.Itoa(limit))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(posts)
}

// getPersonalFeedHandler serves the viewer's personal feed.
// Query parameters: ?limit=20
// Uses the viewer id from the JWT token.
func (s *Server) getPersonalFeedHandler(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		logg.Info("http/feed", "Unauthorized feed access attempt")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	limit, err := s.parseLimit(r)
	if err != nil {
		http.Error(w, "limit must be an integer", http.StatusBadRequest)
		return
	}

	posts, err := s.feed.GetPersonalFeed(r.Context(), viewerID, limit)
	if err != nil {
		logg.Error("http/feed", "Failed to get feed for user_id="+viewerID, err)
		writeEngineError(w, err)
		return
	}

	logg.Info("http/feed", "Feed retrieved for user_id="+viewerID+" with limit="+strconv.Itoa(limit))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(posts)
}

// likeHandler toggles the viewer's like on a post.
// Expects JSON body: {"post_id": "<id>", "liked": true}
// Returns {"liked": bool, "like": {...}|null}; both directions are
// idempotent successes.
func (s *Server) likeHandler(w http.ResponseWriter, r *http.Request) {
	type req struct {
		PostID string `json:"post_id"`
		Liked  bool   `json:"liked"`
	}
	var body req

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logg.Error("http/likes", "Invalid request body", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	viewerID, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		logg.Info("http/likes", "Unauthorized like attempt")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	like, err := s.feed.LikeDislikePost(r.Context(), body.PostID, viewerID, body.Liked)
	if err != nil {
		logg.Error("http/likes", "Failed to toggle like", err)
		writeEngineError(w, err)
		return
	}

	resp := map[string]any{
		"liked": like != nil,
		"like":  like,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// createCommentHandler appends a comment to a post.
// Expects JSON body: {"post_id": "<id>", "comment": "..."}
func (s *Server) createCommentHandler(w http.ResponseWriter, r *http.Request) {
	type req struct {
		PostID  string `json:"post_id"`
		Comment string `json:"comment"`
	}
	var body req

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logg.Error("http/comments", "Invalid request body", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	viewerID, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		logg.Info("http/comments", "Unauthorized comment attempt")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	comment, err := s.feed.CreateComment(r.Context(), body.PostID, viewerID, body.Comment)
	if err != nil {
		logg.Error("http/comments", "Failed to create comment", err)
		writeEngineError(w, err)
		return
	}

	logg.Info("http/comments", "Comment created by user_id="+viewerID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(comment)
}
