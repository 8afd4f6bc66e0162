package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/isoapp/iso_server/internal/verification"
)

// Credentials identify a user for bearer-token checks.
type Credentials struct {
	UserID string
	Token  string
}

// Store is the in-memory marketplace state. All mutations hold the write
// lock for the whole read-modify-write; queries copy what they return so
// callers never alias Store memory. No lock is held across provider calls.
type Store struct {
	mu       sync.RWMutex
	data     Data
	provider verification.Provider
	now      func() time.Time
}

// NewStore builds a store seeded with a copy of data.
func NewStore(data Data, provider verification.Provider) *Store {
	return &Store{
		data:     data.Clone(),
		provider: provider,
		now:      time.Now,
	}
}

// View returns a deep point-in-time copy of the state. Query methods on the
// copy run without touching the lock.
func (s *Store) View() Data {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Clone()
}

// Stats reports how many users and posts the store holds.
func (s *Store) Stats() (users, posts int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data.Users), len(s.data.Feed)
}

// FeedPage returns up to PageSize posts starting at offset.
func (s *Store) FeedPage(offset int) ([]Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.FeedPage(offset)
}

// OpenFeed starts an open-feed scan at index: up to PageSize unclaimed posts
// and the cursor for the following page. index must address a feed entry.
func (s *Store) OpenFeed(index int) ([]Post, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.data.Feed) {
		return nil, 0, ErrOutOfRange
	}
	posts, next := OpenPage(s.data.Feed, index)
	return posts, next, nil
}

// UserByID returns the user with id.
func (s *Store) UserByID(id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.data.Users[id]
	if !ok {
		return User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return user.clone(), nil
}

// UserByToken returns the user with id if token matches.
func (s *Store) UserByToken(id, token string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.UserByToken(id, token)
}

// UserByPhone returns the first user registered with phoneNumber.
func (s *Store) UserByPhone(phoneNumber string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.UserByPhone(phoneNumber)
}

// PostByID returns the post with id.
func (s *Store) PostByID(id string) (Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.PostByID(id)
}

// AddUser inserts a new user and fails if the id is taken.
func (s *Store) AddUser(user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data.Users[user.ID]; exists {
		return fmt.Errorf("user %s: %w", user.ID, ErrConflict)
	}
	s.data.Users[user.ID] = user.clone()
	return nil
}

// UpsertUser inserts or replaces the user keyed by its id.
func (s *Store) UpsertUser(user User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Users[user.ID] = user.clone()
}

// AddPost lists a new post at the head of the feed and records it on the
// owner when the owner exists. Unknown owners are accepted.
func (s *Store) AddPost(input NewPost) Post {
	s.mu.Lock()
	defer s.mu.Unlock()

	post := newPost(input, s.now())
	if owner, ok := s.data.Users[post.OwnerID]; ok {
		owner.Posts = append(owner.Posts, post.ID)
		s.data.Users[owner.ID] = owner
	}

	s.data.Feed = append(s.data.Feed, Post{})
	copy(s.data.Feed[1:], s.data.Feed)
	s.data.Feed[0] = post

	return post.clone()
}

// ClaimPost makes the authenticated user the acceptor of postID. The post
// keeps its feed position. Owners may claim their own posts and a claimed
// post can be claimed again, which reassigns the acceptor.
func (s *Store) ClaimPost(postID string, claimer Credentials) (Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.data.Users[claimer.UserID]
	if !ok {
		return Post{}, fmt.Errorf("user %s: %w", claimer.UserID, ErrNotFound)
	}
	if user.Token != claimer.Token {
		return Post{}, ErrUnauthorized
	}

	idx := s.data.postIndex(postID)
	if idx < 0 {
		return Post{}, fmt.Errorf("post %s: %w", postID, ErrNotFound)
	}

	post := &s.data.Feed[idx]
	post.claim(user.ID, s.now())

	user.Posts = append(user.Posts, post.ID)
	s.data.Users[user.ID] = user

	return post.clone(), nil
}

// StartVerification normalizes phoneNumber, asks the provider to send a code
// and records the pending reference on the user owning that number, creating
// the user when none exists. It returns the user's id.
func (s *Store) StartVerification(ctx context.Context, phoneNumber, country string) (string, error) {
	if s.provider == nil {
		return "", fmt.Errorf("%w: no provider configured", verification.ErrProvider)
	}
	normalized, err := verification.NormalizePhone(phoneNumber, country)
	if err != nil {
		return "", err
	}

	reference, err := s.provider.Start(ctx, normalized)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id := s.data.userIDByPhone(normalized); id != "" {
		user := s.data.Users[id]
		user.Verified = reference
		s.data.Users[id] = user
		return id, nil
	}

	user, err := NewUser(uuid.New().String(), normalized)
	if err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}
	user.Verified = reference
	s.data.Users[user.ID] = user
	return user.ID, nil
}

// CheckVerification confirms code for the user's phone number with the
// provider and marks the user verified on approval. Nothing is written when
// the provider call fails.
func (s *Store) CheckVerification(ctx context.Context, userID, code string) (User, error) {
	if s.provider == nil {
		return User{}, fmt.Errorf("%w: no provider configured", verification.ErrProvider)
	}

	s.mu.RLock()
	user, ok := s.data.Users[userID]
	s.mu.RUnlock()
	if !ok {
		return User{}, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}

	if err := s.provider.Check(ctx, user.PhoneNumber, code); err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-read so posts appended while the provider was called survive.
	if current, ok := s.data.Users[userID]; ok {
		user = current
	}
	user.Verified = verification.ConfirmedMarker
	s.data.Users[userID] = user

	return user.clone(), nil
}

// FeedPage returns up to PageSize consecutive posts starting at offset.
func (d Data) FeedPage(offset int) ([]Post, error) {
	if offset < 0 || offset >= len(d.Feed) {
		return nil, ErrOutOfRange
	}
	end := min(offset+PageSize, len(d.Feed))
	page := make([]Post, 0, end-offset)
	for _, p := range d.Feed[offset:end] {
		page = append(page, p.clone())
	}
	return page, nil
}

// UserByToken returns the user with id if token matches.
func (d Data) UserByToken(id, token string) (User, error) {
	user, ok := d.Users[id]
	if !ok {
		return User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if user.Token != token {
		return User{}, ErrUnauthorized
	}
	return user.clone(), nil
}

// UserByPhone scans all users for phoneNumber.
func (d Data) UserByPhone(phoneNumber string) (User, error) {
	id := d.userIDByPhone(phoneNumber)
	if id == "" {
		return User{}, fmt.Errorf("phone %s: %w", phoneNumber, ErrNotFound)
	}
	return d.Users[id].clone(), nil
}

// PostByID scans the feed for id.
func (d Data) PostByID(id string) (Post, error) {
	idx := d.postIndex(id)
	if idx < 0 {
		return Post{}, fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	return d.Feed[idx].clone(), nil
}

func (d Data) userIDByPhone(phoneNumber string) string {
	for id, user := range d.Users {
		if user.PhoneNumber == phoneNumber {
			return id
		}
	}
	return ""
}

func (d Data) postIndex(id string) int {
	for i := range d.Feed {
		if d.Feed[i].ID == id {
			return i
		}
	}
	return -1
}
