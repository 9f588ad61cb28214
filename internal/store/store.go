// Package store is an in-memory document store of users and quizzes seeded
// from a YAML fixture.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/quizapp/quiz-platform/internal/models"
	"gopkg.in/yaml.v3"
)

var ErrNotFound = errors.New("store: not found")

type fixture struct {
	Users   []models.User `yaml:"users"`
	Quizzes []models.Quiz `yaml:"quizzes"`
}

type Store struct {
	mu      sync.RWMutex
	users   map[string]*models.User
	quizzes map[string]*models.Quiz
}

func New() *Store {
	return &Store{
		users:   make(map[string]*models.User),
		quizzes: make(map[string]*models.Quiz),
	}
}

// Load reads a YAML fixture. An empty path yields an empty store.
func Load(path string) (*Store, error) {
	s := New()
	if path == "" {
		return s, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f fixture
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("store: %s: %w", path, err)
	}
	for i := range f.Users {
		s.PutUser(f.Users[i])
	}
	for i := range f.Quizzes {
		s.PutQuiz(f.Quizzes[i])
	}
	return s, nil
}

func (s *Store) PutUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = &u
}

func (s *Store) PutQuiz(q models.Quiz) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizzes[q.ID] = &q
}

func (s *Store) User(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *u
	return &copy, nil
}

// UserByEmail matches addresses case-insensitively.
func (s *Store) UserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			copy := *u
			return &copy, nil
		}
	}
	return nil, ErrNotFound
}

func (s *Store) Quiz(_ context.Context, id string) (*models.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quizzes[id]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *q
	return &copy, nil
}
