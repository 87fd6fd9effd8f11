package stub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jnikolaeva/kongclient/internal/kong/application"
)

var (
	ErrDuplicateUser = errors.New("user with such username already exists")
	ErrUserNotFound  = errors.New("user not found")
	ErrWrongPassword = errors.New("invalid username or password")
)

type User struct {
	ID           uuid.UUID
	Username     string
	Email        *string
	PasswordHash []byte
}

// IdentityService owns the accounts and properties known to the stub.
type IdentityService interface {
	Register(ctx context.Context, in application.AccountCreationInput) (*User, error)
	Login(ctx context.Context, username, password string) (*User, error)
	AddProperty(ctx context.Context, p application.Property, photos []string) (*application.Property, error)
	Properties(ctx context.Context) ([]application.Property, error)
}

func NewIdentityService() IdentityService {
	return &service{
		users: make(map[string]User),
	}
}

type service struct {
	mu         sync.RWMutex
	users      map[string]User
	properties []application.Property
}

func (s *service) Register(_ context.Context, in application.AccountCreationInput) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[in.Username]; ok {
		return nil, ErrDuplicateUser
	}
	user := User{
		ID:           uuid.New(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
	}
	s.users[user.Username] = user
	return &user, nil
}

func (s *service) Login(_ context.Context, username, password string) (*User, error) {
	s.mu.RLock()
	user, ok := s.users[username]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, ErrWrongPassword
	}
	return &user, nil
}

func (s *service) AddProperty(_ context.Context, p application.Property, photos []string) (*application.Property, error) {
	if photos == nil {
		photos = []string{}
	}
	encoded, err := json.Marshal(photos)
	if err != nil {
		return nil, err
	}
	p.Photos = string(encoded)
	p.Added = time.Now().UTC().Format(time.RFC3339)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.properties = append(s.properties, p)
	return &p, nil
}

func (s *service) Properties(_ context.Context) ([]application.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]application.Property, len(s.properties))
	copy(out, s.properties)
	return out, nil
}
