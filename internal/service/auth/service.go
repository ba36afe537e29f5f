package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mamadbah2/pantry/internal/domain/models"
)

// UserRepository is the account storage used by the identity provider.
type UserRepository interface {
	CreateUser(ctx context.Context, user models.User) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Session is returned on a successful sign-in.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      models.User `json:"user"`
}

// Service is the identity provider: accounts, sessions and auth-state events.
type Service struct {
	users  UserRepository
	tokens *TokenIssuer
	logger *zap.Logger
	cost   int
	now    func() time.Time

	mu          sync.RWMutex
	subscribers map[uint64]func(models.AuthEvent)
	nextSub     uint64
	revoked     map[string]time.Time
}

// NewService wires the identity provider.
func NewService(users UserRepository, tokens *TokenIssuer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users:       users,
		tokens:      tokens,
		logger:      logger,
		cost:        bcrypt.DefaultCost,
		now:         time.Now,
		subscribers: make(map[uint64]func(models.AuthEvent)),
		revoked:     make(map[string]time.Time),
	}
}

// Register creates an account. The user is not signed in.
func (s *Service) Register(ctx context.Context, in models.RegisterInput) (*models.User, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return &user, nil
}

// SignIn checks credentials, issues a token and notifies subscribers.
func (s *Service) SignIn(ctx context.Context, in models.LoginInput) (*Session, error) {
	in.Email = models.NormalizeEmail(in.Email)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	user, err := s.users.FindUserByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, models.ErrInvalidCredentials
	}

	token, _, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user signed in", zap.String("user_id", user.ID))
	s.publish(models.AuthEvent{UserID: user.ID, User: user})

	return &Session{Token: token, ExpiresAt: expiresAt, User: *user}, nil
}

// SignOut revokes the token until it would have expired and notifies subscribers.
func (s *Service) SignOut(_ context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return err
	}

	now := s.now()
	s.mu.Lock()
	for id, exp := range s.revoked {
		if exp.Before(now) {
			delete(s.revoked, id)
		}
	}
	s.revoked[claims.ID] = claims.ExpiresAt.Time
	s.mu.Unlock()

	s.logger.Info("user signed out", zap.String("user_id", claims.UserID))
	s.publish(models.AuthEvent{UserID: claims.UserID})
	return nil
}

// Authenticate resolves the user behind a bearer token.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	_, revoked := s.revoked[claims.ID]
	s.mu.RUnlock()
	if revoked {
		return nil, models.ErrTokenInvalid
	}

	user, err := s.users.FindUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, models.ErrTokenInvalid
		}
		return nil, err
	}
	return user, nil
}

// CurrentUser returns the user of the request session, or nil.
func (s *Service) CurrentUser(ctx context.Context) *models.User {
	return CurrentUser(ctx)
}

// Subscribe registers fn for every sign-in and sign-out transition.
// The returned function removes the subscription.
func (s *Service) Subscribe(fn func(models.AuthEvent)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *Service) publish(ev models.AuthEvent) {
	s.mu.RLock()
	fns := make([]func(models.AuthEvent), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
