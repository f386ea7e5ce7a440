// Package session owns the authenticated identity of the client: the current
// user and bearer token, their persistence, and change notification.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"booknest/pkg/api"
	"booknest/pkg/domain"
	"booknest/pkg/storage"
)

const (
	defaultLogoutTimeout = 10 * time.Second
	throttledMessage     = "too many login attempts, try again later"
)

// Authenticator performs the remote half of login, registration and logout.
// *api.Client satisfies it.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (domain.AuthResponse, error)
	Register(ctx context.Context, reg domain.Registration) (domain.AuthResponse, error)
	Logout(ctx context.Context, token string) error
}

// Limiter throttles login attempts per key.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

type Config struct {
	Storage storage.Storage
	Auth    Authenticator

	// Limiter is optional.
	Limiter       Limiter
	Logger        *slog.Logger
	LogoutTimeout time.Duration
}

// Outcome is the result of a login or registration attempt.
type Outcome struct {
	Success bool
	Message string
	Session domain.Session
	Err     error
}

// Store holds the current session. Only Login, Register, Logout and Reload
// write it.
type Store struct {
	storage       storage.Storage
	auth          Authenticator
	limiter       Limiter
	logger        *slog.Logger
	logoutTimeout time.Duration

	mu      sync.RWMutex
	current domain.Session
	subs    map[int]chan domain.Session
	nextSub int

	pending sync.WaitGroup
}

// Open restores the persisted session. An expired JWT is discarded together
// with the stored user.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Storage == nil {
		return nil, errors.New("session storage is required")
	}
	if cfg.Auth == nil {
		return nil, errors.New("session authenticator is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.LogoutTimeout
	if timeout <= 0 {
		timeout = defaultLogoutTimeout
	}
	s := &Store{
		storage:       cfg.Storage,
		auth:          cfg.Auth,
		limiter:       cfg.Limiter,
		logger:        logger,
		logoutTimeout: timeout,
		subs:          make(map[int]chan domain.Session),
	}
	sess, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	s.current = sess
	return s, nil
}

func (s *Store) load(ctx context.Context) (domain.Session, error) {
	token, ok, err := s.storage.Get(ctx, storage.KeyToken)
	if errors.Is(err, storage.ErrSealed) {
		s.logger.Warn("stored token sealed with another key, dropping session", "err", err)
		s.clear(ctx)
		return domain.Session{}, nil
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("read token: %w", err)
	}
	if !ok || len(token) == 0 {
		return domain.Session{}, nil
	}
	rawUser, ok, err := s.storage.Get(ctx, storage.KeyCurrentUser)
	if errors.Is(err, storage.ErrSealed) {
		s.logger.Warn("stored user sealed with another key, dropping session", "err", err)
		s.clear(ctx)
		return domain.Session{}, nil
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("read current user: %w", err)
	}
	var user domain.User
	if ok {
		if err := json.Unmarshal(rawUser, &user); err != nil {
			s.logger.Warn("stored user unreadable, dropping session", "err", err)
			s.clear(ctx)
			return domain.Session{}, nil
		}
	}
	sess := domain.Session{User: user, Token: string(token)}
	if !sess.Valid() {
		s.logger.Warn("stored token has no user, dropping session")
		s.clear(ctx)
		return domain.Session{}, nil
	}
	if tokenExpired(sess.Token, time.Now()) {
		s.logger.Info("stored token expired, dropping session", "user", user.Username)
		s.clear(ctx)
		return domain.Session{}, nil
	}
	return sess, nil
}

// tokenExpired reports whether token is a JWT whose exp lies before now.
// Opaque tokens never expire locally.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(now)
}

func (s *Store) Login(ctx context.Context, email, password string) Outcome {
	email = strings.TrimSpace(email)
	if s.limiter != nil && !s.limiter.Allow(ctx, "login:"+email) {
		return Outcome{Message: throttledMessage}
	}
	resp, err := s.auth.Login(ctx, email, password)
	return s.complete(ctx, "login", resp, err)
}

func (s *Store) Register(ctx context.Context, reg domain.Registration) Outcome {
	resp, err := s.auth.Register(ctx, reg)
	return s.complete(ctx, "registration", resp, err)
}

func (s *Store) complete(ctx context.Context, op string, resp domain.AuthResponse, err error) Outcome {
	if err != nil {
		msg := err.Error()
		var apiErr *api.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			msg = apiErr.Message
		}
		return Outcome{Message: msg, Err: err}
	}
	if !resp.Success || resp.Token == "" || resp.User == nil {
		msg := strings.TrimSpace(resp.Message)
		if msg == "" {
			msg = op + " failed"
		}
		return Outcome{Message: msg}
	}
	sess := domain.Session{User: *resp.User, Token: resp.Token}
	if err := s.persist(ctx, sess); err != nil {
		return Outcome{Message: "could not save session", Err: err}
	}
	s.set(sess)
	return Outcome{Success: true, Message: resp.Message, Session: sess}
}

func (s *Store) persist(ctx context.Context, sess domain.Session) error {
	data, err := json.Marshal(sess.User)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.storage.Put(ctx, storage.KeyCurrentUser, data); err != nil {
		return fmt.Errorf("write current user: %w", err)
	}
	if err := s.storage.Put(ctx, storage.KeyToken, []byte(sess.Token)); err != nil {
		_ = s.storage.Delete(ctx, storage.KeyCurrentUser)
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

func (s *Store) clear(ctx context.Context) {
	for _, key := range []string{storage.KeyCurrentUser, storage.KeyToken} {
		if err := s.storage.Delete(ctx, key); err != nil {
			s.logger.Warn("session storage delete failed", "key", key, "err", err)
		}
	}
}

// Logout clears the local session at once. The server is told in the
// background; that call's outcome is only logged.
func (s *Store) Logout(ctx context.Context) {
	s.mu.RLock()
	token := s.current.Token
	s.mu.RUnlock()

	s.clear(ctx)
	s.set(domain.Session{})

	if token == "" {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		remoteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.logoutTimeout)
		defer cancel()
		if err := s.auth.Logout(remoteCtx, token); err != nil {
			s.logger.Warn("remote logout failed", "err", err)
		}
	}()
}

// Reload re-reads the persisted session, picking up changes made by another
// process sharing the same storage.
func (s *Store) Reload(ctx context.Context) error {
	sess, err := s.load(ctx)
	if err != nil {
		return err
	}
	s.mu.RLock()
	same := sess == s.current
	s.mu.RUnlock()
	if !same {
		s.set(sess)
	}
	return nil
}

func (s *Store) Current() (domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.current.Valid()
}

// Token returns the bearer token, or "" when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Token
}

func (s *Store) LoggedIn() bool {
	_, ok := s.Current()
	return ok
}

// Subscribe returns a channel that yields the current session at once and
// then the newest session after each change. A slow reader skips
// intermediate values.
func (s *Store) Subscribe() (<-chan domain.Session, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan domain.Session, 1)
	ch <- s.current
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Store) set(sess domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = sess
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- sess
	}
}

// Close waits for background logout calls.
func (s *Store) Close() {
	s.pending.Wait()
}
