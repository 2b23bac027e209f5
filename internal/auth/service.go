package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hamed0406/netmanager/internal/domain"
	"github.com/hamed0406/netmanager/internal/repo"
)

var ErrInvalidCredentials = errors.New("Invalid email or password.")

// ValidationError maps field names to messages, like a form serializer.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

type RegisterInput struct {
	Email    string `json:"email"`
	FullName string `json:"fullname"`
	Password string `json:"password"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Principal is an authenticated user.
type Principal struct {
	UserID domain.UserID
	Email  string
}

type LoginResult struct {
	User   domain.User `json:"user"`
	Tokens TokenPair   `json:"tokens"`
}

type Service struct {
	users  repo.UserStore
	hasher Hasher
	tokens *Tokens
	log    *zap.Logger
}

func NewService(users repo.UserStore, hasher Hasher, tokens *Tokens, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{users: users, hasher: hasher, tokens: tokens, log: log}
}

// NormalizeEmail trims the address and lower-cases its domain part.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	in.Email = NormalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)

	verr := &ValidationError{}
	switch {
	case in.Email == "":
		verr.add("email", "This field is required.")
	case !validEmail(in.Email):
		verr.add("email", "Enter a valid email address.")
	}
	switch {
	case in.FullName == "":
		verr.add("fullname", "This field is required.")
	case utf8.RuneCountInString(in.FullName) > 255:
		verr.add("fullname", "Ensure this field has no more than 255 characters.")
	}
	if in.Password == "" {
		verr.add("password", "This field is required.")
	}
	if len(verr.Fields) > 0 {
		return domain.User{}, verr
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return domain.User{}, err
	}
	u := &domain.User{
		Email:        in.Email,
		FullName:     in.FullName,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			dup := &ValidationError{}
			dup.add("email", "user with this email already exists.")
			return domain.User{}, dup
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	s.log.Info("user_registered", zap.String("user_id", string(u.ID)))
	return *u, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.users.List(ctx)
}

// Authenticate checks credentials. Unknown email, wrong password and
// inactive accounts all yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, c Credentials) (Principal, domain.User, error) {
	email := NormalizeEmail(c.Email)
	if email == "" || c.Password == "" {
		return Principal{}, domain.User{}, ErrInvalidCredentials
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Principal{}, domain.User{}, ErrInvalidCredentials
		}
		return Principal{}, domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	ok, err := s.hasher.Verify(u.PasswordHash, c.Password)
	if err != nil {
		return Principal{}, domain.User{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok || !u.IsActive {
		return Principal{}, domain.User{}, ErrInvalidCredentials
	}
	return Principal{UserID: u.ID, Email: u.Email}, *u, nil
}

func (s *Service) IssueTokens(p Principal) (TokenPair, error) {
	return s.tokens.Pair(p.UserID)
}

func (s *Service) Login(ctx context.Context, c Credentials) (LoginResult, error) {
	p, u, err := s.Authenticate(ctx, c)
	if err != nil {
		return LoginResult{}, err
	}
	pair, err := s.IssueTokens(p)
	if err != nil {
		return LoginResult{}, err
	}
	s.log.Info("user_logged_in", zap.String("user_id", string(u.ID)))
	return LoginResult{User: u, Tokens: pair}, nil
}

// Refresh exchanges a valid refresh token for a new access token.
func (s *Service) Refresh(ctx context.Context, refresh string) (string, error) {
	claims, err := s.tokens.Parse(refresh, TokenRefresh)
	if err != nil {
		return "", err
	}
	u, err := s.users.GetByID(ctx, domain.UserID(claims.UserID))
	if err != nil || !u.IsActive {
		return "", ErrInvalidToken
	}
	return s.tokens.Access(u.ID)
}

// ParseAccess validates an access token and returns its principal. The
// user must still exist and be active.
func (s *Service) ParseAccess(ctx context.Context, raw string) (Principal, error) {
	claims, err := s.tokens.Parse(raw, TokenAccess)
	if err != nil {
		return Principal{}, err
	}
	u, err := s.users.GetByID(ctx, domain.UserID(claims.UserID))
	if err != nil || !u.IsActive {
		return Principal{}, ErrInvalidToken
	}
	return Principal{UserID: u.ID, Email: u.Email}, nil
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	return at > 0 && strings.Contains(email[at+1:], ".")
}
