// Package auth разрешает bearer-токены в личность пользователя маркетплейса.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// keyIDEmail помечает токены, у которых sub содержит email, а не username.
const keyIDEmail = "email"

var (
	// ErrMissingCredential: токен не передан.
	ErrMissingCredential = fmt.Errorf("%w: missing credential", domain.ErrUnauthenticated)
	// ErrInvalidToken: подпись, срок действия или формат токена неверны.
	ErrInvalidToken = fmt.Errorf("%w: invalid token", domain.ErrUnauthenticated)
	// ErrUnknownUser: токен корректен, но пользователя нет в каталоге.
	ErrUnknownUser = fmt.Errorf("%w: unknown user", domain.ErrUnauthenticated)
	// ErrUserInactive: учётная запись отключена.
	ErrUserInactive = fmt.Errorf("%w: user is inactive", domain.ErrUnauthenticated)
	// ErrLegacyTokenRejected: токен по username выпущен после отключения старой схемы.
	ErrLegacyTokenRejected = fmt.Errorf("%w: username tokens are no longer accepted", domain.ErrUnauthenticated)
)

// Claims: содержимое токена. Email является каноническим ключом;
// старые токены несут только username в sub.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Option настраивает Authenticator.
type Option func(*Authenticator)

// WithLegacyTokensUntil разрешает токены по username, выпущенные до cutoff.
// Нулевое время отключает старую схему полностью.
func WithLegacyTokensUntil(cutoff time.Time) Option {
	return func(a *Authenticator) { a.legacyUntil = cutoff.UTC() }
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(a *Authenticator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// Authenticator проверяет HS256-токены и находит пользователя в каталоге.
type Authenticator struct {
	secret      []byte
	users       domain.UserRepository
	legacyUntil time.Time
	now         func() time.Time
	logger      *log.Entry
}

// NewAuthenticator создаёт Authenticator.
func NewAuthenticator(secret []byte, users domain.UserRepository, opts ...Option) (*Authenticator, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	if users == nil {
		return nil, errors.New("auth: user repository is required")
	}

	a := &Authenticator{
		secret: secret,
		users:  users,
		now:    time.Now,
		logger: log.WithField("component", "auth"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Authenticate разрешает токен в личность: сначала по email, затем, для старых
// токенов, по username. Любой отказ оборачивает domain.ErrUnauthenticated.
func (a *Authenticator) Authenticate(ctx context.Context, raw string) (domain.Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.Identity{}, ErrMissingCredential
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, a.key,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	user, err := a.resolve(ctx, token, claims)
	if err != nil {
		return domain.Identity{}, err
	}
	if !user.Active {
		return domain.Identity{}, ErrUserInactive
	}
	return domain.IdentityOf(user), nil
}

func (a *Authenticator) key(*jwt.Token) (any, error) {
	return a.secret, nil
}

func (a *Authenticator) resolve(ctx context.Context, token *jwt.Token, claims Claims) (domain.User, error) {
	email := claims.Email
	if email == "" && token.Header["kid"] == keyIDEmail {
		email = claims.Subject
	}
	if email != "" {
		return a.lookup(ctx, a.users.GetByEmail, email)
	}

	if claims.Subject == "" {
		return domain.User{}, fmt.Errorf("%w: subject is empty", ErrInvalidToken)
	}
	if a.legacyUntil.IsZero() || claims.IssuedAt == nil || !claims.IssuedAt.Before(a.legacyUntil) {
		return domain.User{}, ErrLegacyTokenRejected
	}

	user, err := a.lookup(ctx, a.users.GetByUsername, claims.Subject)
	if err != nil {
		return domain.User{}, err
	}
	a.logger.WithField("user_id", user.ID).Debug("authenticated with legacy username token")
	return user, nil
}

func (a *Authenticator) lookup(ctx context.Context, find func(context.Context, string) (domain.User, error), key string) (domain.User, error) {
	user, err := find(ctx, key)
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, domain.ErrUserNotFound):
		return domain.User{}, ErrUnknownUser
	default:
		return domain.User{}, fmt.Errorf("resolve user: %w", err)
	}
}

// Issuer выпускает канонические токены с email.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

// NewIssuer создаёт Issuer с тем же секретом, что и Authenticator.
func NewIssuer(secret []byte) *Issuer {
	return &Issuer{secret: secret, now: time.Now}
}

// Issue подписывает токен пользователя со сроком жизни ttl.
func (i *Issuer) Issue(user domain.User, ttl time.Duration) (string, error) {
	if len(i.secret) == 0 {
		return "", errors.New("auth: signing secret is required")
	}
	if ttl <= 0 {
		return "", errors.New("auth: token ttl must be positive")
	}
	if user.Email == "" {
		return "", errors.New("auth: user email is required")
	}

	now := i.now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: user.Email,
		Role:  string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

type identityKey struct{}

// WithIdentity кладёт личность вызывающего в контекст.
func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFrom достаёт личность из контекста.
func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(domain.Identity)
	return identity, ok
}
