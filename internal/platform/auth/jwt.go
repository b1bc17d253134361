package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Claims struct {
	jwt.RegisteredClaims
	UserID string   `json:"userId"`
	Roles  []string `json:"roles"`
}

// JWTProvider implements Provider with bcrypt password checks and HMAC-signed
// JWTs. Tokens carry the account id and roles; validation re-loads the
// account so revoked or deactivated users drop out immediately.
type JWTProvider struct {
	store  UserStore
	secret []byte
	issuer string
	ttl    time.Duration
	logger zerolog.Logger
}

func NewJWTProvider(store UserStore, secret []byte, issuer string, ttl time.Duration, logger zerolog.Logger) *JWTProvider {
	return &JWTProvider{
		store:  store,
		secret: secret,
		issuer: issuer,
		ttl:    ttl,
		logger: logger,
	}
}

func (p *JWTProvider) Authenticate(ctx context.Context, email, password string) (string, error) {
	u, err := p.store.GetByEmail(ctx, email)
	if err != nil {
		// Unknown email and wrong password are indistinguishable.
		return "", ErrInvalidCredentials
	}
	if !u.Active {
		return "", ErrInvalidCredentials
	}
	if err := VerifyPassword(u.PasswordHash, password); err != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.issuer,
			Subject:   u.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
		UserID: u.ID.String(),
		Roles:  u.Roles,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (p *JWTProvider) ValidateToken(ctx context.Context, tokenStr string) (*User, bool) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(p.issuer),
	)
	if err != nil || !token.Valid {
		return nil, false
	}

	uid, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, false
	}

	u, err := p.store.GetByID(ctx, uid)
	if err != nil {
		p.logger.Debug().Str("user_id", claims.UserID).Msg("token resolved to missing account")
		return nil, false
	}
	if !u.Active {
		return nil, false
	}
	return u, true
}

func (p *JWTProvider) RegisterUser(ctx context.Context, email, password, firstName, lastName string) (*User, error) {
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}

	exists, err := p.store.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, ErrDuplicateEmail
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    firstName,
		LastName:     lastName,
		Roles:        []string{RoleOfficeStaff},
		Active:       true,
		CreatedAt:    time.Now(),
	}
	if err := p.store.Create(ctx, u); err != nil {
		return nil, err
	}

	p.logger.Info().Str("email", email).Str("user_id", u.ID.String()).Msg("user registered")
	return u, nil
}
