package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"techcart/internal/audit"
	"techcart/internal/domain"
	"techcart/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 10

	// bcrypt rejects longer passwords
	maxPasswordBytes = 72

	// DefaultTokenTTL applies when no token lifetime is configured
	DefaultTokenTTL = 24 * time.Hour
)

var (
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	ErrInvalidToken       = fmt.Errorf("invalid token: %w", domain.ErrUnauthorized)
)

// RegisterInput is the profile submitted at registration
type RegisterInput struct {
	FirstName            string `json:"first_name" validate:"required,notblank,max=255"`
	LastName             string `json:"last_name" validate:"required,notblank,max=255"`
	Birthday             string `json:"birthday" validate:"required,datetime=2006-01-02"`
	Gender               string `json:"gender" validate:"required,notblank,max=50"`
	Address              string `json:"address" validate:"required,notblank,max=500"`
	ContactNumber        string `json:"contact_number" validate:"required,notblank,max=50"`
	Email                string `json:"email" validate:"required,email,max=255"`
	Password             string `json:"password" validate:"required,min=8,max=72"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

// LoginInput holds login credentials
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResult is a freshly issued bearer token and the account it belongs to
type AuthResult struct {
	Token string
	User  *domain.User
}

// AccountService defines the interface for account business logic
type AccountService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, in LoginInput) (*AuthResult, error)
	Logout(ctx context.Context, identity domain.Identity) error
	Authenticate(ctx context.Context, rawToken string) (*domain.Identity, error)
	CreateAdmin(ctx context.Context, in RegisterInput) (*domain.User, error)
}

// Claims represents the JWT claims. RegisteredClaims.ID carries the session token id.
type Claims struct {
	UserID uuid.UUID   `json:"user_id"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

type accountService struct {
	store     repository.Transactor
	jwtSecret []byte
	tokenTTL  time.Duration
	audit     audit.Recorder
	logger    *zap.Logger
	now       func() time.Time
}

// NewAccountService creates a new instance of AccountService
func NewAccountService(
	store repository.Transactor,
	jwtSecret string,
	tokenTTL time.Duration,
	recorder audit.Recorder,
	logger *zap.Logger,
) AccountService {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &accountService{
		store:     store,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		audit:     recorder,
		logger:    logger,
		now:       time.Now,
	}
}

// Register creates a customer account and signs the user in
func (s *accountService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	user, err := s.newUser(in, domain.RoleCustomer)
	if err != nil {
		return nil, err
	}

	var token string
	err = s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		if err := createUser(ctx, repos.Users, user); err != nil {
			return err
		}
		token, err = s.issueToken(ctx, repos.Sessions, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID.String()))
	s.audit.Record(ctx, audit.Event{
		Action:   audit.ActionUserRegistered,
		ActorID:  user.ID,
		Entity:   "user",
		EntityID: user.ID,
	})

	return &AuthResult{Token: token, User: user}, nil
}

// Login checks credentials, revokes every earlier token of the user and issues a new one
func (s *accountService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	repos := s.store.Repositories()

	user, err := repos.Users.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := verifyPassword(user.PasswordHash, in.Password); err != nil {
		return nil, ErrInvalidCredentials
	}

	var (
		token   string
		revoked int64
	)
	err = s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		var err error
		revoked, err = repos.Sessions.RevokeAllForUser(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("failed to revoke previous tokens: %w", err)
		}
		token, err = s.issueToken(ctx, repos.Sessions, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("User logged in",
		zap.String("user_id", user.ID.String()),
		zap.Int64("revoked_tokens", revoked),
	)
	s.audit.Record(ctx, audit.Event{
		Action:   audit.ActionUserLoggedIn,
		ActorID:  user.ID,
		Entity:   "user",
		EntityID: user.ID,
		Details:  map[string]any{"revoked_tokens": revoked},
	})

	return &AuthResult{Token: token, User: user}, nil
}

// Logout revokes the token the caller authenticated with
func (s *accountService) Logout(ctx context.Context, identity domain.Identity) error {
	if err := s.store.Repositories().Sessions.Revoke(ctx, identity.TokenID); err != nil {
		if !errors.Is(err, repository.ErrSessionTokenNotFound) {
			return fmt.Errorf("failed to revoke token: %w", err)
		}
		// already gone, consider it logged out
	}

	s.audit.Record(ctx, audit.Event{
		Action:   audit.ActionUserLoggedOut,
		ActorID:  identity.UserID,
		Entity:   "session_token",
		EntityID: identity.TokenID,
	})
	return nil
}

// Authenticate verifies the JWT and the session row behind it
func (s *accountService) Authenticate(ctx context.Context, rawToken string) (*domain.Identity, error) {
	claims, err := s.parseToken(rawToken)
	if err != nil {
		return nil, err
	}

	tokenID, err := uuid.Parse(claims.ID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	session, err := s.store.Repositories().Sessions.FindByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionTokenNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to find session token: %w", err)
	}

	if session.UserID != claims.UserID || !session.Active(s.now()) {
		return nil, ErrInvalidToken
	}

	return &domain.Identity{UserID: claims.UserID, Role: claims.Role, TokenID: tokenID}, nil
}

// CreateAdmin stores an administrator account without signing it in
func (s *accountService) CreateAdmin(ctx context.Context, in RegisterInput) (*domain.User, error) {
	user, err := s.newUser(in, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}

	if err := createUser(ctx, s.store.Repositories().Users, user); err != nil {
		return nil, err
	}

	s.logger.Info("Administrator created", zap.String("user_id", user.ID.String()))
	s.audit.Record(ctx, audit.Event{
		Action:   audit.ActionAdminCreated,
		ActorID:  user.ID,
		Entity:   "user",
		EntityID: user.ID,
	})
	return user, nil
}

func (s *accountService) newUser(in RegisterInput, role domain.Role) (*domain.User, error) {
	birthday, err := time.Parse(domain.BirthdayLayout, in.Birthday)
	if err != nil {
		return nil, domain.NewValidationError("birthday", "Must be a date in YYYY-MM-DD format")
	}

	// max=72 counts characters, bcrypt counts bytes
	if len(in.Password) > maxPasswordBytes {
		return nil, domain.NewValidationError("password", "May not be greater than 72 bytes")
	}

	hashedPassword, err := hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	return &domain.User{
		ID:            uuid.New(),
		FirstName:     strings.TrimSpace(in.FirstName),
		LastName:      strings.TrimSpace(in.LastName),
		Birthday:      birthday,
		Gender:        strings.TrimSpace(in.Gender),
		Address:       strings.TrimSpace(in.Address),
		ContactNumber: strings.TrimSpace(in.ContactNumber),
		Email:         strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash:  hashedPassword,
		Role:          role,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func createUser(ctx context.Context, users repository.UserRepository, user *domain.User) error {
	if err := users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserAlreadyExists) {
			return domain.NewValidationError("email", "The email has already been taken")
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// issueToken stores a session row and signs a JWT whose jti is the row id
func (s *accountService) issueToken(ctx context.Context, sessions repository.SessionTokenRepository, user *domain.User) (string, error) {
	now := s.now()
	session := &domain.SessionToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.tokenTTL),
		CreatedAt: now,
	}
	if err := sessions.Create(ctx, session); err != nil {
		return "", fmt.Errorf("failed to store session token: %w", err)
	}

	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID.String(),
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

func (s *accountService) parseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// hashPassword hashes a password using bcrypt with cost factor 10
func hashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// verifyPassword verifies a password against a bcrypt hash
func verifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}
