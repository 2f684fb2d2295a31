// Package services contains the server-side business logic: identity
// (UserService), chat membership (ChatService) and the message lifecycle
// (MessageService).
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/dmitrijs2005/gophchat/internal/dbx"
	"github.com/dmitrijs2005/gophchat/internal/logging"
	"github.com/dmitrijs2005/gophchat/internal/server/auth"
	"github.com/dmitrijs2005/gophchat/internal/server/config"
	"github.com/dmitrijs2005/gophchat/internal/server/models"
	"github.com/dmitrijs2005/gophchat/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// RegisterRequest is the input of Register.
type RegisterRequest struct {
	Username string `validate:"required,max=150"`
	Password string `validate:"required,max=72"`
	Email    string `validate:"omitempty,email,max=254"`
}

// UserService provides identity operations:
// - Register: create users
// - Login: verify credentials and mint tokens
// - RefreshToken: rotate refresh tokens and mint new access tokens
// - ListUsers / LastMessageTime: user directory with activity info
type UserService struct {
	db                           dbx.Runner
	repomanager                  repomanager.RepositoryManager
	validate                     *validator.Validate
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	now                          func() time.Time
	log                          logging.Logger
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db dbx.Runner, m repomanager.RepositoryManager, cfg *config.Config, log logging.Logger) *UserService {
	return &UserService{
		db:                           db,
		repomanager:                  m,
		validate:                     validator.New(),
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		now:                          time.Now,
		log:                          log.With("module", "users"),
	}
}

// Register creates a user with a bcrypt-hashed password.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	// validator counts runes, bcrypt counts bytes
	if len(req.Password) > auth.MaxPasswordBytes {
		return nil, common.ErrValidation.WithMessage("invalid fields: password: too long")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	u, err := s.repomanager.Users(s.db.Conn()).Create(ctx, &models.User{
		UserName:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
	})
	if errors.Is(err, common.ErrorAlreadyExists) {
		return nil, common.ErrUsernameTaken
	}
	if err != nil {
		err = storeFailure("create user", err)
		logStoreFailure(ctx, s.log, "register failed", err)
		return nil, err
	}

	s.log.Info(ctx, "user registered", "user_id", u.ID, "username", u.UserName)
	return u, nil
}

// validationError turns validator output into a single validation_failed
// error naming the offending fields.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return common.ErrValidation
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, strings.ToLower(fe.Field())+": "+fe.Tag())
	}
	return common.ErrValidation.WithMessage("invalid fields: " + strings.Join(parts, ", "))
}

// Login verifies the password and, on success, returns a new TokenPair.
// Unknown users and wrong passwords are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	user, err := s.repomanager.Users(s.db.Conn()).GetByUsername(ctx, username)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrInvalidCredentials
	}
	if err != nil {
		err = storeFailure("get user", err)
		logStoreFailure(ctx, s.log, "login failed", err)
		return nil, err
	}

	ok, err := auth.CheckPassword(user.PasswordHash, password)
	if err != nil {
		s.log.Error(ctx, "stored password hash is unusable", "user_id", user.ID, "error", err)
		return nil, common.ErrorInternal
	}
	if !ok {
		return nil, common.ErrInvalidCredentials
	}

	var pair *TokenPair
	if err := s.db.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, user, tx)
		return genErr
	}); err != nil {
		return nil, err
	}
	return pair, nil
}

// RefreshToken validates a refresh token, rotates it transactionally, and
// returns a fresh TokenPair. Expired tokens yield ErrRefreshTokenExpired.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	token, err := s.repomanager.RefreshTokens(s.db.Conn()).Find(ctx, refreshToken)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}

	if token.Expires.Before(s.now()) {
		return nil, common.ErrRefreshTokenExpired
	}

	var pair *TokenPair
	if err := s.db.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		err := s.repomanager.RefreshTokens(tx).Delete(ctx, refreshToken)
		if errors.Is(err, common.ErrorNotFound) {
			// consumed by a concurrent refresh
			return common.ErrInvalidToken
		}
		if err != nil {
			return fmt.Errorf("error deleting refresh token: %w", err)
		}

		user, err := s.repomanager.Users(tx).GetByID(ctx, token.UserID)
		if err != nil {
			return fmt.Errorf("error loading token owner: %w", err)
		}

		var genErr error
		pair, genErr = s.generateTokenPair(ctx, user, tx)
		return genErr
	}); err != nil {
		return nil, err
	}
	return pair, nil
}

// Authenticate resolves an access token to the caller's identity.
func (s *UserService) Authenticate(accessToken string) (auth.Identity, error) {
	return auth.ParseToken(accessToken, s.jwtSecret)
}

// ListUsers returns every user with the time of their latest message.
func (s *UserService) ListUsers(ctx context.Context) ([]models.UserSummary, error) {
	list, err := s.repomanager.Users(s.db.Conn()).List(ctx)
	if err != nil {
		err = storeFailure("list users", err)
		logStoreFailure(ctx, s.log, "list users failed", err)
		return nil, err
	}
	return list, nil
}

// LastMessageTime returns when userID last sent a message, or nil if never.
func (s *UserService) LastMessageTime(ctx context.Context, userID int64) (*time.Time, error) {
	users := s.repomanager.Users(s.db.Conn())

	if _, err := users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUnknownUser
		}
		err = storeFailure("get user", err)
		logStoreFailure(ctx, s.log, "last message time failed", err)
		return nil, err
	}

	t, err := users.LastMessageTime(ctx, userID)
	if err != nil {
		err = storeFailure("last message time", err)
		logStoreFailure(ctx, s.log, "last message time failed", err)
		return nil, err
	}
	return t, nil
}

// --- helpers below ---

func (s *UserService) generateAccessToken(user *models.User) (string, error) {
	return auth.GenerateToken(auth.Identity{UserID: user.ID, Username: user.UserName}, s.jwtSecret, s.accessTokenValidityDuration)
}

func (s *UserService) generateRefreshToken() (string, error) {
	return common.MakeRandHexString(32)
}

func (s *UserService) generateTokenPair(ctx context.Context, user *models.User, tx dbx.DBTX) (*TokenPair, error) {
	access, err := s.generateAccessToken(user)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := s.generateRefreshToken()
	if err != nil {
		return nil, common.ErrorInternal
	}
	expires := s.now().Add(s.refreshTokenValidityDuration)
	if err := s.repomanager.RefreshTokens(tx).Create(ctx, user.ID, refresh, expires); err != nil {
		s.log.Error(ctx, "error storing refresh token", "user_id", user.ID, "error", err)
		return nil, common.ErrorInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
