package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgauth "github.com/sponzahq/sponza-backend/pkg/auth"
	"github.com/sponzahq/sponza-backend/pkg/config"
	pkgdb "github.com/sponzahq/sponza-backend/pkg/db"
	"github.com/sponzahq/sponza-backend/pkg/db/models"
	"github.com/sponzahq/sponza-backend/pkg/enums"
	pkgerrors "github.com/sponzahq/sponza-backend/pkg/errors"
	"github.com/sponzahq/sponza-backend/pkg/logger"
	"github.com/sponzahq/sponza-backend/pkg/security"
)

const minPasswordLen = 8

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type walletProvisioner interface {
	ProvisionWallet(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.Wallet, error)
}

type subscriptionProvisioner interface {
	ProvisionFree(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.Subscription, error)
}

// Service defines the identity surface.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, input LoginInput) (*AuthResult, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// RegisterInput carries a new account request.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     enums.UserRole
}

// LoginInput carries a credential check.
type LoginInput struct {
	Email    string
	Password string
}

// AuthResult pairs the user with a freshly minted access token.
type AuthResult struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// ServiceParams groups dependencies for the auth service.
type ServiceParams struct {
	Repo              Repository
	Ledger            walletProvisioner
	Subscriptions     subscriptionProvisioner
	TransactionRunner txRunner
	Logger            *logger.Logger
	JWT               config.JWTConfig
	Password          config.PasswordConfig
}

type service struct {
	repo     Repository
	ledger   walletProvisioner
	subs     subscriptionProvisioner
	txRunner txRunner
	logg     *logger.Logger
	jwtCfg   config.JWTConfig
	pwCfg    config.PasswordConfig
}

// NewService builds an auth service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("auth repo required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscriptions service required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret required")
	}
	return &service{
		repo:     params.Repo,
		ledger:   params.Ledger,
		subs:     params.Subscriptions,
		txRunner: params.TransactionRunner,
		logg:     params.Logger,
		jwtCfg:   params.JWT,
		pwCfg:    params.Password,
	}, nil
}

// Register creates the account with its wallet and free subscription in one
// transaction so a half-provisioned user can never log in.
func (s *service) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a valid email is required")
	}
	if len(input.Password) < minPasswordLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.Role != enums.UserRoleBrand && input.Role != enums.UserRoleInfluencer {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "role must be brand or influencer")
	}

	hash, err := security.HashPassword(input.Password, s.pwCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hashing password")
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         input.Name,
		Role:         input.Role,
		IsActive:     true,
	}
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, user); err != nil {
			return err
		}
		if _, err := s.ledger.ProvisionWallet(ctx, tx, user.ID); err != nil {
			return err
		}
		_, err := s.subs.ProvisionFree(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		if pkgdb.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "an account with that email already exists")
		}
		if appErr := pkgerrors.As(err); appErr != nil {
			return nil, appErr
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "registering user")
	}

	result, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "user registered")
	return result, nil
}

func (s *service) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading user")
	}
	if !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "account is deactivated")
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verifying password")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	now := time.Now()
	if err := s.repo.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.logg.Error(s.logg.WithUserID(ctx, user.ID.String()), "recording last login", err)
	}
	user.LastLoginAt = &now

	result, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "user logged in")
	return result, nil
}

func (s *service) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading user")
	}
	return user, nil
}

func (s *service) issueToken(user *models.User) (*AuthResult, error) {
	now := time.Now()
	token, err := pkgauth.MintAccessToken(s.jwtCfg, now, pkgauth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting access token")
	}
	return &AuthResult{
		User:      user,
		Token:     token,
		ExpiresAt: now.Add(time.Duration(s.jwtCfg.ExpirationMinutes) * time.Minute),
	}, nil
}
