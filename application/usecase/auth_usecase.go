package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudcommerce/user-service/application/port/inbound"
	"github.com/cloudcommerce/user-service/application/port/outbound"
	"github.com/cloudcommerce/user-service/domain/entity"
	domainerr "github.com/cloudcommerce/user-service/domain/error"
	"github.com/cloudcommerce/user-service/domain/valueobject"
	"github.com/cloudcommerce/user-service/infrastructure/service/logger"
)

// AuthConfig holds the token policy shared by login, register and refresh.
type AuthConfig struct {
	TokenTTL time.Duration
	Issuer   string
	// MaxSessionAge caps how long refreshes may extend a session past the
	// original login. Zero means unbounded.
	MaxSessionAge time.Duration
	// AllowAdminSelfRegistration lets anonymous callers register as admin.
	AllowAdminSelfRegistration bool
}

// timingEqualizer is implemented by password services that can spend a full
// comparison when there is no stored hash.
type timingEqualizer interface {
	BurnCompare(password string)
}

type AuthUseCase struct {
	userRepository  outbound.UserRepository
	tokenService    outbound.TokenService
	passwordService outbound.PasswordService
	clock           outbound.Clock
	logger          logger.Logger
	config          AuthConfig
}

func NewAuthUseCase(
	userRepo outbound.UserRepository,
	tokenService outbound.TokenService,
	passwordService outbound.PasswordService,
	clock outbound.Clock,
	log logger.Logger,
	config AuthConfig,
) *AuthUseCase {
	return &AuthUseCase{
		userRepository:  userRepo,
		tokenService:    tokenService,
		passwordService: passwordService,
		clock:           clock,
		logger:          log,
		config:          config,
	}
}

var _ inbound.AuthUseCase = (*AuthUseCase)(nil)

func (uc *AuthUseCase) Login(ctx context.Context, req inbound.LoginRequest) (*inbound.AuthResponse, error) {
	credentials, err := valueobject.NewCredentials(req.Email, req.Password)
	if err != nil {
		logger.LogAuthEvent(ctx, uc.logger, "login_validation_failed", 0, "", false, nil)
		return nil, err
	}

	user, err := uc.userRepository.FindByEmail(ctx, credentials.Email())
	if err != nil {
		if errors.Is(err, outbound.ErrUserNotFound) {
			if eq, ok := uc.passwordService.(timingEqualizer); ok {
				eq.BurnCompare(credentials.Password())
			}
			logger.LogAuthEvent(ctx, uc.logger, "login_failed_user_not_found", 0, "", false, map[string]interface{}{
				"email": credentials.Email(),
			})
			return nil, domainerr.ErrInvalidCredentials()
		}
		uc.logger.Error(ctx, "Failed to find user", err, map[string]interface{}{
			"email": credentials.Email(),
		})
		return nil, domainerr.ErrInternalServerError("failed to find user", err)
	}

	start := time.Now()
	valid := uc.passwordService.VerifyPassword(credentials.Password(), user.PasswordHash)
	logger.LogPerformance(ctx, uc.logger, "password_verification", time.Since(start), map[string]interface{}{
		"user_id": user.ID,
	})
	if !valid {
		logger.LogAuthEvent(ctx, uc.logger, "login_failed_invalid_password", user.ID, "", false, map[string]interface{}{
			"email": credentials.Email(),
		})
		return nil, domainerr.ErrInvalidCredentials()
	}

	now := uc.clock.Now()
	if err := uc.userRepository.RecordLogin(ctx, user.ID, now); err != nil {
		uc.logger.Error(ctx, "Failed to record login", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, domainerr.ErrInternalServerError("failed to record login", err)
	}
	lastLogin := now.UTC()
	user.LastLogin = &lastLogin

	issued, err := uc.mint(user)
	if err != nil {
		uc.logger.Error(ctx, "Failed to generate token", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, err
	}

	logger.LogAuthEvent(ctx, uc.logger, "login_successful", user.ID, "", true, map[string]interface{}{
		"email": user.Email,
		"role":  user.Role,
	})

	return uc.authResponse(issued, user, now), nil
}

func (uc *AuthUseCase) Register(ctx context.Context, req inbound.RegisterRequest) (*inbound.AuthResponse, error) {
	registration, err := valueobject.NewRegistration(req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		logger.LogAuthEvent(ctx, uc.logger, "register_validation_failed", 0, "", false, map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	if registration.Role().IsAdmin() && !uc.config.AllowAdminSelfRegistration {
		callerIsAdmin, err := uc.isAdmin(ctx, req.CallerID)
		if err != nil {
			return nil, err
		}
		if !callerIsAdmin {
			logger.LogSecurityEvent(ctx, uc.logger, "admin_self_registration_denied", "MEDIUM", map[string]interface{}{
				"email":     registration.Email(),
				"caller_id": req.CallerID,
			})
			return nil, domainerr.ErrRoleForbidden(string(registration.Role()))
		}
	}

	// Cheap pre-check so a duplicate does not pay for hashing. Create repeats
	// the check atomically.
	if _, err := uc.userRepository.FindByEmail(ctx, registration.Email()); err == nil {
		logger.LogAuthEvent(ctx, uc.logger, "register_duplicate_email", 0, "", false, map[string]interface{}{
			"email": registration.Email(),
		})
		return nil, domainerr.ErrDuplicateEmail()
	} else if !errors.Is(err, outbound.ErrUserNotFound) {
		return nil, domainerr.ErrInternalServerError("failed to check email", err)
	}

	hash, err := uc.passwordService.HashPassword(registration.Password())
	if err != nil {
		uc.logger.Error(ctx, "Failed to hash password", err, nil)
		return nil, domainerr.ErrInternalServerError("failed to hash password", err)
	}

	user, err := uc.userRepository.Create(ctx, entity.NewUser(registration.Email(), hash, registration.Name(), registration.Role()))
	if err != nil {
		if errors.Is(err, outbound.ErrUserAlreadyExists) {
			return nil, domainerr.ErrDuplicateEmail()
		}
		uc.logger.Error(ctx, "Failed to create user", err, map[string]interface{}{
			"email": registration.Email(),
		})
		return nil, domainerr.ErrInternalServerError("failed to create user", err)
	}

	now := uc.clock.Now()
	issued, err := uc.mint(user)
	if err != nil {
		uc.logger.Error(ctx, "Failed to generate token", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, err
	}

	logger.LogAuthEvent(ctx, uc.logger, "register_successful", user.ID, "", true, map[string]interface{}{
		"email": user.Email,
		"role":  user.Role,
	})

	return uc.authResponse(issued, user, now), nil
}

func (uc *AuthUseCase) Validate(ctx context.Context, req inbound.ValidateRequest) (*inbound.ValidateResponse, error) {
	if req.Token == "" {
		return nil, domainerr.ErrMissingFields("token")
	}

	info, err := uc.tokenService.Verify(req.Token)
	if err != nil {
		return nil, uc.classifyTokenError(ctx, "validate", err)
	}

	user, err := uc.resolveUser(ctx, "validate", info.Claims.UserID)
	if err != nil {
		return nil, err
	}

	return &inbound.ValidateResponse{
		Valid: true,
		User:  user.View(),
		TokenInfo: valueobject.TokenInfo{
			IssuedAt:  info.IssuedAt.UTC(),
			ExpiresAt: info.ExpiresAt.UTC(),
		},
	}, nil
}

// Refresh re-issues a token for a live or expired-but-authentic token.
// Forged tokens never fall back to the unverified decode.
func (uc *AuthUseCase) Refresh(ctx context.Context, req inbound.RefreshRequest) (*inbound.AuthResponse, error) {
	if req.Token == "" {
		return nil, domainerr.ErrMissingFields("token")
	}

	info, err := uc.tokenService.Verify(req.Token)
	switch {
	case err == nil:
	case errors.Is(err, outbound.ErrTokenExpired):
		info, err = uc.tokenService.DecodeUnverified(req.Token)
		if err != nil {
			return nil, uc.classifyTokenError(ctx, "refresh", err)
		}
	default:
		return nil, uc.classifyTokenError(ctx, "refresh", err)
	}

	now := uc.clock.Now()
	if uc.config.MaxSessionAge > 0 && now.Sub(info.AuthTime) >= uc.config.MaxSessionAge {
		logger.LogSecurityEvent(ctx, uc.logger, "refresh_session_too_old", "LOW", map[string]interface{}{
			"user_id":   info.Claims.UserID,
			"auth_time": info.AuthTime.UTC().Format(time.RFC3339),
		})
		return nil, domainerr.ErrSessionTooOld(fmt.Sprintf("session started %s", info.AuthTime.UTC().Format(time.RFC3339)))
	}

	user, err := uc.resolveUser(ctx, "refresh", info.Claims.UserID)
	if err != nil {
		return nil, err
	}

	issued, err := uc.mint(user, outbound.WithAuthTime(info.AuthTime))
	if err != nil {
		uc.logger.Error(ctx, "Failed to generate token", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, err
	}

	logger.LogAuthEvent(ctx, uc.logger, "token_refresh_successful", user.ID, "", true, map[string]interface{}{
		"previous_token_id": info.ID,
	})

	return uc.authResponse(issued, user, now), nil
}

// Logout only acknowledges; tokens stay valid until they expire.
func (uc *AuthUseCase) Logout(ctx context.Context, req inbound.LogoutRequest) error {
	fields := map[string]interface{}{}
	if req.Token != "" {
		if info, err := uc.tokenService.Verify(req.Token); err == nil {
			fields["user_id"] = info.Claims.UserID
			fields["token_id"] = info.ID
		}
	}
	logger.LogAuthEvent(ctx, uc.logger, "logout", 0, "", true, fields)
	return nil
}

func (uc *AuthUseCase) Me(ctx context.Context, userID int64) (*entity.UserView, error) {
	if userID == 0 {
		return nil, domainerr.ErrMissingFields("userId")
	}

	user, err := uc.resolveUser(ctx, "me", userID)
	if err != nil {
		return nil, err
	}
	view := user.View()
	return &view, nil
}

func (uc *AuthUseCase) mint(user *entity.User, opts ...outbound.MintOption) (valueobject.IssuedToken, error) {
	claims := outbound.TokenClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	}
	token, err := uc.tokenService.Mint(claims, uc.config.TokenTTL, uc.config.Issuer, opts...)
	if err != nil {
		return valueobject.IssuedToken{}, domainerr.ErrInternalServerError("failed to generate token", err)
	}
	info, err := uc.tokenService.DecodeUnverified(token)
	if err != nil {
		return valueobject.IssuedToken{}, domainerr.ErrInternalServerError("failed to read issued token", err)
	}
	return valueobject.NewIssuedToken(token, info.IssuedAt, info.ExpiresAt), nil
}

func (uc *AuthUseCase) authResponse(issued valueobject.IssuedToken, user *entity.User, now time.Time) *inbound.AuthResponse {
	return &inbound.AuthResponse{
		Token:     issued.Token,
		ExpiresIn: issued.ExpiresIn(now),
		ExpiresAt: issued.ExpiresAt,
		User:      user.View(),
	}
}

// isAdmin reports whether the caller holds the admin role in the store now,
// not in whatever token it presented.
func (uc *AuthUseCase) isAdmin(ctx context.Context, callerID int64) (bool, error) {
	if callerID == 0 {
		return false, nil
	}
	caller, err := uc.userRepository.FindByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, outbound.ErrUserNotFound) {
			return false, nil
		}
		return false, domainerr.ErrInternalServerError("failed to load caller", err)
	}
	return caller.Role.IsAdmin(), nil
}

func (uc *AuthUseCase) resolveUser(ctx context.Context, operation string, userID int64) (*entity.User, error) {
	user, err := uc.userRepository.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, outbound.ErrUserNotFound) {
			logger.LogSecurityEvent(ctx, uc.logger, operation+"_user_not_found", "MEDIUM", map[string]interface{}{
				"user_id": userID,
			})
			return nil, domainerr.ErrUserNotFound()
		}
		uc.logger.Error(ctx, "Failed to find user", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, domainerr.ErrInternalServerError("failed to find user", err)
	}
	return user, nil
}

func (uc *AuthUseCase) classifyTokenError(ctx context.Context, operation string, err error) error {
	switch {
	case errors.Is(err, outbound.ErrTokenExpired):
		logger.LogAuthEvent(ctx, uc.logger, operation+"_token_expired", 0, "", false, nil)
		return domainerr.ErrTokenExpired(err)
	case errors.Is(err, outbound.ErrSignatureInvalid):
		logger.LogSecurityEvent(ctx, uc.logger, operation+"_token_invalid", "MEDIUM", map[string]interface{}{
			"error": err.Error(),
		})
		return domainerr.ErrSignatureInvalid(err)
	default:
		uc.logger.Error(ctx, "Token verification failed", err, nil)
		return domainerr.ErrInternalServerError("token verification failed", err)
	}
}
