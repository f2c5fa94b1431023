package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/bidhub/procurement/internal/apperr"
	"github.com/bidhub/procurement/internal/auth"
	"github.com/bidhub/procurement/internal/authz"
	"github.com/bidhub/procurement/internal/user"
)

var (
	// ErrInvalidCredentials covers unknown e-mail and wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrRefreshInvalid     = errors.New("invalid refresh token")
)

type userRepository interface {
	GetCredentials(ctx context.Context, email string) (*user.Credentials, error)
	GetAuthUser(ctx context.Context, id int64) (*authz.User, error)
	TouchLastLogin(ctx context.Context, id int64) error
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
}

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// AuthService issues and rotates sessions and resolves access tokens to users.
type AuthService struct {
	users      userRepository
	redis      redisCommander
	jwt        *auth.JWTManager
	refreshTTL time.Duration
}

func NewAuthService(users userRepository, redisClient redisCommander, jwtMgr *auth.JWTManager, refreshTTL time.Duration) *AuthService {
	return &AuthService{users: users, redis: redisClient, jwt: jwtMgr, refreshTTL: refreshTTL}
}

// LoginResult is returned by login and refresh.
type LoginResult struct {
	AccessToken   string      `json:"accessToken"`
	RefreshToken  string      `json:"refreshToken"`
	ExpiresIn     int64       `json:"expiresIn"`
	RefreshExpiry time.Time   `json:"refreshExpiresAt"`
	User          *authz.User `json:"user"`
}

// Login verifies the password and opens a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	creds, err := s.users.GetCredentials(ctx, email)
	if err != nil {
		if apperr.IsNotFound(err) {
			auth.VerifyMissing(password)
			log.Warn().Msg("login: unknown email")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := auth.Verify(password, creds.PasswordHash)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", creds.ID).Msg("login: verify password failed")
		return nil, ErrInvalidCredentials
	}
	if !ok {
		log.Warn().Int64("user_id", creds.ID).Msg("login: wrong password")
		return nil, ErrInvalidCredentials
	}
	if creds.Status != user.StatusActive {
		return nil, ErrAccountDisabled
	}

	result, err := s.issue(ctx, creds.ID)
	if err != nil {
		return nil, err
	}
	if err := s.users.TouchLastLogin(ctx, creds.ID); err != nil {
		log.Warn().Err(err).Int64("user_id", creds.ID).Msg("login: last_login not updated")
	}
	if auth.NeedsRehash(creds.PasswordHash) {
		s.rehash(ctx, creds.ID, password)
	}
	return result, nil
}

// rehash upgrades a stored hash to the current argon2id parameters. Failure
// only costs the upgrade, never the login.
func (s *AuthService) rehash(ctx context.Context, id int64, password string) {
	hash, err := auth.Hash(password)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, id, hash)
	}
	if err != nil {
		log.Warn().Err(err).Int64("user_id", id).Msg("login: password rehash failed")
		return
	}
	log.Info().Int64("user_id", id).Msg("login: password rehashed")
}

// Refresh rotates a refresh token: the old key is deleted and a new pair issued.
func (s *AuthService) Refresh(ctx context.Context, rawToken string) (*LoginResult, error) {
	if rawToken == "" {
		return nil, ErrRefreshInvalid
	}

	redisKey := auth.RefreshRedisKey(auth.Audience, auth.HashRefreshToken(rawToken))
	val, err := s.redis.Get(ctx, redisKey).Result()
	if err == redis.Nil {
		return nil, ErrRefreshInvalid
	}
	if err != nil {
		return nil, err
	}
	userID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return nil, ErrRefreshInvalid
	}

	if err := s.redis.Del(ctx, redisKey).Err(); err != nil && err != redis.Nil {
		return nil, err
	}

	result, err := s.issue(ctx, userID)
	if apperr.IsNotFound(err) {
		return nil, ErrRefreshInvalid
	}
	return result, err
}

// Logout drops the refresh session. Unknown tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	redisKey := auth.RefreshRedisKey(auth.Audience, auth.HashRefreshToken(rawToken))
	if err := s.redis.Del(ctx, redisKey).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

// ResolveUser validates an access token and loads the current authorization view.
func (s *AuthService) ResolveUser(ctx context.Context, token string) (*authz.User, error) {
	claims, err := s.jwt.ParseAndValidate(token)
	if err != nil {
		return nil, auth.ErrInvalidToken
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}

	u, err := s.users.GetAuthUser(ctx, userID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, auth.ErrInvalidToken
		}
		return nil, err
	}
	if u.Status != user.StatusActive {
		return nil, ErrAccountDisabled
	}
	return u, nil
}

func (s *AuthService) issue(ctx context.Context, userID int64) (*LoginResult, error) {
	u, err := s.users.GetAuthUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Status != user.StatusActive {
		return nil, ErrAccountDisabled
	}

	token, _, err := s.jwt.GenerateAccessToken(u.ID, authz.RoleNames(u))
	if err != nil {
		return nil, err
	}

	rawRefresh, refreshHash, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	expires := time.Now().UTC().Add(s.refreshTTL)
	key := auth.RefreshRedisKey(auth.Audience, refreshHash)
	if err := s.redis.Set(ctx, key, strconv.FormatInt(u.ID, 10), s.refreshTTL).Err(); err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:   token,
		RefreshToken:  rawRefresh,
		ExpiresIn:     int64(s.jwt.AccessTTL().Seconds()),
		RefreshExpiry: expires,
		User:          u,
	}, nil
}
