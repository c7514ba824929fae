package application

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/sirupsen/logrus"

	"github.com/rizkypriyo/go-accounts-api/internal/domain/entity"
	repo "github.com/rizkypriyo/go-accounts-api/internal/domain/repository"
	"github.com/rizkypriyo/go-accounts-api/pkg/helpers"
	"github.com/rizkypriyo/go-accounts-api/pkg/mailer"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account not activated")
	ErrTokenBlacklisted   = errors.New("token blacklisted")
	ErrUserNotFound       = errors.New("user not found")
	ErrActivationInvalid  = errors.New("invalid or expired token")
	ErrDuplicateUser      = repo.ErrDuplicate
)

const (
	purposeActivation = "activation"
	purposeReset      = "password-reset"
)

// BlacklistStore is the deny-list consulted on every refresh.
type BlacklistStore interface {
	Add(ctx context.Context, jti string, ttl time.Duration) error
	Contains(ctx context.Context, jti string) (bool, error)
}

// Publisher enqueues outbound email jobs.
type Publisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// Links holds the front-end URLs embedded in outbound emails.
type Links struct {
	ActivationURL    string
	ResetPasswordURL string
}

type Service struct {
	Repo         repo.UserRepository
	JWT          *helpers.JWTManager
	ActCodec     *helpers.ActivationCodec
	ResetCodec   *helpers.ActivationCodec
	Blacklist    BlacklistStore
	Pub          Publisher
	Logger       *logrus.Logger
	ES           *elasticsearch.Client
	ESUsersIndex string
	Links        Links
	MailEnabled  bool
}

func NewService(repo repo.UserRepository, jwt *helpers.JWTManager, actCodec, resetCodec *helpers.ActivationCodec,
	blacklist BlacklistStore, pub Publisher, logger *logrus.Logger,
	es *elasticsearch.Client, esUsersIndex string, links Links, mailEnabled bool) *Service {
	return &Service{
		Repo:         repo,
		JWT:          jwt,
		ActCodec:     actCodec,
		ResetCodec:   resetCodec,
		Blacklist:    blacklist,
		Pub:          pub,
		Logger:       logger,
		ES:           es,
		ESUsersIndex: esUsersIndex,
		Links:        links,
		MailEnabled:  mailEnabled,
	}
}

type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

type RegisterInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// Register creates an inactive user and queues the activation email.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*entity.User, error) {
	hash, err := helpers.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &entity.User{
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
	}
	if err := s.Repo.Create(ctx, u); err != nil {
		return nil, err
	}
	s.sendActivationEmail(ctx, u)
	_ = s.indexUser(ctx, u)
	return u, nil
}

// Activate flips is_active after verifying the token against the user's
// current stored state. A token issued before a password change, or one
// already consumed, fails verification.
func (s *Service) Activate(ctx context.Context, uid, token string) error {
	u, err := s.Repo.GetByID(ctx, uid)
	if err != nil {
		return ErrActivationInvalid
	}
	if err := s.ActCodec.Verify(token, purposeActivation, u.ID, u.PasswordHash, u.IsActive); err != nil {
		return ErrActivationInvalid
	}
	if err := s.Repo.SetActive(ctx, u.ID); err != nil {
		return err
	}
	u.IsActive = true
	_ = s.indexUser(ctx, u)
	return nil
}

// ResendActivation queues a fresh activation email if the address belongs
// to an inactive account. Always succeeds so callers cannot probe for
// registered emails.
func (s *Service) ResendActivation(ctx context.Context, email string) {
	u, err := s.Repo.GetByEmail(ctx, email)
	if err != nil || u.IsActive {
		return
	}
	s.sendActivationEmail(ctx, u)
}

// Login validates credentials and issues a fresh access/refresh pair.
// Inactive accounts are rejected before any token is minted.
func (s *Service) Login(ctx context.Context, username, password string) (*entity.User, TokenPair, error) {
	u, err := s.Repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, TokenPair{}, ErrInvalidCredentials
	}
	if !helpers.CompareHashAndPassword(u.PasswordHash, password) {
		return nil, TokenPair{}, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, TokenPair{}, ErrAccountInactive
	}
	pair, err := s.issueTokens(u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

func (s *Service) issueTokens(u *entity.User) (TokenPair, error) {
	access, aexp, err := s.JWT.GenerateAccessToken(u.ID)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate access token failed")
		}
		return TokenPair{}, err
	}
	refresh, _, rexp, err := s.JWT.GenerateRefreshToken(u.ID)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate refresh token failed")
		}
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, nil
}

// Refresh mints a new access token from a still-valid refresh token.
// The refresh token itself is not rotated; it stays usable until its own
// expiry or an explicit logout.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	claims, err := s.JWT.ParseRefreshToken(refreshToken)
	if err != nil {
		return "", time.Time{}, err
	}
	blocked, err := s.Blacklist.Contains(ctx, claims.JTI())
	if err != nil {
		return "", time.Time{}, err
	}
	if blocked {
		return "", time.Time{}, ErrTokenBlacklisted
	}
	return s.JWT.GenerateAccessToken(claims.UserID)
}

// Logout blacklists the refresh token's jti for the remainder of its TTL.
// Idempotent: a second logout with the same token still succeeds, and an
// expired token is a no-op success.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.JWT.ParseRefreshTokenAllowExpired(refreshToken)
	if err != nil {
		return err
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	return s.Blacklist.Add(ctx, claims.JTI(), ttl)
}

// RequestPasswordReset queues a reset email when the address is known.
// The caller always gets a success so the endpoint does not leak which
// emails exist.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) {
	u, err := s.Repo.GetByEmail(ctx, email)
	if err != nil {
		return
	}
	token := s.ResetCodec.Issue(purposeReset, u.ID, u.PasswordHash, u.IsActive)
	link := s.Links.ResetPasswordURL + "?uid=" + u.ID + "&token=" + token
	s.enqueueEmail(ctx, mailer.EmailJob{
		To:       u.Email,
		Template: mailer.TemplateResetPassword,
		Data: map[string]any{
			"Username": u.Username,
			"Link":     link,
		},
	})
}

// ConfirmPasswordReset verifies the reset token and stores the new hash.
// The token covers the old hash, so it cannot be replayed after the change.
func (s *Service) ConfirmPasswordReset(ctx context.Context, uid, token, newPassword string) error {
	u, err := s.Repo.GetByID(ctx, uid)
	if err != nil {
		return ErrActivationInvalid
	}
	if err := s.ResetCodec.Verify(token, purposeReset, u.ID, u.PasswordHash, u.IsActive); err != nil {
		return ErrActivationInvalid
	}
	hash, err := helpers.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.Repo.UpdatePassword(ctx, u.ID, hash)
}

// SetPassword changes the password of an authenticated user after checking
// the current one.
func (s *Service) SetPassword(ctx context.Context, userID, current, newPassword string) error {
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		return ErrUserNotFound
	}
	if !helpers.CompareHashAndPassword(u.PasswordHash, current) {
		return ErrInvalidCredentials
	}
	hash, err := helpers.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.Repo.UpdatePassword(ctx, u.ID, hash)
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*entity.User, error) {
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

type UpdateProfileInput struct {
	FirstName *string
	LastName  *string
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*entity.User, error) {
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	if in.FirstName != nil {
		u.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		u.LastName = *in.LastName
	}
	if err := s.Repo.Update(ctx, u); err != nil {
		return nil, err
	}
	_ = s.indexUser(ctx, u)
	return u, nil
}

func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	if err := s.Repo.Delete(ctx, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	s.deindexUser(ctx, userID)
	return nil
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*entity.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.Repo.List(ctx, limit, offset)
}

func (s *Service) sendActivationEmail(ctx context.Context, u *entity.User) {
	token := s.ActCodec.Issue(purposeActivation, u.ID, u.PasswordHash, u.IsActive)
	link := s.Links.ActivationURL + "?uid=" + u.ID + "&token=" + token
	s.enqueueEmail(ctx, mailer.EmailJob{
		To:       u.Email,
		Template: mailer.TemplateActivation,
		Data: map[string]any{
			"Username": u.Username,
			"Link":     link,
		},
	})
}

func (s *Service) enqueueEmail(ctx context.Context, job mailer.EmailJob) {
	if !s.MailEnabled || s.Pub == nil {
		return
	}
	if err := s.Pub.PublishJSON(ctx, job); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("to", job.To).Warn("enqueue email failed")
	}
}

func (s *Service) indexUser(ctx context.Context, u *entity.User) error {
	if s.ES == nil || s.ESUsersIndex == "" {
		return nil
	}
	doc := map[string]any{
		"id":         u.ID,
		"username":   u.Username,
		"email":      u.Email,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"is_active":  u.IsActive,
		"created_at": u.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": u.UpdatedAt.Format(time.RFC3339Nano),
	}
	b, _ := json.Marshal(doc)
	req := esapi.IndexRequest{Index: s.ESUsersIndex, DocumentID: u.ID, Body: strings.NewReader(string(b)), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Warn("es index failed")
		}
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && s.Logger != nil {
		s.Logger.WithField("status", res.Status()).WithField("user_id", u.ID).Warn("es index response error")
	}
	return nil
}

func (s *Service) deindexUser(ctx context.Context, userID string) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return
	}
	req := esapi.DeleteRequest{Index: s.ESUsersIndex, DocumentID: userID}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", userID).Warn("es delete failed")
		}
		return
	}
	_ = res.Body.Close()
}

// SearchUsers performs a simple multi_match search on username, email and names.
func (s *Service) SearchUsers(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"username^2", "email^2", "first_name", "last_name"},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := s.ES.Search(s.ES.Search.WithContext(c), s.ES.Search.WithIndex(s.ESUsersIndex), s.ES.Search.WithBody(strings.NewReader(string(b))))
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
