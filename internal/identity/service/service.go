package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"

	"qualitrack/internal/identity/models"
	"qualitrack/internal/platform/metrics"
	"qualitrack/internal/platform/middleware"
	"qualitrack/pkg/domain"
	dErrors "qualitrack/pkg/domain-errors"
	"qualitrack/pkg/platform/middleware/metadata"
	"qualitrack/pkg/platform/sentinel"
	"qualitrack/pkg/secrets"
)

type UserStore interface {
	Save(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id domain.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	ListByRoleNot(ctx context.Context, role domain.Role) ([]*models.User, error)
}

// DepartmentLookup resolves department names for principal assembly.
type DepartmentLookup interface {
	DepartmentName(ctx context.Context, id domain.DepartmentID) (string, error)
}

// TokenIssuer mints signed access tokens for authenticated users.
type TokenIssuer interface {
	GenerateAccessToken(userID domain.UserID, role domain.Role, expiresIn time.Duration) (string, error)
}

// Service is the user directory and login facade.
type Service struct {
	users       UserStore
	departments DepartmentLookup
	tokens      TokenIssuer
	tokenTTL    time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(users UserStore, departments DepartmentLookup, tokens TokenIssuer, tokenTTL time.Duration, opts ...Option) *Service {
	s := &Service{
		users:       users,
		departments: departments,
		tokens:      tokens,
		tokenTTL:    tokenTTL,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoginResult carries the issued token and the authenticated user.
type LoginResult struct {
	AccessToken string       `json:"accessToken"`
	ExpiresIn   int          `json:"expiresIn"`
	User        *models.User `json:"user"`
}

// Login authenticates by email and password and issues an access token.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "email and password are required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if dErrors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}

	if err := secrets.Verify(password, user.PasswordHash); err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")
	}

	token, err := s.tokens.GenerateAccessToken(user.ID, user.Role, s.tokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}

	s.logAudit(ctx, "user_login",
		"user_id", user.ID.String(),
		"device", metadata.DeviceSummary(metadata.GetUserAgent(ctx)),
		"client_ip", metadata.GetClientIP(ctx),
	)
	if s.metrics != nil {
		s.metrics.Logins.Inc()
	}

	return &LoginResult{
		AccessToken: token,
		ExpiresIn:   int(s.tokenTTL.Seconds()),
		User:        user,
	}, nil
}

// CreateUserRequest is the administrator-facing user creation payload.
type CreateUserRequest struct {
	Email        string `json:"email"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Password     string `json:"password"`
	Role         string `json:"role"`
	DepartmentID string `json:"departmentId"`
	PlantID      string `json:"plantId"`
}

// CreateUser registers a new directory entry. Administrator only.
func (s *Service) CreateUser(ctx context.Context, principal domain.Principal, req CreateUserRequest) (*models.User, error) {
	if !principal.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only administrators can create users")
	}
	if !govalidator.IsEmail(req.Email) {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid email")
	}
	if !govalidator.StringLength(req.Password, "8", "128") {
		return nil, dErrors.New(dErrors.CodeValidation, "password must be between 8 and 128 characters")
	}

	role := domain.ParseRole(req.Role)

	var departmentID domain.DepartmentID
	if req.DepartmentID != "" {
		parsed, err := domain.ParseDepartmentID(req.DepartmentID)
		if err != nil {
			return nil, err
		}
		if _, err := s.departments.DepartmentName(ctx, parsed); err != nil {
			if dErrors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeNotFound, "department not found")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up department")
		}
		departmentID = parsed
	}

	var plantID domain.PlantID
	if req.PlantID != "" {
		parsed, err := domain.ParsePlantID(req.PlantID)
		if err != nil {
			return nil, err
		}
		plantID = parsed
	}

	hash, err := secrets.Hash(req.Password)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	user, err := models.NewUser(domain.NewUserID(), req.Email, req.FirstName, req.LastName, hash, role, departmentID, plantID, time.Now())
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := s.users.Save(ctx, user); err != nil {
		if dErrors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "a user with this email already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}

	s.logAudit(ctx, "user_created",
		"user_id", user.ID.String(),
		"created_by", principal.UserID.String(),
		"role", string(user.Role),
	)
	return user, nil
}

// ListNonAdmins returns every non-administrator user for assignment pickers.
func (s *Service) ListNonAdmins(ctx context.Context) ([]*models.User, error) {
	users, err := s.users.ListByRoleNot(ctx, domain.RoleAdmin)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list users")
	}
	return users, nil
}

// LookupPrincipal resolves a validated user id into a full principal.
// Implements the auth middleware's PrincipalDirectory.
func (s *Service) LookupPrincipal(ctx context.Context, userID domain.UserID) (domain.Principal, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if dErrors.Is(err, sentinel.ErrNotFound) {
			return domain.Principal{}, dErrors.New(dErrors.CodeUnauthorized, "unknown user")
		}
		return domain.Principal{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}

	principal := domain.Principal{
		UserID:       user.ID,
		Role:         user.Role,
		DepartmentID: user.DepartmentID,
		Email:        user.Email,
	}
	if !user.DepartmentID.IsNil() {
		name, err := s.departments.DepartmentName(ctx, user.DepartmentID)
		if err != nil && !dErrors.Is(err, sentinel.ErrNotFound) {
			return domain.Principal{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load department")
		}
		principal.DepartmentName = name
	}
	return principal, nil
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := middleware.GetRequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
