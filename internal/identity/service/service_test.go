package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"qualitrack/internal/identity/store"
	"qualitrack/internal/jwttoken"
	"qualitrack/pkg/domain"
	dErrors "qualitrack/pkg/domain-errors"
	"qualitrack/pkg/platform/sentinel"
)

// =============================================================================
// Identity Service Test Suite
// =============================================================================
// Justification for unit tests: login must not leak whether an email exists,
// and principal resolution feeds every authorization decision downstream.

type fakeDepartments struct {
	names map[domain.DepartmentID]string
}

func (f *fakeDepartments) DepartmentName(_ context.Context, id domain.DepartmentID) (string, error) {
	name, ok := f.names[id]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return name, nil
}

type IdentityServiceSuite struct {
	suite.Suite
	store       *store.InMemory
	departments *fakeDepartments
	service     *Service

	admin  domain.Principal
	deptID domain.DepartmentID
}

func TestIdentityServiceSuite(t *testing.T) {
	suite.Run(t, new(IdentityServiceSuite))
}

func (s *IdentityServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.deptID = domain.NewDepartmentID()
	s.departments = &fakeDepartments{names: map[domain.DepartmentID]string{
		s.deptID: "Quality",
	}}
	tokens := jwttoken.NewJWTService("test-signing-key", "qualitrack", "qualitrack-api")
	s.service = New(s.store, s.departments, tokens, time.Hour)

	s.admin = domain.Principal{UserID: domain.NewUserID(), Role: domain.RoleAdmin}
}

func (s *IdentityServiceSuite) createUser(email, password string, role domain.Role) domain.UserID {
	user, err := s.service.CreateUser(context.Background(), s.admin, CreateUserRequest{
		Email:        email,
		FirstName:    "Test",
		LastName:     "User",
		Password:     password,
		Role:         string(role),
		DepartmentID: s.deptID.String(),
	})
	s.Require().NoError(err)
	return user.ID
}

// =============================================================================
// CreateUser Tests
// =============================================================================

func (s *IdentityServiceSuite) TestCreateUser() {
	ctx := context.Background()

	s.Run("non-admin is forbidden", func() {
		_, err := s.service.CreateUser(ctx, domain.Principal{Role: domain.RoleDepartmentManager}, CreateUserRequest{})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("rejects malformed email", func() {
		_, err := s.service.CreateUser(ctx, s.admin, CreateUserRequest{
			Email:    "not-an-email",
			Password: "longenough",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects short password", func() {
		_, err := s.service.CreateUser(ctx, s.admin, CreateUserRequest{
			Email:    "user@example.com",
			Password: "short",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects unknown department", func() {
		_, err := s.service.CreateUser(ctx, s.admin, CreateUserRequest{
			Email:        "user@example.com",
			FirstName:    "Test",
			LastName:     "User",
			Password:     "longenough",
			Role:         "USER",
			DepartmentID: domain.NewDepartmentID().String(),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("creates user and hides the password hash", func() {
		user, err := s.service.CreateUser(ctx, s.admin, CreateUserRequest{
			Email:        "Inspector@Example.com",
			FirstName:    "Ines",
			LastName:     "Pector",
			Password:     "longenough",
			Role:         "USER",
			DepartmentID: s.deptID.String(),
		})
		s.NoError(err)
		s.Equal("inspector@example.com", user.Email)
		s.NotEqual("longenough", user.PasswordHash)
	})

	s.Run("duplicate email conflicts", func() {
		s.createUser("dupe@example.com", "longenough", domain.RoleUser)
		_, err := s.service.CreateUser(ctx, s.admin, CreateUserRequest{
			Email:        "DUPE@example.com",
			FirstName:    "Second",
			LastName:     "User",
			Password:     "longenough",
			Role:         "USER",
			DepartmentID: s.deptID.String(),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("unknown role defaults to USER", func() {
		user, err := s.service.CreateUser(ctx, s.admin, CreateUserRequest{
			Email:        "weirdrole@example.com",
			FirstName:    "Weird",
			LastName:     "Role",
			Password:     "longenough",
			Role:         "SUPERVISOR",
			DepartmentID: s.deptID.String(),
		})
		s.NoError(err)
		s.Equal(domain.RoleUser, user.Role)
	})
}

// =============================================================================
// Login Tests
// =============================================================================

func (s *IdentityServiceSuite) TestLogin() {
	ctx := context.Background()
	s.createUser("login@example.com", "correct-horse", domain.RoleUser)

	s.Run("empty credentials rejected", func() {
		_, err := s.service.Login(ctx, "", "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown email and wrong password are indistinguishable", func() {
		_, unknownErr := s.service.Login(ctx, "nobody@example.com", "whatever1")
		_, wrongErr := s.service.Login(ctx, "login@example.com", "wrong-password")

		s.True(dErrors.HasCode(unknownErr, dErrors.CodeUnauthorized))
		s.True(dErrors.HasCode(wrongErr, dErrors.CodeUnauthorized))
		s.Equal(unknownErr.Error(), wrongErr.Error())
	})

	s.Run("valid credentials issue a token", func() {
		result, err := s.service.Login(ctx, "login@example.com", "correct-horse")
		s.NoError(err)
		s.NotEmpty(result.AccessToken)
		s.Equal(3600, result.ExpiresIn)
		s.Equal("login@example.com", result.User.Email)
	})

	s.Run("email lookup is case-insensitive", func() {
		result, err := s.service.Login(ctx, "LOGIN@example.com", "correct-horse")
		s.NoError(err)
		s.NotEmpty(result.AccessToken)
	})
}

// =============================================================================
// Principal Resolution Tests
// =============================================================================

func (s *IdentityServiceSuite) TestLookupPrincipal() {
	ctx := context.Background()
	userID := s.createUser("principal@example.com", "longenough", domain.RoleDepartmentManager)

	s.Run("resolves role and department name", func() {
		principal, err := s.service.LookupPrincipal(ctx, userID)
		s.NoError(err)
		s.Equal(domain.RoleDepartmentManager, principal.Role)
		s.Equal(s.deptID, principal.DepartmentID)
		s.Equal("Quality", principal.DepartmentName)
	})

	s.Run("unknown user is unauthorized", func() {
		_, err := s.service.LookupPrincipal(ctx, domain.NewUserID())
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

// =============================================================================
// Directory Tests
// =============================================================================

func (s *IdentityServiceSuite) TestListNonAdmins() {
	ctx := context.Background()
	s.createUser("user1@example.com", "longenough", domain.RoleUser)
	s.createUser("manager@example.com", "longenough", domain.RoleDepartmentManager)

	users, err := s.service.ListNonAdmins(ctx)
	s.NoError(err)
	s.Len(users, 2)
	for _, u := range users {
		s.NotEqual(domain.RoleAdmin, u.Role)
	}
}
