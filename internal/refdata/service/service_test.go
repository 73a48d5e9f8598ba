package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"qualitrack/internal/refdata/models"
	"qualitrack/internal/refdata/store"
	"qualitrack/pkg/domain"
	dErrors "qualitrack/pkg/domain-errors"
)

// =============================================================================
// Reference Data Service Test Suite
// =============================================================================
// The suite runs without a cache. A nil department cache must be a no-op, so
// every path here also proves the service works with Redis absent.

type RefdataServiceSuite struct {
	suite.Suite
	store   *store.InMemory
	service *Service
}

func TestRefdataServiceSuite(t *testing.T) {
	suite.Run(t, new(RefdataServiceSuite))
}

func (s *RefdataServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.service = New(s.store)
}

// =============================================================================
// Department Tests
// =============================================================================

func (s *RefdataServiceSuite) TestDepartmentLifecycle() {
	ctx := context.Background()

	s.Run("rejects blank name", func() {
		_, err := s.service.CreateDepartment(ctx, "   ")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("creates and trims", func() {
		d, err := s.service.CreateDepartment(ctx, "  Quality  ")
		s.NoError(err)
		s.Equal("Quality", d.Name)

		found, err := s.service.GetDepartment(ctx, d.ID)
		s.NoError(err)
		s.Equal("Quality", found.Name)
	})

	s.Run("duplicate name conflicts case-insensitively", func() {
		_, err := s.service.CreateDepartment(ctx, "Engineering")
		s.Require().NoError(err)
		_, err = s.service.CreateDepartment(ctx, "engineering")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("update unknown department is not found", func() {
		_, err := s.service.UpdateDepartment(ctx, domain.NewDepartmentID(), "Whatever")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("rename collides with an existing name", func() {
		a, err := s.service.CreateDepartment(ctx, "Maintenance")
		s.Require().NoError(err)
		_, err = s.service.CreateDepartment(ctx, "SHE")
		s.Require().NoError(err)

		_, err = s.service.UpdateDepartment(ctx, a.ID, "she")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("delete then get is not found", func() {
		d, err := s.service.CreateDepartment(ctx, "Temporary")
		s.Require().NoError(err)

		s.NoError(s.service.DeleteDepartment(ctx, d.ID))
		_, err = s.service.GetDepartment(ctx, d.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		err = s.service.DeleteDepartment(ctx, d.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *RefdataServiceSuite) TestDepartmentName() {
	ctx := context.Background()
	d, err := s.service.CreateDepartment(ctx, "Quality")
	s.Require().NoError(err)

	name, err := s.service.DepartmentName(ctx, d.ID)
	s.NoError(err)
	s.Equal("Quality", name)

	_, err = s.service.DepartmentName(ctx, domain.NewDepartmentID())
	s.Error(err)
}

// =============================================================================
// Language Tests
// =============================================================================

func (s *RefdataServiceSuite) TestLanguages() {
	ctx := context.Background()
	s.Require().NoError(s.store.SaveLanguage(ctx, &models.Language{
		ID: domain.NewLanguageID(), Code: "en", Name: "English", IsDefault: true,
	}))
	s.Require().NoError(s.store.SaveLanguage(ctx, &models.Language{
		ID: domain.NewLanguageID(), Code: "de", Name: "Deutsch",
	}))

	s.Run("lists all", func() {
		languages, err := s.service.ListLanguages(ctx)
		s.NoError(err)
		s.Len(languages, 2)
	})

	s.Run("code lookup is case-insensitive", func() {
		l, err := s.service.GetLanguageByCode(ctx, "DE")
		s.NoError(err)
		s.Equal("Deutsch", l.Name)
	})

	s.Run("unknown code is not found", func() {
		_, err := s.service.GetLanguageByCode(ctx, "fr")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("default language resolved by flag", func() {
		l, err := s.service.GetDefaultLanguage(ctx)
		s.NoError(err)
		s.Equal("en", l.Code)
	})
}

func (s *RefdataServiceSuite) TestDefaultLanguageMissing() {
	_, err := s.service.GetDefaultLanguage(context.Background())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
