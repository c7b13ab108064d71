package catalog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farmarket/farmarket-backend/pkg/db/models"
	pkgerrors "github.com/farmarket/farmarket-backend/pkg/errors"
)

// CreateCategoryInput captures a new category.
type CreateCategoryInput struct {
	Name        string
	Slug        string
	Description *string
	ImageURL    *string
	ParentID    *uuid.UUID
	SortOrder   int
}

// UpdateCategoryInput carries the mutable category fields. Nil means leave unchanged.
type UpdateCategoryInput struct {
	Name        *string
	Description *string
	ImageURL    *string
	ParentID    *uuid.UUID
	SortOrder   *int
	IsActive    *bool
}

// CategoryService exposes category management operations.
type CategoryService interface {
	Create(ctx context.Context, input CreateCategoryInput) (*CategoryDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*CategoryDTO, error)
	List(ctx context.Context, includeInactive bool) ([]*CategoryDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateCategoryInput) (*CategoryDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type categoryService struct {
	repo CategoryRepository
}

// NewCategoryService builds the category service.
func NewCategoryService(repo CategoryRepository) (CategoryService, error) {
	if repo == nil {
		return nil, fmt.Errorf("category repository required")
	}
	return &categoryService{repo: repo}, nil
}

var slugCleaner = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases the name and collapses non-alphanumerics into hyphens.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugCleaner.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

func (s *categoryService) Create(ctx context.Context, input CreateCategoryInput) (*CategoryDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category name is required")
	}
	slug := strings.TrimSpace(input.Slug)
	if slug == "" {
		slug = Slugify(name)
	}
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category slug is required")
	}

	if _, err := s.repo.FindBySlug(ctx, slug); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "category slug already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check category slug")
	}

	if input.ParentID != nil {
		if _, err := s.repo.FindByID(ctx, *input.ParentID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "parent category does not exist")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load parent category")
		}
	}

	category := &models.Category{
		Name:        name,
		Slug:        slug,
		Description: input.Description,
		ImageURL:    input.ImageURL,
		ParentID:    input.ParentID,
		SortOrder:   input.SortOrder,
		IsActive:    true,
	}
	category, err := s.repo.Create(ctx, category)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create category")
	}
	return CategoryFromModel(category), nil
}

func (s *categoryService) Get(ctx context.Context, id uuid.UUID) (*CategoryDTO, error) {
	category, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	return CategoryFromModel(category), nil
}

func (s *categoryService) List(ctx context.Context, includeInactive bool) ([]*CategoryDTO, error) {
	categories, err := s.repo.List(ctx, includeInactive)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	return CategoriesFromModels(categories), nil
}

func (s *categoryService) Update(ctx context.Context, id uuid.UUID, input UpdateCategoryInput) (*CategoryDTO, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "category name cannot be empty")
		}
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.ImageURL != nil {
		updates["image_url"] = *input.ImageURL
	}
	if input.ParentID != nil {
		if *input.ParentID == id {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "category cannot be its own parent")
		}
		updates["parent_id"] = *input.ParentID
	}
	if input.SortOrder != nil {
		updates["sort_order"] = *input.SortOrder
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}

	if len(updates) > 0 {
		if err := s.repo.Update(ctx, id, updates); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update category")
		}
	}
	return s.Get(ctx, id)
}

func (s *categoryService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	hasProducts, err := s.repo.HasProducts(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check category products")
	}
	if hasProducts {
		return pkgerrors.New(pkgerrors.CodeConflict, "category still has products")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete category")
	}
	return nil
}
