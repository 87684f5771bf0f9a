package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	tariffdomain "github.com/smallbiznis/voltway/internal/tariff/domain"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo tariffdomain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo tariffdomain.Repository
}

func New(p Params) tariffdomain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("tariff.service"),
		repo: p.Repo,
	}
}

func (s *Service) CategoryWithSlabs(ctx context.Context, categoryID snowflake.ID) (*tariffdomain.TariffCategory, []tariffdomain.TariffSlab, error) {
	if categoryID == 0 {
		return nil, nil, tariffdomain.ErrNoTariffCategory
	}

	category, err := s.repo.FindCategoryByID(ctx, s.db, categoryID)
	if err != nil {
		return nil, nil, err
	}
	if category == nil {
		return nil, nil, tariffdomain.ErrCategoryNotFound
	}

	slabs, err := s.repo.ListSlabsByCategory(ctx, s.db, categoryID)
	if err != nil {
		return nil, nil, err
	}
	if err := ValidateSlabs(slabs); err != nil {
		s.log.Error("rejecting malformed slab configuration",
			zap.String("category_id", categoryID.String()),
			zap.Int("slab_count", len(slabs)),
		)
		return nil, nil, err
	}

	return category, slabs, nil
}
