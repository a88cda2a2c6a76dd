package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/docledger/internal/apperr"
	"github.com/smallbiznis/docledger/internal/clock"
	"github.com/smallbiznis/docledger/internal/directory/domain"
	"github.com/smallbiznis/docledger/internal/money"
	"github.com/smallbiznis/docledger/internal/tenancy"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxSlugAttempts = 100

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("directory.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) CreateClient(ctx context.Context, tenantID snowflake.ID, req domain.CreateClientRequest) (domain.Client, error) {
	if tenantID == 0 {
		return domain.Client{}, tenancy.ErrTenantRequired
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Client{}, domain.ErrInvalidName
	}
	email := strings.TrimSpace(req.Email)
	if email != "" && !strings.Contains(email, "@") {
		return domain.Client{}, domain.ErrInvalidEmail
	}

	now := s.clock.Now().UTC()
	client := domain.Client{
		ID:        s.genID.Generate(),
		TenantID:  tenantID,
		Name:      name,
		Email:     email,
		Address:   strings.TrimSpace(req.Address),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertClient(ctx, s.db, &client); err != nil {
		return domain.Client{}, apperr.FromStorage(err)
	}
	return client, nil
}

func (s *Service) CreateProject(ctx context.Context, tenantID snowflake.ID, req domain.CreateProjectRequest) (domain.Project, error) {
	var project domain.Project
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		project, err = s.CreateProjectTx(ctx, tx, tenantID, req)
		return err
	})
	if err != nil {
		return domain.Project{}, apperr.FromStorage(err)
	}
	return project, nil
}

func (s *Service) CreateProjectTx(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, req domain.CreateProjectRequest) (domain.Project, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Project{}, domain.ErrInvalidName
	}
	if req.ClientID == 0 {
		return domain.Project{}, domain.ErrClientNotFound
	}
	if err := tenancy.Authorize(ctx, tx, tenantID, tenancy.Client(req.ClientID)); err != nil {
		return domain.Project{}, err
	}

	projectSlug, err := s.uniqueSlug(ctx, tx, tenantID, name)
	if err != nil {
		return domain.Project{}, err
	}

	now := s.clock.Now().UTC()
	project := domain.Project{
		ID:        s.genID.Generate(),
		TenantID:  tenantID,
		ClientID:  req.ClientID,
		Name:      name,
		Slug:      projectSlug,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertProject(ctx, tx, &project); err != nil {
		return domain.Project{}, apperr.FromStorage(err)
	}
	return project, nil
}

// uniqueSlug appends -2, -3, ... until the slug is free for the tenant. The
// unique index still decides under a race.
func (s *Service) uniqueSlug(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, name string) (string, error) {
	base := slug.Make(name)
	if base == "" {
		base = "project"
	}

	candidate := base
	for i := 2; i <= maxSlugAttempts; i++ {
		taken, err := s.repo.SlugTaken(ctx, db, tenantID, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", domain.ErrSlugExhausted
}

func (s *Service) CreateTaxRate(ctx context.Context, tenantID snowflake.ID, req domain.CreateTaxRateRequest) (domain.TaxRate, error) {
	if tenantID == 0 {
		return domain.TaxRate{}, tenancy.ErrTenantRequired
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.TaxRate{}, domain.ErrInvalidName
	}
	if err := money.ValidateRate(req.RatePercent); err != nil {
		return domain.TaxRate{}, domain.ErrInvalidRate
	}

	rate := domain.TaxRate{
		ID:          s.genID.Generate(),
		TenantID:    tenantID,
		Name:        name,
		RatePercent: req.RatePercent,
		CreatedAt:   s.clock.Now().UTC(),
	}
	if err := s.repo.InsertTaxRate(ctx, s.db, &rate); err != nil {
		return domain.TaxRate{}, apperr.FromStorage(err)
	}
	return rate, nil
}

func (s *Service) GetClient(ctx context.Context, tenantID, id snowflake.ID) (domain.Client, error) {
	item, err := s.repo.FindClient(ctx, s.db, tenantID, id)
	if err != nil {
		return domain.Client{}, apperr.FromStorage(err)
	}
	if item == nil {
		return domain.Client{}, domain.ErrClientNotFound
	}
	return *item, nil
}

func (s *Service) GetProject(ctx context.Context, tenantID, id snowflake.ID) (domain.Project, error) {
	item, err := s.repo.FindProject(ctx, s.db, tenantID, id)
	if err != nil {
		return domain.Project{}, apperr.FromStorage(err)
	}
	if item == nil {
		return domain.Project{}, domain.ErrProjectNotFound
	}
	return *item, nil
}

func (s *Service) GetTaxRate(ctx context.Context, tenantID, id snowflake.ID) (domain.TaxRate, error) {
	item, err := s.repo.FindTaxRate(ctx, s.db, tenantID, id)
	if err != nil {
		return domain.TaxRate{}, apperr.FromStorage(err)
	}
	if item == nil {
		return domain.TaxRate{}, domain.ErrTaxRateNotFound
	}
	return *item, nil
}
