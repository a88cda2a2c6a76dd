package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/docledger/internal/directory/domain"
	"github.com/smallbiznis/docledger/pkg/repository"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertClient(ctx context.Context, db *gorm.DB, client *domain.Client) error {
	return repository.ProvideStore[domain.Client](db).Create(ctx, client)
}

func (r *repo) FindClient(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Client, error) {
	return repository.ProvideStore[domain.Client](db).FindOne(ctx, &domain.Client{ID: id, TenantID: tenantID})
}

func (r *repo) InsertProject(ctx context.Context, db *gorm.DB, project *domain.Project) error {
	return repository.ProvideStore[domain.Project](db).Create(ctx, project)
}

func (r *repo) FindProject(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Project, error) {
	return repository.ProvideStore[domain.Project](db).FindOne(ctx, &domain.Project{ID: id, TenantID: tenantID})
}

func (r *repo) SlugTaken(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, slug string) (bool, error) {
	count, err := repository.ProvideStore[domain.Project](db).Count(ctx,
		&domain.Project{TenantID: tenantID},
		repository.WithWhere("slug = ?", slug),
	)
	return count > 0, err
}

func (r *repo) InsertTaxRate(ctx context.Context, db *gorm.DB, rate *domain.TaxRate) error {
	return repository.ProvideStore[domain.TaxRate](db).Create(ctx, rate)
}

func (r *repo) FindTaxRate(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.TaxRate, error) {
	return repository.ProvideStore[domain.TaxRate](db).FindOne(ctx, &domain.TaxRate{ID: id, TenantID: tenantID})
}
