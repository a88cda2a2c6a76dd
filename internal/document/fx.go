package document

import (
	"github.com/smallbiznis/docledger/internal/document/repository"
	"github.com/smallbiznis/docledger/internal/document/service"
	"go.uber.org/fx"
)

var Module = fx.Module("document.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewViewSource),
	fx.Provide(service.New),
)
