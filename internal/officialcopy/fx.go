package officialcopy

import (
	"github.com/smallbiznis/docledger/internal/officialcopy/render"
	"github.com/smallbiznis/docledger/internal/officialcopy/repository"
	"github.com/smallbiznis/docledger/internal/officialcopy/service"
	"go.uber.org/fx"
)

var Module = fx.Module("officialcopy.service",
	fx.Provide(repository.Provide),
	fx.Provide(repository.NewArtifactStore),
	fx.Provide(render.NewRenderer),
	fx.Provide(service.New),
)
