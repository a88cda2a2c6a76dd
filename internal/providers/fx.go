package providers

import (
	"github.com/smallbiznis/docledger/internal/providers/email"
	"github.com/smallbiznis/docledger/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
)
