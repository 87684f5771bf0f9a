package tax

import (
	"github.com/smallbiznis/voltway/internal/tax/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("tax.repository",
	fx.Provide(repository.Provide),
)
