package cashier

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/voltway/internal/cashier/repository"
	"github.com/smallbiznis/voltway/internal/cashier/service"
)

var Module = fx.Module("cashier",
	fx.Provide(repository.Provide, service.New),
)
