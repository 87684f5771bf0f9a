package bulkgen

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/voltway/internal/bulkgen/service"
)

var Module = fx.Module("bulkgen",
	fx.Provide(service.New),
)
