package signature

import "go.uber.org/fx"

var Module = fx.Module("signature",
	fx.Provide(NewDefaultRegistry),
)
