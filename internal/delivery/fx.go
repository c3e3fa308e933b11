package delivery

import (
	"github.com/smallbiznis/hookrelay/internal/delivery/repository"
	"github.com/smallbiznis/hookrelay/internal/delivery/service"
	"go.uber.org/fx"
)

var Module = fx.Module("delivery.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewRecorder),
	fx.Provide(service.ProvideDispatcher),
	fx.Provide(service.NewService),
)
