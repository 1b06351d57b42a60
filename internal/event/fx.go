package event

import (
	"github.com/smallbiznis/huddle/internal/event/attendance"
	"github.com/smallbiznis/huddle/internal/event/repository"
	"github.com/smallbiznis/huddle/internal/event/service"
	"go.uber.org/fx"
)

var Module = fx.Module("event.service",
	fx.Provide(repository.Provide),
	fx.Provide(attendance.New),
	fx.Provide(service.NewService),
)
