package modules

import (
	"github.com/iota-uz/functree/modules/functionality"
	"github.com/iota-uz/functree/pkg/application"
)

var BuiltInModules = []application.Module{
	functionality.NewModule(nil),
}

func Load(app application.Application, externalModules ...application.Module) error {
	for _, module := range externalModules {
		if err := module.Register(app); err != nil {
			return err
		}
	}
	return nil
}
