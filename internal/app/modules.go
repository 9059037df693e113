package app

import (
	"github.com/vk/factbuild/builders/salesb2b"
	"github.com/vk/factbuild/builders/salesb2c"
	"github.com/vk/factbuild/internal/registry"
)

// coreModules is the definitive list of fact builders compiled into the
// binary. Adding a fact means adding its package here and declaring its
// dependencies in the model dependency map.
var coreModules = []registry.Module{
	&salesb2b.Module{},
	&salesb2c.Module{},
}
