package container

import (
	"reflect"
	"strings"

	"github.com/km-arc/go-spiral/framework/errs"
)

// MaxDepth bounds the length of a resolution chain.
const MaxDepth = 64

// Ctx describes one resolution attempt. A new Ctx is created for every
// abstract resolved and discarded once its factory returns.
type Ctx struct {
	// Alias is the name the caller asked for.
	Alias string
	// Abstract is the canonical key after alias lookup.
	Abstract string
	// Parameter names the constructor parameter being satisfied when the
	// value is resolved by BindConstructor or Invoke.
	Parameter string
	// Type is the expected Go type, when known.
	Type reflect.Type
	// Singleton is set when the result will be cached.
	Singleton bool
	// Container is the container or scope running the factory.
	Container *Container

	Parent *Ctx
	Depth  int
}

// Make resolves a nested dependency within the same chain, so cycles are
// detected and contextual bindings see the requesting abstract.
func (x *Ctx) Make(abstract string) (any, error) {
	return x.Container.resolve(abstract, x, "", nil)
}

// Path returns the abstracts from the outermost request down to x.
func (x *Ctx) Path() []string {
	var out []string
	for cur := x; cur != nil; cur = cur.Parent {
		out = append([]string{cur.Abstract}, out...)
	}
	return out
}

func (x *Ctx) pathString() string {
	return strings.Join(x.Path(), " -> ")
}

func (x *Ctx) checkCycle() error {
	if x.Depth > MaxDepth {
		return errs.New(errs.Circular, "container.Make", x.Abstract,
			"resolution depth exceeds %d (path: %s)", MaxDepth, x.pathString())
	}
	for p := x.Parent; p != nil; p = p.Parent {
		if p.Abstract == x.Abstract {
			return errs.New(errs.Circular, "container.Make", x.Abstract,
				"circular dependency %s", x.pathString())
		}
	}
	return nil
}
