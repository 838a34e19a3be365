package container

// ContextualBuilder implements the fluent contextual binding API.
//
//	c.When("photo.controller").Needs("filesystem").Give(func(ctx *container.Ctx) (any, error) {
//	    return storage.NewS3(), nil
//	})
type ContextualBuilder struct {
	container *Container
	concrete  string
	needs     string
}

// When starts a contextual binding chain for the given concrete abstract.
func (c *Container) When(concrete string) *ContextualBuilder {
	return &ContextualBuilder{container: c, concrete: concrete}
}

// Needs specifies which abstract the concrete type depends on.
func (b *ContextualBuilder) Needs(abstract string) *ContextualBuilder {
	b.needs = abstract
	return b
}

// Give provides the factory used when the concrete resolves the abstract
// through Ctx.Make.
func (b *ContextualBuilder) Give(factory Factory) {
	c := b.container
	concrete := c.canonical(b.concrete)
	needs := c.canonical(b.needs)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.contextual[concrete]; !ok {
		c.contextual[concrete] = make(map[string]Factory)
	}
	c.contextual[concrete][needs] = factory
}

// GiveValue is a shorthand for Give with a pre-built value.
//
//	c.When("photo.controller").Needs("storage.path").GiveValue("/tmp/photos")
func (b *ContextualBuilder) GiveValue(value any) {
	b.Give(func(_ *Ctx) (any, error) { return value, nil })
}

// lookupContextual returns the contextual factory for (concrete, abstract)
// declared on this container or any parent, innermost first.
func (c *Container) lookupContextual(concrete, abstract string) Factory {
	for cur := c; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		f := cur.contextual[concrete][abstract]
		cur.mu.RUnlock()
		if f != nil {
			return f
		}
	}
	return nil
}
