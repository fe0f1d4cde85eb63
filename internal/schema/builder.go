package schema

// SchemaProvider is implemented by plugins that contribute complete models.
type SchemaProvider interface {
	Models() []ModelDefinition
}

// ExtensionProvider is implemented by plugins that contribute fields
// against an existing model, keyed by model name. It carries no indexes.
type ExtensionProvider interface {
	Extends() string
	Fields() []Field
}

// Builder accumulates models and plugin-contributed extensions, folding
// them together on Build with first-writer-wins semantics: a contributed
// field or index whose name already exists on the target model is dropped
// in favor of the existing definition.
type Builder struct {
	models          map[string]ModelDefinition
	order           []string
	extensions      map[string][]Field
	extensionOrder  []string
	extensionIdx    map[string][]IndexDefinition
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		models:       map[string]ModelDefinition{},
		extensions:   map[string][]Field{},
		extensionIdx: map[string][]IndexDefinition{},
	}
}

// NewBuilderWithCore returns a builder pre-loaded with the core models.
func NewBuilderWithCore() *Builder {
	b := NewBuilder()
	for _, m := range CoreSchema() {
		b.AddModel(m)
	}
	return b
}

// AddModel registers or replaces a model definition directly.
func (b *Builder) AddModel(m ModelDefinition) *Builder {
	if _, exists := b.models[m.Name]; !exists {
		b.order = append(b.order, m.Name)
	}
	b.models[m.Name] = m
	return b
}

// DefineModel registers every model contributed by a SchemaProvider.
func (b *Builder) DefineModel(p SchemaProvider) *Builder {
	for _, m := range p.Models() {
		b.AddModel(m)
	}
	return b
}

// ExtendModel registers every field contributed by an ExtensionProvider
// against its declared target model.
func (b *Builder) ExtendModel(p ExtensionProvider) *Builder {
	target := p.Extends()
	if _, exists := b.extensions[target]; !exists {
		b.extensionOrder = append(b.extensionOrder, target)
	}
	b.extensions[target] = append(b.extensions[target], p.Fields()...)
	return b
}

// AddField contributes a single field against an existing model name.
func (b *Builder) AddField(model string, f Field) *Builder {
	if _, exists := b.extensions[model]; !exists {
		b.extensionOrder = append(b.extensionOrder, model)
	}
	b.extensions[model] = append(b.extensions[model], f)
	return b
}

// AddIndex contributes a single index against an existing model name.
func (b *Builder) AddIndex(model string, idx IndexDefinition) *Builder {
	b.extensionIdx[model] = append(b.extensionIdx[model], idx)
	return b
}

// Models returns the models registered so far (for inspection).
func (b *Builder) Models() map[string]ModelDefinition {
	return b.models
}

// Build folds extensions into their target models (first-writer-wins on
// field/index name) and returns the final, ordered SchemaDefinition.
func (b *Builder) Build() SchemaDefinition {
	for _, name := range b.extensionOrder {
		model, ok := b.models[name]
		if !ok {
			continue
		}
		for _, field := range b.extensions[name] {
			if _, exists := model.GetField(field.Name); !exists {
				model.Fields = append(model.Fields, field)
			}
		}
		b.models[name] = model
	}

	for name, indexes := range b.extensionIdx {
		model, ok := b.models[name]
		if !ok {
			continue
		}
		for _, idx := range indexes {
			found := false
			for _, existing := range model.Indexes {
				if existing.Name == idx.Name {
					found = true
					break
				}
			}
			if !found {
				model.Indexes = append(model.Indexes, idx)
			}
		}
		b.models[name] = model
	}

	out := SchemaDefinition{}
	for _, name := range b.order {
		out.Models = append(out.Models, b.models[name])
	}
	return out
}
