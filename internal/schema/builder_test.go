package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBuilderWithCore_IncludesUserSessionAccount(t *testing.T) {
	b := NewBuilderWithCore()
	def := b.Build()

	_, ok := def.GetModel("user")
	assert.True(t, ok)
	_, ok = def.GetModel("session")
	assert.True(t, ok)
	_, ok = def.GetModel("account")
	assert.True(t, ok)
}

func TestBuilder_AddModel_PreservesInsertionOrder(t *testing.T) {
	b := NewBuilder()
	b.AddModel(NewModel("zebra"))
	b.AddModel(NewModel("apple"))
	def := b.Build()

	require.Len(t, def.Models, 2)
	assert.Equal(t, "zebra", def.Models[0].Name)
	assert.Equal(t, "apple", def.Models[1].Name)
}

type stubSchemaProvider struct{ models []ModelDefinition }

func (s stubSchemaProvider) Models() []ModelDefinition { return s.models }

type stubExtensionProvider struct {
	target string
	fields []Field
}

func (s stubExtensionProvider) Extends() string { return s.target }
func (s stubExtensionProvider) Fields() []Field { return s.fields }

func TestBuilder_DefineModel_RegistersProviderModels(t *testing.T) {
	b := NewBuilder()
	b.DefineModel(stubSchemaProvider{models: []ModelDefinition{NewModel("widget")}})
	def := b.Build()

	_, ok := def.GetModel("widget")
	assert.True(t, ok)
}

func TestBuilder_ExtendModel_FirstWriterWinsOnFieldName(t *testing.T) {
	b := NewBuilder()
	b.AddModel(NewModel("user").WithField(Field{Name: "plan", Type: String(16), Default: strPtr("free")}))
	b.ExtendModel(stubExtensionProvider{
		target: "user",
		fields: []Field{{Name: "plan", Type: String(64), Default: strPtr("contributed")}},
	})
	def := b.Build()

	model, ok := def.GetModel("user")
	require.True(t, ok)
	field, ok := model.GetField("plan")
	require.True(t, ok)
	// The original field wins; the contributed duplicate is dropped.
	assert.Equal(t, 16, field.Type.Len)
	assert.Equal(t, "free", *field.Default)
}

func TestBuilder_AddField_AppendsNewFieldToExistingModel(t *testing.T) {
	b := NewBuilder()
	b.AddModel(NewModel("user"))
	b.AddField("user", Field{Name: "totp_secret", Type: String(64)})
	def := b.Build()

	model, _ := def.GetModel("user")
	field, ok := model.GetField("totp_secret")
	assert.True(t, ok)
	assert.Equal(t, "totp_secret", field.Name)
}

func TestBuilder_AddField_UnknownModelIsDiscarded(t *testing.T) {
	b := NewBuilder()
	b.AddField("ghost", Field{Name: "x", Type: Integer()})
	def := b.Build()

	_, ok := def.GetModel("ghost")
	assert.False(t, ok)
}

func TestBuilder_AddIndex_FirstWriterWinsOnIndexName(t *testing.T) {
	b := NewBuilder()
	b.AddModel(NewModel("user").WithIndex(IndexDefinition{Name: "idx_email", Columns: []string{"email"}, Unique: true}))
	b.AddIndex("user", IndexDefinition{Name: "idx_email", Columns: []string{"email", "created_at"}})
	def := b.Build()

	model, _ := def.GetModel("user")
	require.Len(t, model.Indexes, 1)
	assert.Equal(t, []string{"email"}, model.Indexes[0].Columns)
}

func TestModelDefinition_PrimaryKey(t *testing.T) {
	m := NewModel("user").WithField(PrimaryKeyField("id")).WithField(NewField("email", String(255)))
	pk, ok := m.PrimaryKey()
	require.True(t, ok)
	assert.Equal(t, "id", pk.Name)
}
