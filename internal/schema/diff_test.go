package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_NewModelProducesCreateTable(t *testing.T) {
	current := SchemaDefinition{}
	target := SchemaDefinition{Models: []ModelDefinition{NewModel("widget")}}

	diff := Compute(current, target)
	require.Len(t, diff.Operations, 1)
	assert.Equal(t, OpCreateTable, diff.Operations[0].Kind)
}

func TestCompute_NewFieldProducesAddColumn(t *testing.T) {
	current := SchemaDefinition{Models: []ModelDefinition{NewModel("user")}}
	target := SchemaDefinition{Models: []ModelDefinition{
		NewModel("user").WithField(NewField("nickname", String(64))),
	}}

	diff := Compute(current, target)
	require.Len(t, diff.Operations, 1)
	assert.Equal(t, OpAddColumn, diff.Operations[0].Kind)
	assert.Equal(t, "nickname", diff.Operations[0].Field.Name)
}

func TestCompute_WideningTypeChangeProducesAlterColumn(t *testing.T) {
	current := SchemaDefinition{Models: []ModelDefinition{
		NewModel("user").WithField(Field{Name: "bio", Type: String(32)}),
	}}
	target := SchemaDefinition{Models: []ModelDefinition{
		NewModel("user").WithField(Field{Name: "bio", Type: String(256)}),
	}}

	diff := Compute(current, target)
	require.Len(t, diff.Operations, 1)
	assert.Equal(t, OpAlterColumn, diff.Operations[0].Kind)
}

func TestCompute_IdenticalSchemasProduceEmptyDiff(t *testing.T) {
	s := SchemaDefinition{Models: []ModelDefinition{
		NewModel("user").WithField(NewField("email", String(255))),
	}}
	diff := Compute(s, s)
	assert.True(t, diff.IsEmpty())
}

func TestCompute_NewIndexProducesCreateIndex(t *testing.T) {
	current := SchemaDefinition{Models: []ModelDefinition{NewModel("user")}}
	target := SchemaDefinition{Models: []ModelDefinition{
		NewModel("user").WithIndex(IndexDefinition{Name: "idx_email", Columns: []string{"email"}}),
	}}

	diff := Compute(current, target)
	require.Len(t, diff.Operations, 1)
	assert.Equal(t, OpCreateIndex, diff.Operations[0].Kind)
}

func TestDiff_HasDestructiveOperations_NarrowingStringIsDestructive(t *testing.T) {
	diff := Diff{Operations: []DiffOp{{
		Kind:     OpAlterColumn,
		OldField: Field{Type: String(256)},
		NewField: Field{Type: String(32)},
	}}}
	assert.True(t, diff.HasDestructiveOperations())
}

func TestDiff_HasDestructiveOperations_WideningStringIsSafe(t *testing.T) {
	diff := Diff{Operations: []DiffOp{{
		Kind:     OpAlterColumn,
		OldField: Field{Type: String(32)},
		NewField: Field{Type: String(256)},
	}}}
	assert.False(t, diff.HasDestructiveOperations())
}

func TestDiff_HasDestructiveOperations_TextToStringIsDestructive(t *testing.T) {
	diff := Diff{Operations: []DiffOp{{
		Kind:     OpAlterColumn,
		OldField: Field{Type: Text()},
		NewField: Field{Type: String(255)},
	}}}
	assert.True(t, diff.HasDestructiveOperations())
}

func TestDiff_HasDestructiveOperations_DropColumnIsDestructive(t *testing.T) {
	diff := Diff{Operations: []DiffOp{{Kind: OpDropColumn}}}
	assert.True(t, diff.HasDestructiveOperations())
}

func TestDiff_SafeOperations_FiltersDestructiveOnes(t *testing.T) {
	diff := Diff{Operations: []DiffOp{
		{Kind: OpCreateTable, Model: NewModel("widget")},
		{Kind: OpDropTable, Table: "legacy"},
		{Kind: OpAlterColumn, OldField: Field{Type: BigInt()}, NewField: Field{Type: Integer()}},
	}}

	safe := diff.SafeOperations()
	require.Len(t, safe, 1)
	assert.Equal(t, OpCreateTable, safe[0].Kind)
}
