package schema

// DiffOpKind identifies the kind of a single schema difference operation.
type DiffOpKind int

const (
	OpCreateTable DiffOpKind = iota
	OpDropTable
	OpAddColumn
	OpDropColumn
	OpAlterColumn
	OpCreateIndex
	OpDropIndex
)

// DiffOp is a single schema difference operation. Only the fields relevant
// to Kind are populated.
type DiffOp struct {
	Kind      DiffOpKind
	Model     ModelDefinition // CreateTable
	Table     string          // everything else
	Field     Field           // AddColumn
	OldField  Field           // AlterColumn
	NewField  Field           // AlterColumn
	Column    string          // DropColumn / index's backing column ref
	Index     IndexDefinition // CreateIndex
	IndexName string          // DropIndex
}

// Diff is an ordered list of operations transforming current into target.
type Diff struct {
	Operations []DiffOp
}

// IsEmpty reports whether there are no differences.
func (d Diff) IsEmpty() bool { return len(d.Operations) == 0 }

// Compute diffs current against target per spec.md §4.3: only additive
// operations (CreateTable, AddColumn, AlterColumn, CreateIndex) are ever
// proposed automatically. DropTable/DropColumn/DropIndex are reserved and
// never emitted by Compute.
func Compute(current, target SchemaDefinition) Diff {
	var ops []DiffOp

	for _, targetModel := range target.Models {
		if _, ok := current.GetModel(targetModel.Name); !ok {
			ops = append(ops, DiffOp{Kind: OpCreateTable, Model: targetModel})
		}
	}

	for _, targetModel := range target.Models {
		currentModel, ok := current.GetModel(targetModel.Name)
		if !ok {
			continue
		}
		for _, targetField := range targetModel.Fields {
			currentField, exists := currentModel.GetField(targetField.Name)
			if !exists {
				ops = append(ops, DiffOp{Kind: OpAddColumn, Table: targetModel.Name, Field: targetField})
				continue
			}
			if fieldNeedsAlteration(currentField, targetField) {
				ops = append(ops, DiffOp{
					Kind: OpAlterColumn, Table: targetModel.Name,
					OldField: currentField, NewField: targetField,
				})
			}
		}
		for _, targetIndex := range targetModel.Indexes {
			found := false
			for _, ci := range currentModel.Indexes {
				if ci.Name == targetIndex.Name {
					found = true
					break
				}
			}
			if !found {
				ops = append(ops, DiffOp{Kind: OpCreateIndex, Table: targetModel.Name, Index: targetIndex})
			}
		}
	}

	return Diff{Operations: ops}
}

func fieldNeedsAlteration(current, target Field) bool {
	if !current.Type.Equal(target.Type) {
		return true
	}
	if current.Required != target.Required || current.Unique != target.Unique {
		return true
	}
	if (current.Default == nil) != (target.Default == nil) {
		return true
	}
	if current.Default != nil && target.Default != nil && *current.Default != *target.Default {
		return true
	}
	return false
}

// HasDestructiveOperations reports whether the diff contains any operation
// classified destructive per spec.md §4.3.
func (d Diff) HasDestructiveOperations() bool {
	for _, op := range d.Operations {
		switch op.Kind {
		case OpDropTable, OpDropColumn:
			return true
		case OpAlterColumn:
			if isTypeChangeDestructive(op.OldField.Type, op.NewField.Type) {
				return true
			}
		}
	}
	return false
}

// isTypeChangeDestructive implements the narrowing rules from spec.md §4.3.
func isTypeChangeDestructive(from, to FieldType) bool {
	switch {
	case from.Kind == KindString && to.Kind == KindString:
		return to.Len < from.Len
	case from.Kind == KindText && to.Kind == KindString:
		return true
	case from.Kind == KindBigInt && to.Kind == KindInteger:
		return true
	case from.Kind == KindDecimal && to.Kind == KindDecimal:
		return to.Prec < from.Prec
	default:
		return !from.Equal(to)
	}
}

// SafeOperations filters out operations classified destructive.
func (d Diff) SafeOperations() []DiffOp {
	var out []DiffOp
	for _, op := range d.Operations {
		switch op.Kind {
		case OpDropTable, OpDropColumn:
			continue
		case OpAlterColumn:
			if isTypeChangeDestructive(op.OldField.Type, op.NewField.Type) {
				continue
			}
		}
		out = append(out, op)
	}
	return out
}
