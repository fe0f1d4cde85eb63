// Package schema implements the Schema Definition Language (C4): field and
// model definitions, the composing builder, schema diffing, and a
// dialect-aware migration planner. Grounded in the reference
// core/schema/{builder,diff,migration,mod}.rs design, adapted to Go's
// struct+slice idiom in place of Rust enums.
package schema

// FieldType enumerates every supported column type. This is the one
// deliberately closed enumeration in the runtime (per spec.md §9): dialect
// mapping must enumerate every variant, so an open interface would only
// hide missing cases instead of catching them at compile time.
type FieldType struct {
	Kind  FieldKind
	Len   int // String(len)
	Prec  int // Decimal(p, s)
	Scale int
}

type FieldKind int

const (
	KindString FieldKind = iota
	KindText
	KindInteger
	KindBigInt
	KindBoolean
	KindTimestamp
	KindDate
	KindJSON
	KindBinary
	KindUUID
	KindDecimal
)

func String(length int) FieldType   { return FieldType{Kind: KindString, Len: length} }
func Text() FieldType               { return FieldType{Kind: KindText} }
func Integer() FieldType            { return FieldType{Kind: KindInteger} }
func BigInt() FieldType             { return FieldType{Kind: KindBigInt} }
func Boolean() FieldType            { return FieldType{Kind: KindBoolean} }
func Timestamp() FieldType          { return FieldType{Kind: KindTimestamp} }
func Date() FieldType               { return FieldType{Kind: KindDate} }
func JSON() FieldType               { return FieldType{Kind: KindJSON} }
func Binary() FieldType             { return FieldType{Kind: KindBinary} }
func UUID() FieldType               { return FieldType{Kind: KindUUID} }
func Decimal(p, s int) FieldType    { return FieldType{Kind: KindDecimal, Prec: p, Scale: s} }

func (a FieldType) Equal(b FieldType) bool {
	return a.Kind == b.Kind && a.Len == b.Len && a.Prec == b.Prec && a.Scale == b.Scale
}

// Field is a column in a ModelDefinition.
type Field struct {
	Name       string
	Type       FieldType
	Required   bool
	Unique     bool
	PrimaryKey bool
	Default    *string
	References *string                 // "table.column"
	OnDelete   *ReferentialActionValue // optional FK action
	Private    bool                    // suppresses serialization
}

// ReferentialActionValue mirrors authmodel.ReferentialAction to avoid an
// import cycle (schema is a lower-level package than authmodel's consumers).
type ReferentialActionValue string

const (
	OnDeleteCascade  ReferentialActionValue = "cascade"
	OnDeleteSetNull  ReferentialActionValue = "set_null"
	OnDeleteRestrict ReferentialActionValue = "restrict"
	OnDeleteNoAction ReferentialActionValue = "no_action"
)

// NewField constructs a plain field.
func NewField(name string, t FieldType) Field {
	return Field{Name: name, Type: t}
}

// PrimaryKeyField constructs a UUID primary key field.
func PrimaryKeyField(name string) Field {
	return Field{Name: name, Type: UUID(), PrimaryKey: true, Required: true}
}

// IndexDefinition is a named, ordered index over one or more columns.
type IndexDefinition struct {
	Name    string
	Columns []string
	Unique  bool
}

// ModelDefinition is a complete table definition: ordered fields, indexes,
// and a core flag distinguishing built-in models from plugin-contributed
// ones.
type ModelDefinition struct {
	Name    string
	Fields  []Field
	Indexes []IndexDefinition
	IsCore  bool
}

func NewModel(name string) ModelDefinition {
	return ModelDefinition{Name: name}
}

func (m ModelDefinition) WithField(f Field) ModelDefinition {
	m.Fields = append(m.Fields, f)
	return m
}

func (m ModelDefinition) WithIndex(idx IndexDefinition) ModelDefinition {
	m.Indexes = append(m.Indexes, idx)
	return m
}

func (m ModelDefinition) Core() ModelDefinition {
	m.IsCore = true
	return m
}

// GetField returns the field named name, if present.
func (m ModelDefinition) GetField(name string) (Field, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// PrimaryKey returns the model's primary key field, if any.
func (m ModelDefinition) PrimaryKey() (Field, bool) {
	for _, f := range m.Fields {
		if f.PrimaryKey {
			return f, true
		}
	}
	return Field{}, false
}

// SchemaDefinition is an ordered list of models.
type SchemaDefinition struct {
	Models []ModelDefinition
}

// GetModel returns the model named name, if present.
func (s SchemaDefinition) GetModel(name string) (ModelDefinition, bool) {
	for _, m := range s.Models {
		if m.Name == name {
			return m, true
		}
	}
	return ModelDefinition{}, false
}

func (s *SchemaDefinition) AddModel(m ModelDefinition) {
	s.Models = append(s.Models, m)
}

// CoreSchema returns the runtime's built-in User/Session/Account models.
func CoreSchema() []ModelDefinition {
	user := NewModel("user").Core().
		WithField(PrimaryKeyField("id")).
		WithField(Field{Name: "email", Type: String(255), Required: true, Unique: true}).
		WithField(Field{Name: "email_verified", Type: Boolean(), Required: true, Default: strPtr("false")}).
		WithField(Field{Name: "name", Type: String(255)}).
		WithField(Field{Name: "image", Type: String(1024)}).
		WithField(Field{Name: "created_at", Type: Timestamp(), Required: true}).
		WithField(Field{Name: "updated_at", Type: Timestamp(), Required: true}).
		WithIndex(IndexDefinition{Name: "idx_user_email", Columns: []string{"email"}, Unique: true})

	session := NewModel("session").Core().
		WithField(PrimaryKeyField("id")).
		WithField(Field{Name: "user_id", Type: UUID(), Required: true, References: strPtr("user.id"), OnDelete: actionPtr(OnDeleteCascade)}).
		WithField(Field{Name: "token", Type: String(255), Required: true, Unique: true}).
		WithField(Field{Name: "expires_at", Type: Timestamp(), Required: true}).
		WithField(Field{Name: "ip_address", Type: String(64)}).
		WithField(Field{Name: "user_agent", Type: String(512)}).
		WithField(Field{Name: "created_at", Type: Timestamp(), Required: true}).
		WithField(Field{Name: "updated_at", Type: Timestamp(), Required: true}).
		WithIndex(IndexDefinition{Name: "idx_session_token", Columns: []string{"token"}, Unique: true}).
		WithIndex(IndexDefinition{Name: "idx_session_user_id", Columns: []string{"user_id"}})

	account := NewModel("account").Core().
		WithField(PrimaryKeyField("id")).
		WithField(Field{Name: "user_id", Type: UUID(), Required: true, References: strPtr("user.id"), OnDelete: actionPtr(OnDeleteCascade)}).
		WithField(Field{Name: "provider", Type: String(64), Required: true}).
		WithField(Field{Name: "provider_account_id", Type: String(255), Required: true}).
		WithField(Field{Name: "access_token", Type: Text(), Private: true}).
		WithField(Field{Name: "refresh_token", Type: Text(), Private: true}).
		WithField(Field{Name: "expires_at", Type: Timestamp()}).
		WithField(Field{Name: "created_at", Type: Timestamp(), Required: true}).
		WithField(Field{Name: "updated_at", Type: Timestamp(), Required: true}).
		WithIndex(IndexDefinition{Name: "idx_account_provider", Columns: []string{"provider", "provider_account_id"}, Unique: true})

	return []ModelDefinition{user, session, account}
}

func strPtr(s string) *string                        { return &s }
func actionPtr(a ReferentialActionValue) *ReferentialActionValue { return &a }
