// Package core provides the fundamental building blocks of the loam
// persistence layer. This file defines the Schema, which describes a table:
// its fields, identity, typecasting hooks, scope, and lifecycle options.
package core

// CastFunc converts a single field value between its application-level
// representation and the backend's native one. The persistence layer applies
// these hooks blindly; it never inspects field semantics itself.
type CastFunc func(value any) (any, error)

// SchemaField describes a single named field of a schema.
//
// Name is the application-level field name used in rows, conditions, and
// sort rules. Column is the storage-level alias; it defaults to Name. The
// optional cast hooks convert values on their way to and from storage.
type SchemaField struct {
	Name   string
	Column string

	IsIdentity  bool
	IsCreatedAt bool
	IsUpdatedAt bool
	IsDeletedAt bool

	SaveCast CastFunc
	LoadCast CastFunc
}

// FieldOption configures a Field during schema construction.
type FieldOption func(*SchemaField)

// Column sets the storage-level column name for a field.
func Column(name string) FieldOption {
	return func(f *SchemaField) { f.Column = name }
}

// Identity marks a field as the schema's identity (primary key).
func Identity() FieldOption {
	return func(f *SchemaField) { f.IsIdentity = true }
}

// CreatedAt marks a field to be stamped with the current time on insert.
func CreatedAt() FieldOption {
	return func(f *SchemaField) { f.IsCreatedAt = true }
}

// UpdatedAt marks a field to be stamped with the current time on insert and update.
func UpdatedAt() FieldOption {
	return func(f *SchemaField) { f.IsUpdatedAt = true }
}

// DeletedAt marks a field as the soft-delete timestamp. When present,
// Delete sets this field instead of removing the row, and queries exclude
// rows where it is populated unless WithDeleted or OnlyDeleted is requested.
func DeletedAt() FieldOption {
	return func(f *SchemaField) { f.IsDeletedAt = true }
}

// SaveWith sets the storage-bound cast hook for a field.
func SaveWith(fn CastFunc) FieldOption {
	return func(f *SchemaField) { f.SaveCast = fn }
}

// LoadWith sets the load-bound cast hook for a field.
func LoadWith(fn CastFunc) FieldOption {
	return func(f *SchemaField) { f.LoadCast = fn }
}

// Schema describes a table or collection: its name, fields, identity,
// active filter scope, and save behavior. A Schema owns no connection; it
// is bound to a Driver through a Model.
type Schema struct {
	Table  string
	Fields []*SchemaField

	fieldsByName   map[string]*SchemaField
	fieldsByColumn map[string]*SchemaField

	identityField  *SchemaField
	createdAtField *SchemaField
	updatedAtField *SchemaField
	deletedAtField *SchemaField

	scope           *Condition
	reloadAfterSave bool

	PreHookList  map[PreHook][]HookFunc
	PostHookList map[PostHook][]HookFunc
}

// SchemaOption configures a Schema during construction.
type SchemaOption func(*Schema)

// WithField declares a field on the schema.
//
// Example:
//
//	users := core.NewSchema("users",
//		core.WithField("id", core.Identity()),
//		core.WithField("name"),
//		core.WithField("age"),
//	)
func WithField(name string, options ...FieldOption) SchemaOption {
	return func(s *Schema) {
		field := &SchemaField{Name: name, Column: name}
		for _, option := range options {
			option(field)
		}
		s.Fields = append(s.Fields, field)
	}
}

// Scope attaches an active filter scope to the schema. The scope condition
// is folded (AND) into every operation issued through a Model bound to this
// schema.
func Scope(condition *Condition) SchemaOption {
	return func(s *Schema) { s.scope = condition }
}

// ReloadAfterSave configures models bound to this schema to re-fetch a row
// after a successful update, so fields changed by server-side computation
// (triggers, default expressions) are surfaced.
func ReloadAfterSave() SchemaOption {
	return func(s *Schema) { s.reloadAfterSave = true }
}

// NewSchema builds a Schema for the named table.
func NewSchema(table string, options ...SchemaOption) *Schema {
	schema := &Schema{
		Table:        table,
		PreHookList:  make(map[PreHook][]HookFunc),
		PostHookList: make(map[PostHook][]HookFunc),
	}
	for _, option := range options {
		option(schema)
	}

	schema.fieldsByName = make(map[string]*SchemaField, len(schema.Fields))
	schema.fieldsByColumn = make(map[string]*SchemaField, len(schema.Fields))
	for _, field := range schema.Fields {
		schema.fieldsByName[field.Name] = field
		schema.fieldsByColumn[field.Column] = field
		if field.IsIdentity {
			schema.identityField = field
		}
		if field.IsCreatedAt {
			schema.createdAtField = field
		}
		if field.IsUpdatedAt {
			schema.updatedAtField = field
		}
		if field.IsDeletedAt {
			schema.deletedAtField = field
		}
	}
	return schema
}

// IdentityField returns the name of the schema's identity field, or false
// when the schema declares none.
func (s *Schema) IdentityField() (string, bool) {
	if s.identityField == nil {
		return "", false
	}
	return s.identityField.Name, true
}

// Scope returns the schema's active filter scope, or nil.
func (s *Schema) Scope() *Condition { return s.scope }

// FieldByName returns the declared field with the given application-level
// name, or nil when the schema does not declare it.
func (s *Schema) FieldByName(name string) *SchemaField { return s.fieldsByName[name] }

// ColumnOf maps an application-level field name to its storage column.
// Undeclared fields map to themselves.
func (s *Schema) ColumnOf(name string) string {
	if field, ok := s.fieldsByName[name]; ok {
		return field.Column
	}
	return name
}

// NameOfColumn maps a storage column back to its application-level field
// name. Undeclared columns map to themselves.
func (s *Schema) NameOfColumn(column string) string {
	if field, ok := s.fieldsByColumn[column]; ok {
		return field.Name
	}
	return column
}

// CastForStorage applies each declared field's storage-bound cast hook to a
// row, returning a new row. Undeclared fields pass through unchanged.
func (s *Schema) CastForStorage(row Row) (Row, error) {
	cast := row.Clone()
	for name, value := range cast {
		field := s.fieldsByName[name]
		if field == nil || field.SaveCast == nil {
			continue
		}
		converted, err := field.SaveCast(value)
		if err != nil {
			return nil, err
		}
		cast[name] = converted
	}
	return cast, nil
}

// CastFromStorage applies each declared field's load-bound cast hook to a
// row, returning a new row. Undeclared fields pass through unchanged.
func (s *Schema) CastFromStorage(row Row) (Row, error) {
	cast := row.Clone()
	for name, value := range cast {
		field := s.fieldsByName[name]
		if field == nil || field.LoadCast == nil {
			continue
		}
		converted, err := field.LoadCast(value)
		if err != nil {
			return nil, err
		}
		cast[name] = converted
	}
	return cast, nil
}

// RegisterPreHook registers a hook executed before the given operation.
func (s *Schema) RegisterPreHook(hook PreHook, fn HookFunc) {
	s.PreHookList[hook] = append(s.PreHookList[hook], fn)
}

// RegisterPostHook registers a hook executed after the given operation.
func (s *Schema) RegisterPostHook(hook PostHook, fn HookFunc) {
	s.PostHookList[hook] = append(s.PostHookList[hook], fn)
}
