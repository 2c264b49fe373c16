package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const textSize = 2147483647

var (
	sourceValues = []string{"user", "agent", "import", "system", "migration"}
	checkStatus  = []string{"success", "warning", "overdue", "pending"}
	recordStatus = []string{"open", "in_progress", "completed", "cancelled"}
	entityValues = []string{"document", "task", "inspection"}
)

// auditCols returns fresh audit columns for a table. Every domain table
// carries the same traceability fields.
func auditCols() []*schema.Column {
	return []*schema.Column{
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
		{Name: "created_by", Type: field.TypeString},
		{Name: "updated_by", Type: field.TypeString},
		{Name: "source", Type: field.TypeEnum, Enums: sourceValues},
		{Name: "correlation_id", Type: field.TypeString, Nullable: true},
	}
}

func withAudit(cols ...*schema.Column) []*schema.Column {
	return append(cols, auditCols()...)
}

var (
	buildingsColumns = withAudit(
		&schema.Column{Name: "id", Type: field.TypeString, Unique: true},
		&schema.Column{Name: "tenant_id", Type: field.TypeString},
		&schema.Column{Name: "name", Type: field.TypeString},
		&schema.Column{Name: "address_line1", Type: field.TypeString},
		&schema.Column{Name: "address_line2", Type: field.TypeString, Default: ""},
		&schema.Column{Name: "city", Type: field.TypeString},
		&schema.Column{Name: "postcode", Type: field.TypeString},
		&schema.Column{Name: "country", Type: field.TypeString, Size: 2},
	)
	buildingsTable = &schema.Table{
		Name:       "buildings",
		Columns:    buildingsColumns,
		PrimaryKey: []*schema.Column{buildingsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "building_tenant_id", Columns: []*schema.Column{buildingsColumns[1]}},
		},
	}

	templatesColumns = withAudit(
		&schema.Column{Name: "id", Type: field.TypeString, Unique: true},
		&schema.Column{Name: "tenant_id", Type: field.TypeString},
		&schema.Column{Name: "name", Type: field.TypeString},
		&schema.Column{Name: "entity", Type: field.TypeEnum, Enums: entityValues},
		&schema.Column{Name: "fields", Type: field.TypeJSON},
	)
	templatesTable = &schema.Table{
		Name:       "templates",
		Columns:    templatesColumns,
		PrimaryKey: []*schema.Column{templatesColumns[0]},
		Indexes: []*schema.Index{
			{Name: "template_tenant_id_entity", Unique: true, Columns: []*schema.Column{templatesColumns[1], templatesColumns[3]}},
		},
	}

	checksColumns = withAudit(
		&schema.Column{Name: "id", Type: field.TypeString, Unique: true},
		&schema.Column{Name: "tenant_id", Type: field.TypeString},
		&schema.Column{Name: "building_id", Type: field.TypeString},
		&schema.Column{Name: "check_type", Type: field.TypeString},
		&schema.Column{Name: "status", Type: field.TypeEnum, Enums: checkStatus},
		&schema.Column{Name: "due_date", Type: field.TypeTime, Nullable: true},
		&schema.Column{Name: "completed_date", Type: field.TypeTime, Nullable: true},
		&schema.Column{Name: "notes", Type: field.TypeString, Size: textSize, Default: ""},
	)
	checksTable = &schema.Table{
		Name:       "compliance_checks",
		Columns:    checksColumns,
		PrimaryKey: []*schema.Column{checksColumns[0]},
		Indexes: []*schema.Index{
			{Name: "check_tenant_id_building_id", Columns: []*schema.Column{checksColumns[1], checksColumns[2]}},
		},
	}

	documentsTable   = recordTable("documents")
	tasksTable       = recordTable("tasks")
	inspectionsTable = recordTable("inspections")

	activityColumns = []*schema.Column{
		{Name: "event_id", Type: field.TypeString},
		{Name: "event_type", Type: field.TypeString},
		{Name: "tenant_id", Type: field.TypeString},
		{Name: "occurred_at", Type: field.TypeTime},
		{Name: "indexed_entity_type", Type: field.TypeString},
		{Name: "indexed_entity_id", Type: field.TypeString},
		{Name: "entity_role", Type: field.TypeString},
		{Name: "source_refs", Type: field.TypeJSON},
		{Name: "summary", Type: field.TypeString, Size: textSize},
		{Name: "category", Type: field.TypeString},
		{Name: "actor", Type: field.TypeString, Default: ""},
		{Name: "payload", Type: field.TypeJSON, Nullable: true},
	}
	activityTable = &schema.Table{
		Name:       "activity_entries",
		Columns:    activityColumns,
		PrimaryKey: []*schema.Column{activityColumns[0], activityColumns[4], activityColumns[5]},
		Indexes: []*schema.Index{
			{Name: "activity_entity_time", Columns: []*schema.Column{
				activityColumns[2], activityColumns[4], activityColumns[5], activityColumns[3],
			}},
			{Name: "activity_tenant_category", Columns: []*schema.Column{activityColumns[2], activityColumns[9]}},
		},
	}

	// Tables is every table the service owns, in creation order.
	Tables = []*schema.Table{
		buildingsTable,
		templatesTable,
		checksTable,
		documentsTable,
		tasksTable,
		inspectionsTable,
		activityTable,
	}
)

// recordTable builds the table for one template-bound record kind. The three
// kinds share a shape; data holds the validated template values.
func recordTable(name string) *schema.Table {
	cols := withAudit(
		&schema.Column{Name: "id", Type: field.TypeString, Unique: true},
		&schema.Column{Name: "tenant_id", Type: field.TypeString},
		&schema.Column{Name: "building_id", Type: field.TypeString},
		&schema.Column{Name: "title", Type: field.TypeString},
		&schema.Column{Name: "status", Type: field.TypeEnum, Enums: recordStatus},
		&schema.Column{Name: "due_date", Type: field.TypeTime, Nullable: true},
		&schema.Column{Name: "completed_at", Type: field.TypeTime, Nullable: true},
		&schema.Column{Name: "data", Type: field.TypeJSON},
	)
	return &schema.Table{
		Name:       name,
		Columns:    cols,
		PrimaryKey: []*schema.Column{cols[0]},
		Indexes: []*schema.Index{
			{Name: name + "_tenant_id_building_id", Columns: []*schema.Column{cols[1], cols[2]}},
		},
	}
}

// Migrate creates or upgrades every table.
func (d *DB) Migrate(ctx context.Context) error {
	m, err := schema.NewMigrate(entsql.OpenDB(d.dialect, d.db))
	if err != nil {
		return fmt.Errorf("store: preparing migration: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("store: migrating schema: %w", err)
	}
	d.logger.Info("schema migrated")
	return nil
}
