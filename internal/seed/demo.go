// Package seed provides demo data for a fresh database.
package seed

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/matthewbaird/compliance/internal/compliance"
	"github.com/matthewbaird/compliance/internal/entity"
	"github.com/matthewbaird/compliance/internal/service"
	"github.com/matthewbaird/compliance/internal/store"
	"github.com/matthewbaird/compliance/internal/template"
	"github.com/matthewbaird/compliance/internal/types"
)

// Demo creates two buildings with checks, tasks and a task template for
// tenantID. Writes go through the services so demo data passes the same
// checks as API writes. If the tenant already has buildings it does nothing.
func Demo(ctx context.Context, db *store.DB, svc service.Services, tenantID string, logger *zap.Logger) error {
	existing, err := db.Buildings().All(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("checking buildings: %w", err)
	}
	if len(existing) > 0 {
		logger.Info("demo data already seeded, skipping",
			zap.String("tenant_id", tenantID), zap.Int("buildings", len(existing)))
		return nil
	}

	audit := types.SystemAudit
	now := time.Now().UTC()
	monthsAgo := func(n int) *time.Time {
		t := now.AddDate(0, -n, 0).Truncate(24 * time.Hour)
		return &t
	}
	inMonths := func(n int) *time.Time {
		t := now.AddDate(0, n, 0).Truncate(24 * time.Hour)
		return &t
	}

	lo, hi := 0.0, 40.0
	tpl := &template.Template{
		TenantID: tenantID,
		Name:     "Maintenance task",
		Entity:   string(entity.KindTask),
		Fields: []template.Field{
			{Key: "priority", Label: "Priority", Type: template.TypeSelect, Required: true, Options: []string{"low", "medium", "high"}},
			{Key: "contractor", Label: "Contractor", Type: template.TypeText},
			{Key: "estimated_hours", Label: "Estimated hours", Type: template.TypeNumber, Min: &lo, Max: &hi},
			{Key: "areas", Label: "Areas", Type: template.TypeMultiselect, Options: []string{"communal", "roof", "basement", "flats"}},
			{Key: "work_order", Label: "Work order link", Type: template.TypeURL},
		},
	}
	if err := svc.Templates.Create(ctx, tpl, audit); err != nil {
		return fmt.Errorf("creating task template: %w", err)
	}

	buildings := []*store.Building{
		{
			TenantID: tenantID,
			Name:     "Harbour View",
			Address:  types.Address{Line1: "12 Quay Street", City: "Bristol", Postcode: "BS1 4DJ", Country: "GB"},
		},
		{
			TenantID: tenantID,
			Name:     "Maple Court",
			Address:  types.Address{Line1: "3 Maple Road", Line2: "Block B", City: "Leeds", Postcode: "LS6 2AB", Country: "GB"},
		},
	}
	for _, b := range buildings {
		if err := db.Buildings().Create(ctx, b, audit); err != nil {
			return fmt.Errorf("creating building %s: %w", b.Name, err)
		}
	}

	// Harbour View has a full check history; Maple Court is scored on tasks.
	harbour := buildings[0].ID
	checks := []service.CheckInput{
		{CheckType: compliance.FireRiskAssessment, Status: compliance.StatusOverdue, DueDate: monthsAgo(13)},
		{CheckType: compliance.FireRiskAssessment, Status: compliance.StatusSuccess, CompletedDate: monthsAgo(1)},
		{CheckType: compliance.FireAlarmTesting, Status: compliance.StatusSuccess, CompletedDate: monthsAgo(2)},
		{CheckType: compliance.LegionellaRisk, Status: compliance.StatusWarning, CompletedDate: monthsAgo(3), Notes: "Dead leg in basement plant room"},
		{CheckType: compliance.AsbestosSurvey, Status: compliance.StatusSuccess, CompletedDate: monthsAgo(30)},
		{CheckType: compliance.HSMonthlyVisit, Status: compliance.StatusPending, DueDate: inMonths(1)},
	}
	for _, in := range checks {
		if _, err := svc.Compliance.RecordCheck(ctx, tenantID, harbour, in, audit); err != nil {
			return fmt.Errorf("recording %s check: %w", in.CheckType, err)
		}
	}

	maple := buildings[1].ID
	tasks := []struct {
		in   service.RecordInput
		done bool
	}{
		{in: service.RecordInput{Title: "Replace communal fire door closers", Data: template.Data{
			"priority": template.String("high"), "areas": template.List("communal"), "estimated_hours": template.Number(6),
		}}, done: true},
		{in: service.RecordInput{Title: "Clear roof gutters", DueDate: inMonths(1), Data: template.Data{
			"priority": template.String("medium"), "areas": template.List("roof"), "contractor": template.String("Northside Roofing"),
		}}},
		{in: service.RecordInput{Title: "Book asbestos survey", DueDate: inMonths(2), Data: template.Data{
			"priority": template.String("low"),
		}}},
	}
	for _, t := range tasks {
		rec, err := svc.Records.Create(ctx, entity.KindTask, tenantID, maple, t.in, audit)
		if err != nil {
			return fmt.Errorf("creating task %q: %w", t.in.Title, err)
		}
		if t.done {
			if _, _, err := svc.Records.Transition(ctx, entity.KindTask, tenantID, rec.ID, entity.StatusCompleted, audit); err != nil {
				return fmt.Errorf("completing task %q: %w", t.in.Title, err)
			}
		}
	}

	logger.Info("seeded demo data",
		zap.String("tenant_id", tenantID),
		zap.Int("buildings", len(buildings)),
		zap.Int("checks", len(checks)),
		zap.Int("tasks", len(tasks)))
	return nil
}
