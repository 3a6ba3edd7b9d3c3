package testsupport

import (
	"context"
	"testing"

	"filer/internal/config"
	"filer/internal/store"
	"filer/internal/taxonomy"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SeedHierarchy creates a small taxonomy:
//
//	10-19 Finance
//	  11 Billing: 11.01 Invoices (keywords invoice, bill), 11.02 Receipts
//	20-29 Media
//	  21 Pictures: 21.01 Photos
func SeedHierarchy(t testing.TB, st *store.Store) taxonomy.Hierarchy {
	t.Helper()
	ctx := context.Background()

	for _, area := range []taxonomy.Area{
		{Start: 10, End: 19, Name: "Finance"},
		{Start: 20, End: 29, Name: "Media"},
	} {
		if _, err := st.CreateArea(ctx, area); err != nil {
			t.Fatalf("CreateArea: %v", err)
		}
	}
	for _, category := range []taxonomy.Category{
		{Number: 11, Name: "Billing"},
		{Number: 21, Name: "Pictures"},
	} {
		if _, err := st.CreateCategory(ctx, category); err != nil {
			t.Fatalf("CreateCategory: %v", err)
		}
	}
	for _, folder := range []taxonomy.FolderTarget{
		{Number: "11.01", Name: "Invoices", Keywords: []string{"invoice", "bill"}},
		{Number: "11.02", Name: "Receipts"},
		{Number: "21.01", Name: "Photos"},
	} {
		if _, err := st.CreateFolder(ctx, folder); err != nil {
			t.Fatalf("CreateFolder: %v", err)
		}
	}

	h, err := st.Hierarchy(ctx)
	if err != nil {
		t.Fatalf("Hierarchy: %v", err)
	}
	return h
}

// MustCreateRule inserts an active rule.
func MustCreateRule(t testing.TB, st *store.Store, rule taxonomy.Rule) taxonomy.Rule {
	t.Helper()
	if rule.Name == "" {
		rule.Name = string(rule.Type) + " " + rule.Pattern
	}
	if rule.TargetType == "" {
		rule.TargetType = taxonomy.TargetFolder
	}
	rule.Active = true
	created, err := st.CreateRule(context.Background(), rule)
	if err != nil {
		t.Fatalf("CreateRule: %v", err)
	}
	return created
}
