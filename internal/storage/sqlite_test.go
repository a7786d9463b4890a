package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"log/slog"
)

func TestSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := NewSQLiteStore(dbPath, logger)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	t.Run("CreateAndGetVerification", func(t *testing.T) {
		v := &Verification{
			Package:    "defi_pool",
			Address:    "0x0000000000000000000000000000000000000000000000000000000000000042",
			Operation:  "root_and_deps",
			Result:     "ok",
			DurationMS: 37,
		}

		if err := store.CreateVerification(ctx, v); err != nil {
			t.Fatalf("CreateVerification() error = %v", err)
		}
		if v.ID == "" {
			t.Fatal("CreateVerification() did not assign an ID")
		}

		got, err := store.GetVerification(ctx, v.ID)
		if err != nil {
			t.Fatalf("GetVerification() error = %v", err)
		}
		if got.Package != v.Package {
			t.Errorf("GetVerification().Package = %v, want %v", got.Package, v.Package)
		}
		if got.Result != "ok" {
			t.Errorf("GetVerification().Result = %v, want ok", got.Result)
		}
		if got.DurationMS != 37 {
			t.Errorf("GetVerification().DurationMS = %v, want 37", got.DurationMS)
		}
		if got.CreatedAt == "" {
			t.Error("GetVerification().CreatedAt is empty")
		}
	})

	t.Run("GetVerificationNotFound", func(t *testing.T) {
		_, err := store.GetVerification(ctx, "missing-id")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("GetVerification() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("ListVerificationsFiltered", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			v := &Verification{
				Package:   "filter_target",
				Address:   "0xaa",
				Operation: "deps",
				Result:    "bytecode_mismatch",
			}
			if err := store.CreateVerification(ctx, v); err != nil {
				t.Fatalf("CreateVerification() error = %v", err)
			}
		}

		res, err := store.ListVerifications(ctx, VerificationFilter{Package: "filter_target"}, PaginationParams{Limit: 10})
		if err != nil {
			t.Fatalf("ListVerifications() error = %v", err)
		}
		if len(res.Data) != 3 {
			t.Errorf("ListVerifications() returned %d records, want 3", len(res.Data))
		}
		for _, rec := range res.Data {
			if rec.Package != "filter_target" {
				t.Errorf("filter leaked record for package %q", rec.Package)
			}
		}

		res, err = store.ListVerifications(ctx, VerificationFilter{Package: "filter_target", Result: "ok"}, PaginationParams{Limit: 10})
		if err != nil {
			t.Fatalf("ListVerifications() error = %v", err)
		}
		if len(res.Data) != 0 {
			t.Errorf("result filter returned %d records, want 0", len(res.Data))
		}
	})

	t.Run("ListVerificationsPagination", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			v := &Verification{
				Package:   "page_target",
				Address:   fmt.Sprintf("0x%02d", i),
				Operation: "root",
				Result:    "ok",
			}
			if err := store.CreateVerification(ctx, v); err != nil {
				t.Fatalf("CreateVerification() error = %v", err)
			}
		}

		filter := VerificationFilter{Package: "page_target"}
		first, err := store.ListVerifications(ctx, filter, PaginationParams{Limit: 2})
		if err != nil {
			t.Fatalf("ListVerifications() error = %v", err)
		}
		if len(first.Data) != 2 {
			t.Fatalf("first page has %d records, want 2", len(first.Data))
		}
		if !first.HasMore {
			t.Error("first page HasMore = false, want true")
		}
		if first.NextCursor == "" {
			t.Fatal("first page NextCursor is empty")
		}

		seen := map[string]bool{}
		for _, rec := range first.Data {
			seen[rec.ID] = true
		}

		second, err := store.ListVerifications(ctx, filter, PaginationParams{Limit: 10, Cursor: first.NextCursor})
		if err != nil {
			t.Fatalf("ListVerifications() error = %v", err)
		}
		if len(second.Data) != 3 {
			t.Errorf("second page has %d records, want 3", len(second.Data))
		}
		if second.HasMore {
			t.Error("second page HasMore = true, want false")
		}
		for _, rec := range second.Data {
			if seen[rec.ID] {
				t.Errorf("record %s appeared on both pages", rec.ID)
			}
		}
	})
}
