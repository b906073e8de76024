package service_test

import (
	"context"
	"testing"

	"github.com/ndewijer/portfolio-valuation-backend/internal/apperrors"
	"github.com/ndewijer/portfolio-valuation-backend/internal/logging"
	"github.com/ndewijer/portfolio-valuation-backend/internal/repository"
	"github.com/ndewijer/portfolio-valuation-backend/internal/service"
	"github.com/ndewijer/portfolio-valuation-backend/internal/testutil"
	"github.com/ndewijer/portfolio-valuation-backend/internal/version"
)

func TestSystemService(t *testing.T) {
	ctx := context.Background()

	t.Run("health check passes on a migrated database", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestSystemService(t, db)

		if err := svc.CheckHealth(ctx); err != nil {
			t.Errorf("CheckHealth() returned unexpected error: %v", err)
		}
	})

	t.Run("version info reports app and schema version", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestSystemService(t, db)

		info, err := svc.GetVersionInfo(ctx)
		if err != nil {
			t.Fatalf("GetVersionInfo() returned unexpected error: %v", err)
		}
		if info.AppVersion != version.Version {
			t.Errorf("Expected app version %q, got %q", version.Version, info.AppVersion)
		}
		if info.DbVersion != "4" {
			t.Errorf("Expected schema version 4, got %q", info.DbVersion)
		}
		if !info.Features["encrypted_provider_key"] {
			t.Error("Expected encrypted_provider_key feature to be enabled")
		}
		if info.Provider != "yahoo" {
			t.Errorf("Expected provider yahoo, got %q", info.Provider)
		}
		if info.ProviderKeyStored {
			t.Error("Expected no provider key on a fresh database")
		}
	})

	t.Run("version info reports a stored provider key", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestSystemService(t, db)

		if err := svc.SetProviderKey(ctx, "secret-123"); err != nil {
			t.Fatalf("SetProviderKey() returned unexpected error: %v", err)
		}

		info, err := svc.GetVersionInfo(ctx)
		if err != nil {
			t.Fatalf("GetVersionInfo() returned unexpected error: %v", err)
		}
		if !info.ProviderKeyStored {
			t.Error("Expected provider key to be reported as stored")
		}
	})

	// The provider key round-trips but is never stored in clear text.
	t.Run("provider key is stored encrypted", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestSystemService(t, db)

		empty, err := svc.ProviderKey(ctx)
		if err != nil || empty != "" {
			t.Fatalf("Expected no key before setting one, got %q, %v", empty, err)
		}

		if err := svc.SetProviderKey(ctx, "secret-123"); err != nil {
			t.Fatalf("SetProviderKey() returned unexpected error: %v", err)
		}

		stored, err := repository.NewSettingRepository(db).Get(ctx, "marketdata.api_key")
		if err != nil {
			t.Fatalf("Failed to read stored setting: %v", err)
		}
		if stored == "secret-123" {
			t.Error("Expected key to be encrypted at rest")
		}

		key, err := svc.ProviderKey(ctx)
		if err != nil {
			t.Fatalf("ProviderKey() returned unexpected error: %v", err)
		}
		if key != "secret-123" {
			t.Errorf("Expected decrypted key, got %q", key)
		}
	})

	t.Run("empty provider key is rejected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestSystemService(t, db)

		err := svc.SetProviderKey(ctx, "  ")
		if apperrors.KindOf(err) != apperrors.KindValidation {
			t.Errorf("Expected validation error, got %v", err)
		}
	})

	t.Run("without an encryption key the provider key cannot be stored", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := service.NewSystemService(db, repository.NewSettingRepository(db), nil, nil, logging.Nop())

		if err := svc.SetProviderKey(ctx, "secret"); err == nil {
			t.Error("Expected an error without encryption key")
		}
		key, err := svc.ProviderKey(ctx)
		if err != nil || key != "" {
			t.Errorf("Expected empty key and no error, got %q, %v", key, err)
		}
	})
}
