package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ndewijer/portfolio-valuation-backend/internal/apperrors"
	"github.com/ndewijer/portfolio-valuation-backend/internal/database"
	"github.com/ndewijer/portfolio-valuation-backend/internal/marketdata"
	"github.com/ndewijer/portfolio-valuation-backend/internal/model"
	"github.com/ndewijer/portfolio-valuation-backend/internal/repository"
	"github.com/ndewijer/portfolio-valuation-backend/internal/secret"
	"github.com/ndewijer/portfolio-valuation-backend/internal/version"
)

// providerKeySetting is the system_setting key holding the encrypted market-data API key.
const providerKeySetting = "marketdata.api_key"

// SystemService handles system-related operations
type SystemService struct {
	db       *sql.DB
	settings *repository.SettingRepository
	box      *secret.Box
	features map[string]bool
	logger   zerolog.Logger
}

// NewSystemService creates a new SystemService. box may be nil when no
// encryption key is configured; storing a provider key is then refused.
func NewSystemService(db *sql.DB, settings *repository.SettingRepository, box *secret.Box, features map[string]bool, logger zerolog.Logger) *SystemService {
	return &SystemService{
		db:       db,
		settings: settings,
		box:      box,
		features: features,
		logger:   logger.With().Str("service", "system").Logger(),
	}
}

// CheckHealth checks the health of the system
func (s *SystemService) CheckHealth(ctx context.Context) error {
	if err := database.HealthCheck(ctx, s.db); err != nil {
		return apperrors.E(apperrors.KindPersistence, "system.CheckHealth", err)
	}
	return nil
}

// GetVersionInfo returns the application version, the applied schema version,
// the market-data provider with whether a key is stored for it, and the
// enabled features.
func (s *SystemService) GetVersionInfo(ctx context.Context) (model.VersionInfo, error) {
	dbVersion, err := database.SchemaVersion(ctx, s.db)
	if err != nil {
		return model.VersionInfo{}, apperrors.E(apperrors.KindPersistence, "system.GetVersionInfo", err)
	}

	keyStored := true
	if _, err := s.settings.Get(ctx, providerKeySetting); errors.Is(err, apperrors.ErrSettingNotFound) {
		keyStored = false
	} else if err != nil {
		return model.VersionInfo{}, err
	}

	features := make(map[string]bool, len(s.features)+1)
	for name, enabled := range s.features {
		features[name] = enabled
	}
	features["encrypted_provider_key"] = s.box != nil

	return model.VersionInfo{
		AppVersion:        version.Version,
		DbVersion:         strconv.FormatInt(dbVersion, 10),
		Provider:          marketdata.ProviderName,
		ProviderKeyStored: keyStored,
		Features:          features,
	}, nil
}

// SetProviderKey stores the market-data API key encrypted at rest.
func (s *SystemService) SetProviderKey(ctx context.Context, apiKey string) error {
	const op = "system.SetProviderKey"

	if strings.TrimSpace(apiKey) == "" {
		return apperrors.E(apperrors.KindValidation, op, errors.New("apiKey is required"))
	}
	if s.box == nil {
		return apperrors.E(apperrors.KindInternal, op, secret.ErrNoKey)
	}
	token, err := s.box.Encrypt(apiKey)
	if err != nil {
		return apperrors.E(apperrors.KindInternal, op, err)
	}
	if err := s.settings.Set(ctx, providerKeySetting, token, time.Now()); err != nil {
		return err
	}

	s.logger.Info().Msg("market-data API key updated")
	return nil
}

// ProviderKey returns the decrypted market-data API key, or "" when none is
// stored or no encryption key is configured. It satisfies marketdata.KeySource.
func (s *SystemService) ProviderKey(ctx context.Context) (string, error) {
	if s.box == nil {
		return "", nil
	}
	token, err := s.settings.Get(ctx, providerKeySetting)
	if errors.Is(err, apperrors.ErrSettingNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	key, err := s.box.Decrypt(token)
	if err != nil {
		return "", apperrors.E(apperrors.KindInternal, "system.ProviderKey", err)
	}
	return key, nil
}
