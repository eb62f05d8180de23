package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattiagosetto9/ha-voice-manager/internal/profile"
)

// Store defines the persistence interface for rule sets and global manager
// settings. This abstraction allows different implementations (SQLite,
// mock) and enables unit testing without database dependencies.
type Store interface {
	// Load returns a profile's committed rule set. A profile with no
	// persisted record yields an empty default rule set at version 0.
	Load(ctx context.Context, id profile.ID) (*profile.RuleSet, error)

	// Commit atomically replaces a profile's rule set. The caller's
	// expectedVersion must match the stored version or the commit fails
	// with ErrVersionConflict. Returns the new version on success.
	Commit(ctx context.Context, rs *profile.RuleSet, expectedVersion int64) (int64, error)

	// LoadSettings returns the global manager settings, creating defaults
	// on first access.
	LoadSettings(ctx context.Context) (*profile.ManagerSettings, error)

	// SaveSettings replaces the global manager settings.
	SaveSettings(ctx context.Context, ms *profile.ManagerSettings) error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed rule store.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Load retrieves a profile's committed rule set.
func (s *SQLiteStore) Load(ctx context.Context, id profile.ID) (*profile.RuleSet, error) {
	query := `SELECT filter_mode, domain_rules, overrides, settings, version
		FROM rule_sets WHERE profile_id = ?`

	var filterMode, domainRulesJSON, overridesJSON, settingsJSON string
	var version int64

	err := s.db.QueryRowContext(ctx, query, string(id)).Scan(
		&filterMode,
		&domainRulesJSON,
		&overridesJSON,
		&settingsJSON,
		&version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// No record yet: an empty rule set at version 0.
			return profile.NewRuleSet(id), nil
		}
		return nil, fmt.Errorf("querying rule set: %w", err)
	}

	rs := profile.NewRuleSet(id)
	rs.FilterMode = profile.FilterMode(filterMode)
	rs.Version = version

	if err := json.Unmarshal([]byte(domainRulesJSON), &rs.DomainRules); err != nil {
		return nil, fmt.Errorf("unmarshalling domain rules: %w", err)
	}
	if err := json.Unmarshal([]byte(overridesJSON), &rs.Overrides); err != nil {
		return nil, fmt.Errorf("unmarshalling overrides: %w", err)
	}
	if err := json.Unmarshal([]byte(settingsJSON), &rs.Settings); err != nil {
		return nil, fmt.Errorf("unmarshalling settings: %w", err)
	}
	if rs.DomainRules == nil {
		rs.DomainRules = []profile.DomainRule{}
	}
	if rs.Overrides == nil {
		rs.Overrides = []profile.EntityOverride{}
	}

	return rs, nil
}

// Commit atomically replaces a profile's rule set, guarded by the version
// token. The record is replaced whole or not at all; a partially-updated
// rule set is never visible to a subsequent Load.
func (s *SQLiteStore) Commit(ctx context.Context, rs *profile.RuleSet, expectedVersion int64) (int64, error) {
	normalised := rs.DeepCopy()
	normalised.Normalise()

	domainRulesJSON, err := json.Marshal(normalised.DomainRules)
	if err != nil {
		return 0, fmt.Errorf("marshalling domain rules: %w", err)
	}
	overridesJSON, err := json.Marshal(normalised.Overrides)
	if err != nil {
		return 0, fmt.Errorf("marshalling overrides: %w", err)
	}
	settingsJSON, err := json.Marshal(normalised.Settings)
	if err != nil {
		return 0, fmt.Errorf("marshalling settings: %w", err)
	}

	newVersion := expectedVersion + 1
	now := time.Now().UTC().Format(time.RFC3339)

	if expectedVersion == 0 {
		// First commit for this profile. The primary key rejects a row
		// created by a concurrent session since our load.
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO rule_sets (profile_id, filter_mode, domain_rules, overrides, settings, version, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			string(normalised.ProfileID),
			string(normalised.FilterMode),
			string(domainRulesJSON),
			string(overridesJSON),
			string(settingsJSON),
			newVersion,
			now,
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return 0, fmt.Errorf("%w: profile %s was committed by another session", ErrVersionConflict, normalised.ProfileID)
			}
			return 0, fmt.Errorf("inserting rule set: %w", err)
		}
		return newVersion, nil
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE rule_sets SET
			filter_mode = ?, domain_rules = ?, overrides = ?, settings = ?,
			version = ?, updated_at = ?
		WHERE profile_id = ? AND version = ?`,
		string(normalised.FilterMode),
		string(domainRulesJSON),
		string(overridesJSON),
		string(settingsJSON),
		newVersion,
		now,
		string(normalised.ProfileID),
		expectedVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("updating rule set: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return 0, fmt.Errorf("%w: profile %s expected version %d", ErrVersionConflict, normalised.ProfileID, expectedVersion)
	}
	return newVersion, nil
}

// LoadSettings retrieves the global manager settings, returning defaults if
// none have been saved yet.
func (s *SQLiteStore) LoadSettings(ctx context.Context) (*profile.ManagerSettings, error) {
	query := `SELECT mode, bridge_target, last_generated FROM manager_settings WHERE id = 1`

	var mode string
	var bridgeTarget sql.NullString
	var lastGeneratedJSON string

	err := s.db.QueryRowContext(ctx, query).Scan(&mode, &bridgeTarget, &lastGeneratedJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return profile.DefaultManagerSettings(), nil
		}
		return nil, fmt.Errorf("querying manager settings: %w", err)
	}

	ms := profile.DefaultManagerSettings()
	ms.Mode = profile.Mode(mode)
	if bridgeTarget.Valid {
		ms.BridgeTarget = bridgeTarget.String
	}
	if err := json.Unmarshal([]byte(lastGeneratedJSON), &ms.LastGenerated); err != nil {
		return nil, fmt.Errorf("unmarshalling last generated: %w", err)
	}
	if ms.LastGenerated == nil {
		ms.LastGenerated = make(map[profile.ID]time.Time)
	}
	return ms, nil
}

// SaveSettings replaces the global manager settings.
func (s *SQLiteStore) SaveSettings(ctx context.Context, ms *profile.ManagerSettings) error {
	lastGeneratedJSON, err := json.Marshal(ms.LastGenerated)
	if err != nil {
		return fmt.Errorf("marshalling last generated: %w", err)
	}

	var bridgeTarget sql.NullString
	if ms.BridgeTarget != "" {
		bridgeTarget = sql.NullString{String: ms.BridgeTarget, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO manager_settings (id, mode, bridge_target, last_generated, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			mode = excluded.mode,
			bridge_target = excluded.bridge_target,
			last_generated = excluded.last_generated,
			updated_at = excluded.updated_at`,
		string(ms.Mode),
		bridgeTarget,
		string(lastGeneratedJSON),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving manager settings: %w", err)
	}
	return nil
}

// isUniqueConstraintError reports whether err is a SQLite unique constraint
// violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
