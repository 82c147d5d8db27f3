package postgres

import (
	"context"
	"database/sql"

	"github.com/defarm/traceability-core/internal/storage"
)

func (s *Store) GetAdapterConfig(ctx context.Context, id string) (storage.AdapterConfig, bool, error) {
	cfg, err := scanAdapterConfig(s.db.QueryRowContext(ctx, adapterConfigSelect+` WHERE config_id = $1`, id))
	if err == sql.ErrNoRows {
		return storage.AdapterConfig{}, false, nil
	}
	if err != nil {
		return storage.AdapterConfig{}, false, wrapQueryErr("get adapter config", err)
	}
	return cfg, true, nil
}

// GetDefaultAdapterConfig returns the platform-wide adapter config flagged
// is_default; circuitID is not consulted and is_active is not checked.
// Circuits resolve their adapter ConfigID from their own blob in the
// circuits package; this lookup only handles the "no adapter configured"
// fallback path.
func (s *Store) GetDefaultAdapterConfig(ctx context.Context, circuitID string) (storage.AdapterConfig, bool, error) {
	cfg, err := scanAdapterConfig(s.db.QueryRowContext(ctx, adapterConfigSelect+` WHERE is_default = true LIMIT 1`))
	if err == sql.ErrNoRows {
		return storage.AdapterConfig{}, false, nil
	}
	if err != nil {
		return storage.AdapterConfig{}, false, wrapQueryErr("get default adapter config", err)
	}
	return cfg, true, nil
}

func (s *Store) SaveAdapterConfig(ctx context.Context, cfg storage.AdapterConfig) (storage.AdapterConfig, error) {
	if cfg.ConfigID == "" {
		cfg.ConfigID = newID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO adapter_configs (config_id, name, kind, endpoint, auth, auth_secret_ref, contract_address, network, timeout_secs, retry_count, max_concurrent, is_active, is_default, test_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (config_id) DO UPDATE SET
			name = EXCLUDED.name, kind = EXCLUDED.kind, endpoint = EXCLUDED.endpoint, auth = EXCLUDED.auth,
			auth_secret_ref = EXCLUDED.auth_secret_ref, contract_address = EXCLUDED.contract_address, network = EXCLUDED.network,
			timeout_secs = EXCLUDED.timeout_secs, retry_count = EXCLUDED.retry_count, max_concurrent = EXCLUDED.max_concurrent,
			is_active = EXCLUDED.is_active, is_default = EXCLUDED.is_default, test_status = EXCLUDED.test_status
	`, cfg.ConfigID, cfg.Name, cfg.Kind, cfg.Endpoint, cfg.Auth, cfg.AuthSecretRef, cfg.ContractAddress, cfg.Network, cfg.TimeoutSecs, cfg.RetryCount, cfg.MaxConcurrent, cfg.IsActive, cfg.IsDefault, cfg.TestStatus)
	if err != nil {
		return storage.AdapterConfig{}, wrapQueryErr("save adapter config", err)
	}
	return cfg, nil
}

const adapterConfigSelect = `
	SELECT config_id, name, kind, endpoint, auth, auth_secret_ref, contract_address, network, timeout_secs, retry_count, max_concurrent, is_active, is_default, test_status
	FROM adapter_configs
`

func scanAdapterConfig(row rowScanner) (storage.AdapterConfig, error) {
	var cfg storage.AdapterConfig
	err := row.Scan(&cfg.ConfigID, &cfg.Name, &cfg.Kind, &cfg.Endpoint, &cfg.Auth, &cfg.AuthSecretRef, &cfg.ContractAddress, &cfg.Network, &cfg.TimeoutSecs, &cfg.RetryCount, &cfg.MaxConcurrent, &cfg.IsActive, &cfg.IsDefault, &cfg.TestStatus)
	return cfg, err
}
