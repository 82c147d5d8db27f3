package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	coreerrors "github.com/defarm/traceability-core/infrastructure/errors"
	"github.com/defarm/traceability-core/internal/storage"
)

func (s *Store) CreateCircuit(ctx context.Context, c storage.Circuit) (storage.Circuit, error) {
	if c.ID == "" {
		c.ID = newID()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	blob, err := marshalCircuitBlob(c)
	if err != nil {
		return storage.Circuit{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO circuits (id, name, owner_id, status, blob, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.Name, c.OwnerID, c.Status, blob, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return storage.Circuit{}, wrapQueryErr("create circuit", err)
	}
	return c, nil
}

func (s *Store) UpdateCircuit(ctx context.Context, c storage.Circuit) (storage.Circuit, error) {
	c.UpdatedAt = time.Now().UTC()

	blob, err := marshalCircuitBlob(c)
	if err != nil {
		return storage.Circuit{}, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE circuits SET name = $2, owner_id = $3, status = $4, blob = $5, updated_at = $6
		WHERE id = $1
	`, c.ID, c.Name, c.OwnerID, c.Status, blob, c.UpdatedAt)
	if err != nil {
		return storage.Circuit{}, wrapQueryErr("update circuit", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.Circuit{}, coreerrors.NotFound("circuit", c.ID)
	}
	return c, nil
}

func (s *Store) GetCircuit(ctx context.Context, id string) (storage.Circuit, bool, error) {
	var (
		c    storage.Circuit
		blob []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, owner_id, status, blob, created_at, updated_at FROM circuits WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.OwnerID, &c.Status, &blob, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return storage.Circuit{}, false, nil
	}
	if err != nil {
		return storage.Circuit{}, false, wrapQueryErr("get circuit", err)
	}
	if err := unmarshalCircuitBlob(blob, &c); err != nil {
		return storage.Circuit{}, false, coreerrors.Corrupt("circuit", err)
	}
	return c, true, nil
}

// circuitBlob carries every field not promoted to its own column: the
// identifiers, policy, and join-request sub-structures are small and always
// read/written together with the circuit, so they're stored as one JSON
// document rather than normalized across tables.
type circuitBlob struct {
	Members      []storage.Member
	CustomRoles  map[string][]string
	Permissions  storage.CircuitPermissions
	Alias        storage.AliasConfig
	Adapter      storage.AdapterRef
	JoinRequests []storage.JoinRequest
}

func marshalCircuitBlob(c storage.Circuit) ([]byte, error) {
	blob, err := json.Marshal(circuitBlob{
		Members:      c.Members,
		CustomRoles:  c.CustomRoles,
		Permissions:  c.Permissions,
		Alias:        c.Alias,
		Adapter:      c.Adapter,
		JoinRequests: c.JoinRequests,
	})
	if err != nil {
		return nil, coreerrors.Internal("marshal circuit", err)
	}
	return blob, nil
}

func unmarshalCircuitBlob(data []byte, c *storage.Circuit) error {
	var b circuitBlob
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	c.Members = b.Members
	c.CustomRoles = b.CustomRoles
	c.Permissions = b.Permissions
	c.Alias = b.Alias
	c.Adapter = b.Adapter
	c.JoinRequests = b.JoinRequests
	return nil
}

func (s *Store) CreateOperation(ctx context.Context, op storage.CircuitOperation) (storage.CircuitOperation, error) {
	if op.ID == "" {
		op.ID = newID()
	}
	now := time.Now().UTC()
	op.CreatedAt = now
	op.UpdatedAt = now

	identifiersJSON, err := json.Marshal(op.Identifiers)
	if err != nil {
		return storage.CircuitOperation{}, coreerrors.Internal("marshal operation identifiers", err)
	}
	payloadJSON, err := json.Marshal(op.Payload)
	if err != nil {
		return storage.CircuitOperation{}, coreerrors.Internal("marshal operation payload", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO circuit_operations (id, circuit_id, kind, state, actor_id, local_id, gid, payload, identifiers, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, op.ID, op.CircuitID, op.Kind, op.State, op.ActorID, nullIfEmpty(op.LocalID), nullIfEmpty(op.GID), payloadJSON, identifiersJSON, op.CreatedAt, op.UpdatedAt)
	if err != nil {
		return storage.CircuitOperation{}, wrapQueryErr("create operation", err)
	}
	return op, nil
}

func (s *Store) UpdateOperation(ctx context.Context, op storage.CircuitOperation) (storage.CircuitOperation, error) {
	op.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE circuit_operations SET state = $2, gid = $3, updated_at = $4
		WHERE id = $1
	`, op.ID, op.State, nullIfEmpty(op.GID), op.UpdatedAt)
	if err != nil {
		return storage.CircuitOperation{}, wrapQueryErr("update operation", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.CircuitOperation{}, coreerrors.NotFound("circuit_operation", op.ID)
	}
	return op, nil
}

func (s *Store) GetOperation(ctx context.Context, id string) (storage.CircuitOperation, bool, error) {
	op, err := scanOperation(s.db.QueryRowContext(ctx, operationSelect+` WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return storage.CircuitOperation{}, false, nil
	}
	if err != nil {
		return storage.CircuitOperation{}, false, wrapQueryErr("get operation", err)
	}
	return op, true, nil
}

func (s *Store) ListPendingOperations(ctx context.Context, circuitID string) ([]storage.CircuitOperation, error) {
	rows, err := s.db.QueryContext(ctx, operationSelect+` WHERE circuit_id = $1 AND state = 'Pending' ORDER BY created_at ASC`, circuitID)
	if err != nil {
		return nil, wrapQueryErr("list pending operations", err)
	}
	defer rows.Close()

	var ops []storage.CircuitOperation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, coreerrors.Corrupt("circuit_operation", err)
		}
		ops = append(ops, op)
	}
	return ops, wrapQueryErr("list pending operations", rows.Err())
}

const operationSelect = `
	SELECT id, circuit_id, kind, state, actor_id, COALESCE(local_id, ''), COALESCE(gid, ''), payload, identifiers, created_at, updated_at
	FROM circuit_operations
`

func scanOperation(row rowScanner) (storage.CircuitOperation, error) {
	var op storage.CircuitOperation
	var payloadJSON, identifiersJSON []byte
	if err := row.Scan(&op.ID, &op.CircuitID, &op.Kind, &op.State, &op.ActorID, &op.LocalID, &op.GID, &payloadJSON, &identifiersJSON, &op.CreatedAt, &op.UpdatedAt); err != nil {
		return storage.CircuitOperation{}, err
	}
	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &op.Payload); err != nil {
			return storage.CircuitOperation{}, err
		}
	}
	if len(identifiersJSON) > 0 {
		if err := json.Unmarshal(identifiersJSON, &op.Identifiers); err != nil {
			return storage.CircuitOperation{}, err
		}
	}
	return op, nil
}
