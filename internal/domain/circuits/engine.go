package circuits

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/defarm/traceability-core/infrastructure/errors"
	"github.com/defarm/traceability-core/internal/domain/events"
	"github.com/defarm/traceability-core/internal/domain/identity"
	"github.com/defarm/traceability-core/internal/storage"
)

// Engine implements circuit creation, membership, push/pull, and the
// join-request workflow over the Identity and Event engines plus a
// resolved Storage Adapter.
type Engine struct {
	store    storage.Store
	identity *identity.Engine
	events   *events.Engine
	adapters AdapterResolver
	log      *logrus.Entry
}

// New builds a circuits Engine.
func New(store storage.Store, identityEngine *identity.Engine, eventsEngine *events.Engine, adapters AdapterResolver) *Engine {
	return &Engine{
		store:    store,
		identity: identityEngine,
		events:   eventsEngine,
		adapters: adapters,
		log:      logrus.WithField("component", "circuits-engine"),
	}
}

// CreateCircuit registers a new circuit with ownerID as owner.
func (e *Engine) CreateCircuit(ctx context.Context, name, ownerID string, perms Permissions) (Circuit, error) {
	rec := storage.Circuit{
		Name:    name,
		OwnerID: ownerID,
		Status:  "Active",
		Permissions: storage.CircuitPermissions{
			RequirePushApproval: perms.RequirePushApproval,
			RequirePullApproval: perms.RequirePullApproval,
			PublicVisibility:    perms.PublicVisibility,
			AllowedNamespaces:   perms.AllowedNamespaces,
			AutoApproveMembers:  perms.AutoApproveMembers,
		},
	}
	created, err := e.store.CreateCircuit(ctx, rec)
	if err != nil {
		return Circuit{}, err
	}
	return fromStorageCircuit(created), nil
}

func (e *Engine) loadCircuit(ctx context.Context, circuitID string) (storage.Circuit, error) {
	c, found, err := e.store.GetCircuit(ctx, circuitID)
	if err != nil {
		return storage.Circuit{}, errors.Wrap(errors.KindBackendUnavailable, "load circuit", err)
	}
	if !found {
		return storage.Circuit{}, errors.NotFound("circuit", circuitID)
	}
	return c, nil
}

func (e *Engine) aliasConfig(c storage.Circuit) identity.AliasConfig {
	return identity.AliasConfig{
		AllowedNamespaces:  c.Permissions.AllowedNamespaces,
		AutoApplyNamespace: c.Alias.AutoApplyNamespace,
		DefaultNamespace:   c.Alias.DefaultNamespace,
		UseFingerprint:     c.Alias.UseFingerprint,
		RequiredCanonical:  c.Alias.RequiredCanonical,
		RequiredContextual: c.Alias.RequiredContextual,
	}
}

// PushLocalItem implements spec.md §4.4's Push algorithm.
func (e *Engine) PushLocalItem(ctx context.Context, localID string, identifiers []identity.Identifier, payload map[string]interface{}, circuitID, actorID string) (PushResult, error) {
	circuitRec, err := e.loadCircuit(ctx, circuitID)
	if err != nil {
		return PushResult{}, err
	}
	circuit := fromStorageCircuit(circuitRec)

	if !HasPermission(circuit, actorID, PermissionPush) {
		return PushResult{}, errors.Unauthorized("actor does not hold Push permission on this circuit")
	}

	resolveResult, err := e.identity.Resolve(ctx, identity.Bundle{
		Identifiers: identifiers,
		Payload:     payload,
		CircuitID:   circuitID,
		ActorID:     actorID,
		Alias:       e.aliasConfig(circuitRec),
	})
	if err != nil {
		return PushResult{}, err
	}

	if circuitRec.Permissions.RequirePushApproval {
		op := storage.CircuitOperation{
			CircuitID:   circuitID,
			Kind:        string(OperationPush),
			State:       string(OperationPending),
			ActorID:     actorID,
			LocalID:     localID,
			GID:         resolveResult.GID,
			Payload:     payload,
			Identifiers: toStorageIdentifiers(identifiers),
		}
		created, err := e.store.CreateOperation(ctx, op)
		if err != nil {
			return PushResult{}, err
		}
		return PushResult{
			GID:           resolveResult.GID,
			ResolveStatus: string(resolveResult.Status),
			OperationID:   created.ID,
			Pending:       true,
		}, nil
	}

	return e.completePush(ctx, circuitRec, resolveResult.GID, string(resolveResult.Status), identifiers, payload, actorID, localID)
}

func (e *Engine) completePush(ctx context.Context, circuitRec storage.Circuit, gid, resolveStatus string, identifiers []identity.Identifier, payload map[string]interface{}, actorID, localID string) (PushResult, error) {
	adapter, err := e.adapters.Resolve(ctx, circuitRec.Adapter.ConfigID)
	if err != nil {
		return PushResult{}, errors.AdapterError("resolve", err)
	}

	location, err := adapter.StoreItem(ctx, Entity{
		GID:         gid,
		Identifiers: identifierMaps(identifiers),
		Payload:     payload,
	})
	if err != nil {
		return PushResult{}, errors.AdapterError("store_item", err)
	}

	visibility := events.VisibilityCircuitOnly
	if circuitRec.Permissions.PublicVisibility {
		visibility = events.VisibilityPublic
	}
	if _, err := e.events.Create(ctx, events.Bundle{
		GID:        gid,
		Type:       events.TypePushedToCircuit,
		Source:     actorID,
		Visibility: visibility,
		Metadata: map[string]interface{}{
			"circuit_id": circuitRec.ID,
			"location":   location.PrimaryLocation,
		},
	}); err != nil {
		return PushResult{}, err
	}

	if _, err := e.store.AddStorageRecord(ctx, storage.StorageRecord{
		GID:             gid,
		AdapterKind:     circuitRec.Adapter.ConfigID,
		StorageLocation: location.PrimaryLocation,
		TriggeredBy:     actorID,
	}); err != nil {
		return PushResult{}, err
	}

	if localID != "" {
		if err := e.store.BindLocalID(ctx, localID, gid); err != nil {
			return PushResult{}, err
		}
	}

	return PushResult{GID: gid, ResolveStatus: resolveStatus, Location: &location}, nil
}

// PullFromCircuit is symmetric to push: permission Pull, returns the
// resolved entity and records a PulledFromCircuit event.
func (e *Engine) PullFromCircuit(ctx context.Context, gid, circuitID, actorID string) (storage.Item, error) {
	circuitRec, err := e.loadCircuit(ctx, circuitID)
	if err != nil {
		return storage.Item{}, err
	}
	circuit := fromStorageCircuit(circuitRec)

	if !HasPermission(circuit, actorID, PermissionPull) {
		return storage.Item{}, errors.Unauthorized("actor does not hold Pull permission on this circuit")
	}

	item, found, err := e.store.GetItemByGID(ctx, gid)
	if err != nil {
		return storage.Item{}, errors.Wrap(errors.KindBackendUnavailable, "load item", err)
	}
	if !found {
		return storage.Item{}, errors.NotFound("item", gid)
	}

	if _, err := e.events.Create(ctx, events.Bundle{
		GID:        gid,
		Type:       events.TypePulledFromCircuit,
		Source:     actorID,
		Visibility: events.VisibilityCircuitOnly,
		Metadata:   map[string]interface{}{"circuit_id": circuitID},
	}); err != nil {
		return storage.Item{}, err
	}

	return item, nil
}

// ApproveOperation transitions a Pending operation to Approved then
// Completed, running the push completion steps (completePush) for the
// operation's stored identifiers and payload; op.Kind is not consulted.
func (e *Engine) ApproveOperation(ctx context.Context, operationID, approverID string) (PushResult, error) {
	op, found, err := e.store.GetOperation(ctx, operationID)
	if err != nil {
		return PushResult{}, errors.Wrap(errors.KindBackendUnavailable, "load operation", err)
	}
	if !found {
		return PushResult{}, errors.NotFound("circuit_operation", operationID)
	}

	circuitRec, err := e.loadCircuit(ctx, op.CircuitID)
	if err != nil {
		return PushResult{}, err
	}
	circuit := fromStorageCircuit(circuitRec)

	if !HasPermission(circuit, approverID, PermissionManageMembers) {
		return PushResult{}, errors.Unauthorized("approver does not hold ManageMembers permission")
	}

	op.State = string(OperationApproved)
	if _, err := e.store.UpdateOperation(ctx, op); err != nil {
		return PushResult{}, err
	}

	result, err := e.completePush(ctx, circuitRec, op.GID, "ExistingItemEnriched", fromStorageIdentifiers(op.Identifiers), op.Payload, op.ActorID, op.LocalID)
	if err != nil {
		return PushResult{}, err
	}

	op.State = string(OperationCompleted)
	if _, err := e.store.UpdateOperation(ctx, op); err != nil {
		return PushResult{}, err
	}
	result.OperationID = op.ID
	return result, nil
}

// RequestToJoin records a join request. A public circuit with
// AutoApproveMembers skips the pending state entirely.
func (e *Engine) RequestToJoin(ctx context.Context, circuitID, userID string) (JoinRequest, error) {
	circuitRec, err := e.loadCircuit(ctx, circuitID)
	if err != nil {
		return JoinRequest{}, err
	}

	req := JoinRequest{ID: uuid.NewString(), UserID: userID, Status: JoinRequestPending, RequestedAt: time.Now().UTC()}

	if circuitRec.Permissions.PublicVisibility && circuitRec.Permissions.AutoApproveMembers {
		req.Status = JoinRequestApproved
		req.ResolvedAt = time.Now().UTC()
		circuitRec.Members = append(circuitRec.Members, storage.Member{UserID: userID, Role: string(RoleMember), JoinedAt: req.ResolvedAt})
	}

	circuitRec.JoinRequests = append(circuitRec.JoinRequests, storage.JoinRequest{
		ID: req.ID, UserID: req.UserID, Status: string(req.Status),
		RequestedAt: req.RequestedAt, ResolvedAt: req.ResolvedAt,
	})
	if _, err := e.store.UpdateCircuit(ctx, circuitRec); err != nil {
		return JoinRequest{}, err
	}
	return req, nil
}

// ApproveJoinRequest admits a pending requester as Member. Requires
// ManageMembers.
func (e *Engine) ApproveJoinRequest(ctx context.Context, circuitID, requestID, approverID string) error {
	circuitRec, err := e.loadCircuit(ctx, circuitID)
	if err != nil {
		return err
	}
	circuit := fromStorageCircuit(circuitRec)
	if !HasPermission(circuit, approverID, PermissionManageMembers) {
		return errors.Unauthorized("approver does not hold ManageMembers permission")
	}

	for i := range circuitRec.JoinRequests {
		if circuitRec.JoinRequests[i].ID == requestID {
			circuitRec.JoinRequests[i].Status = string(JoinRequestApproved)
			circuitRec.JoinRequests[i].ResolvedAt = time.Now().UTC()
			circuitRec.Members = append(circuitRec.Members, storage.Member{
				UserID: circuitRec.JoinRequests[i].UserID, Role: string(RoleMember), JoinedAt: time.Now().UTC(),
			})
			_, err := e.store.UpdateCircuit(ctx, circuitRec)
			return err
		}
	}
	return errors.NotFound("join_request", requestID)
}

// RejectJoinRequest marks a pending request Rejected. Requires ManageMembers.
func (e *Engine) RejectJoinRequest(ctx context.Context, circuitID, requestID, approverID string) error {
	circuitRec, err := e.loadCircuit(ctx, circuitID)
	if err != nil {
		return err
	}
	circuit := fromStorageCircuit(circuitRec)
	if !HasPermission(circuit, approverID, PermissionManageMembers) {
		return errors.Unauthorized("approver does not hold ManageMembers permission")
	}

	for i := range circuitRec.JoinRequests {
		if circuitRec.JoinRequests[i].ID == requestID {
			circuitRec.JoinRequests[i].Status = string(JoinRequestRejected)
			circuitRec.JoinRequests[i].ResolvedAt = time.Now().UTC()
			_, err := e.store.UpdateCircuit(ctx, circuitRec)
			return err
		}
	}
	return errors.NotFound("join_request", requestID)
}

func toStorageIdentifiers(identifiers []identity.Identifier) []storage.Identifier {
	out := make([]storage.Identifier, len(identifiers))
	for i, id := range identifiers {
		out[i] = storage.Identifier{Namespace: id.Namespace, Key: id.Key, Value: id.Value, Kind: string(id.Kind), Registry: id.Registry}
	}
	return out
}

func fromStorageIdentifiers(identifiers []storage.Identifier) []identity.Identifier {
	out := make([]identity.Identifier, len(identifiers))
	for i, id := range identifiers {
		out[i] = identity.Identifier{Namespace: id.Namespace, Key: id.Key, Value: id.Value, Kind: identity.Kind(id.Kind), Registry: id.Registry}
	}
	return out
}

func customRolesFromStorage(src map[string][]string) map[string][]Permission {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string][]Permission, len(src))
	for role, perms := range src {
		list := make([]Permission, len(perms))
		for i, p := range perms {
			list[i] = Permission(p)
		}
		out[role] = list
	}
	return out
}

func identifierMaps(identifiers []identity.Identifier) []map[string]string {
	out := make([]map[string]string, len(identifiers))
	for i, id := range identifiers {
		out[i] = map[string]string{"namespace": id.Namespace, "key": id.Key, "value": id.Value, "kind": string(id.Kind), "registry": id.Registry}
	}
	return out
}

func fromStorageCircuit(c storage.Circuit) Circuit {
	members := make([]Member, len(c.Members))
	for i, m := range c.Members {
		members[i] = Member{UserID: m.UserID, Role: Role(m.Role), CustomRole: m.CustomRole, JoinedAt: m.JoinedAt}
	}
	joinReqs := make([]JoinRequest, len(c.JoinRequests))
	for i, j := range c.JoinRequests {
		joinReqs[i] = JoinRequest{ID: j.ID, UserID: j.UserID, Status: JoinRequestStatus(j.Status), RequestedAt: j.RequestedAt, ResolvedAt: j.ResolvedAt}
	}
	return Circuit{
		ID:          c.ID,
		Name:        c.Name,
		OwnerID:     c.OwnerID,
		Members:     members,
		CustomRoles: customRolesFromStorage(c.CustomRoles),
		Permissions: Permissions{
			RequirePushApproval: c.Permissions.RequirePushApproval,
			RequirePullApproval: c.Permissions.RequirePullApproval,
			PublicVisibility:    c.Permissions.PublicVisibility,
			AllowedNamespaces:   c.Permissions.AllowedNamespaces,
			AutoApproveMembers:  c.Permissions.AutoApproveMembers,
		},
		DefaultNamespace:   c.Alias.DefaultNamespace,
		AutoApplyNamespace: c.Alias.AutoApplyNamespace,
		UseFingerprint:     c.Alias.UseFingerprint,
		RequiredCanonical:  c.Alias.RequiredCanonical,
		RequiredContextual: c.Alias.RequiredContextual,
		Adapter:            AdapterRef{ConfigID: c.Adapter.ConfigID, Sponsored: c.Adapter.Sponsored},
		JoinRequests:       joinReqs,
		Status:             c.Status,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}
