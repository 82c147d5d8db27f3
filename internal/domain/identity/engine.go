package identity

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/defarm/traceability-core/infrastructure/errors"
	"github.com/defarm/traceability-core/internal/storage"
)

// Engine resolves identifier bundles to GIDs. It depends only on the
// storage contract, never on a concrete backend.
type Engine struct {
	store storage.Store
	log   *logrus.Entry
}

// New builds an Engine over the given storage contract.
func New(store storage.Store) *Engine {
	return &Engine{store: store, log: logrus.WithField("component", "identity-engine")}
}

// Resolve runs the algorithm in spec.md §4.2: namespace policy, canonical
// probe, fingerprint probe, required-identifier check, then either mints a
// new entity or enrichment-merges an existing one.
func (e *Engine) Resolve(ctx context.Context, b Bundle) (Result, error) {
	identifiers, err := applyNamespacePolicy(b.Identifiers, b.Alias)
	if err != nil {
		return Result{}, err
	}

	candidate, conflicting, err := e.canonicalProbe(ctx, identifiers)
	if err != nil {
		return Result{}, err
	}
	if len(conflicting) > 1 {
		return Result{Status: StatusConflict, ConflictingGIDs: conflicting}, errors.ConflictingGIDs(conflicting)
	}

	var fingerprint string
	if candidate == "" && b.Alias.UseFingerprint {
		fingerprint = ComputeFingerprint(identifiers, b.Payload)
		gid, found, err := e.store.GetGIDByFingerprint(ctx, fingerprint, b.CircuitID)
		if err != nil {
			return Result{}, errors.Wrap(errors.KindBackendUnavailable, "fingerprint lookup", err)
		}
		if found {
			candidate = gid
		}
	}

	if err := checkRequiredIdentifiers(identifiers, b.Alias); err != nil {
		return Result{}, err
	}

	if candidate == "" {
		return e.createNew(ctx, identifiers, b.Payload, fingerprint, b.CircuitID)
	}
	return e.enrichExisting(ctx, candidate, identifiers, b.Payload)
}

func applyNamespacePolicy(identifiers []Identifier, alias AliasConfig) ([]Identifier, error) {
	out := make([]Identifier, len(identifiers))
	copy(out, identifiers)

	if alias.AutoApplyNamespace && alias.DefaultNamespace != "" {
		for i := range out {
			if out[i].Namespace == "" {
				out[i].Namespace = alias.DefaultNamespace
			}
		}
	}

	if len(alias.AllowedNamespaces) == 0 {
		return out, nil
	}
	allowed := make(map[string]bool, len(alias.AllowedNamespaces))
	for _, ns := range alias.AllowedNamespaces {
		allowed[ns] = true
	}
	for _, id := range out {
		if !allowed[id.Namespace] {
			return nil, errors.Validation("namespace", "namespace '"+id.Namespace+"' not allowed for this circuit")
		}
	}
	return out, nil
}

func (e *Engine) canonicalProbe(ctx context.Context, identifiers []Identifier) (candidate string, conflicting []string, err error) {
	seen := make(map[string]bool)
	for _, id := range identifiers {
		if id.Kind != KindCanonical {
			continue
		}
		gid, found, lookupErr := e.store.GetGIDByCanonical(ctx, id.Namespace, id.Registry, id.Value)
		if lookupErr != nil {
			return "", nil, errors.Wrap(errors.KindBackendUnavailable, "canonical lookup", lookupErr)
		}
		if !found {
			continue
		}
		if !seen[gid] {
			seen[gid] = true
			conflicting = append(conflicting, gid)
		}
	}
	sort.Strings(conflicting)
	if len(conflicting) == 1 {
		candidate = conflicting[0]
	}
	return candidate, conflicting, nil
}

func checkRequiredIdentifiers(identifiers []Identifier, alias AliasConfig) error {
	haveCanonical := make(map[string]bool)
	haveContextual := make(map[string]bool)
	for _, id := range identifiers {
		if id.Kind == KindCanonical {
			haveCanonical[id.Key] = true
		} else {
			haveContextual[id.Key] = true
		}
	}
	for _, key := range alias.RequiredCanonical {
		if !haveCanonical[key] {
			return errors.Validation("identifiers", "missing required canonical identifier '"+key+"'")
		}
	}
	for _, key := range alias.RequiredContextual {
		if !haveContextual[key] {
			return errors.Validation("identifiers", "missing required contextual identifier '"+key+"'")
		}
	}
	return nil
}

func (e *Engine) createNew(ctx context.Context, identifiers []Identifier, payload map[string]interface{}, fingerprint, circuitID string) (Result, error) {
	gid := uuid.NewString()

	item := storage.Item{
		GID:         gid,
		Identifiers: toStorageIdentifiers(identifiers),
		Enrichment:  payload,
		Status:      string(StatusActive),
		Confidence:  1.0,
		Fingerprint: fingerprint,
	}
	if _, err := e.store.CreateItem(ctx, item); err != nil {
		return Result{}, err
	}

	for _, id := range identifiers {
		if id.Kind != KindCanonical {
			continue
		}
		if err := e.store.BindCanonical(ctx, id.Namespace, id.Registry, id.Value, gid); err != nil {
			return Result{}, err
		}
	}
	if fingerprint != "" {
		if err := e.store.BindFingerprint(ctx, fingerprint, circuitID, gid); err != nil {
			return Result{}, err
		}
	}

	e.log.WithField("gid", gid).Info("created new item")
	return Result{GID: gid, Status: StatusNewItemCreated}, nil
}

func (e *Engine) enrichExisting(ctx context.Context, gid string, identifiers []Identifier, payload map[string]interface{}) (Result, error) {
	item, found, err := e.store.GetItemByGID(ctx, gid)
	if err != nil {
		return Result{}, errors.Wrap(errors.KindBackendUnavailable, "load item", err)
	}
	if !found {
		return Result{}, errors.NotFound("item", gid)
	}

	item.Identifiers = unionIdentifiers(item.Identifiers, toStorageIdentifiers(identifiers))

	if item.Enrichment == nil {
		item.Enrichment = make(map[string]interface{})
	}
	var addedKeys, conflicts []string
	for k, v := range payload {
		if _, exists := item.Enrichment[k]; exists {
			conflicts = append(conflicts, k)
			continue
		}
		item.Enrichment[k] = v
		addedKeys = append(addedKeys, k)
	}
	sort.Strings(addedKeys)
	sort.Strings(conflicts)

	if _, err := e.store.UpdateItem(ctx, item); err != nil {
		return Result{}, err
	}

	for _, id := range identifiers {
		if id.Kind != KindCanonical {
			continue
		}
		if err := e.store.BindCanonical(ctx, id.Namespace, id.Registry, id.Value, gid); err != nil {
			return Result{}, err
		}
	}

	if len(conflicts) > 0 {
		e.log.WithField("gid", gid).WithField("keys", strings.Join(conflicts, ",")).Warn("enrichment_conflict")
	}

	return Result{
		GID:                 gid,
		Status:              StatusExistingItemEnriched,
		EnrichedKeys:        addedKeys,
		EnrichmentConflicts: conflicts,
	}, nil
}

func toStorageIdentifiers(identifiers []Identifier) []storage.Identifier {
	out := make([]storage.Identifier, len(identifiers))
	for i, id := range identifiers {
		out[i] = storage.Identifier{
			Namespace: id.Namespace,
			Key:       id.Key,
			Value:     id.Value,
			Kind:      string(id.Kind),
			Registry:  id.Registry,
		}
	}
	return out
}

func unionIdentifiers(existing, incoming []storage.Identifier) []storage.Identifier {
	seen := make(map[string]bool, len(existing))
	key := func(id storage.Identifier) string {
		return id.Namespace + "|" + id.Key + "|" + id.Value + "|" + id.Kind
	}
	for _, id := range existing {
		seen[key(id)] = true
	}
	result := append([]storage.Identifier(nil), existing...)
	for _, id := range incoming {
		k := key(id)
		if !seen[k] {
			seen[k] = true
			result = append(result, id)
		}
	}
	return result
}
