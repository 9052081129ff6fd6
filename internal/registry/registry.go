package registry

import (
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/agentworld/runtime/internal/domain"
	"github.com/agentworld/runtime/pkg/apperr"
)

// ModuleRecord is the registry's live view of one module family: the
// currently-applied artifact, its governance status and whether it is active.
type ModuleRecord struct {
	ModuleID domain.ModuleID
	Artifact domain.ModuleArtifact
	Status   domain.GovernanceStatus
	Active   bool
}

// Registry is the in-memory module table, filled by Register/Upgrade and the
// activation calls as governance changes are applied. Journal replay on
// startup does not repopulate it, so a restarted process begins with an
// empty table. It is safe
// for concurrent read access from pipeline stages; mutation only happens on
// the single kernel goroutine applying journal events.
type Registry struct {
	mu      sync.RWMutex
	modules map[domain.ModuleID]*ModuleRecord
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{modules: make(map[domain.ModuleID]*ModuleRecord)}
}

// Register inserts a brand-new module family. It fails if the ID is already
// known (use Upgrade to replace an artifact).
func (r *Registry) Register(rec ModuleRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modules[rec.ModuleID]; exists {
		return apperr.Newf(apperr.Validation, "registry.already_registered", "module %s already registered", rec.ModuleID)
	}
	r.modules[rec.ModuleID] = &rec
	return nil
}

// ActiveVersion returns id's currently active artifact version, for
// validating a proposed upgrade's from_version at propose time before the
// registry itself is touched.
func (r *Registry) ActiveVersion(id domain.ModuleID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.modules[id]
	if !ok {
		return "", false
	}
	return rec.Artifact.Version, true
}

// ValidateUpgrade enforces spec §4.3's two hard upgrade rules: fromVersion
// must name the module's currently active version, and toVersion must
// compare strictly greater than it under semantic versioning. The admin
// API's propose handler calls it for every upgrade entry, and Upgrade repeats
// the same check when the entry is applied, since the active version (and
// therefore validity) can change between the two.
func (r *Registry) ValidateUpgrade(id domain.ModuleID, fromVersion, toVersion string) error {
	current, ok := r.ActiveVersion(id)
	if !ok {
		return apperr.Newf(apperr.Validation, "registry.unknown_module", "module %s not registered", id)
	}
	return validateVersionOrder(id, current, fromVersion, toVersion)
}

// Upgrade replaces the artifact of an existing module family, preserving
// its active/status flags until a subsequent Activate/governance event
// changes them. fromVersion/toVersion are re-checked here (not just at
// propose time) since the registry may have moved between the two calls.
func (r *Registry) Upgrade(id domain.ModuleID, fromVersion, toVersion string, artifact domain.ModuleArtifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.modules[id]
	if !ok {
		return apperr.Newf(apperr.Validation, "registry.unknown_module", "module %s not registered", id)
	}
	if err := validateVersionOrder(id, rec.Artifact.Version, fromVersion, toVersion); err != nil {
		return err
	}
	rec.Artifact = artifact
	return nil
}

// validateVersionOrder checks fromVersion == current and toVersion > from,
// using Masterminds/semver for the comparison and falling back to a strict
// string-inequality check if either version string does not parse as
// semver (module authors are not required to use semver, but when they do
// the ordering check is numeric, not lexical).
func validateVersionOrder(id domain.ModuleID, current, fromVersion, toVersion string) error {
	if fromVersion != "" && fromVersion != current {
		return apperr.Newf(apperr.Validation, "registry.upgrade_from_version_mismatch",
			"module %s active version %s does not match upgrade from_version %s", id, current, fromVersion)
	}
	if toVersion == "" {
		return nil
	}
	base := fromVersion
	if base == "" {
		base = current
	}
	fromSem, fromErr := semver.NewVersion(base)
	toSem, toErr := semver.NewVersion(toVersion)
	if fromErr == nil && toErr == nil {
		if toSem.Compare(fromSem) <= 0 {
			return apperr.Newf(apperr.Validation, "registry.upgrade_not_forward",
				"upgrade to_version %s must be greater than %s", toVersion, base)
		}
		return nil
	}
	if toVersion <= base {
		return apperr.Newf(apperr.Validation, "registry.upgrade_not_forward",
			"upgrade to_version %s must be greater than %s", toVersion, base)
	}
	return nil
}

// Activate/Deactivate flip whether a module's subscriptions are eligible to
// run; a deactivated module stays registered so it can be reactivated
// without losing its governance history.
func (r *Registry) Activate(id domain.ModuleID) error {
	return r.setActive(id, true)
}

func (r *Registry) Deactivate(id domain.ModuleID) error {
	return r.setActive(id, false)
}

func (r *Registry) setActive(id domain.ModuleID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.modules[id]
	if !ok {
		return apperr.Newf(apperr.Validation, "registry.unknown_module", "module %s not registered", id)
	}
	rec.Active = active
	return nil
}

// Get returns a copy of the module record for id.
func (r *Registry) Get(id domain.ModuleID) (ModuleRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.modules[id]
	if !ok {
		return ModuleRecord{}, false
	}
	return *rec, true
}

// ActiveSubscribers returns the IDs of active modules subscribed to stage
// whose filter matches subject, in lexicographic ModuleID order — the
// ordering spec §4.5 requires so replay is deterministic regardless of map
// iteration order.
func (r *Registry) ActiveSubscribers(stage domain.SubscriptionStage, subject map[string]any) ([]domain.ModuleID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []domain.ModuleID
	for id, rec := range r.modules {
		if !rec.Active {
			continue
		}
		for _, sub := range rec.Artifact.Manifest.Subscriptions {
			if sub.Stage != stage {
				continue
			}
			ok, err := Match(sub.Filter, subject)
			if err != nil {
				return nil, apperr.Wrap(err, "evaluating subscription filter")
			}
			if ok {
				matched = append(matched, id)
				break
			}
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i] < matched[j] })
	return matched, nil
}
