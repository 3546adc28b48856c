package join

import (
	"fmt"
	"sync"
	"time"
)

// DefinitionID is a unique identifier for a managed join definition.
type DefinitionID string

// ManagedDefinition pairs an activated JoinDefinition with the schema it was
// built from and the registry resolving its molecule names, so emissions and
// snapshots can be addressed by name over a remote surface (cmd/joind).
type ManagedDefinition struct {
	ID       DefinitionID
	Config   SchemaConfig
	Registry MoleculeRegistry
	JD       *JoinDefinition
	Warnings []string
}

// DefinitionManager manages multiple named join definitions, each isolated
// from the others. Replacing a definition never mutates the activated one:
// a fresh set of MoleculeIDs is declared from the schema document and a new
// JoinDefinition is activated, then swapped in while the old one is shut
// down and released.
type DefinitionManager struct {
	mu   sync.RWMutex
	defs map[DefinitionID]*ManagedDefinition

	logger      Logger
	notifier    *NotificationManager
	notifierIDs []string
}

// NewDefinitionManager creates a new definition manager.
func NewDefinitionManager() *DefinitionManager {
	return NewDefinitionManagerWithLogger(NewNoOpLogger())
}

// NewDefinitionManagerWithLogger creates a definition manager that activates
// every definition with the given logger.
func NewDefinitionManagerWithLogger(logger Logger) *DefinitionManager {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	return &DefinitionManager{
		defs:   make(map[DefinitionID]*ManagedDefinition),
		logger: logger,
	}
}

// SetNotifications attaches a NotificationManager that every subsequently
// applied definition will publish reaction-fired events to.
func (dm *DefinitionManager) SetNotifications(mgr *NotificationManager, notifierIDs ...string) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.notifier = mgr
	dm.notifierIDs = notifierIDs
}

// Apply activates cfg under the given ID, creating the definition or
// replacing an existing one. The schema document is the source of truth for
// molecule identity: every molecule it declares gets a fresh MoleculeID, so
// a replacement never trips the single-binding invariant. The previous
// definition, if any, is shut down and its bindings released only after the
// replacement activated successfully.
func (dm *DefinitionManager) Apply(id DefinitionID, cfg SchemaConfig) (*ManagedDefinition, WarningsAndErrors, error) {
	reg := DeclareAll(cfg)
	reactions, err := BuildFromConfig(cfg, reg)
	if err != nil {
		return nil, WarningsAndErrors{}, err
	}

	dm.mu.RLock()
	notifier, notifierIDs := dm.notifier, dm.notifierIDs
	dm.mu.RUnlock()

	opts := []ActivateOption{WithName(string(id)), WithLogger(dm.logger)}
	if notifier != nil {
		opts = append(opts, WithNotifications(notifier, notifierIDs...))
	}
	jd, wae, err := Activate(reactions, opts...)
	if err != nil {
		return nil, wae, err
	}

	md := &ManagedDefinition{
		ID:       id,
		Config:   cfg,
		Registry: reg,
		JD:       jd,
		Warnings: wae.Warnings,
	}

	dm.mu.Lock()
	old := dm.defs[id]
	dm.defs[id] = md
	dm.mu.Unlock()

	if old != nil {
		old.JD.release()
		old.JD.ShutdownNow()
		dm.logger.Infof("join: definition %s replaced (schema %q)", id, cfg.Name)
	} else {
		dm.logger.Infof("join: definition %s created (schema %q)", id, cfg.Name)
	}
	return md, wae, nil
}

// Get retrieves a managed definition by ID.
func (dm *DefinitionManager) Get(id DefinitionID) (*ManagedDefinition, bool) {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	md, exists := dm.defs[id]
	return md, exists
}

// Delete shuts down and removes a definition by ID. Returns an error if the
// definition doesn't exist.
func (dm *DefinitionManager) Delete(id DefinitionID) error {
	dm.mu.Lock()
	md, exists := dm.defs[id]
	if !exists {
		dm.mu.Unlock()
		return fmt.Errorf("definition with id %s does not exist", id)
	}
	delete(dm.defs, id)
	dm.mu.Unlock()

	md.JD.release()
	md.JD.ShutdownNow()
	return nil
}

// List returns all managed definition IDs.
func (dm *DefinitionManager) List() []DefinitionID {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	ids := make([]DefinitionID, 0, len(dm.defs))
	for id := range dm.defs {
		ids = append(ids, id)
	}
	return ids
}

// Emit emits a non-blocking molecule into a managed definition, addressing
// the molecule by its declared name.
func (dm *DefinitionManager) Emit(id DefinitionID, molecule string, payload any) error {
	md, exists := dm.Get(id)
	if !exists {
		return fmt.Errorf("definition with id %s does not exist", id)
	}
	mid, ok := md.Registry[molecule]
	if !ok {
		return fmt.Errorf("definition %s declares no molecule %q", id, molecule)
	}
	if mid.Blocking {
		return fmt.Errorf("molecule %q is blocking; use EmitBlocking", molecule)
	}
	return Emit(mid, payload, nil)
}

// EmitBlocking emits a blocking molecule by name and waits for its reply,
// the timeout, or a protocol fault. Timeout semantics match
// BlockingInjector.Emit: negative waits forever, zero probes one
// synchronous match attempt, positive waits until the deadline.
func (dm *DefinitionManager) EmitBlocking(id DefinitionID, molecule string, payload any, timeout time.Duration) (any, bool, error) {
	md, exists := dm.Get(id)
	if !exists {
		return nil, false, fmt.Errorf("definition with id %s does not exist", id)
	}
	mid, ok := md.Registry[molecule]
	if !ok {
		return nil, false, fmt.Errorf("definition %s declares no molecule %q", id, molecule)
	}
	if !mid.Blocking {
		return nil, false, fmt.Errorf("molecule %q is not blocking; use Emit", molecule)
	}
	jd := boundTo(mid)
	if jd == nil {
		return nil, false, &ErrNotBound{ID: mid}
	}
	return emitBlocking(jd, mid, payload, timeout)
}

// Soup returns a definition's log_soup diagnostic string.
func (dm *DefinitionManager) Soup(id DefinitionID) (string, error) {
	md, exists := dm.Get(id)
	if !exists {
		return "", fmt.Errorf("definition with id %s does not exist", id)
	}
	return md.JD.LogSoup(), nil
}

// Snapshot captures a definition's current bag contents.
func (dm *DefinitionManager) Snapshot(id DefinitionID, timestamp int64) (Snapshot, error) {
	md, exists := dm.Get(id)
	if !exists {
		return Snapshot{}, fmt.Errorf("definition with id %s does not exist", id)
	}
	return md.JD.Snapshot(timestamp), nil
}

// Restore validates snap against a definition's registry and re-inserts its
// values into the definition's bag.
func (dm *DefinitionManager) Restore(id DefinitionID, snap Snapshot) error {
	md, exists := dm.Get(id)
	if !exists {
		return fmt.Errorf("definition with id %s does not exist", id)
	}
	if err := ValidateSnapshot(snap, md.Registry); err != nil {
		return err
	}
	return md.JD.Restore(snap, md.Registry)
}

// Close shuts down every managed definition.
func (dm *DefinitionManager) Close() {
	dm.mu.Lock()
	defs := dm.defs
	dm.defs = make(map[DefinitionID]*ManagedDefinition)
	dm.mu.Unlock()

	for _, md := range defs {
		md.JD.release()
		md.JD.ShutdownNow()
	}
}
