package join

import (
	"sync"
)

// registry enforces the single-binding invariant: a process-wide map from
// MoleculeID to JoinDefinition, mutated only under one global lock taken at
// activation.
var registry struct {
	mu   sync.Mutex
	byID map[*MoleculeID]*JoinDefinition

	// consumers indexes every activated reaction by the MoleculeIDs it
	// consumes, across all JoinDefinitions. The possible-deadlock check
	// consults it read-only for reactions activated before the current
	// ones, since that property is inherently cross-definition.
	consumers map[*MoleculeID][]*ReactionDescriptor
}

func init() {
	registry.byID = make(map[*MoleculeID]*JoinDefinition)
	registry.consumers = make(map[*MoleculeID][]*ReactionDescriptor)
}

// JoinDefinition is the binding unit: it owns a Bag, a frozen reaction
// list, two pool references, and the mutex serializing its decision step.
type JoinDefinition struct {
	mu  sync.Mutex
	bag *Bag

	reactions []*ReactionDescriptor
	boundIDs  []*MoleculeID
	nextStart int // rotating start index over reactions, for fairness

	decisionPool Pool
	reactionPool Pool

	logger   Logger
	logLevel int

	name string // used in diagnostic "Join{...}" signatures

	notifier    *NotificationManager
	notifierIDs []string
}

// ActivateOption configures Activate.
type ActivateOption func(*activateOptions)

type activateOptions struct {
	decisionPool Pool
	reactionPool Pool
	logger       Logger
	logLevel     int
	name         string
	notifier     *NotificationManager
	notifierIDs  []string
}

// WithDecisionPool overrides the default decision pool.
func WithDecisionPool(p Pool) ActivateOption {
	return func(o *activateOptions) { o.decisionPool = p }
}

// WithReactionPool overrides the default reaction pool.
func WithReactionPool(p Pool) ActivateOption {
	return func(o *activateOptions) { o.reactionPool = p }
}

// WithLogger injects a Logger; defaults to a no-op logger.
func WithLogger(l Logger) ActivateOption {
	return func(o *activateOptions) { o.logger = l }
}

// WithName sets the diagnostic name used in Join{...} signatures.
func WithName(name string) ActivateOption {
	return func(o *activateOptions) { o.name = name }
}

// WithNotifications attaches a NotificationManager that receives a
// NotificationEvent for every reaction firing, dispatched to the given
// notifier IDs.
func WithNotifications(mgr *NotificationManager, notifierIDs ...string) ActivateOption {
	return func(o *activateOptions) {
		o.notifier = mgr
		o.notifierIDs = notifierIDs
	}
}

// WarningsAndErrors is the static analyzer's report for one activation.
type WarningsAndErrors struct {
	Warnings []string
	Errors   []string
	Site     string
}

// HasErrors reports whether activation was refused.
func (w WarningsAndErrors) HasErrors() bool { return len(w.Errors) > 0 }

// Activate binds reactions to a fresh JoinDefinition: it derives the bound
// MoleculeIDs, fails with ErrAlreadyBound if any is already owned
// elsewhere, runs the static analyzer, and, absent fatal errors, marks the
// molecules bound and publishes the definition.
func Activate(reactions []*ReactionDescriptor, opts ...ActivateOption) (*JoinDefinition, WarningsAndErrors, error) {
	o := &activateOptions{logLevel: 1}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = NewNoOpLogger()
	}

	if err := validateShape(reactions); err != nil {
		return nil, WarningsAndErrors{}, err
	}

	boundIDs := collectBoundIDs(reactions)

	registry.mu.Lock()
	for _, id := range boundIDs {
		if _, ok := registry.byID[id]; ok {
			registry.mu.Unlock()
			return nil, WarningsAndErrors{}, &ErrAlreadyBound{ID: id}
		}
	}
	priorConsumers := snapshotConsumers()
	registry.mu.Unlock()

	wae := RunStaticAnalyzer(reactions, signatureOf(reactions), priorConsumers)
	if len(wae.Errors) > 0 {
		return nil, wae, &StaticAnalysisError{Messages: wae.Errors}
	}

	// Pools are created only after every check has passed, so a refused
	// activation leaves no worker goroutines behind.
	ownsPools := false
	if o.decisionPool == nil {
		// Decision passes are short and CPU-bound; a single worker keeps
		// them serialized while the deep queue absorbs emission bursts.
		o.decisionPool = NewFixedPool(1, 4096)
		ownsPools = true
	}
	if o.reactionPool == nil {
		o.reactionPool = NewBlockingAwarePool(4)
		ownsPools = true
	}

	jd := &JoinDefinition{
		bag:          NewBag(),
		reactions:    reactions,
		boundIDs:     boundIDs,
		decisionPool: o.decisionPool,
		reactionPool: o.reactionPool,
		logger:       o.logger,
		logLevel:     o.logLevel,
		name:         o.name,
		notifier:     o.notifier,
		notifierIDs:  o.notifierIDs,
	}

	registry.mu.Lock()
	for _, id := range jd.boundIDs {
		if existing, ok := registry.byID[id]; ok && existing != jd {
			registry.mu.Unlock()
			if ownsPools {
				jd.ShutdownNow()
			}
			return nil, wae, &ErrAlreadyBound{ID: id}
		}
	}
	for _, id := range jd.boundIDs {
		registry.byID[id] = jd
	}
	for _, r := range reactions {
		for _, in := range r.Inputs {
			registry.consumers[in.ID] = append(registry.consumers[in.ID], r)
		}
	}
	registry.mu.Unlock()

	if jd.logLevel >= 1 {
		for _, w := range wae.Warnings {
			jd.logger.Warnf("%s", w)
		}
	}

	return jd, wae, nil
}

func collectBoundIDs(reactions []*ReactionDescriptor) []*MoleculeID {
	seen := make(map[*MoleculeID]bool)
	out := make([]*MoleculeID, 0)
	for _, r := range reactions {
		for _, in := range r.Inputs {
			if !seen[in.ID] {
				seen[in.ID] = true
				out = append(out, in.ID)
			}
		}
	}
	return out
}

// signatureOf returns the alphabetically-sorted reaction-signature list
// used in "Join{...}" diagnostics.
func signatureOf(reactions []*ReactionDescriptor) string {
	sigs := make([]string, len(reactions))
	for i, r := range reactions {
		sigs[i] = r.signature()
	}
	return joinSorted(sigs, "; ")
}

func (jd *JoinDefinition) signature() string {
	return signatureOf(jd.reactions)
}

// LogSoup renders the diagnostic string
// "Join{<input-signature>; ...}\n<molecule listing>".
func (jd *JoinDefinition) LogSoup() string {
	jd.mu.Lock()
	defer jd.mu.Unlock()
	return "Join{" + jd.signature() + "}\n" + jd.bag.Snapshot()
}

// SetLogLevel records the definition's log level. The level is read only
// during Activate, which logs analyzer warnings when it is at least 1, so
// setting it afterwards does not change what the definition logs.
func (jd *JoinDefinition) SetLogLevel(n int) {
	jd.mu.Lock()
	defer jd.mu.Unlock()
	jd.logLevel = n
}

// snapshotConsumers copies the current consumers index. Must be called
// with registry.mu held.
func snapshotConsumers() map[*MoleculeID][]*ReactionDescriptor {
	out := make(map[*MoleculeID][]*ReactionDescriptor, len(registry.consumers))
	for id, rs := range registry.consumers {
		cp := make([]*ReactionDescriptor, len(rs))
		copy(cp, rs)
		out[id] = cp
	}
	return out
}

// boundTo returns the JoinDefinition id is bound to, or nil.
func boundTo(id *MoleculeID) *JoinDefinition {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	return registry.byID[id]
}

// Emit inserts val for id into the owning JoinDefinition's bag and triggers
// a decision pass. Cross-definition emission is legal: a reaction bound to
// one JoinDefinition may emit into another, and the emission is routed to
// that definition's own scheduler on its own decision pool.
func Emit(id *MoleculeID, value any, reply *ReplySlot) error {
	jd := boundTo(id)
	if jd == nil {
		return &ErrNotBound{ID: id}
	}
	return jd.submitEmit(MolVal{ID: id, Value: value, Reply: reply})
}

func (jd *JoinDefinition) submitEmit(val MolVal) error {
	return jd.decisionPool.Submit(func() {
		jd.runDecisionPass(&val)
	})
}

// replyPendingInBag reports whether the value carrying slot is still
// pending in the bag, used by zero-timeout blocking probes to decide
// whether anything could fire on it synchronously.
func (jd *JoinDefinition) replyPendingInBag(slot *ReplySlot) bool {
	jd.mu.Lock()
	defer jd.mu.Unlock()
	return jd.bag.ContainsReply(slot)
}

// MarkIdle lets a reaction body wrapping synchronous I/O or a recursive
// blocking emit temporarily release its reaction-pool slot.
func (jd *JoinDefinition) MarkIdle(fn func()) {
	jd.reactionPool.MarkIdle(fn)
}

// ShutdownNow stops both of the definition's pools; in-flight reactions are
// allowed to drain.
func (jd *JoinDefinition) ShutdownNow() {
	jd.decisionPool.ShutdownNow()
	jd.reactionPool.ShutdownNow()
}

// release removes jd's bindings from the process-wide registry, ending its
// molecules' bound lifetime: subsequent emissions fail with ErrNotBound.
// Used by DefinitionManager when a definition is deleted or hot-swapped;
// the single-binding invariant holds because a replacement definition is
// always activated over freshly declared MoleculeIDs, never the released
// ones.
func (jd *JoinDefinition) release() {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	for _, id := range jd.boundIDs {
		if registry.byID[id] == jd {
			delete(registry.byID, id)
			delete(registry.consumers, id)
		}
	}
}
