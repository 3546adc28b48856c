package join

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// WhereConfig expresses simple comparison conditions on a bound value's
// payload fields, keyed by field name.
type WhereConfig map[string]FieldCondition

// FieldCondition is one "field op value" test.
type FieldCondition struct {
	Op    string `json:"op" yaml:"op"`
	Value any    `json:"value" yaml:"value"`
}

// InputConfig names one reaction input: the molecule it binds to, the
// variable name it's bound under for Effects/guards, and an optional
// equality/comparison filter on that binding.
type InputConfig struct {
	Molecule string      `json:"molecule" yaml:"molecule"`
	As       string      `json:"as" yaml:"as"`
	Where    WhereConfig `json:"where,omitempty" yaml:"where,omitempty"`
}

// EffectConfig is one declarative output action of a config-built reaction.
// There is no consume or update action: reactions always consume their
// whole input tuple, and molecules are immutable values rather than
// mutable records.
type EffectConfig struct {
	Emit    string         `json:"emit,omitempty" yaml:"emit,omitempty"`
	Payload map[string]any `json:"payload,omitempty" yaml:"payload,omitempty"`
	// From names a bound input ("as" name) whose value is forwarded
	// verbatim as the emitted payload, used when the effect is a plain
	// pass-through rather than a templated payload.
	From string `json:"from,omitempty" yaml:"from,omitempty"`
	// Reply names the bound input ("as" name) of a blocking molecule's
	// reply handle; when set, Emit is ignored and the effect instead
	// replies to that handle with the value resolved from From or Payload.
	Reply string `json:"reply,omitempty" yaml:"reply,omitempty"`
}

// ReactionConfig is one declaratively-defined reaction: a list of inputs
// to join on, optional per-input Where clauses, and a list of effects to
// run once all inputs are matched.
type ReactionConfig struct {
	ID      string         `json:"id" yaml:"id"`
	Name    string         `json:"name" yaml:"name"`
	Inputs  []InputConfig  `json:"inputs" yaml:"inputs"`
	Effects []EffectConfig `json:"effects" yaml:"effects"`
	Retry   bool           `json:"retry,omitempty" yaml:"retry,omitempty"`
}

// MoleculeConfig declares one molecule a schema document introduces. There
// is no payload schema beyond the molecule's own value.
type MoleculeConfig struct {
	Name     string `json:"name" yaml:"name"`
	Blocking bool   `json:"blocking,omitempty" yaml:"blocking,omitempty"`
}

// SchemaConfig is a named collection of molecule declarations and
// ReactionConfigs. Molecules can also be declared ahead of time in Go code
// and passed via their own MoleculeRegistry to BuildFromConfig; DeclareAll
// covers the case of a schema document that is fully self-contained (e.g.
// one read from a hot-reloaded file by joind).
type SchemaConfig struct {
	Name      string           `json:"name" yaml:"name"`
	Molecules []MoleculeConfig `json:"molecules,omitempty" yaml:"molecules,omitempty"`
	Reactions []ReactionConfig `json:"reactions" yaml:"reactions"`
}

// ParseSchemaDocument decodes a schema document in the given format ("json"
// or "yaml") and rejects documents declaring no reactions.
func ParseSchemaDocument(data []byte, format string) (SchemaConfig, error) {
	var cfg SchemaConfig
	switch format {
	case "yaml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return SchemaConfig{}, err
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return SchemaConfig{}, err
		}
	}
	if len(cfg.Reactions) == 0 {
		return SchemaConfig{}, fmt.Errorf("schema declares no reactions")
	}
	return cfg, nil
}

// DeclareAll declares every molecule cfg.Molecules lists and returns a
// registry covering them, for callers that want the schema document itself
// to be the single source of truth for molecule identity.
func DeclareAll(cfg SchemaConfig) MoleculeRegistry {
	reg := make(MoleculeRegistry, len(cfg.Molecules))
	for _, mc := range cfg.Molecules {
		reg[mc.Name] = newMoleculeID(mc.Name, mc.Blocking)
	}
	return reg
}

// MoleculeRegistry resolves a declared molecule's name to its MoleculeID,
// so BuildFromConfig can reference molecules declared in Go code by name.
type MoleculeRegistry map[string]*MoleculeID

// NewMoleculeRegistry builds a registry out of already-declared injectors'
// IDs, keyed by MoleculeID.Name.
func NewMoleculeRegistry(ids ...*MoleculeID) MoleculeRegistry {
	reg := make(MoleculeRegistry, len(ids))
	for _, id := range ids {
		reg[id.Name] = id
	}
	return reg
}

// BuildFromConfig compiles a SchemaConfig into a []*ReactionDescriptor
// against the given MoleculeRegistry, the config-driven counterpart to the
// Go ReactionBuilder API.
func BuildFromConfig(cfg SchemaConfig, reg MoleculeRegistry) ([]*ReactionDescriptor, error) {
	out := make([]*ReactionDescriptor, 0, len(cfg.Reactions))
	for _, rc := range cfg.Reactions {
		rc := rc
		desc, err := buildReactionFromConfig(rc, reg)
		if err != nil {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("schema %q, reaction %q: %s", cfg.Name, rc.ID, err)}
		}
		out = append(out, desc)
	}
	return out, nil
}

func buildReactionFromConfig(rc ReactionConfig, reg MoleculeRegistry) (*ReactionDescriptor, error) {
	if len(rc.Inputs) == 0 {
		return nil, fmt.Errorf("no inputs declared")
	}

	inputs := make([]InputPattern, len(rc.Inputs))
	asNames := make([]string, len(rc.Inputs))
	for i, ic := range rc.Inputs {
		id, ok := reg[ic.Molecule]
		if !ok {
			return nil, fmt.Errorf("input %d references undeclared molecule %q", i, ic.Molecule)
		}
		var m Matcher
		if id.Blocking {
			// A blocking molecule is always matched with a reply binder;
			// any Where clause on it is ignored.
			m = ReplyBinder{}
		} else {
			var err error
			m, err = matcherFromWhere(ic.Where)
			if err != nil {
				return nil, fmt.Errorf("input %d (%s): %w", i, ic.Molecule, err)
			}
		}
		inputs[i] = InputPattern{ID: id, Matcher: m}
		asNames[i] = ic.As
	}

	outputs := make([]OutputPattern, 0, len(rc.Effects))
	for _, ec := range rc.Effects {
		if ec.Reply != "" {
			continue // replying settles an already-consumed blocking input, not a new output
		}
		id, ok := reg[ec.Emit]
		if !ok {
			return nil, fmt.Errorf("effect references undeclared molecule %q", ec.Emit)
		}
		if id.Blocking {
			// An effect emission carries no reply slot, so a blocking
			// molecule emitted this way could never be consumed.
			return nil, fmt.Errorf("effect cannot emit blocking molecule %q", ec.Emit)
		}
		outputs = append(outputs, EmitVar(id))
	}

	effects := rc.Effects
	body := func(b Bindings) {
		bound := make(map[string]any, len(asNames))
		for i, name := range asNames {
			if name != "" {
				bound[name] = b[i]
			}
		}
		for _, ec := range effects {
			val := effectValue(ec, bound)
			if ec.Reply != "" {
				if handle, ok := bound[ec.Reply].(*ReplyHandle); ok {
					handle.Reply(val)
				}
				continue
			}
			id, ok := reg[ec.Emit]
			if !ok {
				continue
			}
			_ = Emit(id, val, nil)
		}
	}

	desc := &ReactionDescriptor{
		Inputs:       inputs,
		Body:         body,
		Outputs:      outputs,
		Name:         rc.Name,
		Retry:        rc.Retry,
		SourceConfig: &rc,
	}
	return desc, nil
}

// effectValue resolves the payload an effect emits or replies with: a
// plain pass-through of a bound input (From), or a templated payload map.
func effectValue(ec EffectConfig, bound map[string]any) any {
	if ec.From != "" {
		return bound[ec.From]
	}
	payload := make(map[string]any, len(ec.Payload))
	for k, v := range ec.Payload {
		payload[k] = resolveTemplateValue(v, bound)
	}
	return payload
}

// matcherFromWhere compiles a WhereConfig into a single Matcher. An empty
// WhereConfig yields an infallible SimpleVar; a non-empty one yields an
// Arbitrary matcher running every field condition against the candidate
// value (which must itself be a map[string]any payload). The matcher's
// name encodes the conditions themselves, so the shadowing analyzer only
// equates two Where matchers when their filters are actually identical.
func matcherFromWhere(w WhereConfig) (Matcher, error) {
	if len(w) == 0 {
		return SimpleVar{}, nil
	}
	conds := w
	pred := func(v any) (any, bool) {
		payload, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		for field, cond := range conds {
			fv, present := payload[field]
			if !present || !compareConfigValues(fv, cond.Value, cond.Op) {
				return nil, false
			}
		}
		return v, true
	}
	return Arbitrary{Name: whereHash(w), Pred: pred}, nil
}

// whereHash renders a WhereConfig as a stable string over its sorted field
// conditions, used as the Arbitrary matcher's identity.
func whereHash(w WhereConfig) string {
	fields := make([]string, 0, len(w))
	for field := range w {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var sb strings.Builder
	sb.WriteString("where")
	for _, field := range fields {
		cond := w[field]
		fmt.Fprintf(&sb, ":%s %s %v", field, cond.Op, cond.Value)
	}
	return sb.String()
}

func compareConfigValues(left, right any, op string) bool {
	lf, lok := toFloat64Config(left)
	rf, rok := toFloat64Config(right)
	if lok && rok {
		switch op {
		case "eq", "":
			return lf == rf
		case "ne":
			return lf != rf
		case "gt":
			return lf > rf
		case "gte":
			return lf >= rf
		case "lt":
			return lf < rf
		case "lte":
			return lf <= rf
		}
	}
	ls := fmt.Sprintf("%v", left)
	rs := fmt.Sprintf("%v", right)
	switch op {
	case "eq", "":
		return ls == rs
	case "ne":
		return ls != rs
	default:
		return false
	}
}

func toFloat64Config(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// resolveTemplateValue resolves a payload template value: a string of the
// form "$name" is replaced by the bound value of that name; anything else
// is returned unchanged.
func resolveTemplateValue(v any, bound map[string]any) any {
	s, ok := v.(string)
	if !ok || len(s) < 2 || s[0] != '$' {
		return v
	}
	if bv, ok := bound[s[1:]]; ok {
		return bv
	}
	return v
}
