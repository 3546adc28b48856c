// Package client provides a fluent schema builder and an HTTP/WebSocket
// client for a joind server: build a schema, apply it under a definition ID,
// emit molecules, call blocking molecules, and stream reaction-fired events.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kjoin/joinrun/internal/join"
)

// SchemaBuilder provides a fluent API for building schema documents.
type SchemaBuilder struct {
	name      string
	molecules []join.MoleculeConfig
	reactions []*ReactionBuilder
}

// NewSchema creates a new schema builder.
func NewSchema(name string) *SchemaBuilder {
	return &SchemaBuilder{name: name}
}

// Molecule declares a non-blocking molecule.
func (sb *SchemaBuilder) Molecule(name string) *SchemaBuilder {
	sb.molecules = append(sb.molecules, join.MoleculeConfig{Name: name})
	return sb
}

// BlockingMolecule declares a blocking molecule.
func (sb *SchemaBuilder) BlockingMolecule(name string) *SchemaBuilder {
	sb.molecules = append(sb.molecules, join.MoleculeConfig{Name: name, Blocking: true})
	return sb
}

// Reaction adds a reaction to the schema.
func (sb *SchemaBuilder) Reaction(rb *ReactionBuilder) *SchemaBuilder {
	sb.reactions = append(sb.reactions, rb)
	return sb
}

// Build converts the builder to a SchemaConfig.
func (sb *SchemaBuilder) Build() join.SchemaConfig {
	reactions := make([]join.ReactionConfig, 0, len(sb.reactions))
	for _, rb := range sb.reactions {
		reactions = append(reactions, rb.Build())
	}
	return join.SchemaConfig{
		Name:      sb.name,
		Molecules: sb.molecules,
		Reactions: reactions,
	}
}

// ReactionBuilder provides a fluent API for building reactions.
type ReactionBuilder struct {
	id      string
	name    string
	inputs  []join.InputConfig
	effects []*EffectBuilder
	retry   bool
}

// NewReaction creates a new reaction builder.
func NewReaction(id string) *ReactionBuilder {
	return &ReactionBuilder{id: id, name: id}
}

// Name sets the reaction's display name.
func (rb *ReactionBuilder) Name(name string) *ReactionBuilder {
	rb.name = name
	return rb
}

// InputOption refines one input of a reaction.
type InputOption func(*join.InputConfig)

// WhereEq requires payload field to equal value.
func WhereEq(field string, value any) InputOption {
	return whereOp(field, "eq", value)
}

// WhereGt requires payload field to be greater than value.
func WhereGt(field string, value any) InputOption {
	return whereOp(field, "gt", value)
}

// WhereLt requires payload field to be less than value.
func WhereLt(field string, value any) InputOption {
	return whereOp(field, "lt", value)
}

func whereOp(field, op string, value any) InputOption {
	return func(ic *join.InputConfig) {
		if ic.Where == nil {
			ic.Where = make(join.WhereConfig)
		}
		ic.Where[field] = join.FieldCondition{Op: op, Value: value}
	}
}

// Input adds an input pattern binding molecule under the name as.
func (rb *ReactionBuilder) Input(molecule, as string, opts ...InputOption) *ReactionBuilder {
	ic := join.InputConfig{Molecule: molecule, As: as}
	for _, opt := range opts {
		opt(&ic)
	}
	rb.inputs = append(rb.inputs, ic)
	return rb
}

// Retry marks the reaction so a faulting body re-emits its consumed
// non-blocking inputs; consumed blocking inputs are settled as failed.
func (rb *ReactionBuilder) Retry() *ReactionBuilder {
	rb.retry = true
	return rb
}

// Effect appends output effects to the reaction.
func (rb *ReactionBuilder) Effect(ebs ...*EffectBuilder) *ReactionBuilder {
	rb.effects = append(rb.effects, ebs...)
	return rb
}

// Build converts the builder to a ReactionConfig.
func (rb *ReactionBuilder) Build() join.ReactionConfig {
	effects := make([]join.EffectConfig, 0, len(rb.effects))
	for _, eb := range rb.effects {
		effects = append(effects, eb.Build())
	}
	return join.ReactionConfig{
		ID:      rb.id,
		Name:    rb.name,
		Inputs:  rb.inputs,
		Effects: effects,
		Retry:   rb.retry,
	}
}

// EffectBuilder provides a fluent API for building reaction effects.
type EffectBuilder struct {
	cfg join.EffectConfig
}

// Emit creates an effect emitting molecule.
func Emit(molecule string) *EffectBuilder {
	return &EffectBuilder{cfg: join.EffectConfig{Emit: molecule}}
}

// Reply creates an effect replying on the blocking input bound under as.
func Reply(as string) *EffectBuilder {
	return &EffectBuilder{cfg: join.EffectConfig{Reply: as}}
}

// From forwards the value bound under as as the emitted or replied payload.
func (eb *EffectBuilder) From(as string) *EffectBuilder {
	eb.cfg.From = as
	return eb
}

// Payload adds a payload field; a string value of the form "$name" resolves
// to the input bound under that name.
func (eb *EffectBuilder) Payload(field string, value any) *EffectBuilder {
	if eb.cfg.Payload == nil {
		eb.cfg.Payload = make(map[string]any)
	}
	eb.cfg.Payload[field] = value
	return eb
}

// Build converts the builder to an EffectConfig.
func (eb *EffectBuilder) Build() join.EffectConfig {
	return eb.cfg
}

// Client talks to a joind server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the joind server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("cannot encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// ApplySchema activates a schema under defID, returning analyzer warnings.
func (c *Client) ApplySchema(ctx context.Context, defID string, sb *SchemaBuilder) ([]string, error) {
	var resp struct {
		Warnings []string `json:"warnings"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/definition/"+defID+"/schema", sb.Build(), &resp)
	if err != nil {
		return nil, err
	}
	return resp.Warnings, nil
}

// EmitMolecule emits a non-blocking molecule into defID's soup.
func (c *Client) EmitMolecule(ctx context.Context, defID, molecule string, payload any) error {
	body := map[string]any{"molecule": molecule, "payload": payload}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/definition/"+defID+"/molecule", jsonReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func jsonReader(v any) io.Reader {
	data, _ := json.Marshal(v)
	return bytes.NewReader(data)
}

// Call emits a blocking molecule and waits for its reply. The timeout is
// enforced server-side; the reported bool is true if the call timed out.
func (c *Client) Call(ctx context.Context, defID, molecule string, payload any, timeout time.Duration) (any, bool, error) {
	body := map[string]any{
		"molecule":   molecule,
		"payload":    payload,
		"timeout_ms": int(timeout / time.Millisecond),
	}
	var resp struct {
		Value    any  `json:"value"`
		TimedOut bool `json:"timed_out"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/definition/"+defID+"/call", body, &resp); err != nil {
		return nil, false, err
	}
	return resp.Value, resp.TimedOut, nil
}

// Soup returns defID's diagnostic soup listing.
func (c *Client) Soup(ctx context.Context, defID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/definition/"+defID+"/soup", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return string(data), nil
}

// Definitions lists the server's definition IDs.
func (c *Client) Definitions(ctx context.Context) ([]string, error) {
	var resp struct {
		Definitions []string `json:"definitions"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/definitions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Definitions, nil
}

// DeleteDefinition shuts down and removes a definition.
func (c *Client) DeleteDefinition(ctx context.Context, defID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/definition/"+defID, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// Event is one reaction-fired event streamed from the server.
type Event struct {
	JoinName     string `json:"join_name"`
	ReactionName string `json:"reaction_name"`
	Timestamp    int64  `json:"timestamp"`
	Faulted      bool   `json:"faulted"`
	FaultReason  string `json:"fault_reason,omitempty"`
}

// SubscribeEvents opens a websocket to the server's /events endpoint and
// delivers reaction-fired events until ctx is done or the connection drops.
// The returned close function tears the connection down.
func (c *Client) SubscribeEvents(ctx context.Context) (<-chan Event, func() error, error) {
	wsURL := c.baseURL + "/events"
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, nil, err
	}
	if resp != nil {
		resp.Body.Close()
	}

	events := make(chan Event, 64)
	go func() {
		defer close(events)
		for {
			var ev Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, conn.Close, nil
}
