// File: core/na/class.go
// Package na implements NA class dispatch: URI parsing, plugin selection,
// and the per-class lifecycle, plus the ambient Control wiring.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package na

import (
	"fmt"
	"strings"
	"sync"

	"github.com/momentics/na/api"
	"github.com/momentics/na/control"
)

var (
	registryMu sync.Mutex
	registry   []api.Plugin
)

// Register adds a plugin to the global registry consulted by Init. Plugins
// register from their own package init() in registration order; SM
// registers first by being the first plugin package imported.
func Register(p api.Plugin) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = append(registry, p)
}

// Class is a live instance of one selected plugin plus its contexts and
// ambient Control surface.
type Class struct {
	plugin api.Plugin
	opts   *api.InitOptions

	mu       sync.Mutex
	contexts map[*Context]struct{}
	finalized bool

	cfg     *control.ConfigStore
	metrics *control.MetricsRegistry
	probes  *control.DebugProbes
}

var _ api.Control = (*Class)(nil)

// parsedURI is the result of splitting a class-qualified NA address or
// init string: "[<class>+]<protocol>[://[<host>]]".
type parsedURI struct {
	class    string // empty if not explicitly requested
	protocol string
	rest     string // the "://..." tail, including scheme separator if present
}

func parseURI(uri string) (parsedURI, error) {
	if uri == "" {
		return parsedURI{}, api.NewError(api.ErrCodeInvalidArg, "empty NA uri")
	}

	head := uri
	rest := ""
	if idx := strings.Index(uri, "://"); idx >= 0 {
		head = uri[:idx]
		rest = uri[idx:]
	}

	class := ""
	protocol := head
	if idx := strings.IndexByte(head, '+'); idx >= 0 {
		class = head[:idx]
		protocol = head[idx+1:]
	}

	if protocol == "" {
		return parsedURI{}, api.NewError(api.ErrCodeInvalidArg, "missing protocol in NA uri").WithContext("uri", uri)
	}

	return parsedURI{class: class, protocol: protocol, rest: rest}, nil
}

// selectPlugin picks the registered plugin serving p, preferring an exact
// class-name match over a protocol probe.
func selectPlugin(p parsedURI) (api.Plugin, error) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if p.class != "" {
		for _, pl := range registry {
			if pl.Name() == p.class {
				return pl, nil
			}
		}
		return nil, api.ErrProtoNoSupport.WithContext("class", p.class)
	}

	for _, pl := range registry {
		if pl.CheckProtocol(p.protocol) {
			return pl, nil
		}
	}
	return nil, api.ErrProtoNoSupport.WithContext("protocol", p.protocol)
}

// Init resolves uri against the plugin registry and brings the selected
// plugin up. listen requests the plugin publish a reachable AddrSelf.
func Init(uri string, opts *api.InitOptions, listen bool) (*Class, error) {
	p, err := parseURI(uri)
	if err != nil {
		return nil, err
	}

	plugin, err := selectPlugin(p)
	if err != nil {
		return nil, err
	}

	if opts == nil {
		opts = &api.InitOptions{}
	}

	if err := plugin.Initialize(opts, listen); err != nil {
		return nil, err
	}

	c := &Class{
		plugin:   plugin,
		opts:     opts,
		contexts: make(map[*Context]struct{}),
		cfg:      control.NewConfigStore(),
		metrics:  control.NewMetricsRegistry(),
		probes:   control.NewDebugProbes(),
	}
	c.probes.RegisterProbe("na.class.protocol", func() any { return p.protocol })
	c.probes.RegisterProbe("na.class.contexts", func() any {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.contexts)
	})
	control.Debugf("class initialized: plugin=%s listen=%v", plugin.Name(), listen)

	return c, nil
}

// Finalize tears down every remaining context then the plugin itself. Per
// the NA class invariant, callers should destroy contexts first;
// Finalize does so defensively rather than leaking the plugin.
func (c *Class) Finalize() error {
	c.mu.Lock()
	if c.finalized {
		c.mu.Unlock()
		return nil
	}
	c.finalized = true
	leftover := make([]*Context, 0, len(c.contexts))
	for ctx := range c.contexts {
		leftover = append(leftover, ctx)
	}
	c.contexts = nil
	c.mu.Unlock()

	for _, ctx := range leftover {
		_ = ctx // contexts hold no OS resources of their own beyond Go memory
	}

	control.Debugf("class finalizing: plugin=%s", c.plugin.Name())
	return c.plugin.Finalize()
}

// ContextCreate allocates a new execution context against this class.
func (c *Class) ContextCreate() (*Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finalized {
		return nil, api.ErrClassFinalized
	}
	ctx := newContext(c)
	c.contexts[ctx] = struct{}{}
	return ctx, nil
}

// ContextDestroy removes ctx, refusing while its completion queue is
// non-empty (mirrors na_context_destroy).
func (c *Class) ContextDestroy(ctx *Context) error {
	if !ctx.empty() {
		return api.ErrBusy
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.contexts, ctx)
	return nil
}

// Plugin exposes the underlying plugin for callers that need vtable access
// directly (address parsing, memory registration) rather than through a
// context.
func (c *Class) Plugin() api.Plugin {
	return c.plugin
}

// GetConfig implements api.Control.
func (c *Class) GetConfig() map[string]any {
	return c.cfg.GetSnapshot()
}

// SetConfig implements api.Control.
func (c *Class) SetConfig(cfg map[string]any) error {
	c.cfg.SetConfig(cfg)
	return nil
}

// Stats implements api.Control, merging class-level counters with the
// plugin's own contribution if it exposes one via RetryDrainer-style
// optional interfaces in the future; today it reports context/queue depth.
func (c *Class) Stats() map[string]any {
	c.mu.Lock()
	depth := 0
	for ctx := range c.contexts {
		depth += ctx.Depth()
	}
	n := len(c.contexts)
	c.mu.Unlock()

	snap := c.metrics.GetSnapshot()
	snap["contexts"] = n
	snap["completion_depth"] = depth
	snap["plugin"] = c.plugin.Name()
	return snap
}

// OnReload implements api.Control.
func (c *Class) OnReload(fn func()) {
	c.cfg.OnReload(fn)
}

// RegisterDebugProbe implements api.Control.
func (c *Class) RegisterDebugProbe(name string, fn func() any) {
	c.probes.RegisterProbe(name, fn)
}

// DebugDump returns every registered probe's current value, ambient
// tooling used by tests and any outer health-check surface.
func (c *Class) DebugDump() map[string]any {
	return c.probes.DumpState()
}

// String renders the class for debug/logging purposes.
func (c *Class) String() string {
	return fmt.Sprintf("na.Class{plugin=%s}", c.plugin.Name())
}
