package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/danmuck/tetherctl/internal/logging"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// HandlerFunc answers one inbound tool call.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (json.RawMessage, error)

// Registry stores local tool handlers by name and answers peer requests
// with them. It satisfies the relay responder contract.
type Registry struct {
	log      zerolog.Logger
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewRegistry initializes an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		log:      logging.Component("catalog"),
		handlers: make(map[string]HandlerFunc),
	}
}

// Register adds a handler by tool name, replacing any previous handler.
func (r *Registry) Register(name string, fn HandlerFunc) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: blank name", ErrInvalidParams)
	}
	if fn == nil {
		return fmt.Errorf("catalog: nil handler for tool %q", name)
	}
	r.mu.Lock()
	r.handlers[name] = fn
	r.mu.Unlock()
	r.log.Debug().Msgf("catalog.Register tool=%q", name)
	return nil
}

// Handlers returns the registered tool names sorted.
func (r *Registry) Handlers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Respond dispatches one inbound peer request to its handler.
func (r *Registry) Respond(ctx context.Context, tool string, params json.RawMessage) (json.RawMessage, error) {
	r.mu.RLock()
	fn, ok := r.handlers[tool]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoHandler, tool)
	}
	return fn(ctx, params)
}

// relayInfo is the relay_info reply body.
type relayInfo struct {
	Version    string   `json:"version"`
	LocalTools []string `json:"local_tools"`
	Status     any      `json:"status"`
}

// RegisterBuiltins wires the locally answered tools. The status callback
// and handler list are read per call so replies always reflect live
// relay state.
func RegisterBuiltins(reg *Registry, version string, status func() any) error {
	if err := reg.Register("echo", func(_ context.Context, params json.RawMessage) (json.RawMessage, error) {
		if emptyParams(params) {
			return json.RawMessage("null"), nil
		}
		return params, nil
	}); err != nil {
		return err
	}
	return reg.Register("relay_info", func(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
		info := relayInfo{Version: version, LocalTools: reg.Handlers()}
		if status != nil {
			info.Status = status()
		}
		return json.Marshal(info)
	})
}
