package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ayusman/handsoff/internal/event"
	"github.com/ayusman/handsoff/internal/plugin"
)

// PluginNotifier runs the "alert" action of every enabled plugin when an alert
// starts and "clear" when it stops.
type PluginNotifier struct {
	manager  *plugin.Manager
	executor *plugin.Executor
	names    []string

	mu     sync.Mutex
	active bool
}

// NewPluginNotifier creates a notifier for the named plugins. An empty names
// list enables every discovered plugin that supports the alert action.
func NewPluginNotifier(manager *plugin.Manager, executor *plugin.Executor, names ...string) *PluginNotifier {
	return &PluginNotifier{
		manager:  manager,
		executor: executor,
		names:    names,
	}
}

func (n *PluginNotifier) Start(ctx context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.active {
		return nil
	}
	n.active = true

	return n.run(ctx, plugin.ActionAlert, event.AlertStarted, text)
}

func (n *PluginNotifier) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.active {
		return nil
	}
	n.active = false

	return n.run(context.Background(), plugin.ActionClear, event.AlertEnded, "")
}

func (n *PluginNotifier) Active() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.active
}

func (n *PluginNotifier) run(ctx context.Context, action, eventName, text string) error {
	plugins, err := n.plugins()
	if err != nil {
		return err
	}

	var errs []error
	for _, p := range plugins {
		if !p.Supports(action) {
			continue
		}

		resp, err := n.executor.Execute(ctx, p, &plugin.Request{
			Action: action,
			Event:  eventName,
			Text:   text,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("plugin %s: %w", p.Manifest.Name, err))
			continue
		}
		if !resp.Success {
			errs = append(errs, fmt.Errorf("plugin %s: %s", p.Manifest.Name, resp.Error))
		}
	}

	return errors.Join(errs...)
}

func (n *PluginNotifier) plugins() ([]*plugin.Plugin, error) {
	if len(n.names) == 0 {
		return n.manager.List(), nil
	}

	plugins := make([]*plugin.Plugin, 0, len(n.names))
	for _, name := range n.names {
		p, err := n.manager.Get(name)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", name, err)
		}
		plugins = append(plugins, p)
	}
	return plugins, nil
}
