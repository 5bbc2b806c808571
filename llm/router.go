package llm

import (
	"context"
	"log"
	"sync"
)

// Router selects a provider for each task. Selection order: an explicit
// task route wins; otherwise a long-context task goes to the first
// registered provider whose capabilities support long context; otherwise
// the default provider serves the request.
type Router struct {
	mu         sync.RWMutex
	providers  map[string]Provider
	order      []string
	routes     map[Task]string
	defaultKey string
}

func NewRouter() *Router {
	return &Router{
		providers: make(map[string]Provider),
		routes:    make(map[Task]string),
	}
}

// Register adds a provider. The first registered provider becomes the
// default; isDefault overrides that for a later registration.
func (r *Router) Register(p Provider, isDefault bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, exists := r.providers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.providers[name] = p
	if isDefault || r.defaultKey == "" {
		r.defaultKey = name
	}
}

// SetTaskRoute pins a task to a provider by name. Unknown provider names
// are ignored with a warning, so a typo in configuration degrades to
// capability-based routing instead of breaking requests.
func (r *Router) SetTaskRoute(task Task, providerName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[providerName]; !ok {
		log.Printf("Warning: task route %s -> %s ignored, provider not registered", task, providerName)
		return
	}
	r.routes[task] = providerName
}

// Select returns the provider that will serve this task.
func (r *Router) Select(task Task) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name, ok := r.routes[task]; ok {
		return r.providers[name], nil
	}

	if task == TaskLongContextAnalysis {
		for _, name := range r.order {
			if r.providers[name].Capabilities().SupportsLongContext {
				return r.providers[name], nil
			}
		}
	}

	if r.defaultKey == "" {
		return nil, ErrNoProvider
	}
	return r.providers[r.defaultKey], nil
}

// Fallback returns a provider other than the named one, or nil when no
// alternative is registered. Registration order decides which.
func (r *Router) Fallback(exclude string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		if name != exclude {
			return r.providers[name]
		}
	}
	return nil
}

// Generate routes the task to a provider and runs the prompt through it.
// Failures come back as *GenerationError naming the provider; the router
// itself never retries.
func (r *Router) Generate(ctx context.Context, task Task, prompt string) (string, string, error) {
	p, err := r.Select(task)
	if err != nil {
		return "", "", err
	}

	text, err := p.Generate(ctx, prompt)
	if err != nil {
		return "", p.Name(), &GenerationError{Provider: p.Name(), Err: err}
	}
	return text, p.Name(), nil
}
