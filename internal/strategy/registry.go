package strategy

import (
	"sync"

	"tickflow/pkg/errors"
	"tickflow/pkg/errors/ecode"
)

// Factory 按配置参数构造策略实例。name是实例名（配置里的strategy名），
// 同一类型可配多个实例
type Factory func(name string, params map[string]interface{}) (Strategy, error)

var (
	factoryMu sync.RWMutex
	factories = make(map[string]Factory)
)

// RegisterFactory 注册策略类型，各策略文件init时调用
func RegisterFactory(typ string, f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[typ] = f
}

// Build 按类型构造实例
func Build(typ, name string, params map[string]interface{}) (Strategy, error) {
	factoryMu.RLock()
	f, ok := factories[typ]
	factoryMu.RUnlock()
	if !ok {
		return nil, errors.WithCode(ecode.NotFoundErr, "unknown strategy type %q", typ)
	}
	return f(name, params)
}

// Registry 策略实例表，启动时按配置装配，运行期只读
type Registry struct {
	mu        sync.RWMutex
	instances map[string]Strategy
}

func NewRegistry() *Registry {
	return &Registry{instances: make(map[string]Strategy)}
}

func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[s.Name()] = s
}

func (r *Registry) Get(name string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.instances[name]
	if !ok {
		return nil, errors.WithCode(ecode.NotFoundErr, "strategy %q not registered", name)
	}
	return s, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.instances))
	for n := range r.instances {
		names = append(names, n)
	}
	return names
}
