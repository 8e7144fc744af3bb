package orchestrator

import (
	"fmt"
	"sort"
	"sync"

	"github.com/yairfalse/ktelemetry/internal/observers/config"
	"github.com/yairfalse/ktelemetry/pkg/domain"
	"go.uber.org/zap"
)

// SourceTable is one table fed by a collaborator, with how it is rendered.
type SourceTable struct {
	Table domain.CounterTable
	Spec  domain.TableSpec
}

// Source is what a factory builds: a collaborator and the tables it fills.
// Tables may be backed by kernel maps that only exist after Attach.
type Source struct {
	Collaborator domain.Collaborator
	Tables       []SourceTable
}

// SourceFactory creates a source from its configuration. It may inspect the
// system (sysfs) but must not acquire kernel resources.
type SourceFactory func(cfg *config.SourceConfig, logger *zap.Logger) (*Source, error)

var (
	sourceFactories = make(map[string]SourceFactory)
	factoryMutex    sync.RWMutex
)

// RegisterSourceFactory registers a source factory
func RegisterSourceFactory(kind string, factory SourceFactory) {
	factoryMutex.Lock()
	defer factoryMutex.Unlock()
	sourceFactories[kind] = factory
}

// GetSourceFactory returns a registered source factory
func GetSourceFactory(kind string) (SourceFactory, bool) {
	factoryMutex.RLock()
	defer factoryMutex.RUnlock()
	factory, exists := sourceFactories[kind]
	return factory, exists
}

// SourceKinds lists registered kinds in sorted order.
func SourceKinds() []string {
	factoryMutex.RLock()
	defer factoryMutex.RUnlock()
	kinds := make([]string, 0, len(sourceFactories))
	for k := range sourceFactories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// BuildSource looks up the factory for cfg.Kind and runs it.
func BuildSource(cfg *config.SourceConfig, logger *zap.Logger) (*Source, error) {
	factory, ok := GetSourceFactory(cfg.Kind)
	if !ok {
		return nil, domain.NewValidationError("kind", cfg.Kind, "no collaborator registered")
	}
	src, err := factory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", cfg.Name, err)
	}
	for i := range src.Tables {
		t := &src.Tables[i]
		if t.Spec.Tags == nil {
			t.Spec.Tags = make(map[string]string, len(cfg.Tags))
		}
		for k, v := range cfg.Tags {
			if _, fixed := t.Spec.Tags[k]; !fixed {
				t.Spec.Tags[k] = v
			}
		}
	}
	return src, nil
}
