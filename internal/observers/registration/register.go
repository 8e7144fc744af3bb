package registration

import (
	"github.com/yairfalse/ktelemetry/internal/observers/orchestrator"
)

// RegisterSource registers a source factory with the orchestrator.
// This package exists at the same level as orchestrator so collaborator
// packages never import the loop itself.
//
// Usage in a collaborator's init.go:
//
//	import "github.com/yairfalse/ktelemetry/internal/observers/registration"
//	func init() {
//	    registration.RegisterSource("nic", CreateFactory())
//	}
func RegisterSource(kind string, factory orchestrator.SourceFactory) {
	orchestrator.RegisterSourceFactory(kind, factory)
}
