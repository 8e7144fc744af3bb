//go:build linux
// +build linux

package base

import (
	"errors"
	"fmt"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/rlimit"
	"go.uber.org/zap"
)

// ErrObjectNotEmbedded is returned when no object path is configured and the
// binary was built without the ebpf tag.
var ErrObjectNotEmbedded = errors.New("BPF objects not embedded: run go generate and build with -tags ebpf, or set object")

// SpecLoader returns a collection spec, usually a bpf2go generated Load func.
type SpecLoader func() (*ebpf.CollectionSpec, error)

// LoadCollection loads the object at path, or the embedded one when path is
// empty, and reports verifier failures.
func LoadCollection(path string, embedded SpecLoader, logger *zap.Logger) (*ebpf.Collection, error) {
	spec, err := loadSpec(path, embedded)
	if err != nil {
		return nil, err
	}

	if err := rlimit.RemoveMemlock(); err != nil {
		return nil, fmt.Errorf("removing memlock: %w", err)
	}

	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		var ve *ebpf.VerifierError
		if errors.As(err, &ve) {
			logger.Error("BPF verifier error", zap.String("error", fmt.Sprintf("%+v", ve)))
			return nil, fmt.Errorf("BPF verifier rejected program: %w", err)
		}
		return nil, fmt.Errorf("loading BPF objects: %w", err)
	}
	return coll, nil
}

func loadSpec(path string, embedded SpecLoader) (*ebpf.CollectionSpec, error) {
	if path != "" {
		spec, err := ebpf.LoadCollectionSpec(path)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
		return spec, nil
	}
	if embedded == nil {
		return nil, ErrObjectNotEmbedded
	}
	spec, err := embedded()
	if err != nil {
		return nil, fmt.Errorf("loading embedded object: %w", err)
	}
	return spec, nil
}

// ObjectSource names where a collection came from, for error messages.
func ObjectSource(path, name string) string {
	if path != "" {
		return path
	}
	return "embedded " + name
}
