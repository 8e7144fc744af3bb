//go:build linux
// +build linux

package scheduler

import (
	"errors"

	"github.com/cilium/ebpf/link"
)

func closeLinks(links []link.Link) error {
	var errs []error
	for _, l := range links {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
