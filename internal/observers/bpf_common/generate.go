// Package bpfcommon holds headers shared by every BPF program. vmlinux.h is
// dumped from the running kernel's BTF and is not committed.
package bpfcommon

//go:generate sh -c "bpftool btf dump file /sys/kernel/btf/vmlinux format c > vmlinux.h"
