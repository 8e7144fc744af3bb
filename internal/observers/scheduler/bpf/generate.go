// Package bpf embeds the scheduler programs. The generated loaders are built
// with the ebpf tag.
package bpf

//go:generate go run github.com/cilium/ebpf/cmd/bpf2go -cc clang -target amd64,arm64 PickNext ../bpf_src/picknext.c -- -I../../bpf_common -g -O2 -Wall
//go:generate go run github.com/cilium/ebpf/cmd/bpf2go -cc clang -target amd64,arm64 RunQLen ../bpf_src/runqlen.c -- -I../../bpf_common -g -O2 -Wall
