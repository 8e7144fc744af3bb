// Package bpf embeds the NIC queue program. The generated loaders are built
// with the ebpf tag.
package bpf

//go:generate go run github.com/cilium/ebpf/cmd/bpf2go -cc clang -target amd64,arm64 NicThroughput ../bpf_src/nic_throughput.c -- -I../../bpf_common -g -O2 -Wall
