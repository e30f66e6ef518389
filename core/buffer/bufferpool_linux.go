// File: core/buffer/bufferpool_linux.go
//go:build linux
// +build linux

//
// Package pool: Linux-specific slab allocator.
//
// On Linux, buffers are plain Go heap allocations; no hugepages, mmap or
// libnuma are used, and the NUMA node is only recorded on the buffer.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"github.com/momentics/hioload-afb/api"
)

// linuxAlloc maps or allocates a buffer of exactly `sz` bytes on `numaNode`.
// For simplicity and portability, use heap allocation instead of mmap hugepages.
func linuxAlloc(sz, numaNode int) api.Buffer {
	// Use simple heap allocation - more portable than mmap hugepages
	data := make([]byte, sz)
	return &Buffer{data: data, numaNode: numaNode, slab: nil}
}

// linuxRelease is a no-op since we use heap allocation (GC handles cleanup).
func linuxRelease(buf api.Buffer) {
	// No-op: GC handles heap-allocated buffers
}

// newSlabPool builds a slabPool with linuxAlloc/release callbacks.
func newSlabPool(size int) *slabPool {
	sp := &slabPool{size: size}
	sp.newBuf = func(sz, numaNode int) api.Buffer {
		buf := linuxAlloc(sz, numaNode)
		if b, ok := buf.(*Buffer); ok {
			b.slab = sp
		}
		return buf
	}
	sp.release = linuxRelease
	return sp
}
