// File: internal/concurrency/numa.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// NUMANodes exposes the per-platform node count (platformNUMANodes,
// defined in the affinity_*.go build-tagged files) under one name; every
// caller across the module (transport, normalize) references
// concurrency.NUMANodes, not the unexported per-platform hook directly.

package concurrency

// NUMANodes returns the number of NUMA nodes visible to this process,
// or 1 on platforms without NUMA topology information.
func NUMANodes() int {
	return platformNUMANodes()
}
