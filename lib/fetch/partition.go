// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"sort"

	"github.com/kilnmc/kiln/lib/transfer"
)

// Partition deals items into at most workers partitions. Items are
// sorted by descending size (key ascending among equal sizes) and then
// assigned round-robin, which spreads large files across workers.
// Empty partitions are omitted.
func Partition(items []transfer.Item, workers int) [][]transfer.Item {
	if workers < 1 {
		workers = 1
	}
	sorted := append([]transfer.Item(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Size != sorted[j].Size {
			return sorted[i].Size > sorted[j].Size
		}
		return sorted[i].Key < sorted[j].Key
	})

	partitions := make([][]transfer.Item, workers)
	for index, item := range sorted {
		partitions[index%workers] = append(partitions[index%workers], item)
	}

	nonEmpty := partitions[:0]
	for _, partition := range partitions {
		if len(partition) > 0 {
			nonEmpty = append(nonEmpty, partition)
		}
	}
	return nonEmpty
}
