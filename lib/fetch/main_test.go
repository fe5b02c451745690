// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package fetch

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/kilnmc/kiln/lib/transfer"
)

// helperWorkerEnv makes the test binary act as a fetch worker, so
// ExecSpawner can be tested against a real child process.
const helperWorkerEnv = "KILN_FETCH_HELPER_WORKER"

func TestMain(m *testing.M) {
	if os.Getenv(helperWorkerEnv) == "1" {
		os.Exit(helperWorkerMain(os.Args[1:]))
	}
	os.Exit(m.Run())
}

func helperWorkerMain(args []string) int {
	var partition string
	for index := 0; index+1 < len(args); index++ {
		if args[index] == "--partition" {
			partition = args[index+1]
		}
	}
	if partition == "" {
		fmt.Fprintln(os.Stderr, "helper worker: --partition is required")
		return 2
	}
	if err := ServeWorker(context.Background(), partition, &transfer.Fetcher{}, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "helper worker:", err)
		return 1
	}
	return 0
}
