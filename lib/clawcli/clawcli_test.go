// Copyright 2026 The Clawbridge Authors
// SPDX-License-Identifier: Apache-2.0

package clawcli

import (
	"context"
	"fmt"
	"strings"
)

// fakeRunner returns canned output per command line. The key is the
// binary name and arguments joined with spaces.
type fakeRunner struct {
	responses map[string]fakeResponse
	calls     []string
}

type fakeResponse struct {
	stdout string
	stderr string
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	key := strings.Join(append([]string{name}, args...), " ")
	f.calls = append(f.calls, key)

	response, ok := f.responses[key]
	if !ok {
		return nil, nil, fmt.Errorf("no canned response for %q", key)
	}
	return []byte(response.stdout), []byte(response.stderr), response.err
}
