// Remote client selection for the satchel CLI. The core consumes a generic
// RemoteClient; the real API client is an injected collaborator, so until an
// endpoint and client are configured the CLI wires a placeholder that keeps
// every queued write safely queued.
package main

import (
	"context"

	"github.com/mesh-intelligence/satchel/pkg/types"
)

// newRemote returns the client for the configured endpoint. No client
// implementation ships with the core yet, so every endpoint currently maps
// to the offline placeholder.
func newRemote(endpoint string) types.RemoteClient {
	return offlineRemote{endpoint: endpoint}
}

// offlineRemote fails every call as a network error. Classification keeps
// the failures retryable, so operations back off and wait instead of being
// dropped.
type offlineRemote struct {
	endpoint string
}

func (r offlineRemote) err() error {
	msg := "remote endpoint not configured"
	if r.endpoint != "" {
		msg = "no client available for " + r.endpoint
	}
	return &types.APIError{Class: types.ClassNetworkError, Message: msg}
}

func (r offlineRemote) Execute(context.Context, types.Operation) (types.RemoteResult, error) {
	return types.RemoteResult{}, r.err()
}

func (r offlineRemote) FetchAll(context.Context) ([]types.Entity, error) {
	return nil, r.err()
}

func (r offlineRemote) FetchChanges(_ context.Context, syncTag string) (types.ChangeSet, error) {
	return types.ChangeSet{}, r.err()
}
