package protocol_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/graftdb/graft/protocol"
	"github.com/stretchr/testify/require"
)

func TestGraftErrIsMatchesByCode(t *testing.T) {
	err := &protocol.GraftErr{Code: protocol.ErrCodeSnapshotMissing, Message: "gc'd history"}
	require.True(t, errors.Is(err, protocol.ErrSnapshotMissing))
	require.False(t, errors.Is(err, protocol.ErrCommitRejected))
}

func TestIsSnapshotMissingUnwrapsThroughFmtErrorf(t *testing.T) {
	err := &protocol.GraftErr{Code: protocol.ErrCodeSnapshotMissing}
	wrapped := fmt.Errorf("pull_commits: %w", err)
	require.True(t, protocol.IsSnapshotMissing(wrapped))
	require.False(t, protocol.IsCommitRejected(wrapped))
}

func TestIsCommitRejected(t *testing.T) {
	err := &protocol.GraftErr{Code: protocol.ErrCodeCommitRejected}
	require.True(t, protocol.IsCommitRejected(err))
}
