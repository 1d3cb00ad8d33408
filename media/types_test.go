package media

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstraints_Allows(t *testing.T) {
	c := Constraints{
		AllowedDurations:    []int{4, 6, 8},
		AllowedAspectRatios: []string{"16:9", "9:16"},
	}

	tests := []struct {
		name string
		req  *GenerationRequest
		want bool
	}{
		{"nil request", nil, true},
		{"allowed duration and ratio", &GenerationRequest{DurationSeconds: 8, AspectRatio: "16:9"}, true},
		{"disallowed duration", &GenerationRequest{DurationSeconds: 10}, false},
		{"disallowed ratio", &GenerationRequest{AspectRatio: "1:1"}, false},
		{"zero duration not checked", &GenerationRequest{AspectRatio: "9:16"}, true},
		{"empty ratio not checked", &GenerationRequest{DurationSeconds: 6}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Allows(tt.req))
		})
	}

	assert.True(t, Constraints{}.Allows(&GenerationRequest{DurationSeconds: 999}), "empty constraints allow anything")
}

func TestGenerationOutcome_ArtifactRef(t *testing.T) {
	assert.Equal(t, "", (*GenerationOutcome)(nil).ArtifactRef())
	assert.Equal(t, "url", (&GenerationOutcome{ArtifactURL: "url", TaskRef: "ref"}).ArtifactRef())
	assert.Equal(t, "ref", (&GenerationOutcome{TaskRef: "ref"}).ArtifactRef())
}

func TestGenerationOutcome_Accepted(t *testing.T) {
	assert.False(t, (*GenerationOutcome)(nil).Accepted())
	assert.False(t, (&GenerationOutcome{}).Accepted())
	assert.True(t, (&GenerationOutcome{TaskRef: "ref"}).Accepted())
	assert.True(t, (&GenerationOutcome{ArtifactURL: "url"}).Accepted())
}

func TestTaskStatus_IsTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
}

func TestPollUntilDone_TerminalOnFirstCheck(t *testing.T) {
	out, err := PollUntilDone(context.Background(), func(ctx context.Context) (*GenerationOutcome, error) {
		return &GenerationOutcome{Success: true, Status: StatusCompleted}, nil
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, out.Status)
}

func TestPollUntilDone_PollsToCompletion(t *testing.T) {
	var calls atomic.Int32
	out, err := PollUntilDone(context.Background(), func(ctx context.Context) (*GenerationOutcome, error) {
		if calls.Add(1) < 3 {
			return &GenerationOutcome{Status: StatusProcessing}, nil
		}
		return &GenerationOutcome{Success: true, Status: StatusCompleted, ArtifactURL: "url"}, nil
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, out.Status)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestPollUntilDone_TransientErrorsDoNotAbort(t *testing.T) {
	var calls atomic.Int32
	out, err := PollUntilDone(context.Background(), func(ctx context.Context) (*GenerationOutcome, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("connection reset")
		}
		return &GenerationOutcome{Success: true, Status: StatusCompleted}, nil
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, out.Status)
}

func TestPollUntilDone_Timeout(t *testing.T) {
	out, err := PollUntilDone(context.Background(), func(ctx context.Context) (*GenerationOutcome, error) {
		return &GenerationOutcome{Status: StatusProcessing}, nil
	}, 30*time.Millisecond, 10*time.Millisecond)

	require.NoError(t, err, "a timeout is not a provider failure")
	require.NotNil(t, out)
	assert.False(t, out.Success)
	assert.Equal(t, StatusProcessing, out.Status, "best-known state is preserved")
	assert.Contains(t, out.Error, "timed out")
}

func TestPollUntilDone_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := PollUntilDone(ctx, func(ctx context.Context) (*GenerationOutcome, error) {
		return &GenerationOutcome{Status: StatusProcessing}, nil
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, err)
	require.NotNil(t, out)
	assert.False(t, out.Success)
	assert.Contains(t, out.Error, "context canceled")
}
