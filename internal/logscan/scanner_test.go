package logscan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient pages through canned FilterLogEvents responses.
type mockClient struct {
	pages  []*cloudwatchlogs.FilterLogEventsOutput
	inputs []*cloudwatchlogs.FilterLogEventsInput
	err    error
}

func (m *mockClient) FilterLogEvents(ctx context.Context, params *cloudwatchlogs.FilterLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.FilterLogEventsOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.inputs = append(m.inputs, params)
	page := m.pages[len(m.inputs)-1]
	return page, nil
}

func event(ts int64, msg string) cwtypes.FilteredLogEvent {
	return cwtypes.FilteredLogEvent{Timestamp: aws.Int64(ts), Message: aws.String(msg)}
}

func fixedScanner(client Client) *Scanner {
	s := New(client)
	s.now = func() time.Time { return time.UnixMilli(1_000_000).UTC() }
	return s
}

func TestScanFollowsPagination(t *testing.T) {
	client := &mockClient{pages: []*cloudwatchlogs.FilterLogEventsOutput{
		{
			Events:    []cwtypes.FilteredLogEvent{event(100, "boot"), event(200, "ready")},
			NextToken: aws.String("page-2"),
		},
		{
			Events: []cwtypes.FilteredLogEvent{event(300, "Parameter validation failed: Invalid type"), event(400, "retrying")},
		},
	}}

	report, err := fixedScanner(client).Scan(context.Background(), Params{
		Group:  "/ecs/worker/dev",
		Since:  30 * time.Minute,
		Match:  "Parameter validation failed",
		Before: 50,
		After:  10,
	})
	require.NoError(t, err)

	require.Len(t, client.inputs, 2)
	assert.Nil(t, client.inputs[0].NextToken)
	assert.Equal(t, "page-2", aws.ToString(client.inputs[1].NextToken))
	assert.Equal(t, "/ecs/worker/dev", aws.ToString(client.inputs[0].LogGroupName))

	assert.Equal(t, 4, report.Total)
	assert.True(t, report.Matched)
	// Window is capped at the available events.
	require.Len(t, report.Context, 4)
	assert.Contains(t, report.Context[2].Message, "Parameter validation failed")
}

func TestScanWindowBounds(t *testing.T) {
	events := []cwtypes.FilteredLogEvent{
		event(100, "one"),
		event(200, "two"),
		event(300, "boom"),
		event(400, "four"),
		event(500, "five"),
		event(600, "six"),
	}
	client := &mockClient{pages: []*cloudwatchlogs.FilterLogEventsOutput{{Events: events}}}

	report, err := fixedScanner(client).Scan(context.Background(), Params{
		Group:  "g",
		Since:  time.Minute,
		Match:  "boom",
		Before: 1,
		After:  2,
	})
	require.NoError(t, err)

	require.Len(t, report.Context, 4)
	assert.Equal(t, "two", report.Context[0].Message)
	assert.Equal(t, "boom", report.Context[1].Message)
	assert.Equal(t, "five", report.Context[3].Message)
}

func TestScanSortsOutOfOrderEvents(t *testing.T) {
	client := &mockClient{pages: []*cloudwatchlogs.FilterLogEventsOutput{{
		Events: []cwtypes.FilteredLogEvent{
			event(300, "boom"),
			event(100, "first"),
			event(200, "second"),
		},
	}}}

	report, err := fixedScanner(client).Scan(context.Background(), Params{
		Group:  "g",
		Since:  time.Minute,
		Match:  "boom",
		Before: 5,
		After:  5,
	})
	require.NoError(t, err)

	require.Len(t, report.Context, 3)
	assert.Equal(t, "first", report.Context[0].Message)
	assert.Equal(t, "boom", report.Context[2].Message)
}

func TestScanNoMatch(t *testing.T) {
	client := &mockClient{pages: []*cloudwatchlogs.FilterLogEventsOutput{{
		Events: []cwtypes.FilteredLogEvent{event(100, "all quiet")},
	}}}

	report, err := fixedScanner(client).Scan(context.Background(), Params{
		Group: "g",
		Since: time.Minute,
		Match: "boom",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Total)
	assert.False(t, report.Matched)
	assert.Empty(t, report.Context)
}

func TestScanStartTimeFromWindow(t *testing.T) {
	client := &mockClient{pages: []*cloudwatchlogs.FilterLogEventsOutput{{}}}

	_, err := fixedScanner(client).Scan(context.Background(), Params{
		Group: "g",
		Since: time.Second,
	})
	require.NoError(t, err)

	require.Len(t, client.inputs, 1)
	assert.Equal(t, int64(999_000), aws.ToInt64(client.inputs[0].StartTime))
}

func TestScanClientError(t *testing.T) {
	client := &mockClient{err: errors.New("throttled")}

	_, err := fixedScanner(client).Scan(context.Background(), Params{Group: "g", Since: time.Minute})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}
