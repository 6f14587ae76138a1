// Package logscan locates an error string in a CloudWatch Logs group
// and collects the surrounding events for inspection.
package logscan

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
)

// Client abstracts the CloudWatch Logs FilterLogEvents operation for testability.
type Client interface {
	FilterLogEvents(ctx context.Context, params *cloudwatchlogs.FilterLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.FilterLogEventsOutput, error)
}

// Params control one scan.
type Params struct {
	// Group is the log group name.
	Group string
	// Since is the look-back window from now.
	Since time.Duration
	// Match is the substring that marks the event of interest.
	Match string
	// Before and After bound the context window around the match.
	Before int
	After  int
}

// Event is one log event in the context window.
type Event struct {
	Timestamp time.Time
	Message   string
}

// Report is the outcome of a scan.
type Report struct {
	// Total is the number of events fetched in the window.
	Total int
	// Matched reports whether the match string was found.
	Matched bool
	// Context holds the matching event with Before/After surrounding
	// events, in timestamp order.
	Context []Event
}

// Scanner pages through a log group and extracts the context window
// around the first matching event.
type Scanner struct {
	client Client
	now    func() time.Time
}

// New creates a Scanner.
func New(client Client) *Scanner {
	return &Scanner{client: client, now: time.Now}
}

// Scan fetches all events in the look-back window, following pagination
// tokens, sorts them by timestamp and cuts the context window around the
// first event containing Match.
func (s *Scanner) Scan(ctx context.Context, p Params) (*Report, error) {
	start := s.now().Add(-p.Since).UnixMilli()

	var events []cwtypes.FilteredLogEvent
	var nextToken *string
	for {
		out, err := s.client.FilterLogEvents(ctx, &cloudwatchlogs.FilterLogEventsInput{
			LogGroupName: aws.String(p.Group),
			StartTime:    aws.Int64(start),
			NextToken:    nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("fetching log events: %w", err)
		}

		events = append(events, out.Events...)
		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	sort.SliceStable(events, func(i, j int) bool {
		return aws.ToInt64(events[i].Timestamp) < aws.ToInt64(events[j].Timestamp)
	})

	report := &Report{Total: len(events)}

	matchIdx := -1
	for i, e := range events {
		if strings.Contains(aws.ToString(e.Message), p.Match) {
			matchIdx = i
			break
		}
	}
	if matchIdx < 0 {
		return report, nil
	}
	report.Matched = true

	lo := max(0, matchIdx-p.Before)
	hi := min(len(events), matchIdx+p.After+1)
	for _, e := range events[lo:hi] {
		report.Context = append(report.Context, Event{
			Timestamp: time.UnixMilli(aws.ToInt64(e.Timestamp)).UTC(),
			Message:   strings.TrimSpace(aws.ToString(e.Message)),
		})
	}

	return report, nil
}
