package analytics

import (
	"context"
	"errors"
	"strconv"
	"time"

	"callcenter-platform/internal/callbacks"
)

var ErrInvalidRequest = errors.New("analytics: invalid request")

// CallReader abstracts read access to reconciled call records.
// *callbacks.PostgresRepo and *callbacks.MemoryRepo satisfy it.
type CallReader interface {
	ListVoiceByWindow(ctx context.Context, from, to time.Time) ([]callbacks.VoiceCallback, error)
}

type Service struct {
	reader CallReader
}

func NewService(reader CallReader) *Service { return &Service{reader: reader} }

// Summary aggregates call records over a window, optionally scoped to a
// set of phone numbers. Reads only from local storage; the provider is
// never consulted.
func (s *Service) Summary(ctx context.Context, req SummaryRequest) (CallSummary, error) {
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return CallSummary{}, ErrInvalidRequest
	}
	if s.reader == nil {
		return CallSummary{}, errors.New("analytics: reader not configured")
	}

	rows, err := s.reader.ListVoiceByWindow(ctx, req.Range.From, req.Range.To)
	if err != nil {
		return CallSummary{}, err
	}

	// nil = unscoped (admin); a non-nil empty set matches nothing.
	scoped := req.Numbers != nil
	scope := map[string]bool{}
	for _, n := range req.Numbers {
		scope[n] = true
	}

	var out CallSummary
	for _, c := range rows {
		if scoped && !scope[c.From] && !scope[c.To] {
			continue
		}

		out.TotalCalls++
		out.TotalDurationSeconds += durationSeconds(c.Duration)
		if c.RecordingURL != nil && *c.RecordingURL != "" {
			out.RecordedCalls++
		}
		switch c.Direction {
		case "inbound":
			out.InboundCalls++
		case "outbound-api", "outbound-dial", "outbound":
			out.OutboundCalls++
		}
		switch ClassifyStatus(c.Status) {
		case OutcomeCompleted:
			out.CompletedCalls++
		case OutcomeMissed:
			out.MissedCalls++
		case OutcomeFailed:
			out.FailedCalls++
		case OutcomeInProgress:
			out.InProgressCalls++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
	}
	return out, nil
}

// durationSeconds tolerates the provider's stringly duration field; an
// unparsable or absent value counts as zero.
func durationSeconds(d *string) int {
	if d == nil {
		return 0
	}
	n, err := strconv.Atoi(*d)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
