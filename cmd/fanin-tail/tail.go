package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"go.uber.org/zap"

	"github.com/arloliu/fanin"
)

// record is the JSON line written for each event.
type record struct {
	Partition            string              `json:"partition"`
	Sequence             uint64              `json:"sequence"`
	Subject              string              `json:"subject,omitempty"`
	Key                  string              `json:"key,omitempty"`
	EnqueuedAt           time.Time           `json:"enqueuedAt"`
	Headers              map[string][]string `json:"headers,omitempty"`
	Data                 json.RawMessage     `json:"data,omitempty"`
	Text                 string              `json:"text,omitempty"`
	LastEnqueuedSequence uint64              `json:"lastEnqueuedSequence,omitempty"`
}

func newRecord(ev *fanin.Event) record {
	r := record{
		Partition:  ev.Partition,
		Sequence:   ev.Sequence,
		Subject:    ev.Subject,
		Key:        string(ev.Key),
		EnqueuedAt: ev.EnqueuedAt,
		Headers:    ev.Headers,
	}
	if json.Valid(ev.Data) {
		r.Data = ev.Data
	} else {
		r.Text = string(ev.Data)
	}
	if ev.Context.Tracked {
		r.LastEnqueuedSequence = ev.Context.LastEnqueuedSequence
	}

	return r
}

// Output formats.
const (
	formatJSON        = "json"
	formatCloudEvents = "cloudevents"
)

// cloudEventType is the CloudEvents type of every event written in cloudevents format.
const cloudEventType = "io.fanin.event"

// eventWriter writes one event to the output.
type eventWriter interface {
	WriteEvent(ev *fanin.Event) error
}

func newEventWriter(format string, w io.Writer, source string) (eventWriter, error) {
	switch format {
	case "", formatJSON:
		return &jsonLinesWriter{enc: json.NewEncoder(w)}, nil
	case formatCloudEvents:
		return &cloudEventsWriter{enc: json.NewEncoder(w), source: source}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q (want %s or %s)", format, formatJSON, formatCloudEvents)
	}
}

type jsonLinesWriter struct {
	enc *json.Encoder
}

func (w *jsonLinesWriter) WriteEvent(ev *fanin.Event) error {
	return w.enc.Encode(newRecord(ev))
}

// cloudEventsWriter writes each event as a structured-mode CloudEvents JSON line.
type cloudEventsWriter struct {
	enc    *json.Encoder
	source string
}

func (w *cloudEventsWriter) WriteEvent(ev *fanin.Event) error {
	ce, err := toCloudEvent(ev, w.source)
	if err != nil {
		return err
	}

	return w.enc.Encode(ce)
}

func toCloudEvent(ev *fanin.Event, source string) (cloudevents.Event, error) {
	seq := strconv.FormatUint(ev.Sequence, 10)

	ce := cloudevents.NewEvent()
	ce.SetSpecVersion(cloudevents.VersionV1)
	ce.SetID(ev.Partition + "-" + seq)
	ce.SetType(cloudEventType)
	ce.SetSource(source)
	ce.SetTime(ev.EnqueuedAt)
	if ev.Subject != "" {
		ce.SetSubject(ev.Subject)
	}
	ce.SetExtension("partition", ev.Partition)
	ce.SetExtension("sequence", seq)
	if len(ev.Key) > 0 {
		ce.SetExtension("partitionkey", string(ev.Key))
	}

	// []byte payloads are written as data_base64
	var err error
	if json.Valid(ev.Data) {
		err = ce.SetData(cloudevents.ApplicationJSON, json.RawMessage(ev.Data))
	} else {
		err = ce.SetData("application/octet-stream", ev.Data)
	}
	if err != nil {
		return ce, fmt.Errorf("failed to set event data: %w", err)
	}

	if err := ce.Validate(); err != nil {
		return ce, fmt.Errorf("invalid cloud event: %w", err)
	}

	return ce, nil
}

// tail writes every event of stream through w until the stream ends or ctx is
// canceled. Cancellation and a clean end are not errors.
func tail(ctx context.Context, stream *fanin.Stream, w eventWriter, logger *zap.Logger) (int, error) {
	written := 0

	for {
		ev, err := stream.Next(ctx)
		switch {
		case errors.Is(err, fanin.ErrStreamEnded), fanin.IsCancellation(err) && ctx.Err() != nil:
			return written, nil
		case err != nil:
			return written, err
		case ev == nil:
			logger.Debug("no events within wait time",
				zap.Int("activeReaders", stream.ActiveReaders()))

			continue
		}

		if err := w.WriteEvent(ev); err != nil {
			return written, fmt.Errorf("failed to write event: %w", err)
		}
		written++
	}
}

// parseStart parses a start position:
//
//	latest | earliest | seq:N | after:N | time:RFC3339 | since:DURATION
func parseStart(s string, now time.Time) (fanin.StartPosition, error) {
	kind, arg, _ := strings.Cut(strings.TrimSpace(s), ":")

	switch strings.ToLower(kind) {
	case "", "latest":
		return fanin.Latest(), nil
	case "earliest":
		return fanin.Earliest(), nil
	case "seq", "after":
		seq, err := strconv.ParseUint(arg, 10, 64)
		if err != nil {
			return fanin.StartPosition{}, fmt.Errorf("invalid start %q: %w", s, err)
		}

		return fanin.FromSequence(seq, kind == "seq"), nil
	case "time":
		t, err := time.Parse(time.RFC3339, arg)
		if err != nil {
			return fanin.StartPosition{}, fmt.Errorf("invalid start %q: %w", s, err)
		}

		return fanin.FromTime(t), nil
	case "since":
		d, err := time.ParseDuration(arg)
		if err != nil || d < 0 {
			return fanin.StartPosition{}, fmt.Errorf("invalid start %q: want a positive duration", s)
		}

		return fanin.FromTime(now.Add(-d)), nil
	default:
		return fanin.StartPosition{}, fmt.Errorf("invalid start %q: want latest, earliest, seq:N, after:N, time:RFC3339 or since:DURATION", s)
	}
}
