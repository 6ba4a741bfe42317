package natsjs

import (
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/arloliu/fanin/internal/logging"
	"github.com/arloliu/fanin/types"
)

// Default configuration values.
const (
	// DefaultConsumerPrefix prefixes ephemeral consumer names.
	DefaultConsumerPrefix = "fanin"

	// DefaultInactiveThreshold is how long the server keeps an idle ephemeral consumer.
	DefaultInactiveThreshold = 5 * time.Minute

	// DefaultFetchTimeout bounds a fetch when the caller passes no wait time.
	DefaultFetchTimeout = 5 * time.Second

	// DefaultKeyHeader is the header copied into types.Event.Key.
	DefaultKeyHeader = "Nats-Msg-Id"
)

// partitionMarker is rendered into the subject template to locate the partition id.
const partitionMarker = "\x00partition\x00"

// Config configures the JetStream transport.
//
// Required fields:
//   - StreamName
//   - SubjectTemplate
type Config struct {
	StreamName string

	// SubjectTemplate renders a partition's subject from {{.PartitionID}}.
	SubjectTemplate string

	ConsumerPrefix    string
	InactiveThreshold time.Duration
	KeyHeader         string

	// MemoryStorage keeps consumer state in memory on the server.
	MemoryStorage bool

	Logger types.Logger
}

// subjectContext is the data passed to SubjectTemplate.
type subjectContext struct {
	PartitionID string
}

// applyDefaults fills unset optional fields with project defaults.
func (cfg *Config) applyDefaults() {
	if cfg.ConsumerPrefix == "" {
		cfg.ConsumerPrefix = DefaultConsumerPrefix
	}
	if cfg.InactiveThreshold == 0 {
		cfg.InactiveThreshold = DefaultInactiveThreshold
	}
	if cfg.KeyHeader == "" {
		cfg.KeyHeader = DefaultKeyHeader
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
}

// subjects holds the parsed template and its literal prefix and suffix.
type subjects struct {
	tmpl   *template.Template
	prefix string
	suffix string
}

func parseSubjects(cfg Config) (*subjects, error) {
	if cfg.StreamName == "" {
		return nil, fmt.Errorf("%w: stream name is required", types.ErrInvalidConfig)
	}
	if cfg.SubjectTemplate == "" {
		return nil, fmt.Errorf("%w: subject template is required", types.ErrInvalidConfig)
	}

	tmpl, err := template.New("subject").Option("missingkey=error").Parse(cfg.SubjectTemplate)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid subject template: %w", types.ErrInvalidConfig, err)
	}

	s := &subjects{tmpl: tmpl}
	rendered, err := s.render(partitionMarker)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid subject template: %w", types.ErrInvalidConfig, err)
	}
	if strings.Count(rendered, partitionMarker) != 1 {
		return nil, fmt.Errorf("%w: subject template must reference {{.PartitionID}} exactly once", types.ErrInvalidConfig)
	}
	s.prefix, s.suffix, _ = strings.Cut(rendered, partitionMarker)

	return s, nil
}

func (s *subjects) render(partitionID string) (string, error) {
	var buf strings.Builder
	if err := s.tmpl.Execute(&buf, subjectContext{PartitionID: partitionID}); err != nil {
		return "", fmt.Errorf("failed to execute subject template: %w", err)
	}

	return buf.String(), nil
}

// subject renders the subject of a partition.
func (s *subjects) subject(partitionID string) (string, error) {
	if partitionID == "" {
		return "", types.ErrPartitionRequired
	}
	if strings.ContainsAny(partitionID, " \t\r\n*>") {
		return "", errors.New("partition id contains characters invalid in a subject")
	}

	return s.render(partitionID)
}

// partitionOf inverts the template for a stream subject.
func (s *subjects) partitionOf(subject string) (string, bool) {
	rest, ok := strings.CutPrefix(subject, s.prefix)
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, s.suffix)
	if !ok || id == "" {
		return "", false
	}

	return id, true
}

// filter returns the narrowest subject filter covering every partition subject.
func (s *subjects) filter() string {
	if s.suffix == "" && strings.HasSuffix(s.prefix, ".") {
		return s.prefix + ">"
	}

	return ">"
}

// sanitizeConsumerName replaces characters JetStream rejects in consumer names.
func sanitizeConsumerName(name string) string {
	var result strings.Builder
	result.Grow(len(name))

	for _, r := range name {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' ||
			r == '.' || r == '*' || r == '>' ||
			r == '/' || r == '\\' ||
			r < 32 || r == 127 {
			result.WriteRune('_')
		} else {
			result.WriteRune(r)
		}
	}

	return result.String()
}
