package natsjs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/fanin/types"
)

func TestParseSubjects(t *testing.T) {
	tests := []struct {
		name     string
		template string
		prefix   string
		suffix   string
		filter   string
	}{
		{name: "trailing id", template: "events.{{.PartitionID}}", prefix: "events.", suffix: "", filter: "events.>"},
		{name: "embedded id", template: "orders.{{.PartitionID}}.created", prefix: "orders.", suffix: ".created", filter: ">"},
		{name: "bare id", template: "{{.PartitionID}}", prefix: "", suffix: "", filter: ">"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := parseSubjects(Config{StreamName: "S", SubjectTemplate: tt.template})
			require.NoError(t, err)
			require.Equal(t, tt.prefix, s.prefix)
			require.Equal(t, tt.suffix, s.suffix)
			require.Equal(t, tt.filter, s.filter())

			subject, err := s.subject("7")
			require.NoError(t, err)
			id, ok := s.partitionOf(subject)
			require.True(t, ok)
			require.Equal(t, "7", id)
		})
	}
}

func TestParseSubjects_Invalid(t *testing.T) {
	for _, cfg := range []Config{
		{SubjectTemplate: "events.{{.PartitionID}}"},
		{StreamName: "S"},
		{StreamName: "S", SubjectTemplate: "events.{{.PartitionID"},
		{StreamName: "S", SubjectTemplate: "events.static"},
		{StreamName: "S", SubjectTemplate: "events.{{.PartitionID}}.{{.PartitionID}}"},
		{StreamName: "S", SubjectTemplate: "events.{{.Missing}}"},
	} {
		_, err := parseSubjects(cfg)
		require.ErrorIs(t, err, types.ErrInvalidConfig, "template %q", cfg.SubjectTemplate)
	}
}

func TestSubjects_RejectsInvalidPartitionIDs(t *testing.T) {
	s, err := parseSubjects(Config{StreamName: "S", SubjectTemplate: "events.{{.PartitionID}}"})
	require.NoError(t, err)

	_, err = s.subject("")
	require.ErrorIs(t, err, types.ErrPartitionRequired)
	_, err = s.subject("a>")
	require.Error(t, err)

	_, ok := s.partitionOf("other.1")
	require.False(t, ok)
	_, ok = s.partitionOf("events.")
	require.False(t, ok)
}

func TestSanitizeConsumerName(t *testing.T) {
	require.Equal(t, "fanin-events_1-abc", sanitizeConsumerName("fanin-events.1-abc"))
	require.Equal(t, "a_b_c_d_e", sanitizeConsumerName("a b*c>d/e"))
}
