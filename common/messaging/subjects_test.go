package messaging

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShard_Deterministic(t *testing.T) {
	for _, key := range []string{"p1#dev1", "unknown#unknown", ""} {
		first := Shard(key, 16)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, Shard(key, 16))
		}
		assert.GreaterOrEqual(t, first, 0)
		assert.Less(t, first, 16)
	}
}

func TestShard_KnownValues(t *testing.T) {
	// crc32("dev1") = 4087834825
	assert.Equal(t, 1, Shard("dev1", 8))
	// crc32("") = 0
	assert.Equal(t, 0, Shard("", 8))
	assert.Equal(t, 0, Shard("dev1", 0), "non-positive shard count collapses to a single lane")
}

func TestEnrichedSubject(t *testing.T) {
	assert.Equal(t, "telemetry.enriched.1", EnrichedSubject("telemetry.enriched", "dev1", 8))

	subject := EnrichedSubject("telemetry.enriched", "plant #1#dev.1", 16)
	assert.True(t, strings.HasPrefix(subject, "telemetry.enriched."))
	assert.Len(t, strings.Split(subject, "."), 3, "partition key characters must not leak into the subject")
}

func TestEnrichedWildcard(t *testing.T) {
	assert.Equal(t, "telemetry.enriched.*", EnrichedWildcard("telemetry.enriched"))
}

func TestRawDeviceSubject(t *testing.T) {
	tests := []struct {
		filter string
		mac    string
		want   string
	}{
		{"telemetry.raw.>", "AA:BB:CC", "telemetry.raw.AA:BB:CC"},
		{"telemetry.raw.*", "m1", "telemetry.raw.m1"},
		{"telemetry.raw", "m.1 x", "telemetry.raw.m_1_x"},
		{"telemetry.raw.>", "", "telemetry.raw.anonymous"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RawDeviceSubject(tt.filter, tt.mac))
	}
}
