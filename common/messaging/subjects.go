package messaging

import (
	"hash/crc32"
	"strconv"
	"strings"
)

// HeaderPartitionKey carries the device partition key on enriched events.
const HeaderPartitionKey = "Partition-Key"

// Queue group names for load-balanced consumers.
const (
	QueueEnrichWorkers = "enrich-workers"
)

// Shard maps a partition key onto one of shards ordered lanes. Keys may hold
// characters that are not valid subject tokens, so lanes are numbered.
func Shard(partitionKey string, shards int) int {
	if shards < 1 {
		shards = 1
	}
	return int(crc32.ChecksumIEEE([]byte(partitionKey)) % uint32(shards))
}

// EnrichedSubject returns the stream subject for partitionKey.
// Example: telemetry.enriched.7
func EnrichedSubject(prefix, partitionKey string, shards int) string {
	return prefix + "." + strconv.Itoa(Shard(partitionKey, shards))
}

// EnrichedWildcard returns the subject filter covering every lane under prefix.
func EnrichedWildcard(prefix string) string {
	return prefix + ".*"
}

// RawDeviceSubject returns the uplink subject a device publishes on, given a
// raw subject filter such as "telemetry.raw.>".
func RawDeviceSubject(rawFilter, macID string) string {
	base := strings.TrimSuffix(strings.TrimSuffix(rawFilter, ">"), "*")
	base = strings.TrimSuffix(base, ".")
	token := subjectToken(macID)
	if token == "" {
		token = "anonymous"
	}
	return base + "." + token
}

// subjectToken strips characters NATS reserves inside subject tokens.
func subjectToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}
