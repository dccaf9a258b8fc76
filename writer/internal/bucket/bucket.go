// Package bucket spreads one plant's rows across a fixed number of secondary
// index partitions.
package bucket

import (
	"hash/crc32"
	"strconv"
)

// Number returns crc32(machineID) mod numBuckets. numBuckets must be >= 1.
func Number(machineID string, numBuckets int) int {
	return int(crc32.ChecksumIEEE([]byte(machineID)) % uint32(numBuckets))
}

// PlantBucket returns the "<plantId>#<n>" index key for a device.
func PlantBucket(plantID, machineID string, numBuckets int) string {
	return Key(plantID, Number(machineID, numBuckets))
}

// Key formats the index key for bucket n of plantID.
func Key(plantID string, n int) string {
	return plantID + "#" + strconv.Itoa(n)
}

// All returns every index key of plantID, in bucket order.
func All(plantID string, numBuckets int) []string {
	keys := make([]string, numBuckets)
	for i := range keys {
		keys[i] = Key(plantID, i)
	}
	return keys
}
