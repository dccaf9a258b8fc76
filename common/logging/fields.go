package logging

import "log/slog"

// Common field names for consistent logging across services.
const (
	FieldService      = "service"
	FieldPlantID      = "plant_id"
	FieldMachineID    = "machine_id"
	FieldMacID        = "mac_id"
	FieldPartitionKey = "partition_key"
	FieldRecordID     = "record_id"
	FieldTimestamp    = "timestamp"
	FieldSubject      = "subject"
	FieldReason       = "reason"
	FieldCount        = "count"
	FieldDuration     = "duration_ms"
	FieldError        = "error"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// PlantID returns a slog attribute for the plant identifier.
func PlantID(id string) slog.Attr {
	return slog.String(FieldPlantID, id)
}

// MachineID returns a slog attribute for the machine identifier.
func MachineID(id string) slog.Attr {
	return slog.String(FieldMachineID, id)
}

// MacID returns a slog attribute for the device MAC identifier.
func MacID(id string) slog.Attr {
	return slog.String(FieldMacID, id)
}

// PartitionKey returns a slog attribute for a stream partition key.
func PartitionKey(key string) slog.Attr {
	return slog.String(FieldPartitionKey, key)
}

// RecordID returns a slog attribute for a transport record identifier.
func RecordID(id string) slog.Attr {
	return slog.String(FieldRecordID, id)
}

// Timestamp returns a slog attribute for an observation timestamp (epoch ms).
func Timestamp(ts int64) slog.Attr {
	return slog.Int64(FieldTimestamp, ts)
}

// Subject returns a slog attribute for a messaging subject.
func Subject(subject string) slog.Attr {
	return slog.String(FieldSubject, subject)
}

// Reason returns a slog attribute describing why a record was skipped.
func Reason(reason string) slog.Attr {
	return slog.String(FieldReason, reason)
}

// Count returns a slog attribute for a record count.
func Count(n int) slog.Attr {
	return slog.Int(FieldCount, n)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}
