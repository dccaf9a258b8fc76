package models

import (
	"encoding/json"
	"fmt"
)

// Unknown is the sentinel for identifiers that neither the payload nor the registry supplied.
const Unknown = "unknown"

// EnrichedEvent is the canonical record published to the telemetry stream.
// PlantID and MachineID are always set (possibly Unknown) and ReceivedAt is
// always a non-negative epoch-millisecond value.
type EnrichedEvent struct {
	PacketID    Optional[string]  `json:"packetId"`
	MacID       Optional[string]  `json:"macId"`
	SlaveID     Optional[string]  `json:"slaveId"`
	SlaveName   Optional[string]  `json:"slaveName"`
	PlantID     string            `json:"plantId"`
	MachineID   string            `json:"machineId"`
	ReceivedAt  int64             `json:"receivedAt"`
	KW          Optional[float64] `json:"kw"`
	KVAr        Optional[float64] `json:"kvar"`
	KVA         Optional[float64] `json:"kva"`
	PowerFactor Optional[float64] `json:"powerFactor,omitzero"`
	Utilization Optional[int]     `json:"utilization,omitzero"`
}

// Marshal serializes the event for transport.
func (e EnrichedEvent) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal enriched event: %w", err)
	}
	return data, nil
}

// PartitionKey routes all events of one device to the same ordered lane.
// machine should be the resolved machine identifier before defaulting.
func PartitionKey(plant, machine, mac Optional[string]) string {
	return plant.OrElse(Unknown) + "#" + machine.Or(mac).OrElse(Unknown)
}
