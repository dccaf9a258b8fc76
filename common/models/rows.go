package models

// Attribute names of the time-series row image published by the change feed.
// They match the column names of the time-series table.
const (
	AttrPlantMachineID = "plant_machine_id"
	AttrTimestamp      = "ts"
	AttrPlantID        = "plant_id"
	AttrMachineID      = "machine_id"
	AttrMacID          = "mac_id"
	AttrPacketID       = "packet_id"
	AttrSlaveID        = "slave_id"
	AttrSlaveName      = "slave_name"
	AttrKW             = "kw"
	AttrKVAr           = "kvar"
	AttrKVA            = "kva"
	AttrPowerFactor    = "power_factor"
	AttrUtilization    = "utilization"
	AttrPlantBucket    = "plant_bucket"
	AttrTTL            = "ttl"
)

// PlantMachineID builds the composite device key shared by both stores.
func PlantMachineID(plantID, machineID string) string {
	return plantID + "#" + machineID
}

// TimeSeriesRow is one observation keyed by (PlantMachineID, Timestamp).
type TimeSeriesRow struct {
	PlantMachineID string            `json:"plantMachineId"`
	Timestamp      int64             `json:"timestamp"`
	PlantID        string            `json:"plantId"`
	MachineID      string            `json:"machineId"`
	MacID          Optional[string]  `json:"macId"`
	PacketID       Optional[string]  `json:"packetId"`
	SlaveID        Optional[string]  `json:"slaveId"`
	SlaveName      Optional[string]  `json:"slaveName"`
	KW             Optional[float64] `json:"kw"`
	KVAr           Optional[float64] `json:"kvar"`
	KVA            Optional[float64] `json:"kva"`
	PowerFactor    Optional[float64] `json:"powerFactor,omitzero"`
	Utilization    Optional[int]     `json:"utilization,omitzero"`
	PlantBucket    string            `json:"plantBucket"`
	TTL            int64             `json:"ttl"`
}

// LatestStateRow is the per-device materialized view. LastTimestamp never decreases.
// It carries no bucketing or TTL attributes.
type LatestStateRow struct {
	PlantMachineID string            `json:"plantMachineId"`
	PlantID        string            `json:"plantId"`
	MachineID      string            `json:"machineId"`
	LastTimestamp  int64             `json:"lastTimestamp"`
	MacID          Optional[string]  `json:"macId"`
	KW             Optional[float64] `json:"kw"`
	KVAr           Optional[float64] `json:"kvar"`
	KVA            Optional[float64] `json:"kva"`
	PowerFactor    Optional[float64] `json:"powerFactor,omitzero"`
	Utilization    Optional[int]     `json:"utilization,omitzero"`
}
