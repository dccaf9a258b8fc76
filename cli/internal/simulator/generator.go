// Package simulator generates synthetic device packets for load and
// pipeline testing.
package simulator

import (
	"fmt"
	"math"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/telhawk-systems/powerhawk/common/models"
)

// TimedOut is the reading a meter reports when its Modbus poll fails.
const TimedOut = "Response Timed Out"

// Device is one simulated meter.
type Device struct {
	MacID     string `json:"macId"`
	PlantID   string `json:"plantId"`
	MachineID string `json:"machineId"`
}

// Config controls packet generation.
type Config struct {
	Devices      int
	Plants       int
	InvalidRatio float64
	Seed         int64
}

// Generator produces packets round-robin across its devices. Half the packets
// use the flat reading shape and half the nested SlaveData shape.
type Generator struct {
	faker        *gofakeit.Faker
	devices      []Device
	invalidRatio float64
	now          func() time.Time
	next         int
}

func NewGenerator(cfg Config) *Generator {
	if cfg.Devices < 1 {
		cfg.Devices = 1
	}
	if cfg.Plants < 1 {
		cfg.Plants = 1
	}

	faker := gofakeit.New(cfg.Seed)
	devices := make([]Device, cfg.Devices)
	for i := range devices {
		devices[i] = Device{
			MacID:     faker.MacAddress(),
			PlantID:   fmt.Sprintf("plant-%d", i%cfg.Plants+1),
			MachineID: fmt.Sprintf("machine-%03d", i+1),
		}
	}

	return &Generator{
		faker:        faker,
		devices:      devices,
		invalidRatio: cfg.InvalidRatio,
		now:          time.Now,
	}
}

// Devices returns the simulated fleet.
func (g *Generator) Devices() []Device {
	return g.devices
}

// Next returns the next device and its packet. invalid reports whether the
// packet carries a timed-out kw reading.
func (g *Generator) Next() (dev Device, packet map[string]any, invalid bool) {
	dev = g.devices[g.next%len(g.devices)]
	g.next++

	kw := models.Round(g.faker.Float64Range(0.1, 75), 2)
	kvar := models.Round(g.faker.Float64Range(0, 30), 2)
	kva := models.Round(math.Hypot(kw, kvar), 2)

	invalid = g.invalidRatio > 0 && g.faker.Float64Range(0, 1) < g.invalidRatio
	var kwValue any = kw
	if invalid {
		kwValue = TimedOut
	}

	packet = map[string]any{
		"macId":      dev.MacID,
		"plantId":    dev.PlantID,
		"machineId":  dev.MachineID,
		"packetId":   g.faker.UUID(),
		"slaveId":    fmt.Sprintf("%d", g.faker.Number(1, 32)),
		"receivedAt": g.now().UnixMilli(),
	}

	if g.faker.Bool() {
		packet["kw"] = kwValue
		packet["kvar"] = fmt.Sprintf("%.2f", kvar)
		packet["kva"] = kva
	} else {
		packet[models.SlaveDataKey] = map[string]any{
			"Total_Kw":   kwValue,
			"Total_KVAr": kvar,
			"Total_kVA":  fmt.Sprintf("%.2f", kva),
		}
	}
	return dev, packet, invalid
}
