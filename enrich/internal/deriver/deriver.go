// Package deriver computes power-quality metrics from raw device payloads.
package deriver

import "github.com/telhawk-systems/powerhawk/common/models"

// Nested totals reported by devices that wrap their readings in SlaveData.
const (
	NestedKW   = "Total_Kw"
	NestedKVAr = "Total_KVAr"
	NestedKVA  = "Total_kVA"
)

// Readings are the three raw power metrics of a packet.
type Readings struct {
	KW   models.Optional[float64]
	KVAr models.Optional[float64]
	KVA  models.Optional[float64]
}

// Metrics are the readings plus derived power factor and utilization flag.
type Metrics struct {
	Readings
	PowerFactor models.Optional[float64]
	Utilization int
}

// Read resolves kw, kvar and kva. The flat key wins; the nested SlaveData
// total is consulted only when the flat key is missing or null.
func Read(p models.RawPacket) Readings {
	return Readings{
		KW:   models.Float(lookup(p, "kw", NestedKW)),
		KVAr: models.Float(lookup(p, "kvar", NestedKVAr)),
		KVA:  models.Float(lookup(p, "kva", NestedKVA)),
	}
}

// Derive computes Metrics for p against the utilization threshold (kW).
func Derive(p models.RawPacket, thresholdKW float64) Metrics {
	r := Read(p)
	m := Metrics{Readings: r}

	kw, hasKW := r.KW.Get()
	if kva, ok := r.KVA.Get(); hasKW && ok && kva > 0 {
		m.PowerFactor = models.Some(models.Round(kw/kva, 4))
	}
	if hasKW && kw >= thresholdKW {
		m.Utilization = 1
	}
	return m
}

func lookup(p models.RawPacket, flat, nested string) any {
	if v := p[flat]; v != nil {
		return v
	}
	return p.Nested(models.SlaveDataKey, nested)
}
