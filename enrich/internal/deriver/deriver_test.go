package deriver

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/telhawk-systems/powerhawk/common/models"
)

func TestDerive(t *testing.T) {
	tests := []struct {
		name      string
		packet    models.RawPacket
		threshold float64
		wantKW    models.Optional[float64]
		wantPF    models.Optional[float64]
		wantUtil  int
	}{
		{
			name:      "flat numbers",
			packet:    models.RawPacket{"kw": 50.0, "kva": 100.0},
			threshold: 0.3,
			wantKW:    models.Some(50.0),
			wantPF:    models.Some(0.5),
			wantUtil:  1,
		},
		{
			name:      "numeric strings and json numbers",
			packet:    models.RawPacket{"kw": "1", "kva": json.Number("3")},
			threshold: 2,
			wantKW:    models.Some(1.0),
			wantPF:    models.Some(0.3333),
			wantUtil:  0,
		},
		{
			name:      "nested fallback",
			packet:    models.RawPacket{"SlaveData": map[string]any{"Total_Kw": 3.0, "Total_kVA": 4.0}},
			threshold: 0.3,
			wantKW:    models.Some(3.0),
			wantPF:    models.Some(0.75),
			wantUtil:  1,
		},
		{
			name:      "flat null falls back to nested",
			packet:    models.RawPacket{"kw": nil, "SlaveData": map[string]any{"Total_Kw": 1.0}},
			threshold: 0.3,
			wantKW:    models.Some(1.0),
			wantUtil:  1,
		},
		{
			name:      "flat garbage does not fall back",
			packet:    models.RawPacket{"kw": "Response Timed Out", "SlaveData": map[string]any{"Total_Kw": 1.0}},
			threshold: 0.3,
			wantUtil:  0,
		},
		{
			name:      "zero kva yields no power factor",
			packet:    models.RawPacket{"kw": 5.0, "kva": 0.0},
			threshold: 0.3,
			wantKW:    models.Some(5.0),
			wantUtil:  1,
		},
		{
			name:      "negative kva yields no power factor",
			packet:    models.RawPacket{"kw": 5.0, "kva": -2.0},
			threshold: 0.3,
			wantKW:    models.Some(5.0),
			wantUtil:  1,
		},
		{
			name:      "kw zero is present and below threshold",
			packet:    models.RawPacket{"kw": 0.0, "kva": 10.0},
			threshold: 0.3,
			wantKW:    models.Some(0.0),
			wantPF:    models.Some(0.0),
			wantUtil:  0,
		},
		{
			name:      "kw exactly at threshold",
			packet:    models.RawPacket{"kw": 0.3},
			threshold: 0.3,
			wantKW:    models.Some(0.3),
			wantUtil:  1,
		},
		{
			name:      "empty packet",
			packet:    models.RawPacket{},
			threshold: 0.3,
			wantUtil:  0,
		},
		{
			name:      "SlaveData not an object",
			packet:    models.RawPacket{"SlaveData": "oops"},
			threshold: 0.3,
			wantUtil:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Derive(tt.packet, tt.threshold)
			assert.Equal(t, tt.wantKW, m.KW)
			assert.Equal(t, tt.wantPF, m.PowerFactor)
			assert.Equal(t, tt.wantUtil, m.Utilization)
		})
	}
}

func TestRead_AbsentVersusZero(t *testing.T) {
	omitted := Read(models.RawPacket{"kva": 1.0})
	zero := Read(models.RawPacket{"kw": 0.0})

	assert.False(t, omitted.KW.IsPresent())
	v, ok := zero.KW.Get()
	assert.True(t, ok)
	assert.Equal(t, 0.0, v)
}

func TestRead_AllNested(t *testing.T) {
	r := Read(models.RawPacket{"SlaveData": map[string]any{
		"Total_Kw": "10", "Total_KVAr": 2.5, "Total_kVA": json.Number("12"),
	}})
	assert.Equal(t, models.Some(10.0), r.KW)
	assert.Equal(t, models.Some(2.5), r.KVAr)
	assert.Equal(t, models.Some(12.0), r.KVA)
}
