package output

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func captureStdout(f func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	f()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func captureStderr(f func()) string {
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	f()

	w.Close()
	os.Stderr = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func TestSuccess(t *testing.T) {
	out := captureStdout(func() {
		Success("Registered %d devices", 3)
	})
	assert.Equal(t, "✓ Registered 3 devices\n", out)
}

func TestError(t *testing.T) {
	out := captureStderr(func() {
		Error("failed: %s", "timeout")
	})
	assert.Equal(t, "✗ failed: timeout\n", out)
}

func TestInfoAndWarn(t *testing.T) {
	out := captureStdout(func() {
		Info("published %d", 10)
		Warn("dropped %d", 1)
	})
	assert.Equal(t, "published 10\n⚠ dropped 1\n", out)
}

func TestValidFormat(t *testing.T) {
	assert.True(t, ValidFormat("table"))
	assert.True(t, ValidFormat("json"))
	assert.True(t, ValidFormat("yaml"))
	assert.False(t, ValidFormat("xml"))
}

func TestJSON_Indented(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, map[string]any{"kw": 1.5}))
	assert.Equal(t, "{\n  \"kw\": 1.5\n}\n", buf.String())
}

type marshalsItself struct{}

func (marshalsItself) MarshalJSON() ([]byte, error) { return []byte(`{"kw":null}`), nil }

func TestYAML_UsesJSONNames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, YAML(&buf, struct {
		PlantID string         `json:"plantId"`
		Reading marshalsItself `json:"reading"`
	}{PlantID: "p1"}))
	assert.Equal(t, "plantId: p1\nreading:\n  kw: null\n", buf.String())
}

func TestRender(t *testing.T) {
	table := NewTable([]string{"ID"})
	table.AddRow([]string{"m1"})

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatTable, []string{"m1"}, table))
	assert.Contains(t, buf.String(), "m1")
	assert.Contains(t, buf.String(), "--")

	buf.Reset()
	require.NoError(t, Render(&buf, FormatJSON, []string{"m1"}, table))
	var decoded []string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, []string{"m1"}, decoded)

	buf.Reset()
	require.NoError(t, Render(&buf, FormatTable, []string{"m1"}, nil))
	assert.JSONEq(t, `["m1"]`, buf.String())
}

func TestTable_Render_ColumnAlignment(t *testing.T) {
	table := NewTable([]string{"MACHINE", "KW"})
	table.AddRow([]string{"m1", "12.5"})
	table.AddRow([]string{"compressor-7", "3"})

	var buf bytes.Buffer
	table.Render(&buf)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "MACHINE       KW    ", lines[0])
	assert.Equal(t, "------------  ----  ", lines[1])
	assert.Equal(t, "m1            12.5  ", lines[2])
	assert.Equal(t, "compressor-7  3     ", lines[3])
}

func TestTable_Render_Empty(t *testing.T) {
	var buf bytes.Buffer
	NewTable([]string{"A"}).Render(&buf)
	assert.Equal(t, "A  \n-  \n", buf.String())
}

func TestTable_Render_ExtraCellsIgnored(t *testing.T) {
	table := NewTable([]string{"A"})
	table.AddRow([]string{"x", "overflow"})

	var buf bytes.Buffer
	table.Render(&buf)
	assert.NotContains(t, buf.String(), "overflow")
}
