package telemetry

import (
	"testing"
	"time"

	"github.com/berfenger/surplus2wallbox/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var receivedAt = time.Date(2026, 6, 21, 12, 0, 0, 0, time.UTC)

const electricityDoc = `<electricity id="443719100A2B">
  <timestamp>1718971200</timestamp>
  <signal rssi="-61" lqi="48"/>
  <battery level="100%"/>
  <channels>
    <chan id="0"><curr units="w">412.00</curr><day units="wh">3021.55</day></chan>
    <chan id="1"><curr units="w">95.50</curr><day units="wh">811.02</day></chan>
    <chan id="2"><curr units="w">1300.00</curr><day units="wh">9001.00</day></chan>
    <chan id="3"><curr units="w">1000.00</curr><day units="wh">7000.00</day></chan>
    <chan id="4"><curr units="w">1000.00</curr><day units="wh">7000.00</day></chan>
    <chan id="5"><curr units="w">950.25</curr><day units="wh">6900.00</day></chan>
  </channels>
</electricity>`

const solarDoc = `<solar id="443719100A2B">
  <timestamp>1718971203</timestamp>
  <current><generating units="w">2875.00</generating><exporting units="w">0.00</exporting></current>
  <day><generated units="wh">12034.00</generated><exported units="wh">0.00</exported></day>
</solar>`

func TestDecodeElectricity(t *testing.T) {
	r := Decode([]byte(electricityDoc), receivedAt)
	phase, ok := r.(domain.PhaseReading)
	require.True(t, ok, "got %#v", r)
	assert.Equal(t, [6]float64{412, 95.5, 1300, 1000, 1000, 950.25}, phase.Channels)
	assert.InDelta(t, 1807.5, phase.GridTotal(), 0.001)
	assert.InDelta(t, 2950.25, phase.SolarTotal(), 0.001)
	assert.Equal(t, receivedAt, phase.ReceivedAt)
}

func TestDecodeSolar(t *testing.T) {
	r := Decode([]byte(solarDoc), receivedAt)
	solar, ok := r.(domain.SolarSample)
	require.True(t, ok, "got %#v", r)
	assert.Equal(t, 2875.0, solar.Generating)
	assert.Equal(t, receivedAt, solar.ReceivedAt)
}

func TestDecodeMissingAndMalformedChannels(t *testing.T) {
	doc := `<electricity><channels>
		<chan id="0"><curr>100</curr></chan>
		<chan id="2"><curr>n/a</curr></chan>
		<chan id="4"></chan>
		<chan id="9"><curr>5000</curr></chan>
		<chan id="x"><curr>5000</curr></chan>
	</channels></electricity>`

	r := Decode([]byte(doc), receivedAt)
	phase, ok := r.(domain.PhaseReading)
	require.True(t, ok, "got %#v", r)
	assert.Equal(t, [6]float64{100, 0, 0, 0, 0, 0}, phase.Channels)
}

func TestDecodeNonFiniteChannels(t *testing.T) {
	doc := `<electricity><channels>
		<chan id="0"><curr>NaN</curr></chan>
		<chan id="1"><curr>Inf</curr></chan>
		<chan id="2"><curr>-Inf</curr></chan>
		<chan id="3"><curr>9000</curr></chan>
		<chan id="4"><curr>+Inf</curr></chan>
		<chan id="5"><curr>nan</curr></chan>
	</channels></electricity>`

	r := Decode([]byte(doc), receivedAt)
	phase, ok := r.(domain.PhaseReading)
	require.True(t, ok, "got %#v", r)
	assert.Equal(t, [6]float64{0, 0, 0, 9000, 0, 0}, phase.Channels)
	assert.Equal(t, 0.0, phase.GridTotal())
	assert.Equal(t, 9000.0, phase.SolarTotal())
}

func TestDecodeToleratesInvalidUTF8(t *testing.T) {
	doc := []byte(`<?xml version="1.0" encoding="ISO-8859-1"?><solar><current><generating>1200</generating></current><x>` + "\xff\xfe" + `</x></solar>`)
	r := Decode(doc, receivedAt)
	solar, ok := r.(domain.SolarSample)
	require.True(t, ok, "got %#v", r)
	assert.Equal(t, 1200.0, solar.Generating)
}

func TestDecodeUnrecognized(t *testing.T) {
	cases := map[string]string{
		"empty":              ``,
		"garbage":            `hello world`,
		"unknown root":       `<weather><temp>21</temp></weather>`,
		"unclosed":           `<electricity><channels><chan id="0"><curr>1</curr></chan>`,
		"no channels":        `<electricity><timestamp>1</timestamp></electricity>`,
		"empty channels":     `<electricity><channels></channels></electricity>`,
		"solar no current":   `<solar><day/></solar>`,
		"solar no value":     `<solar><current><exporting>0</exporting></current></solar>`,
		"solar non numeric":  `<solar><current><generating>abc</generating></current></solar>`,
		"solar NaN":          `<solar><current><generating>NaN</generating></current></solar>`,
		"solar Inf":          `<solar><current><generating>Inf</generating></current></solar>`,
		"solar -Inf":         `<solar><current><generating>-Inf</generating></current></solar>`,
		"two roots":          `<solar><current><generating>1</generating></current></solar><solar/>`,
		"trailing text":      `<solar><current><generating>1</generating></current></solar>oops`,
		"mismatched closing": `<solar><current><generating>1</generating></current></electricity>`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			r := Decode([]byte(doc), receivedAt)
			u, ok := r.(domain.Unrecognized)
			require.True(t, ok, "got %#v", r)
			assert.Error(t, u.Reason)
			assert.Equal(t, "unrecognized", domain.ReadingKind(r))
		})
	}
}
