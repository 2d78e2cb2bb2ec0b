package metrics

import (
	"github.com/bsm/openmetrics"
)

var (
	TelemetryDatagrams = openmetrics.DefaultRegistry().Counter(openmetrics.Desc{
		Name:   "telemetry_datagrams",
		Help:   "Telemetry datagrams received, by decoded kind",
		Labels: []string{"kind"},
	})
	TelemetryDecodeFailures = openmetrics.DefaultRegistry().Counter(openmetrics.Desc{
		Name: "telemetry_decode_failures",
		Help: "Telemetry datagrams discarded because they did not decode",
	})
	TelemetryPanics = openmetrics.DefaultRegistry().Counter(openmetrics.Desc{
		Name: "telemetry_panics",
		Help: "Telemetry datagrams whose processing panicked",
	})
	WallboxCommands = openmetrics.DefaultRegistry().Counter(openmetrics.Desc{
		Name:   "wallbox_commands",
		Help:   "Commands sent to the wallbox, by command and result",
		Labels: []string{"command", "result"},
	})
	WallboxCommandedPower = openmetrics.DefaultRegistry().Gauge(openmetrics.Desc{
		Name: "wallbox_commanded_power",
		Unit: "watt",
		Help: "The last power value acknowledged by the wallbox",
	})
	WallboxOn = openmetrics.DefaultRegistry().Gauge(openmetrics.Desc{
		Name: "wallbox_on",
		Help: "1 when the wallbox is energized",
	})
	GridPower = openmetrics.DefaultRegistry().Gauge(openmetrics.Desc{
		Name: "grid_power",
		Unit: "watt",
		Help: "Sum of the grid channels of the last phase reading",
	})
	SolarPower = openmetrics.DefaultRegistry().Gauge(openmetrics.Desc{
		Name: "solar_power",
		Unit: "watt",
		Help: "Latest solar generation",
	})
	ExportablePower = openmetrics.DefaultRegistry().Gauge(openmetrics.Desc{
		Name: "exportable_power",
		Unit: "watt",
		Help: "Surplus computed by the last control loop evaluation",
	})
	Notifications = openmetrics.DefaultRegistry().Counter(openmetrics.Desc{
		Name:   "notifications",
		Help:   "Notifications delivered, by kind and result",
		Labels: []string{"kind", "result"},
	})
)

func BoolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
