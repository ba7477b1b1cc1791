package dalonline

import (
	"seatwatch/lib/telemetry"
)

var tracer = telemetry.Tracer("seatwatch.lib.scrapers.dalonline")
