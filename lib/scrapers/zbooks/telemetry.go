package zbooks

import (
	"zbooks-collector/lib/restyutil"
	"zbooks-collector/lib/telemetry"
)

var tracer = telemetry.Tracer("zbooks-collector.lib.scrapers.zbooks")
var restyInstrumentOutput restyutil.InstrumentOutput

func SetRestyInstrumentOutput(out restyutil.InstrumentOutput) {
	restyInstrumentOutput = out
}
