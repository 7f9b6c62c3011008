package persist

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/godwinm8/Stateless-2D-Editor/persist"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
