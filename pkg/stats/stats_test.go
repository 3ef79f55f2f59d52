package stats

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveSanitized(t *testing.T) {
	changed := SanitizedInputs.WithLabelValues("filter", "true")
	unchanged := SanitizedInputs.WithLabelValues("filter", "false")

	beforeChanged := testutil.ToFloat64(changed)
	beforeUnchanged := testutil.ToFloat64(unchanged)

	ObserveSanitized("filter", "(cn=*)", `(cn=\2a)`)
	ObserveSanitized("filter", "(cn=a)", "(cn=a)")
	ObserveSanitized("filter", "(cn=b)", "(cn=b)")

	assert.Equal(t, beforeChanged+1, testutil.ToFloat64(changed))
	assert.Equal(t, beforeUnchanged+2, testutil.ToFloat64(unchanged))
}

func TestSetVersion(t *testing.T) {
	SetVersion("v1.0.0")
	SetVersion("v1.0.1")

	assert.Equal(t, 1, testutil.CollectAndCount(buildInfo))
	assert.Equal(t, float64(1), testutil.ToFloat64(buildInfo.WithLabelValues("v1.0.1")))
}
