package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveTransfer(t *testing.T) {
	before := testutil.ToFloat64(TransfersTotal.WithLabelValues("bsc", "split", "succeeded"))
	failedBefore := testutil.ToFloat64(TransfersTotal.WithLabelValues("bsc", "split", "failed"))

	ObserveTransfer("bsc", "split", true, time.Now())
	ObserveTransfer("bsc", "split", false, time.Now())

	assert.InDelta(t, before+1, testutil.ToFloat64(TransfersTotal.WithLabelValues("bsc", "split", "succeeded")), 0)
	assert.InDelta(t, failedBefore+1, testutil.ToFloat64(TransfersTotal.WithLabelValues("bsc", "split", "failed")), 0)
}
