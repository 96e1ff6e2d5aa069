package bridge

import (
	"strconv"

	"github.com/hashicorp/go-metrics"

	"lzbridge/types"
)

const (
	// BridgeMetricsPrefix is a bridge-related metrics prefix
	BridgeMetricsPrefix = "bridge"
)

func eidLabel(name string, eid types.EndpointID) metrics.Label {
	return metrics.Label{Name: name, Value: strconv.FormatUint(uint64(eid), 10)}
}

// updateSentMetrics counts a dispatched transfer, status is sent or reverted
func updateSentMetrics(srcEid, dstEid types.EndpointID, status string) {
	metrics.IncrCounterWithLabels([]string{BridgeMetricsPrefix, status}, float32(1),
		[]metrics.Label{eidLabel("src_eid", srcEid), eidLabel("dst_eid", dstEid)})
}

// updateReceivedMetrics counts an accepted or rejected inbound message
func updateReceivedMetrics(srcEid, dstEid types.EndpointID, err error) {
	key := []string{BridgeMetricsPrefix, "received"}
	if err != nil {
		key = []string{BridgeMetricsPrefix, "rejected"}
	}
	metrics.IncrCounterWithLabels(key, float32(1),
		[]metrics.Label{eidLabel("src_eid", srcEid), eidLabel("dst_eid", dstEid)})
}
