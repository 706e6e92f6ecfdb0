package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus/push"
)

// Push sends the pipeline metrics of a batch command to a Prometheus Pushgateway.
// HTTP server metrics are not pushed.
func Push(ctx context.Context, gatewayURL, job string) error {
	pusher := push.New(gatewayURL, job).
		Collector(HospitalsClassified).
		Collector(HospitalsUnclassified).
		Collector(ReleaseFilesTotal).
		Collector(PipelineLastSuccess)

	if err := pusher.AddContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", gatewayURL, err)
	}
	return nil
}
