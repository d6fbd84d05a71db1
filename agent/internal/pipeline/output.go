package pipeline

import (
	"errors"
	"fmt"

	"github.com/obsidianstack/winsight/agent/internal/config"
	"github.com/obsidianstack/winsight/agent/internal/metrics"
	"github.com/obsidianstack/winsight/agent/internal/ndjson"
	"github.com/obsidianstack/winsight/agent/internal/report"
)

// WriteOutputs writes res to every configured output path. All outputs are
// attempted; the returned error joins any failures.
func WriteOutputs(out config.OutputConfig, res *Result) error {
	var errs []error
	if out.ReportPath != "" {
		if err := report.WriteFile(out.ReportPath, res.Report); err != nil {
			errs = append(errs, err)
		}
	}
	if out.NDJSONPath != "" {
		if err := ndjson.WriteFile(out.NDJSONPath, res.Events); err != nil {
			errs = append(errs, err)
		}
	}
	if out.MetricsPath != "" {
		if err := metrics.WriteTextfile(out.MetricsPath, res.Report); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("pipeline: write outputs: %w", err)
	}
	return nil
}
