// Package report renders reports for background report jobs.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Generator renders reports. Rendering is slow relative to request
// handling, which is why report generation only ever runs inside a
// background work item.
type Generator struct {
	logger *slog.Logger
	// renderDelay approximates the cost of a real rendering backend.
	renderDelay time.Duration
}

// NewGenerator creates a Generator.
func NewGenerator(logger *slog.Logger) *Generator {
	return &Generator{
		logger:      logger,
		renderDelay: 3 * time.Second,
	}
}

// Generate renders a report of the given type and format. The context
// bounds the render; cancellation aborts with the context error.
func (g *Generator) Generate(ctx context.Context, reportType string, params map[string]string, format string) ([]byte, error) {
	if reportType == "" {
		return nil, fmt.Errorf("report type is required")
	}

	g.logger.Info("Generating report",
		slog.String("report_type", reportType),
		slog.String("format", format),
	)

	select {
	case <-time.After(g.renderDelay):
	case <-ctx.Done():
		return nil, fmt.Errorf("report generation canceled: %w", ctx.Err())
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Report: %s\n", reportType)
	fmt.Fprintf(&b, "Format: %s\n", format)
	fmt.Fprintf(&b, "Generated: %s\n", time.Now().UTC().Format(time.RFC3339))

	if len(params) > 0 {
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString("Parameters:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %s\n", k, params[k])
		}
	}

	g.logger.Info("Report generated",
		slog.String("report_type", reportType),
		slog.Int("size_bytes", b.Len()),
	)

	return []byte(b.String()), nil
}
