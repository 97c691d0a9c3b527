// Package cli provides output formatting and a small HTTP client for the
// vectorgraph command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/hyperjump/vectorgraph/internal/models"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json"; empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text or json)", s)
	}
}

// StatusResponse mirrors the body of GET /status.
type StatusResponse struct {
	Status         string                 `json:"status"`
	Collections    int                    `json:"collections"`
	Points         int                    `json:"points"`
	Edges          int                    `json:"edges"`
	UptimeSeconds  float64                `json:"uptime_seconds"`
	DiskUsageBytes *int64                 `json:"disk_usage_bytes,omitempty"`
	Config         map[string]interface{} `json:"config,omitempty"`
}

// CollectionsResponse mirrors the body of GET /collections.
type CollectionsResponse struct {
	Status      string                           `json:"status"`
	Collections map[string]models.CollectionInfo `json:"collections"`
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteStatus writes server status to w in the given format.
func WriteStatus(w io.Writer, status *StatusResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	fmt.Fprintf(w, "Collections: %d\n", status.Collections)
	fmt.Fprintf(w, "Points:      %d\n", status.Points)
	fmt.Fprintf(w, "Edges:       %d\n", status.Edges)
	fmt.Fprintf(w, "Uptime:      %.0fs\n", status.UptimeSeconds)
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "Disk usage:  %s\n", FormatBytes(*status.DiskUsageBytes))
	}
	if len(status.Config) > 0 {
		keys := make([]string, 0, len(status.Config))
		for k := range status.Config {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintln(w, "Config:")
		for _, k := range keys {
			fmt.Fprintf(w, "  %s: %v\n", k, status.Config[k])
		}
	}
	return nil
}

// WriteCollections writes a collection table (or JSON) sorted by name.
func WriteCollections(w io.Writer, resp *CollectionsResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	if len(resp.Collections) == 0 {
		fmt.Fprintln(w, "No collections.")
		return nil
	}
	names := make([]string, 0, len(resp.Collections))
	for name := range resp.Collections {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVECTORS\tON_DISK\tPOINTS\tEDGES")
	for _, name := range names {
		info := resp.Collections[name]
		fmt.Fprintf(tw, "%s\t%s\t%v\t%d\t%d\n", name, describeSchema(info.Vectors), info.OnDisk, info.PointsCount, info.EdgesCount)
	}
	return tw.Flush()
}

func describeSchema(s models.Schema) string {
	parts := make([]string, 0, len(s))
	for _, field := range s.Fields() {
		p := s[field]
		parts = append(parts, fmt.Sprintf("%s(%d,%s)", field, p.Size, p.Distance))
	}
	return strings.Join(parts, " ")
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
