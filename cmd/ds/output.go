package ds

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ValentinKolb/cloudstore/lib/datastore"
	"gopkg.in/yaml.v3"
)

// Output formats
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// printer renders command results in one of the output formats
type printer struct {
	w      io.Writer
	format string
}

func newPrinter(w io.Writer, format string) (*printer, error) {
	switch format {
	case FormatTable, FormatJSON, FormatYAML:
		return &printer{w: w, format: format}, nil
	default:
		return nil, fmt.Errorf("invalid output format %q (expected one of: %s, %s, %s)", format, FormatTable, FormatJSON, FormatYAML)
	}
}

// print writes v as JSON or YAML, or calls table for the table format
func (p *printer) print(v any, table func(tw *tabwriter.Writer)) error {
	switch p.format {
	case FormatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	}
}

// --------------------------------------------------------------------------
// Views
// --------------------------------------------------------------------------

// entryView is the printed form of an entry, the value is decoded so that JSON and YAML
// show the document instead of its encoding
type entryView struct {
	Key      string            `json:"key" yaml:"key"`
	Version  string            `json:"version" yaml:"version"`
	Deleted  bool              `json:"deleted,omitempty" yaml:"deleted,omitempty"`
	Created  time.Time         `json:"created" yaml:"created"`
	Updated  time.Time         `json:"updated" yaml:"updated"`
	UserIDs  []int64           `json:"user_ids,omitempty" yaml:"user_ids,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Value    any               `json:"value" yaml:"value"`
}

func newEntryView(entry datastore.Entry) entryView {
	value, err := entry.Decode()
	if err != nil {
		value = string(entry.Value)
	}
	return entryView{
		Key:      entry.Key,
		Version:  entry.Version,
		Deleted:  entry.Deleted,
		Created:  entry.CreatedTime,
		Updated:  entry.UpdatedTime,
		UserIDs:  entry.UserIDs,
		Metadata: entry.Metadata,
		Value:    value,
	}
}

func (p *printer) printEntry(entry datastore.Entry) error {
	view := newEntryView(entry)
	return p.print(view, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "KEY\t%s\n", view.Key)
		fmt.Fprintf(tw, "VERSION\t%s\n", view.Version)
		if view.Deleted {
			fmt.Fprintf(tw, "DELETED\ttrue\n")
		}
		fmt.Fprintf(tw, "CREATED\t%s\n", formatTime(view.Created))
		fmt.Fprintf(tw, "UPDATED\t%s\n", formatTime(view.Updated))
		if len(view.UserIDs) > 0 {
			ids := make([]string, len(view.UserIDs))
			for i, id := range view.UserIDs {
				ids[i] = strconv.FormatInt(id, 10)
			}
			fmt.Fprintf(tw, "USER IDS\t%s\n", strings.Join(ids, ","))
		}
		for _, k := range slices.Sorted(maps.Keys(view.Metadata)) {
			fmt.Fprintf(tw, "META %s\t%s\n", k, view.Metadata[k])
		}
		fmt.Fprintf(tw, "VALUE\t%s\n", entry.Value)
	})
}

func (p *printer) printKeys(keys []datastore.KeyInfo) error {
	return p.print(emptyIfNil(keys), func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "SCOPE\tKEY")
		for _, k := range keys {
			fmt.Fprintf(tw, "%s\t%s\n", k.Scope, k.Key)
		}
	})
}

func (p *printer) printVersions(versions []datastore.VersionInfo) error {
	return p.print(emptyIfNil(versions), func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "VERSION\tCREATED\tSIZE\tDELETED")
		for _, v := range versions {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%v\n", v.Version, formatTime(v.CreatedTime), v.ContentLength, v.Deleted)
		}
	})
}

func (p *printer) printStores(stores []datastore.StoreInfo) error {
	return p.print(emptyIfNil(stores), func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "NAME\tCREATED")
		for _, s := range stores {
			fmt.Fprintf(tw, "%s\t%s\n", s.Name, formatTime(s.CreatedTime))
		}
	})
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.RFC3339)
}

// emptyIfNil makes empty listings render as [] instead of null
func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// parseTime parses an RFC 3339 timestamp or a duration relative to now (e.g. -1h)
func parseTime(value string, now time.Time) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q (expected RFC 3339 or a duration like -1h)", value)
	}
	return now.Add(d), nil
}
