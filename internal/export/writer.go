package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"acrscan/internal/fileutil"
	"acrscan/internal/match"
	"acrscan/internal/services"
)

// Stage names which pass of the pipeline a report holds.
type Stage string

const (
	StageRaw      Stage = "raw"
	StageMerged   Stage = "merged"
	StageFiltered Stage = "filtered"
)

// Format selects the report encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// WriteCSV writes records as CSV with a header row. Nothing is written for an
// empty record set.
func WriteCSV(path string, kind match.Kind, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	err := fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(Columns(kind)); err != nil {
			return err
		}
		for _, rec := range records {
			if err := cw.Write(rec.Row(kind)); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "export", "write csv", path, err)
	}
	return nil
}

// WriteJSON writes value as indented JSON.
func WriteJSON(path string, value any) error {
	err := fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	})
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "export", "write json", path, err)
	}
	return nil
}

// Write writes records in the requested format.
func Write(path string, format Format, kind match.Kind, records []Record) error {
	if format == FormatJSON {
		if len(records) == 0 {
			return nil
		}
		return WriteJSON(path, records)
	}
	return WriteCSV(path, kind, records)
}

// Prefix derives the report prefix for a scan target. Without an explicit
// output, reports sit beside the target. For a single file with an explicit
// output the target's extension is appended, so scanning a.mp3 with -o rep
// yields rep.mp3_music.csv.
func Prefix(target, output string, isDir bool) string {
	output = strings.TrimSpace(output)
	target = filepath.Clean(target)
	if output == "" {
		return target
	}
	if isDir {
		return output
	}
	return output + filepath.Ext(target)
}

// ReportPath names the report for stage and kind under prefix.
func ReportPath(prefix string, stage Stage, kind match.Kind, format Format) string {
	ext := ".csv"
	if format == FormatJSON {
		ext = ".json"
	}
	if stage == StageRaw {
		return prefix + "_" + string(kind) + ext
	}
	return prefix + "_" + string(stage) + "_" + string(kind) + ext
}

// EventsPath names the raw window event dump under prefix.
func EventsPath(prefix string) string {
	return prefix + "_events.json"
}

// LockPath names the lock file guarding a report set.
func LockPath(prefix string) string {
	return prefix + ".lock"
}

// EventDump is the persisted form of probed window events, replayable with
// the reconcile command.
type EventDump struct {
	WindowMs int64                              `json:"window_ms"`
	Events   map[match.Kind][]match.WindowEvent `json:"events"`
}

// WriteEvents persists the raw window events.
func WriteEvents(path string, dump EventDump) error {
	return WriteJSON(path, dump)
}

// ReadEvents loads a dump written by WriteEvents.
func ReadEvents(path string) (EventDump, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return EventDump{}, services.Wrap(services.ErrNotFound, "export", "read events", path, err)
	}
	var dump EventDump
	if err := json.Unmarshal(data, &dump); err != nil {
		return EventDump{}, services.Wrap(services.ErrMalformed, "export", "decode events", path, err)
	}
	for kind := range dump.Events {
		if _, err := match.ParseKind(string(kind)); err != nil {
			return EventDump{}, services.Wrap(services.ErrMalformed, "export", "decode events", path, err)
		}
	}
	return dump, nil
}
