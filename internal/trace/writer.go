package trace

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Header identifies the run a trace file belongs to.
type Header struct {
	RunID  string `json:"run_id"`
	Video  string `json:"video,omitempty"`
	ROI    string `json:"roi"`
	Frames int    `json:"frames"`
}

// Writer streams records to an output format.
type Writer interface {
	WriteHeader(h Header) error
	Write(r Record) error
	Flush() error
}

// JSONLWriter writes one JSON document per line; the first line is the header.
type JSONLWriter struct {
	enc *json.Encoder
}

func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{enc: json.NewEncoder(w)}
}

func (j *JSONLWriter) WriteHeader(h Header) error {
	return j.enc.Encode(struct {
		Kind string `json:"kind"`
		Header
	}{Kind: "header", Header: h})
}

func (j *JSONLWriter) Write(r Record) error {
	return j.enc.Encode(r)
}

func (j *JSONLWriter) Flush() error { return nil }

// ReadJSONL reads the records of a JSON Lines trace, skipping the header.
// Records that fail Validate stop the read with an error.
func ReadJSONL(r io.Reader) (Header, []Record, error) {
	var h Header
	var records []Record
	dec := json.NewDecoder(r)
	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return h, records, fmt.Errorf("failed to decode trace line %d: %w", len(records)+1, err)
		}
		var tag struct {
			Kind string `json:"kind"`
		}
		if err := json.Unmarshal(raw, &tag); err != nil {
			return h, records, fmt.Errorf("failed to decode trace kind: %w", err)
		}
		if tag.Kind == "header" {
			if err := json.Unmarshal(raw, &h); err != nil {
				return h, records, fmt.Errorf("failed to decode trace header: %w", err)
			}
			continue
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return h, records, fmt.Errorf("failed to decode trace record: %w", err)
		}
		if err := rec.Validate(); err != nil {
			return h, records, fmt.Errorf("invalid trace record: %w", err)
		}
		records = append(records, rec)
	}
	return h, records, nil
}

// CSVWriter writes one row per record. The header is written as comment lines.
type CSVWriter struct {
	out io.Writer
	csv *csv.Writer
}

var csvColumns = []string{
	"frame_id", "kind", "frame_intensity",
	"center_x", "center_y", "major_r",
	"rect_cx", "rect_cy", "rect_major", "rect_minor", "rect_angle",
	"contour_len",
}

func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{out: w, csv: csv.NewWriter(w)}
}

func (c *CSVWriter) WriteHeader(h Header) error {
	if _, err := fmt.Fprintf(c.out, "# run_id=%s roi=%s frames=%d\n", h.RunID, h.ROI, h.Frames); err != nil {
		return err
	}
	return c.csv.Write(csvColumns)
}

func (c *CSVWriter) Write(r Record) error {
	row := make([]string, len(csvColumns))
	row[0] = strconv.Itoa(r.FrameID)
	row[1] = string(r.Kind)
	if v, ok := r.Intensity(); ok {
		row[2] = formatFloat(v)
	}
	if d := r.Detection; d != nil {
		row[3] = formatFloat(d.Center.X)
		row[4] = formatFloat(d.Center.Y)
		row[5] = formatFloat(d.MajorRadius)
		for i, v := range d.RotatedRect {
			row[6+i] = formatFloat(v)
		}
		row[11] = strconv.Itoa(len(d.Contour))
	}
	return c.csv.Write(row)
}

func (c *CSVWriter) Flush() error {
	c.csv.Flush()
	return c.csv.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// WriteFile writes header and records to path, choosing CSV for a .csv
// extension and JSON Lines otherwise.
func WriteFile(path string, h Header, records []Record) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create trace file: %w", err)
	}

	var w Writer
	if filepath.Ext(path) == ".csv" {
		w = NewCSVWriter(f)
	} else {
		w = NewJSONLWriter(f)
	}

	if err := WriteAll(w, h, records); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	return nil
}

// WriteAll writes the header, every record and flushes.
func WriteAll(w Writer, h Header, records []Record) error {
	if err := w.WriteHeader(h); err != nil {
		return fmt.Errorf("failed to write trace header: %w", err)
	}
	for _, r := range records {
		if err := w.Write(r); err != nil {
			return fmt.Errorf("failed to write record %d: %w", r.FrameID, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush trace: %w", err)
	}
	return nil
}
