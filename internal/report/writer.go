package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// zstdMagic is the frame header of a zstd stream.
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// New creates an empty report with a fresh run ID.
func New(profileName, codecName, mode string) *Report {
	return &Report{
		Version:     SupportedVersion,
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Profile:     profileName,
		Codec:       codecName,
		Mode:        mode,
		Entries:     []Entry{},
	}
}

// ComputeStats recalculates aggregate statistics from entries.
func (r *Report) ComputeStats() {
	var s Stats
	s.TotalFiles = len(r.Entries)
	s.Failed = len(r.Failures)
	for _, e := range r.Entries {
		s.TotalInputBytes += e.InputSize
		s.TotalOutputBytes += e.Size
	}
	if s.TotalInputBytes > 0 {
		s.Ratio = float64(s.TotalOutputBytes) / float64(s.TotalInputBytes)
	}
	r.Stats = s
}

// WriteJSON serializes the report to path. A ".zst" suffix writes a
// zstd-compressed file.
func WriteJSON(r *Report, path string) error {
	r.ComputeStats()

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if strings.HasSuffix(path, ".zst") {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return err
		}
		data = enc.EncodeAll(data, nil)
		if err := enc.Close(); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// Read loads a report, transparently decompressing zstd files.
func Read(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a plain or zstd-compressed report. Unknown fields are
// ignored; a newer schema version is rejected.
func Parse(data []byte) (*Report, error) {
	if bytes.HasPrefix(data, zstdMagic) {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		data, err = dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress report: %w", err)
		}
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	if r.Version > SupportedVersion {
		return nil, fmt.Errorf("report version %d is newer than supported version %d",
			r.Version, SupportedVersion)
	}
	return &r, nil
}
