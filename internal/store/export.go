package store

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/san-kum/trainsim/internal/dynamo"
)

// Header is the CSV column layout, one column per sample field.
var Header = []string{
	"time_s",
	"position_m",
	"speed_mps",
	"accel_mps2",
	"tractive_force_n",
	"power_w",
	"energy_j",
	"regen_energy_j",
	"current_a",
}

func row(s dynamo.Sample) []string {
	vals := [...]float64{
		s.TimeS,
		s.PositionM,
		s.SpeedMps,
		s.AccelMps2,
		s.TractiveForceN,
		s.PowerW,
		s.EnergyJ,
		s.RegenEnergyJ,
		s.CurrentA,
	}
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = strconv.FormatFloat(v, 'f', 6, 64)
	}
	return out
}

func WriteCSV(w io.Writer, samples []dynamo.Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, s := range samples {
		if err := cw.Write(row(s)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportCSV renders samples as CSV. It fails with ErrNoResults when there
// is nothing to export.
func ExportCSV(samples []dynamo.Sample) ([]byte, error) {
	if len(samples) == 0 {
		return nil, dynamo.ErrNoResults
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, samples); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseCSV reads back what WriteCSV wrote. Mode and segment are not part
// of the CSV and come back zero.
func ParseCSV(r io.Reader) ([]dynamo.Sample, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parse csv: missing header")
	}
	if !slices.Equal(records[0], Header) {
		return nil, fmt.Errorf("parse csv: unexpected header %v", records[0])
	}

	samples := make([]dynamo.Sample, 0, len(records)-1)
	for i, rec := range records[1:] {
		var vals [9]float64
		for j := range vals {
			v, err := strconv.ParseFloat(rec[j], 64)
			if err != nil {
				return nil, fmt.Errorf("parse csv: line %d, %s: %w", i+2, Header[j], err)
			}
			vals[j] = v
		}
		samples = append(samples, dynamo.Sample{
			TimeS:          vals[0],
			PositionM:      vals[1],
			SpeedMps:       vals[2],
			AccelMps2:      vals[3],
			TractiveForceN: vals[4],
			PowerW:         vals[5],
			EnergyJ:        vals[6],
			RegenEnergyJ:   vals[7],
			CurrentA:       vals[8],
		})
	}
	return samples, nil
}

func ExportJSON(w io.Writer, result Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
