package local

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/hlrcheck/hlr-batch/internal/hlr"
	"github.com/hlrcheck/hlr-batch/pkg/pipeline/schema"
)

// ReadInputRows reads an input table and returns its rows with the resolved mode.
//
// In auto mode a "prefix" column wins over an "msisdn" column; when neither is
// present the first column is read as prefixes. Prefix mode falls back to the
// first column too; msisdn mode requires its column.
func ReadInputRows(r io.Reader, mode schema.InputMode) ([]hlr.InputRow, schema.InputMode, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, mode, fmt.Errorf("read header: empty input")
	}
	if err != nil {
		return nil, mode, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	index := make(map[string]int, len(header))
	for i, col := range header {
		key := strings.ToLower(strings.TrimSpace(col))
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	col := func(name string) int {
		if i, ok := index[name]; ok {
			return i
		}
		return -1
	}

	idIdx := -1
	switch mode {
	case schema.InputModeMSISDN:
		idIdx = col(schema.ColumnMSISDN)
		if idIdx < 0 {
			return nil, mode, fmt.Errorf("missing required column %q", schema.ColumnMSISDN)
		}
	case schema.InputModePrefix:
		idIdx = col(schema.ColumnPrefix)
		if idIdx < 0 {
			idIdx = 0
		}
	default:
		switch {
		case col(schema.ColumnPrefix) >= 0:
			mode, idIdx = schema.InputModePrefix, col(schema.ColumnPrefix)
		case col(schema.ColumnMSISDN) >= 0:
			mode, idIdx = schema.InputModeMSISDN, col(schema.ColumnMSISDN)
		default:
			mode, idIdx = schema.InputModePrefix, 0
		}
	}
	cityIdx := col(schema.ColumnCity)
	simIdx := col(schema.ColumnSimCard)
	providerIdx := col(schema.ColumnProvider)

	var rows []hlr.InputRow
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, mode, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		if idIdx >= len(rec) {
			return nil, mode, fmt.Errorf("row %d has %d columns, want at least %d", len(rows)+1, len(rec), idIdx+1)
		}
		get := func(i int) string {
			if i < 0 || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		rows = append(rows, hlr.InputRow{
			Identifier:   get(idIdx),
			City:         get(cityIdx),
			SimCard:      get(simIdx),
			ProviderHint: get(providerIdx),
		})
	}
	return rows, mode, nil
}

// WriteOutputCSV writes records with the stable schema.OutputHeader ordering.
func WriteOutputCSV(w io.Writer, records []hlr.OutputRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(schema.OutputHeader()); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write([]string{
			r.Input.Identifier,
			r.Input.City,
			r.Input.SimCard,
			r.Input.ProviderHint,
			hlr.Value(r.Result.Provider),
			hlr.Value(r.Result.LocationCode),
			r.Result.RawText,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadOutputCSV reads records written by WriteOutputCSV.
//
// Empty provider_api/hlr_api cells read back as nil. Extra columns are ignored.
func ReadOutputCSV(r io.Reader) ([]hlr.OutputRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, name := range schema.OutputHeader() {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}

	var out []hlr.OutputRecord
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		get := func(col string) string {
			i := index[col]
			if i >= len(rec) {
				return ""
			}
			return rec[i]
		}
		nullable := func(col string) *string {
			v := get(col)
			if v == "" {
				return nil
			}
			return &v
		}
		res := hlr.Result{
			Provider:     nullable("provider_api"),
			LocationCode: nullable("hlr_api"),
			RawText:      get("raw_text"),
		}
		res.Succeeded = res.Provider != nil || res.LocationCode != nil
		out = append(out, hlr.OutputRecord{
			Input: hlr.InputRow{
				Identifier:   get("prefix"),
				City:         get("city_csv"),
				SimCard:      get("sim_csv"),
				ProviderHint: get("provider_csv"),
			},
			Result: res,
		})
	}
}
