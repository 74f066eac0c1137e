package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// TSVRow gives callbacks indexed access to one record by header name.
type TSVRow struct {
	header map[string]int
	fields []string
}

// Get returns the named column's value, empty when the column is absent
// or the row is short.
func (r TSVRow) Get(col string) string {
	i, ok := r.header[strings.ToLower(col)]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

// StreamTSV reads a tab-separated file with a header row and invokes fn
// per record. Returning a non-nil error from fn stops the scan; fn may
// return ErrStopStream to stop without error. The state files are
// ragged; a short row reads as empty columns, never a parse failure.
func StreamTSV(ctx context.Context, r io.Reader, fn func(TSVRow) error) error {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	headerFields, err := reader.Read()
	if err != nil {
		return eris.Wrap(err, "fetcher: read tsv header")
	}
	header := make(map[string]int, len(headerFields))
	for i, h := range headerFields {
		header[strings.ToLower(strings.TrimSpace(h))] = i
	}

	for {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "fetcher: tsv cancelled")
		}

		fields, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return eris.Wrap(err, "fetcher: read tsv row")
		}

		if err := fn(TSVRow{header: header, fields: fields}); err != nil {
			if err == ErrStopStream {
				return nil
			}
			return err
		}
	}
}

// ErrStopStream stops a TSV scan early without reporting an error.
var ErrStopStream = eris.New("fetcher: stop stream")
