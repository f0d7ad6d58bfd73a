package bronze

import (
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"
)

// TSVSource reads tab-separated rows from a reader and implements RowSource.
// The IMDb dumps are header-first, unquoted, tab-delimited text; LazyQuotes
// keeps stray double quotes inside titles from breaking the parse.
type TSVSource struct {
	reader *csv.Reader
	header []string
}

// NewTSVSource wraps r and consumes the header row.
func NewTSVSource(r io.Reader) (*TSVSource, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, eris.New("bronze: empty input, no header row")
	}
	if err != nil {
		return nil, eris.Wrap(err, "bronze: read header")
	}

	return &TSVSource{reader: cr, header: header}, nil
}

// Header returns the column names from the first row.
func (s *TSVSource) Header() []string {
	out := make([]string, len(s.header))
	copy(out, s.header)
	return out
}

// ValidateHeader checks that the file's header matches the declared schema
// in names and order. Column order is stable within one dataset's schema;
// a mismatch means the upstream dump changed shape.
func (s *TSVSource) ValidateHeader(schema Schema) error {
	names := schema.Names()
	if len(s.header) != len(names) {
		return eris.Errorf("bronze: header has %d columns, schema declares %d", len(s.header), len(names))
	}
	for i, name := range names {
		if s.header[i] != name {
			return eris.Errorf("bronze: header column %d is %q, schema declares %q", i, s.header[i], name)
		}
	}
	return nil
}

// Next returns the next data row, or io.EOF when the input is exhausted.
func (s *TSVSource) Next() ([]string, error) {
	return s.reader.Read()
}
