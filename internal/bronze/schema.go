// Package bronze converts raw delimited rows into typed tables: declared
// schemas, whole-field null-marker normalization, type coercion, and
// provenance stamping. It is the first typed layer; silver-stage cleaning
// consumes its output.
package bronze

// ColumnType is the target type a raw column is coerced to.
type ColumnType int

const (
	TypeString ColumnType = iota
	TypeInt64
	TypeFloat64
	TypeBool
)

func (t ColumnType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt64:
		return "int64"
	case TypeFloat64:
		return "float64"
	case TypeBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Column is one declared column: name and target type.
type Column struct {
	Name string
	Type ColumnType
}

// Schema declares the expected columns of a raw file, in file order.
type Schema struct {
	Columns []Column
}

// Names returns the declared column names in order.
func (s Schema) Names() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// DefaultNullMarkers are the raw tokens IMDb dumps use for missing values.
// Markers are whole-field matches, never substrings.
func DefaultNullMarkers() []string {
	return []string{`\N`, ""}
}

// schemas for the IMDb dump files, keyed by dataset id. Column names and
// order follow the published headers.
var builtinSchemas = map[string]Schema{
	"titles": {Columns: []Column{
		{"tconst", TypeString},
		{"titleType", TypeString},
		{"primaryTitle", TypeString},
		{"originalTitle", TypeString},
		{"isAdult", TypeBool},
		{"startYear", TypeInt64},
		{"endYear", TypeInt64},
		{"runtimeMinutes", TypeInt64},
		{"genres", TypeString},
	}},
	"ratings": {Columns: []Column{
		{"tconst", TypeString},
		{"averageRating", TypeFloat64},
		{"numVotes", TypeInt64},
	}},
	"profiles": {Columns: []Column{
		{"nconst", TypeString},
		{"primaryName", TypeString},
		{"birthYear", TypeInt64},
		{"deathYear", TypeInt64},
		{"primaryProfession", TypeString},
		{"knownForTitles", TypeString},
	}},
	"credits": {Columns: []Column{
		{"tconst", TypeString},
		{"ordering", TypeInt64},
		{"nconst", TypeString},
		{"category", TypeString},
		{"job", TypeString},
		{"characters", TypeString},
	}},
	"variants": {Columns: []Column{
		{"titleId", TypeString},
		{"ordering", TypeInt64},
		{"title", TypeString},
		{"region", TypeString},
		{"language", TypeString},
		{"types", TypeString},
		{"attributes", TypeString},
		{"isOriginalTitle", TypeBool},
	}},
	"series": {Columns: []Column{
		{"tconst", TypeString},
		{"parentTconst", TypeString},
		{"seasonNumber", TypeInt64},
		{"episodeNumber", TypeInt64},
	}},
	"crews": {Columns: []Column{
		{"tconst", TypeString},
		{"directors", TypeString},
		{"writers", TypeString},
	}},
}

// SchemaFor returns the declared schema for a built-in dataset id.
func SchemaFor(datasetID string) (Schema, bool) {
	s, ok := builtinSchemas[datasetID]
	return s, ok
}

// GenericSchema builds an all-string schema from a header row, for datasets
// added via catalog file without a declared schema.
func GenericSchema(header []string) Schema {
	cols := make([]Column, len(header))
	for i, name := range header {
		cols[i] = Column{Name: name, Type: TypeString}
	}
	return Schema{Columns: cols}
}
