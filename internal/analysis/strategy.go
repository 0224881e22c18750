package analysis

// Classification is one strategy's view of a table.
type Classification struct {
	Strategy   string
	TableType  string
	Confidence float64
	Headers    []Header
}

// Strategy classifies parsed rows. It returns false when it has no opinion.
type Strategy struct {
	Name     string
	Classify func(rows [][]Cell) (Classification, bool)
}

// Strategies in priority order. Earlier entries win confidence ties.
var Strategies = []Strategy{
	{Name: "standard", Classify: Standard},
	{Name: "content-based", Classify: ContentBased},
	{Name: "format-based", Classify: FormatBased},
}

const (
	confidenceSimple  = 0.5
	confidenceMerged  = 0.8
	confidenceContent = 0.3
	confidenceFormat  = 0.4
)

// IsImplicitMerge reports a header row with fewer cells than the row below it.
func IsImplicitMerge(rows [][]Cell) bool {
	return len(rows) > 1 && len(rows[0]) < len(rows[1])
}

// IsExplicitMerge reports a header row with any colspan above 1.
func IsExplicitMerge(rows [][]Cell) bool {
	if len(rows) == 0 {
		return false
	}
	for _, c := range rows[0] {
		if c.ColSpan > 1 {
			return true
		}
	}
	return false
}

// Standard detects merged header rows and builds grouped headers, or one
// header per first-row cell for simple tables.
func Standard(rows [][]Cell) (Classification, bool) {
	if len(rows) == 0 {
		return Classification{}, false
	}
	if IsImplicitMerge(rows) || IsExplicitMerge(rows) {
		return Classification{TableType: TypeMerged, Confidence: confidenceMerged, Headers: MergedHeaders(rows)}, true
	}
	return Classification{TableType: TypeSimple, Confidence: confidenceSimple, Headers: SimpleHeaders(rows[0])}, true
}

// ContentBased treats the first row as a header when it is all text and a
// later row carries numbers.
func ContentBased(rows [][]Cell) (Classification, bool) {
	if len(rows) < 2 || len(rows[0]) == 0 {
		return Classification{}, false
	}
	for _, c := range rows[0] {
		if c.Text == "" || looksNumeric(c.Text) {
			return Classification{}, false
		}
	}
	for _, row := range rows[1:] {
		for _, c := range row {
			if looksNumeric(c.Text) {
				return Classification{TableType: TypeSimple, Confidence: confidenceContent, Headers: SimpleHeaders(rows[0])}, true
			}
		}
	}
	return Classification{}, false
}

// FormatBased treats the first row as a header when every cell is a th
// element or fully bold.
func FormatBased(rows [][]Cell) (Classification, bool) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return Classification{}, false
	}
	for _, c := range rows[0] {
		if !c.IsHeader && !c.Bold {
			return Classification{}, false
		}
	}
	return Classification{TableType: TypeSimple, Confidence: confidenceFormat, Headers: SimpleHeaders(rows[0])}, true
}
