package hlr

// InputRow is one row of an input table. Identifier holds the prefix or
// MSISDN cell; the remaining fields are passthrough metadata.
type InputRow struct {
	Identifier   string
	City         string
	SimCard      string
	ProviderHint string
}

// Result is the outcome of one lookup. Nil fields mean the label was not found.
type Result struct {
	Provider     *string
	LocationCode *string
	RawText      string
	Succeeded    bool
}

// Failed is the terminal failure value handed to callers once every attempt
// for a lookup has been used up.
func Failed() Result {
	return Result{}
}

// ResultFromText parses raw result text into a Result.
func ResultFromText(text string) Result {
	p := ParseResult(text)
	return Result{
		Provider:     p.Provider,
		LocationCode: p.LocationCode,
		RawText:      text,
		Succeeded:    p.Provider != nil || p.LocationCode != nil,
	}
}

// OutputRecord is an InputRow merged with its lookup Result.
type OutputRecord struct {
	Input  InputRow
	Result Result
}

// Merge builds the output record for one row.
func Merge(in InputRow, res Result) OutputRecord {
	return OutputRecord{Input: in, Result: res}
}

// Value dereferences a nullable field, returning "" for nil.
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
