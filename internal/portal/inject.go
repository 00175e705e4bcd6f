package portal

const (
	crnField    = "CRN_IN"
	termField   = "term_in"
	submitField = "REG_BTN"
	submitValue = "Submit Changes"
)

// Inject copies form, appends the submit button and term, and places each code
// into the first still-empty CRN_IN field. Codes that find no empty slot are
// returned in order and left out of the form.
func Inject(form Form, term string, codes []string) (Form, []string) {
	out := form.Clone()
	out.Fields = append(out.Fields,
		Field{Name: submitField, Value: submitValue},
		Field{Name: termField, Value: term},
	)

	var unplaced []string
	for _, code := range codes {
		slot := -1
		for i := range out.Fields {
			if out.Fields[i].Name == crnField && out.Fields[i].Value == "" {
				slot = i
				break
			}
		}
		if slot < 0 {
			unplaced = append(unplaced, code)
			continue
		}
		out.Fields[slot].Value = code
	}
	return out, unplaced
}
