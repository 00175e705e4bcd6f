package plan

// Change is what to add and drop to move from one set of codes to another.
type Change struct {
	Add  []string `json:"add" yaml:"add"`
	Drop []string `json:"drop" yaml:"drop"`
}

// Empty reports whether no change is needed.
func (c Change) Empty() bool { return len(c.Add) == 0 && len(c.Drop) == 0 }

// Diff returns the codes in desired but not current (in desired order) as Add
// and the codes in current but not desired (in current order) as Drop.
func Diff(current, desired []string) Change {
	have := toSet(current)
	want := toSet(desired)

	var c Change
	for _, code := range desired {
		if !have[code] {
			c.Add = append(c.Add, code)
			have[code] = true
		}
	}
	for _, code := range current {
		if !want[code] {
			c.Drop = append(c.Drop, code)
			want[code] = true
		}
	}
	return c
}

func toSet(codes []string) map[string]bool {
	set := make(map[string]bool, len(codes))
	for _, code := range codes {
		set[code] = true
	}
	return set
}
