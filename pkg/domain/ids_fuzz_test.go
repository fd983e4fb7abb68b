package domain

import "testing"

// FuzzParseCaseID checks that parsing never panics on arbitrary input and
// always returns either a valid positive ID or an error.
func FuzzParseCaseID(f *testing.F) {
	f.Add("")
	f.Add("1")
	f.Add("9223372036854775807")
	f.Add("9223372036854775808")
	f.Add("-1")
	f.Add("'; DROP TABLE cases;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseCaseID(input)
		if err != nil {
			if id != 0 {
				t.Errorf("error returned with non-zero id %d", id)
			}
			return
		}
		if id <= 0 {
			t.Errorf("valid parse produced non-positive id %d", id)
		}
		roundTrip, err := ParseCaseID(id.String())
		if err != nil || roundTrip != id {
			t.Errorf("round-trip failed for %q: %v", input, err)
		}
	})
}
