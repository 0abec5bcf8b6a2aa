package comply

import (
	"fmt"
	"strconv"
	"strings"
)

// TestCase is one unit of work for the suite: a fixture description, the
// operation to request, and the expected outcome classification. The
// identity of a case is the full parameter tuple, never an index, so a
// failure report alone is enough to reproduce it.
type TestCase struct {
	// Name labels hand-authored negative cases. Empty for generated
	// success-path cases, whose identity is the parameter tuple.
	Name string

	Operation Operation
	Axis      []int
	DType     DType
	Shape     []int
	Selection Selection // nil selects the whole array
	Missing   Missing   // nil means no missing data
	Encoding  Encoding

	Expect Outcome

	// Mutate, when set, corrupts the encoded request after it has been
	// built. Hand-authored client-error cases use it to break exactly
	// one field while leaving the rest of the request valid.
	Mutate func(*Request)

	// SkipUpload makes the request reference a key that was never
	// uploaded, simulating unreachable backing data.
	SkipUpload bool

	// Truncate, when positive, uploads only the first Truncate bytes of
	// the fixture, simulating malformed backing data.
	Truncate int
}

// Identity renders the case's full parameter tuple as a stable string.
// Two distinct parameter combinations always render differently.
func (c *TestCase) Identity() string {
	var b strings.Builder
	if c.Name != "" {
		b.WriteString(c.Name)
		b.WriteString(" ")
	}
	fmt.Fprintf(&b, "op=%s", c.Operation)
	if len(c.Axis) > 0 {
		b.WriteString(" axis=")
		b.WriteString(joinInts(c.Axis, ","))
	}
	fmt.Fprintf(&b, " dtype=%s shape=%s sel=%s", c.DType, joinInts(c.Shape, "x"), c.Selection)
	if c.Missing != nil {
		fmt.Fprintf(&b, " missing=%s", c.Missing.Name())
	}
	if !c.Encoding.IsZero() {
		fmt.Fprintf(&b, " compression=%s filter=%s", c.Encoding.Compression, c.Encoding.Filter)
	}
	return b.String()
}

// FixtureKey returns the object-store key for the case's fixture. The
// run ID keeps concurrent and repeated runs collision-free; the case
// identity keeps keys unique within a run and self-describing.
func (c *TestCase) FixtureKey(runID string) string {
	id := c.Identity()
	// Object keys avoid characters that need URL escaping.
	r := strings.NewReplacer(" ", "_", "(", "", ")", "", "[", "", "]", "", ",", ".")
	return "comply/" + runID + "/" + r.Replace(id) + ".bin"
}

func joinInts(xs []int, sep string) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, sep)
}
