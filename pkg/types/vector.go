package types

// Vector is a record written to a vector index. Values are float32 to match
// the wire format of the supported databases.
type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]interface{}
}

// Dimension returns the dimensionality of the vector.
func (v *Vector) Dimension() int {
	return len(v.Values)
}
