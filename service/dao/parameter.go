package dao

// Parameter is an optional, implementation-defined List filter.
type Parameter struct {
	Name  string
	Value interface{}
}
