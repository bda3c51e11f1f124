package frame

// Float is a float64 column with explicit missing values.
type Float struct {
	name   string
	values []float64
	valid  []bool
}

// NewFloat returns a column of n missing values.
func NewFloat(name string, n int) *Float {
	return &Float{
		name:   name,
		values: make([]float64, n),
		valid:  make([]bool, n),
	}
}

// FloatFrom builds a fully populated column from values.
func FloatFrom(name string, values []float64) *Float {
	c := NewFloat(name, len(values))
	copy(c.values, values)
	for i := range c.valid {
		c.valid[i] = true
	}
	return c
}

func (c *Float) Name() string { return c.name }
func (c *Float) Len() int     { return len(c.values) }

// Set stores v at row i and marks it present.
func (c *Float) Set(i int, v float64) {
	c.values[i] = v
	c.valid[i] = true
}

// At returns the value at row i and whether it is present.
func (c *Float) At(i int) (float64, bool) {
	return c.values[i], c.valid[i]
}

// Valid reports whether row i holds a value.
func (c *Float) Valid(i int) bool {
	return c.valid[i]
}

// Missing returns the number of missing rows.
func (c *Float) Missing() int {
	n := 0
	for _, ok := range c.valid {
		if !ok {
			n++
		}
	}
	return n
}

// Window copies rows [from, to) into dst and reports whether every row in
// the range is present. dst must have length to-from.
func (c *Float) Window(dst []float64, from, to int) bool {
	for i := from; i < to; i++ {
		if !c.valid[i] {
			return false
		}
		dst[i-from] = c.values[i]
	}
	return true
}

// Int is an int64 column without missing values.
type Int struct {
	name   string
	values []int64
}

// NewInt returns a zeroed column of n rows.
func NewInt(name string, n int) *Int {
	return &Int{name: name, values: make([]int64, n)}
}

func (c *Int) Name() string { return c.name }
func (c *Int) Len() int     { return len(c.values) }

// Set stores v at row i.
func (c *Int) Set(i int, v int64) {
	c.values[i] = v
}

// At returns the value at row i.
func (c *Int) At(i int) int64 {
	return c.values[i]
}
