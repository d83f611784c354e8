package palette

import "fmt"

// Priority is the primary sort key of palette entries.
type Priority uint8

const (
	Popularity Priority = iota // usage count
	RGB                        // packed RGBA value
	YUV                        // BT.601 luma, then chroma
	Lab                        // CIE L*a*b*
	MSB                        // bit-interleaved RGBA, high bits first
	numPriorities
)

// Direction orders the priority key.
type Direction uint8

const (
	Ascending Direction = iota
	Descending
	numDirections
)

// Transparency controls how fully transparent entries are placed.
type Transparency uint8

const (
	// TransparencyIgnore gives alpha no special role: transparent entries
	// sort by the priority key with the rest.
	TransparencyIgnore Transparency = iota
	// TransparencySort makes alpha the primary sort key.
	TransparencySort
	// TransparencyFirst moves fully transparent entries to the front.
	TransparencyFirst
	numTransparencies
)

// Order is the pass that arranges entries after sorting.
type Order uint8

const (
	OrderNone     Order = iota // the priority sort alone
	OrderGlobal                // 2-opt over the sorted sequence
	OrderNearest               // chain through the closest remaining color
	OrderWeight                // chain favoring popular nearby colors
	OrderNeighbor              // chain through the most adjacent pixels
	numOrders
)

var (
	priorityNames     = [numPriorities]string{"popularity", "rgb", "yuv", "lab", "msb"}
	directionNames    = [numDirections]string{"ascending", "descending"}
	transparencyNames = [numTransparencies]string{"ignore", "sort", "first"}
	orderNames        = [numOrders]string{"none", "global", "nearest", "weight", "neighbor"}
)

func enumName[T ~uint8](names []string, v T, kind string) string {
	if int(v) < len(names) {
		return names[v]
	}
	return fmt.Sprintf("%s(%d)", kind, uint8(v))
}

func parseEnum[T ~uint8](names []string, s, kind string) (T, error) {
	for i, n := range names {
		if n == s {
			return T(i), nil
		}
	}
	return 0, fmt.Errorf("palette: unknown %s %q", kind, s)
}

func unmarshalEnum[T ~uint8](dst *T, names []string, b []byte, kind string) error {
	v, err := parseEnum[T](names, string(b), kind)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func marshalEnum[T ~uint8](names []string, v T, kind string) ([]byte, error) {
	if int(v) >= len(names) {
		return nil, fmt.Errorf("palette: unknown %s %d", kind, uint8(v))
	}
	return []byte(names[v]), nil
}

func all[T ~uint8](n T) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = T(i)
	}
	return out
}

// Priorities lists every priority in declaration order.
func Priorities() []Priority { return all(numPriorities) }

// Directions lists every direction in declaration order.
func Directions() []Direction { return all(numDirections) }

// Transparencies lists every transparency policy in declaration order.
func Transparencies() []Transparency { return all(numTransparencies) }

// Orders lists every order in declaration order.
func Orders() []Order { return all(numOrders) }

func (p Priority) String() string     { return enumName(priorityNames[:], p, "priority") }
func (d Direction) String() string    { return enumName(directionNames[:], d, "direction") }
func (t Transparency) String() string { return enumName(transparencyNames[:], t, "transparency") }
func (o Order) String() string        { return enumName(orderNames[:], o, "order") }

func (p Priority) Valid() bool     { return p < numPriorities }
func (d Direction) Valid() bool    { return d < numDirections }
func (t Transparency) Valid() bool { return t < numTransparencies }
func (o Order) Valid() bool        { return o < numOrders }

func (p Priority) MarshalText() ([]byte, error) {
	return marshalEnum(priorityNames[:], p, "priority")
}

func (p *Priority) UnmarshalText(b []byte) error {
	return unmarshalEnum(p, priorityNames[:], b, "priority")
}

func (d Direction) MarshalText() ([]byte, error) {
	return marshalEnum(directionNames[:], d, "direction")
}

func (d *Direction) UnmarshalText(b []byte) error {
	return unmarshalEnum(d, directionNames[:], b, "direction")
}

func (t Transparency) MarshalText() ([]byte, error) {
	return marshalEnum(transparencyNames[:], t, "transparency")
}

func (t *Transparency) UnmarshalText(b []byte) error {
	return unmarshalEnum(t, transparencyNames[:], b, "transparency")
}

func (o Order) MarshalText() ([]byte, error) {
	return marshalEnum(orderNames[:], o, "order")
}

func (o *Order) UnmarshalText(b []byte) error {
	return unmarshalEnum(o, orderNames[:], b, "order")
}

// Config is one combination of palette policies.
type Config struct {
	Priority     Priority
	Direction    Direction
	Transparency Transparency
	Order        Order
}

// Valid reports whether every policy is known.
func (c Config) Valid() bool {
	return c.Priority.Valid() && c.Direction.Valid() && c.Transparency.Valid() && c.Order.Valid()
}

func (c Config) String() string {
	return fmt.Sprintf("%v/%v/%v/%v", c.Priority, c.Direction, c.Transparency, c.Order)
}
