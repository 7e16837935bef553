package models

// Address is a normalized physical location. Geom is only ever set after a
// successful geocode or copied from a configured default, as "lon;lat".
// A degenerate address with Street=="" is valid.
type Address struct {
	Geom       string `yaml:"geom"`
	Street     string `yaml:"street"`
	Locality   string `yaml:"locality"`
	PostalCode string `yaml:"postal_code"`
	Country    string `yaml:"country"`
}

func (a *Address) Clone() *Address {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}
