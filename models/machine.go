package models

// Machine is a configured vending endpoint. Machines are static
// configuration and are never mutated at runtime.
type Machine struct {
	ID                  string `json:"id" yaml:"id" mapstructure:"id"`
	DisplayName         string `json:"displayName" yaml:"display_name" mapstructure:"display_name"`
	UnitPriceMinorUnits int64  `json:"unitPriceMinorUnits" yaml:"unit_price_minor_units" mapstructure:"unit_price_minor_units"`
	Active              bool   `json:"active" yaml:"active" mapstructure:"active"`
}
