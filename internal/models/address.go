package models

import "strings"

type Address struct {
	Street       string    `json:"street"`
	Number       string    `json:"number"`
	Complement   string    `json:"complement,omitempty"`
	Neighborhood string    `json:"neighborhood"`
	City         string    `json:"city"`
	Postcode     string    `json:"postcode"`
	Reference    string    `json:"reference,omitempty"`
	Location     *Location `json:"location,omitempty"`
}

// IsEmpty reports whether the address lacks a street to deliver to.
func (a *Address) IsEmpty() bool {
	return a == nil || strings.TrimSpace(a.Street) == ""
}
