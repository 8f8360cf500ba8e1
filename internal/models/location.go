package models

import "fmt"

type Location struct {
	Lat float64 `json:"lat" mapstructure:"lat"`
	Lon float64 `json:"lon" mapstructure:"lon"`
}

func (l Location) IsZero() bool {
	return l.Lat == 0 && l.Lon == 0
}

func (l Location) String() string {
	return fmt.Sprintf("POINT(%f %f)", l.Lon, l.Lat)
}
