package models

import (
	"fmt"
	"strings"
)

// Coordinates - пара координат WGS84
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid проверяет диапазоны широты и долготы
func (c Coordinates) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// Location - местоположение в виде свободного текста или пары координат
type Location struct {
	Address     string       `json:"address,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// IsZero возвращает true, если не задан ни адрес, ни координаты
func (l Location) IsZero() bool {
	return strings.TrimSpace(l.Address) == "" && l.Coordinates == nil
}

func (l Location) String() string {
	switch {
	case l.Address != "" && l.Coordinates != nil:
		return fmt.Sprintf("%s (%.6f, %.6f)", l.Address, l.Coordinates.Latitude, l.Coordinates.Longitude)
	case l.Coordinates != nil:
		return fmt.Sprintf("%.6f, %.6f", l.Coordinates.Latitude, l.Coordinates.Longitude)
	default:
		return l.Address
	}
}

// Clone возвращает глубокую копию
func (l Location) Clone() Location {
	out := Location{Address: l.Address}
	if l.Coordinates != nil {
		c := *l.Coordinates
		out.Coordinates = &c
	}
	return out
}
