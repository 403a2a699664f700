package rangesensor

import (
	"fmt"
	"strings"
)

// DistanceUnit selects the unit Measure reports distances in.
type DistanceUnit int

const (
	// Centimeters distance unit
	Centimeters DistanceUnit = iota
	// Inches distance unit
	Inches
)

// TemperatureUnit is the unit the ambient temperature is given in, either
// Celsius or Fahrenheit.
type TemperatureUnit int

const (
	// Celsius temperature unit
	Celsius TemperatureUnit = iota
	// Fahrenheit temperature unit
	Fahrenheit
)

const centimetersPerInch = 2.54

// CelsiusToFahrenheit converts a temperature from °C to °F.
func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// FahrenheitToCelsius converts a temperature from °F to °C.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

// CentimetersToInches converts a length from centimeters to inches.
func CentimetersToInches(cm float64) float64 {
	return cm / centimetersPerInch
}

// InchesToCentimeters converts a length from inches to centimeters.
func InchesToCentimeters(in float64) float64 {
	return in * centimetersPerInch
}

// ToCelsius converts t, expressed in u, to Celsius.
func (u TemperatureUnit) ToCelsius(t float64) float64 {
	if u == Fahrenheit {
		return FahrenheitToCelsius(t)
	}
	return t
}

func (u TemperatureUnit) String() string {
	switch u {
	case Celsius:
		return "celsius"
	case Fahrenheit:
		return "fahrenheit"
	}
	return fmt.Sprintf("TemperatureUnit(%d)", int(u))
}

// FromCentimeters converts cm to u.
func (u DistanceUnit) FromCentimeters(cm float64) float64 {
	if u == Inches {
		return CentimetersToInches(cm)
	}
	return cm
}

func (u DistanceUnit) String() string {
	switch u {
	case Centimeters:
		return "cm"
	case Inches:
		return "in"
	}
	return fmt.Sprintf("DistanceUnit(%d)", int(u))
}

// ParseDistanceUnit accepts "cm", "centimeters", "in" or "inches".
func ParseDistanceUnit(s string) (DistanceUnit, error) {
	switch strings.ToLower(s) {
	case "cm", "centimeter", "centimeters":
		return Centimeters, nil
	case "in", "inch", "inches":
		return Inches, nil
	}
	return 0, fmt.Errorf("unknown distance unit %q", s)
}

// ParseTemperatureUnit accepts "c", "celsius", "f" or "fahrenheit".
func ParseTemperatureUnit(s string) (TemperatureUnit, error) {
	switch strings.ToLower(s) {
	case "c", "celsius":
		return Celsius, nil
	case "f", "fahrenheit":
		return Fahrenheit, nil
	}
	return 0, fmt.Errorf("unknown temperature unit %q", s)
}
