package rangesensor

import (
	"fmt"
	"math"
	"time"

	"periph.io/x/conn/v3/physic"
)

// SoundModel is a first order approximation of the speed of sound in dry
// air: V0 + K*°C, in meters per second.
//
// You could adjust these values if you are operating under unusual pressure
// or humidity conditions (eg. high altitude), or to match the datasheet of a
// specific module.
type SoundModel struct {
	V0 float64 // m/s at 0°C
	K  float64 // m/s per °C
}

// DefaultSoundModel is the standard dry air approximation.
var DefaultSoundModel = SoundModel{V0: 331.3, K: 0.606}

// Speed returns the speed of sound in meters per second at celsius.
func (s SoundModel) Speed(celsius float64) float64 {
	return s.V0 + s.K*celsius
}

// TimeToCentimeters takes a round-trip time of flight and converts it into a
// one-way distance in centimeters, using the speed of sound at celsius.
//
// At 20°C this works out to dividing the number of microseconds by ~58, which
// aligns with the datasheet's rule of thumb.
func (s SoundModel) TimeToCentimeters(timeOfFlight time.Duration, celsius float64) float64 {
	if timeOfFlight <= 0 {
		return 0
	}
	metersPerSecond := s.Speed(celsius)
	oneWaySeconds := timeOfFlight.Seconds() / 2
	cm := metersPerSecond * oneWaySeconds * 100
	if cm < 0 {
		// Only reachable with temperatures far below what any sensor survives.
		return 0
	}
	return cm
}

// TimeToCentimeters converts a round-trip time of flight into centimeters
// using DefaultSoundModel.
func TimeToCentimeters(timeOfFlight time.Duration, celsius float64) float64 {
	return DefaultSoundModel.TimeToCentimeters(timeOfFlight, celsius)
}

// Measurement expresses a sensor measurement and facilitates conversion to
// various units.
type Measurement struct {
	timeOfFlight time.Duration
	celsius      float64
	sound        SoundModel
}

// NewMeasurement builds a Measurement from a raw echo duration.
func NewMeasurement(timeOfFlight time.Duration, celsius float64, sound SoundModel) *Measurement {
	return &Measurement{timeOfFlight: timeOfFlight, celsius: celsius, sound: sound}
}

// InCentimeters converts the time of flight measurement into centimeters.
func (m *Measurement) InCentimeters() float64 {
	return m.sound.TimeToCentimeters(m.timeOfFlight, m.celsius)
}

// InInches converts the time of flight measurement into inches.
func (m *Measurement) InInches() float64 {
	return CentimetersToInches(m.InCentimeters())
}

// In converts the measurement into u.
func (m *Measurement) In(u DistanceUnit) float64 {
	return u.FromCentimeters(m.InCentimeters())
}

// Distance returns the measurement as a physic.Distance.
func (m *Measurement) Distance() physic.Distance {
	return physic.Distance(math.Round(m.InCentimeters() * float64(10*physic.MilliMetre)))
}

// InMicroseconds returns the raw time of flight measurement.
func (m *Measurement) InMicroseconds() int64 {
	return m.timeOfFlight.Microseconds()
}

// InMilliseconds returns the raw time of flight measurement.
func (m *Measurement) InMilliseconds() int64 {
	return m.timeOfFlight.Milliseconds()
}

// TimeOfFlight returns the echo high time.
func (m *Measurement) TimeOfFlight() time.Duration {
	return m.timeOfFlight
}

// Celsius returns the ambient temperature the distance was computed at.
func (m *Measurement) Celsius() float64 {
	return m.celsius
}

func (m *Measurement) String() string {
	return fmt.Sprintf("%.1fcm (%s @ %.1f°C)", m.InCentimeters(), m.timeOfFlight, m.celsius)
}

// temperatureToCelsius converts a periph temperature to °C.
func temperatureToCelsius(t physic.Temperature) float64 {
	return float64(t-physic.ZeroCelsius) / float64(physic.Celsius)
}
