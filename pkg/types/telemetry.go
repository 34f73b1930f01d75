package types

import "encoding/json"

// Scalar holds a loosely-typed JSON value as reported by the telemetry API.
// Decoding never fails on the value itself: a field that is a string where a
// number was expected is kept and simply reports false from Number.
type Scalar struct {
	v any
}

func (s *Scalar) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		s.v = nil
		return nil
	}
	s.v = v
	return nil
}

func (s Scalar) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.v)
}

// Number returns the value when it was a JSON number.
func (s Scalar) Number() (float64, bool) {
	f, ok := s.v.(float64)
	return f, ok
}

// Text returns the value when it was a JSON string.
func (s Scalar) Text() (string, bool) {
	str, ok := s.v.(string)
	return str, ok
}

// IsNull reports whether the field was missing or explicitly null.
func (s Scalar) IsNull() bool {
	return s.v == nil
}

// Value returns the decoded value as-is.
func (s Scalar) Value() any {
	return s.v
}

func NumberValue(f float64) Scalar { return Scalar{v: f} }

func TextValue(str string) Scalar { return Scalar{v: str} }

// RawTrip is a trip record from /reports/trips. Odometers are in meters,
// speeds in knots, fuel in liters.
type RawTrip struct {
	DeviceID      int64  `json:"deviceId"`
	DeviceName    Scalar `json:"deviceName"`
	StartTime     Scalar `json:"startTime"`
	EndTime       Scalar `json:"endTime"`
	StartOdometer Scalar `json:"startOdometer"`
	EndOdometer   Scalar `json:"endOdometer"`
	AverageSpeed  Scalar `json:"averageSpeed"`
	MaxSpeed      Scalar `json:"maxSpeed"`
	SpentFuel     Scalar `json:"spentFuel"`
	DriverName    Scalar `json:"driverName"`
	StartAddress  Scalar `json:"startAddress"`
	EndAddress    Scalar `json:"endAddress"`
}

// RawStop is a stop record from /reports/stops. Durations are milliseconds.
type RawStop struct {
	DeviceID  int64  `json:"deviceId"`
	StartTime Scalar `json:"startTime"`
	EndTime   Scalar `json:"endTime"`
	IdleTime  Scalar `json:"idleTime"`
	Duration  Scalar `json:"duration"`
}

type Group struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Device struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	GroupID int64  `json:"groupId"`
	Model   Scalar `json:"model"`
}
