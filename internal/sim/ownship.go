package sim

import (
	"context"
	"math"
	"time"

	"simlink/internal/units"
)

const gravityMs2 = 9.80665

// Ownship is a built-in Source that flies a deterministic figure-eight
// around a center point. Useful for bench-testing the panel without a
// simulator; commands are recorded but do not steer the track.
type Ownship struct {
	CenterLatDeg float64
	CenterLonDeg float64
	AltFeet      int
	AirspeedKt   int
	RadiusNm     float64
	Period       time.Duration
	// Rate is the sample period (default 1/30 s).
	Rate time.Duration

	now func() time.Time

	commandLog
}

func (s *Ownship) Name() string { return "ownship" }

func (s *Ownship) Run(ctx context.Context, onSample func(Sample)) error {
	rate := s.Rate
	if rate <= 0 {
		rate = time.Second / 30
	}
	now := s.now
	if now == nil {
		now = time.Now
	}

	t := time.NewTicker(rate)
	defer t.Stop()
	for {
		onSample(s.Sample(now()))
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// Sample returns the simulated reading at now.
func (s *Ownship) Sample(now time.Time) Sample {
	latDeg, lonDeg, trackDeg, altFeet, vvelFpm := s.Kinematics(now)

	airKt := float64(s.AirspeedKt)
	if airKt <= 0 {
		airKt = 90
	}
	airMs := units.KnotsToMs(airKt)

	// Flight-path angle from the vertical profile; pitch follows it.
	climbMs := units.FeetToMeters(float64(vvelFpm)) / 60
	pitch := math.Atan2(climbMs, airMs)

	// Coordinated-turn bank from the track rate.
	const dt = 100 * time.Millisecond
	_, _, nextTrack := s.Position(now.Add(dt))
	turnRate := units.WrapPi(units.DegToRad(nextTrack-trackDeg)) / dt.Seconds()
	bank := math.Atan(airMs * turnRate / gravityMs2)

	altM := units.FeetToMeters(float64(altFeet))
	return Sample{
		LatitudeRad:  units.DegToRad(latDeg),
		LongitudeRad: units.DegToRad(lonDeg),
		PitchRad:     -pitch,
		HeadingRad:   units.DegToRad(trackDeg),
		BankRad:      -bank,
		AltitudeFt:   float64(altFeet),
		AirSpeedKt:   airKt,
		PressureHPa:  units.PaToHPa(units.AltitudeToPressure(units.StandardPressurePa, altM)),
		TemperatureC: 15 - 0.0065*altM,
	}
}

// Kinematics returns deterministic position plus a simple vertical profile.
//
// Altitude is a sinusoid around AltFeet, and vertical speed is its derivative.
func (s *Ownship) Kinematics(now time.Time) (latDeg, lonDeg, trackDeg float64, altFeet int, vvelFpm int) {
	latDeg, lonDeg, trackDeg = s.Position(now)

	baseAlt := s.AltFeet
	if baseAlt == 0 {
		baseAlt = 3000
	}
	// Vertical period is decoupled from horizontal to avoid repetitive sync.
	vp := s.period() / 2
	if vp < 30*time.Second {
		vp = 30 * time.Second
	}
	amp := 500.0 // ft

	phase := float64(now.UnixNano()%vp.Nanoseconds()) / float64(vp.Nanoseconds())
	w := 2 * math.Pi * phase

	altFeet = int(math.Round(float64(baseAlt) + amp*math.Sin(w)))

	// d/dt (amp*sin(w)) where w = 2πt/T => amp*(2π/T)*cos(w)
	ftPerSec := amp * (2 * math.Pi / vp.Seconds()) * math.Cos(w)
	vvelFpm = int(math.Round(ftPerSec * 60))
	return latDeg, lonDeg, trackDeg, altFeet, vvelFpm
}

// Position returns a figure-eight (Lissajous) track around the center that
// stays within RadiusNm.
func (s *Ownship) Position(now time.Time) (latDeg, lonDeg, trackDeg float64) {
	radiusNm := s.RadiusNm
	if radiusNm <= 0 {
		radiusNm = 0.5
	}
	// ~60 NM per degree of latitude.
	radiusDeg := radiusNm / 60.0

	period := s.period()
	phase := float64(now.UnixNano()%period.Nanoseconds()) / float64(period.Nanoseconds())

	//	x = cos(2πt)      east-west
	//	y = 0.5*sin(4πt)  north-south
	w := 2 * math.Pi * phase
	x := math.Cos(w)
	y := 0.5 * math.Sin(2*w)

	latDeg = s.CenterLatDeg + radiusDeg*y
	lonDeg = s.CenterLonDeg + (radiusDeg*x)/math.Cos(s.CenterLatDeg*math.Pi/180.0)

	// Track from instantaneous velocity (atan2(east, north)).
	vx := -2 * math.Pi * math.Sin(w)
	vy := 2 * math.Pi * math.Cos(2*w)
	trackDeg = math.Mod((math.Atan2(vx, vy)*180/math.Pi)+360, 360)
	return latDeg, lonDeg, trackDeg
}

func (s *Ownship) period() time.Duration {
	if s.Period <= 0 {
		return 120 * time.Second
	}
	return s.Period
}
