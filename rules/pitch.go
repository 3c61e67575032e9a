package rules

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/brensch/pitchdf/feed"
	"github.com/brensch/pitchdf/game"
)

const (
	// Unknown is the sentinel for absent numeric pitch fields.
	Unknown = -9999.0
	// UnknownCode is the sentinel for absent integer codes (zone, location, ...).
	UnknownCode = -1
	// UnknownLabel is the sentinel for absent string labels.
	UnknownLabel = "NONE"
)

// Call codes that add a ball.
var ballCodes = map[string]bool{
	"B":  true, // ball
	"*B": true, // ball in dirt
	"I":  true, // intentional ball
	"P":  true, // pitchout
	"V":  true, // automatic ball
	"VB": true,
	"VP": true, // pitch clock violation, pitcher
	"AB": true, // automatic ball
}

// Call codes that neither add a ball nor a strike: the ball was put in play
// or hit the batter.
var contactCodes = map[string]bool{
	"X": true, // in play, out(s)
	"D": true, // in play, no out
	"E": true, // in play, run(s)
	"H": true, // hit by pitch
}

var foulCodes = map[string]bool{
	"F": true, // foul
	"R": true, // foul pitchout
}

// Pitch holds the metrics of one pitch.
type Pitch struct {
	Description string
	Code        string
	PitchType   string

	X, Y                float64
	PX, PZ              float64
	PfxX, PfxZ          float64
	X0, Y0, Z0          float64
	VX0, VY0, VZ0       float64
	AX, AY, AZ          float64
	BreakY, BreakAngle  float64
	BreakLength         float64
	SpinDirection       float64
	SpinRate            float64
	StartSpeed          float64
	EndSpeed            float64
	StrikeZoneTop       float64
	StrikeZoneBottom    float64
	Zone                int
	NastyFactor         int
	TypeConfidence      float64

	HasHit        bool
	HitX, HitY    float64
	LaunchAngle   float64
	LaunchSpeed   float64
	TotalDistance float64
	HitLocation   int
	HitHardness   string
	HitTrajectory string
}

func orUnknown(p *float64) float64 {
	if p == nil {
		return Unknown
	}
	return *p
}

// ExtractPitch reads the metrics of a pitch sub-event.
func ExtractPitch(ev feed.PlayEvent) Pitch {
	p := Pitch{
		Description: ev.Details.Description,
		Code:        callCode(ev),
	}

	switch {
	case ev.Details.Type != nil && ev.Details.Type.Code != "":
		p.PitchType = ev.Details.Type.Code
	case strings.Contains(p.Description, "Automatic Ball"), strings.Contains(p.Description, "Intent Ball"):
		p.PitchType = "IN"
	default:
		p.PitchType = "UN"
	}

	pd := ev.PitchData
	if pd == nil {
		pd = &feed.PitchData{}
	}
	c := pd.Coordinates
	p.X, p.Y = orUnknown(c.X), orUnknown(c.Y)
	p.PX, p.PZ = orUnknown(c.PX), orUnknown(c.PZ)
	p.PfxX, p.PfxZ = orUnknown(c.PfxX), orUnknown(c.PfxZ)
	p.X0, p.Y0, p.Z0 = orUnknown(c.X0), orUnknown(c.Y0), orUnknown(c.Z0)
	p.VX0, p.VY0, p.VZ0 = orUnknown(c.VX0), orUnknown(c.VY0), orUnknown(c.VZ0)
	p.AX, p.AY, p.AZ = orUnknown(c.AX), orUnknown(c.AY), orUnknown(c.AZ)

	p.BreakY = orUnknown(pd.Breaks.BreakY)
	p.BreakAngle = breakAngle(pd.Breaks.BreakAngle, c.AX)
	p.BreakLength = orUnknown(pd.Breaks.BreakLength)
	p.SpinDirection = orUnknown(pd.Breaks.SpinDirection)
	p.SpinRate = orUnknown(pd.Breaks.SpinRate)

	p.StartSpeed = orUnknown(pd.StartSpeed)
	p.EndSpeed = orUnknown(pd.EndSpeed)
	p.StrikeZoneTop = orUnknown(pd.StrikeZoneTop)
	p.StrikeZoneBottom = orUnknown(pd.StrikeZoneBottom)
	p.TypeConfidence = orUnknown(pd.TypeConfidence)
	p.Zone = UnknownCode
	if pd.Zone != nil {
		p.Zone = *pd.Zone
	}
	p.NastyFactor = UnknownCode
	if pd.NastyFactor != nil {
		p.NastyFactor = int(*pd.NastyFactor)
	}

	p.HitX, p.HitY = Unknown, Unknown
	p.LaunchAngle, p.LaunchSpeed, p.TotalDistance = Unknown, Unknown, Unknown
	p.HitLocation = UnknownCode
	p.HitHardness, p.HitTrajectory = UnknownLabel, UnknownLabel
	if hd := ev.HitData; hd != nil {
		p.HasHit = true
		p.HitX, p.HitY = orUnknown(hd.Coordinates.CoordX), orUnknown(hd.Coordinates.CoordY)
		p.LaunchAngle = orUnknown(hd.LaunchAngle)
		p.LaunchSpeed = orUnknown(hd.LaunchSpeed)
		p.TotalDistance = orUnknown(hd.TotalDistance)
		if loc, err := strconv.Atoi(hd.Location); err == nil {
			p.HitLocation = loc
		}
		if hd.Hardness != "" {
			p.HitHardness = hd.Hardness
		}
		if hd.Trajectory != "" {
			p.HitTrajectory = hd.Trajectory
		}
	}
	return p
}

// breakAngle restores the sign of the break angle, which the feed stores as
// a magnitude. The sign is opposite to the horizontal acceleration.
func breakAngle(angle, ax *float64) float64 {
	if angle == nil {
		return Unknown
	}
	a := *angle
	if ax == nil {
		return a
	}
	switch {
	case *ax > 0:
		return -math.Abs(a)
	case *ax < 0:
		return math.Abs(a)
	}
	return a
}

func callCode(ev feed.PlayEvent) string {
	if ev.Details.Call != nil && ev.Details.Call.Code != "" {
		return ev.Details.Call.Code
	}
	return ev.Details.Code
}

// PitchProcessor consumes pitch sub-events: it emits one record per pitch and
// advances the count.
type PitchProcessor struct {
	sink Sink
}

func NewPitchProcessor(sink Sink) *PitchProcessor {
	return &PitchProcessor{sink: sink}
}

// Process emits the pitch with the pre-pitch state, then updates and
// validates the count against the feed.
func (p *PitchProcessor) Process(s *game.GameState, ev feed.PlayEvent) error {
	pitch := ExtractPitch(ev)
	if err := p.sink.Append(s.Snapshot(), pitch); err != nil {
		return fmt.Errorf("append pitch: %w", err)
	}

	s.PitchCounts[s.Pitcher]++
	s.CurPitchCount = s.PitchCounts[s.Pitcher]

	switch {
	case ballCodes[pitch.Code]:
		s.Balls++
	case contactCodes[pitch.Code]:
	case s.Strikes < 2 || !isFoul(pitch):
		s.Strikes++
	}

	// The count is often off after a hit-by-pitch; it ends the at-bat anyway.
	if pitch.Description == "Hit By Pitch" {
		return nil
	}
	if s.Balls != ev.Count.Balls || s.Strikes != ev.Count.Strikes {
		return &CountMismatchError{
			Description: pitch.Description,
			Balls:       s.Balls,
			Strikes:     s.Strikes,
			WantBalls:   ev.Count.Balls,
			WantStrikes: ev.Count.Strikes,
		}
	}
	return nil
}

func isFoul(p Pitch) bool {
	return foulCodes[p.Code] || p.Description == "Foul"
}
