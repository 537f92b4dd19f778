package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// LatLng is a WGS84 coordinate in degrees.
type LatLng struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Place is a resolved destination or venue.
type Place struct {
	Name     string `json:"name" yaml:"name"`
	Address  string `json:"address,omitempty" yaml:"address,omitempty"`
	Location LatLng `json:"location" yaml:"location"`
	ID       string `json:"id,omitempty" yaml:"id,omitempty"`
}

// OpenStatus is the three-valued open-at-time state of a venue. The zero
// value is OpenUnknown so an unset status never reads as open or closed.
type OpenStatus int

// Open status values.
const (
	OpenUnknown OpenStatus = iota
	OpenYes
	OpenClosed
)

func (s OpenStatus) String() string {
	switch s {
	case OpenYes:
		return "open"
	case OpenClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// OpenStatusFromBool maps a known boolean to OpenYes or OpenClosed.
func OpenStatusFromBool(open bool) OpenStatus {
	if open {
		return OpenYes
	}
	return OpenClosed
}

// ParseOpenStatus parses "open", "closed" or "unknown" (case-insensitive).
func ParseOpenStatus(s string) (OpenStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open":
		return OpenYes, nil
	case "closed":
		return OpenClosed, nil
	case "unknown", "":
		return OpenUnknown, nil
	default:
		return OpenUnknown, eris.Errorf("model: invalid open status %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s OpenStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *OpenStatus) UnmarshalText(b []byte) error {
	v, err := ParseOpenStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// PlaceCandidate is a nearby alternative venue. VibeScore and RiskLevel are
// filled in once by the ranker after the candidate's crime baseline is known.
type PlaceCandidate struct {
	Name       string     `json:"name" yaml:"name"`
	Address    string     `json:"address,omitempty" yaml:"address,omitempty"`
	Location   LatLng     `json:"location" yaml:"location"`
	ID         string     `json:"id,omitempty" yaml:"id,omitempty"`
	OpenAtTime OpenStatus `json:"open_at_time" yaml:"open_at_time"`
	VibeScore  *int       `json:"vibe_score,omitempty" yaml:"vibe_score,omitempty"`
	RiskLevel  *RiskLevel `json:"risk_level,omitempty" yaml:"risk_level,omitempty"`
}

// Enrich attaches the computed score and risk level. It returns an error if the
// candidate was already scored.
func (c *PlaceCandidate) Enrich(vibe int, risk RiskLevel) error {
	if c.VibeScore != nil || c.RiskLevel != nil {
		return eris.Errorf("model: candidate %q already scored", c.Name)
	}
	c.VibeScore = &vibe
	c.RiskLevel = &risk
	return nil
}

// Vibe returns the attached vibe score, or -1 when the candidate is unscored.
func (c PlaceCandidate) Vibe() int {
	if c.VibeScore == nil {
		return -1
	}
	return *c.VibeScore
}

// MarshalYAML renders the open status as its string form.
func (s OpenStatus) MarshalYAML() (any, error) {
	return s.String(), nil
}
