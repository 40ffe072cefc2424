package model

// EnvironmentID names an environment preset.
type EnvironmentID string

const (
	EnvironmentClear EnvironmentID = "clear"
	EnvironmentFoggy EnvironmentID = "foggy"
	EnvironmentDust  EnvironmentID = "dust"
	EnvironmentNight EnvironmentID = "night"
)

// RGB is a 0xRRGGBB colour. The kernel passes colours through untouched.
type RGB uint32

// EnvironmentPreset bundles the atmospheric parameters of a named
// environment. Only LaserOpacity feeds the kernel; everything else is for
// the renderer.
type EnvironmentPreset struct {
	ID          EnvironmentID `json:"id"`
	Name        string        `json:"name"`
	SkyColor    RGB           `json:"skyColor"`
	GroundColor RGB           `json:"groundColor"`
	FogColor    RGB           `json:"fogColor"`
	FogNear     float64       `json:"fogNear"`
	FogFar      float64       `json:"fogFar"`

	// LaserOpacity is the baseline beam visibility in (0, 1].
	LaserOpacity float64 `json:"laserOpacity"`
	// SunIntensity seeds the user illumination override on selection.
	SunIntensity float64 `json:"sunIntensity"`
}
