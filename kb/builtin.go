package kb

import "github.com/signalsfoundry/engagement-simulator/model"

// BuiltinTargets are the stock target bodies.
var BuiltinTargets = []model.TargetProfile{
	{
		ID:         model.TargetTank,
		Name:       "Heavy tank",
		Footprint:  model.Footprint{Length: 60, Height: 30, Width: 40},
		BodyHeight: 30,
	},
	{
		ID:         model.TargetDrone,
		Name:       "High-speed drone vehicle",
		Footprint:  model.Footprint{Length: 30, Height: 15, Width: 25},
		BodyHeight: 15,
	},
	{
		ID:        model.TargetTruck,
		Name:      "Large cargo truck",
		Footprint: model.Footprint{Length: 100, Height: 25, Width: 35},
		// placement height includes the cab above the cargo box
		BodyHeight: 35,
	},
}

// BuiltinEnvironments are the stock environment presets.
var BuiltinEnvironments = []model.EnvironmentPreset{
	{
		ID: model.EnvironmentClear, Name: "Clear",
		SkyColor: 0x4dabff, GroundColor: 0x347d34, FogColor: 0x99ccff,
		FogNear: 2000, FogFar: 12000,
		LaserOpacity: 0.9, SunIntensity: 10.0,
	},
	{
		ID: model.EnvironmentFoggy, Name: "Dense fog",
		SkyColor: 0x888888, GroundColor: 0x445544, FogColor: 0xaaaaaa,
		FogNear: 10, FogFar: 2000,
		LaserOpacity: 0.4, SunIntensity: 2.0,
	},
	{
		ID: model.EnvironmentDust, Name: "Overcast",
		SkyColor: 0x778899, GroundColor: 0x2e4d2e, FogColor: 0x667788,
		FogNear: 50, FogFar: 4000,
		LaserOpacity: 0.7, SunIntensity: 4.0,
	},
	{
		ID: model.EnvironmentNight, Name: "Night",
		SkyColor: 0x010108, GroundColor: 0x051505, FogColor: 0x000000,
		FogNear: 500, FogFar: 5000,
		LaserOpacity: 1.0, SunIntensity: 0.1,
	},
}

// NewDefaultCatalog returns a catalog holding the built-in targets and
// environments.
func NewDefaultCatalog() *Catalog {
	c := NewCatalog()
	for _, p := range BuiltinTargets {
		if err := c.AddTarget(p); err != nil {
			panic(err)
		}
	}
	for _, e := range BuiltinEnvironments {
		if err := c.AddEnvironment(e); err != nil {
			panic(err)
		}
	}
	return c
}

var defaultCatalog = NewDefaultCatalog()

// Default returns the shared built-in catalog.
func Default() *Catalog { return defaultCatalog }

// PresetFor looks up a built-in environment preset.
func PresetFor(id model.EnvironmentID) (model.EnvironmentPreset, error) {
	return defaultCatalog.Environment(id)
}

// TargetFor looks up a built-in target profile.
func TargetFor(id model.TargetID) (model.TargetProfile, error) {
	return defaultCatalog.Target(id)
}
