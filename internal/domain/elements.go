package domain

// Canonical element names shared by both upstream sources and the output
// tables. Source-specific identifiers are remapped to these at the fetcher
// boundary, so everything downstream of a fetch speaks one vocabulary.
const (
	ElementGlobalRadiation = "global_radiation"    // W/m²
	ElementAirTemperature  = "air_temperature_c"   // °C
	ElementCloudCover      = "cloud_cover_percent" // %
	ElementSnowDepth       = "snow_depth_cm"       // cm
)
