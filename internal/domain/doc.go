// Package domain models satellite surface observations and their comparison
// against official monthly climate normals.
//
// # Data Sources
//
// Observations come from the GCOM-C/SGLI Level-2 land products distributed by
// JAXA G-Portal: land-surface temperature (L2-LST) and the vegetation index
// (L2-VGI, reported here as NDVI). The upstream collector samples the pixel
// nearest to each user location and publishes one JSON message per location
// and day to the ingest topic. See [ParseObservationMessage].
//
// Climate normals are the 30-year monthly averages published for Japan
// Meteorological Agency surface stations. Each station has up to twelve
// normals (average, daily maximum and daily minimum temperature in °C).
//
// # Units and Rounding
//
//	LST:        Kelvin on the wire, converted with K - 273.15, stored in °C at 2 places.
//	NDVI:       dimensionless in [0, 1], stored at 3 places.
//	Distance:   great-circle kilometers on a 6371 km sphere, reported at 2 places.
//	Difference: observed - normal average, 2 places.
//	Deviation:  difference / normal average * 100, 2 places; absent when the average is 0.
//
// # Station Resolution
//
// A location's nearest station is found by a linear scan of the reference
// catalog ([ResolveNearestStation]). The catalog is small and static, so no
// spatial index is kept. The resolved station is stored on the location and
// only changes through an explicit re-resolve.
//
// # Absence
//
// "No data" and "zero" are kept apart everywhere. Optional readings are
// pointers; a comparison that could not be made carries a nil Deviation and a
// [Missing] reason instead of zeros. Export rows leave absent values empty.
package domain
