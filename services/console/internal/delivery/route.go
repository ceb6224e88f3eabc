package delivery

import "math"

const earthRadiusKm = 6371

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Stop is one delivery drop-off.
type Stop struct {
	ID    string `json:"id"`
	Point Point  `json:"coordinates"`
}

// Route is an ordered visit plan for one driver, starting from the branch.
type Route struct {
	Stops            []Stop  `json:"stops"`
	TotalKm          float64 `json:"totalKm"`
	EstimatedMinutes int     `json:"estimatedMinutes"`
}

// Distance returns the great-circle distance between two points in km.
func Distance(a, b Point) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Plan orders the stops by repeated nearest neighbor from the start point.
// The estimate allows 3 minutes per km plus 5 minutes per stop.
func Plan(start Point, stops []Stop) Route {
	remaining := append([]Stop(nil), stops...)
	ordered := make([]Stop, 0, len(stops))
	cur := start
	total := 0.0

	for len(remaining) > 0 {
		nearest := 0
		best := math.Inf(1)
		for i, s := range remaining {
			if d := Distance(cur, s.Point); d < best {
				best = d
				nearest = i
			}
		}
		chosen := remaining[nearest]
		ordered = append(ordered, chosen)
		total += best
		cur = chosen.Point
		remaining = append(remaining[:nearest], remaining[nearest+1:]...)
	}

	return Route{
		Stops:            ordered,
		TotalKm:          math.Round(total*10) / 10,
		EstimatedMinutes: int(math.Round(total*3)) + 5*len(ordered),
	}
}

// Split divides the stops evenly across the given number of drivers and
// plans each share from the same start point.
func Split(start Point, stops []Stop, drivers int) []Route {
	if len(stops) == 0 {
		return []Route{}
	}
	if drivers < 1 {
		drivers = 1
	}
	per := (len(stops) + drivers - 1) / drivers
	routes := make([]Route, 0, drivers)
	for i := 0; i < len(stops); i += per {
		end := i + per
		if end > len(stops) {
			end = len(stops)
		}
		routes = append(routes, Plan(start, stops[i:end]))
	}
	return routes
}
