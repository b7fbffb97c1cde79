package trails

import (
	"errors"
	"fmt"

	"backend-trekhub/internal/shared/geo"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/wkt"
)

var ErrBadRoute = errors.New("route must be a LINESTRING with at least two points")

// routeGeometry builds the route in lng/lat order. Altitude is kept only
// when every point has one.
func routeGeometry(route []geo.Fix) *geom.LineString {
	layout := geom.XYZ
	if len(route) == 0 {
		layout = geom.XY
	}
	for _, f := range route {
		if f.AltitudeM == nil {
			layout = geom.XY
			break
		}
	}
	flat := make([]float64, 0, len(route)*layout.Stride())
	for _, f := range route {
		flat = append(flat, f.Lng, f.Lat)
		if layout == geom.XYZ {
			flat = append(flat, *f.AltitudeM)
		}
	}
	return geom.NewLineStringFlat(layout, flat)
}

// routeWKT is the text form handed to ST_GeogFromText.
func routeWKT(route []geo.Fix) (string, error) {
	s, err := wkt.Marshal(routeGeometry(route))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadRoute, err)
	}
	return s, nil
}

// decodeRoute reads the ST_AsEWKB form of a stored route.
func decodeRoute(b []byte) ([]geo.Fix, error) {
	g, err := ewkb.Unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRoute, err)
	}
	ls, ok := g.(*geom.LineString)
	if !ok || ls.NumCoords() < 2 {
		return nil, ErrBadRoute
	}
	z := ls.Layout().ZIndex()
	route := make([]geo.Fix, 0, ls.NumCoords())
	for i := 0; i < ls.NumCoords(); i++ {
		c := ls.Coord(i)
		f := geo.Fix{Lng: c[0], Lat: c[1]}
		if z >= 0 {
			f.AltitudeM = geo.Float(c[z])
		}
		route = append(route, f)
	}
	return route, nil
}
