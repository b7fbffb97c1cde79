// Package gpxio converts recordings to and from GPX 1.1.
package gpxio

import (
	"errors"
	"fmt"
	"time"

	"backend-trekhub/internal/location"
	"backend-trekhub/internal/recording"
	"backend-trekhub/internal/shared/geo"

	"github.com/tkrajina/gpxgo/gpx"
)

const creator = "trekhub"

var ErrEmptyTrack = errors.New("gpx file has no track points")

// Track is the part of a GPX document a recording cares about. Each
// segment is a run of fixes between pauses.
type Track struct {
	Name        string
	Description string
	Segments    [][]geo.Fix
}

func (t Track) Fixes() []geo.Fix {
	var out []geo.Fix
	for _, seg := range t.Segments {
		out = append(out, seg...)
	}
	return out
}

// Encode writes rec as one GPX track with a segment per resume.
func Encode(rec recording.Recording) ([]byte, error) {
	trk := gpx.GPXTrack{Name: rec.Name, Description: rec.Description}
	for _, seg := range rec.Segments() {
		var out gpx.GPXTrackSegment
		for _, f := range seg {
			p := gpx.GPXPoint{Timestamp: f.Timestamp.UTC()}
			p.Latitude = f.Lat
			p.Longitude = f.Lng
			if f.AltitudeM != nil {
				p.Elevation = *gpx.NewNullableFloat64(*f.AltitudeM)
			}
			out.Points = append(out.Points, p)
		}
		trk.Segments = append(trk.Segments, out)
	}

	doc := &gpx.GPX{
		Version:     "1.1",
		Creator:     creator,
		Name:        rec.Name,
		Description: rec.Description,
		Tracks:      []gpx.GPXTrack{trk},
	}
	data, err := doc.ToXml(gpx.ToXmlParams{Version: "1.1", Indent: true})
	if err != nil {
		return nil, fmt.Errorf("encode gpx: %w", err)
	}
	return data, nil
}

// Decode reads every track segment of a GPX document. Points from all
// tracks are kept, in file order.
func Decode(data []byte) (Track, error) {
	doc, err := gpx.ParseBytes(data)
	if err != nil {
		return Track{}, fmt.Errorf("parse gpx: %w", err)
	}

	t := Track{Name: doc.Name, Description: doc.Description}
	for _, trk := range doc.Tracks {
		if t.Name == "" {
			t.Name = trk.Name
		}
		for _, seg := range trk.Segments {
			fixes := make([]geo.Fix, 0, len(seg.Points))
			for _, p := range seg.Points {
				f := geo.Fix{Lat: p.Latitude, Lng: p.Longitude, Timestamp: p.Timestamp}
				if p.Elevation.NotNull() {
					f.AltitudeM = geo.Float(p.Elevation.Value())
				}
				fixes = append(fixes, f)
			}
			if len(fixes) > 0 {
				t.Segments = append(t.Segments, fixes)
			}
		}
	}
	if len(t.Segments) == 0 {
		return Track{}, ErrEmptyTrack
	}
	return t, nil
}

// Replay feeds a decoded track through a fresh recorder, pausing between
// segments, and returns the stopped recording.
func Replay(t Track, opts ...recording.Option) (recording.Recording, error) {
	name := t.Name
	if name == "" {
		name = "Imported track"
	}
	r := recording.NewRecorder("replay-"+time.Now().UTC().Format("20060102T150405"), location.NewPushProvider(), opts...)
	if err := r.Start(name, t.Description); err != nil {
		return recording.Recording{}, err
	}
	for i, seg := range t.Segments {
		if i > 0 {
			if err := r.Pause(); err != nil {
				return recording.Recording{}, err
			}
			if err := r.Resume(); err != nil {
				return recording.Recording{}, err
			}
		}
		for _, f := range seg {
			r.OnLocationUpdate(f)
		}
	}
	return r.Stop()
}
