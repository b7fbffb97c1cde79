package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"backend-trekhub/internal/auth"
	"backend-trekhub/internal/completion"

	"github.com/golang-jwt/jwt/v5"
)

// writeTrack writes a single-segment track heading north one point a minute.
func writeTrack(t *testing.T, points int) string {
	t.Helper()
	start := time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1"><trk><name>Ridge Loop</name><trkseg>`)
	for i := 0; i < points; i++ {
		fmt.Fprintf(&b, `<trkpt lat="%.4f" lon="107.7300"><ele>%d</ele><time>%s</time></trkpt>`,
			-7.3190+float64(i)*0.001, 2100+i*5, start.Add(time.Duration(i)*time.Minute).Format(time.RFC3339))
	}
	b.WriteString(`</trkseg></trk></gpx>`)

	path := filepath.Join(t.TempDir(), "track.gpx")
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		t.Fatalf("write track: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestStats(t *testing.T) {
	out, err := run(t, "stats", writeTrack(t, 12))
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	var got struct {
		Name     string `json:"name"`
		Segments int    `json:"segments"`
		Stats    struct {
			PointCount     int     `json:"point_count"`
			DistanceM      float64 `json:"distance_m"`
			DurationSec    float64 `json:"duration_sec"`
			ElevationGainM float64 `json:"elevation_gain_m"`
		} `json:"stats"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if got.Name != "Ridge Loop" || got.Segments != 1 || got.Stats.PointCount != 12 {
		t.Fatalf("unexpected stats %+v", got)
	}
	if got.Stats.DurationSec != 660 || got.Stats.ElevationGainM != 55 {
		t.Fatalf("unexpected duration/gain %+v", got.Stats)
	}
	if got.Stats.DistanceM < 1200 || got.Stats.DistanceM > 1250 {
		t.Fatalf("unexpected distance %f", got.Stats.DistanceM)
	}
}

func TestVerify(t *testing.T) {
	path := writeTrack(t, 12)

	out, err := run(t, "verify", path, "--difficulty", "hard")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	var res completion.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if !res.Completed || res.CompletionPercentage != 100 || res.Difficulty != completion.Hard {
		t.Fatalf("unexpected result %+v", res)
	}

	out, err = run(t, "verify", path, "--min-distance", "5000")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	res = completion.Result{}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if res.Completed || len(res.Reasons) != 1 || res.Reasons[0] != completion.ReasonDistance {
		t.Fatalf("expected distance shortfall, got %+v", res)
	}
}

func TestVerifyPersonalized(t *testing.T) {
	out, err := run(t, "verify", writeTrack(t, 12), "--difficulty", "Hard",
		"--personalize", "--fitness", "100", "--experience", "expert", "--completed-trails", "20")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	var res completion.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if res.Difficulty != completion.Easy {
		t.Fatalf("expected an easier rating, got %s", res.Difficulty)
	}
}

func TestFileErrors(t *testing.T) {
	if _, err := run(t, "stats", filepath.Join(t.TempDir(), "missing.gpx")); err == nil {
		t.Fatalf("expected missing file error")
	}
	empty := filepath.Join(t.TempDir(), "empty.gpx")
	if err := os.WriteFile(empty, []byte(`<?xml version="1.0"?><gpx version="1.1" creator="x"><trk><trkseg></trkseg></trk></gpx>`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := run(t, "verify", empty); err == nil || !strings.Contains(err.Error(), "no track points") {
		t.Fatalf("expected empty track error, got %v", err)
	}
	if _, err := run(t, "stats"); err == nil {
		t.Fatalf("expected argument error")
	}
}

func TestToken(t *testing.T) {
	out, err := run(t, "token", "hiker-1", "--secret", "s3cret", "--ttl", "1h")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	claims := &auth.Claims{}
	_, err = jwt.ParseWithClaims(strings.TrimSpace(out), claims, func(*jwt.Token) (any, error) {
		return []byte("s3cret"), nil
	})
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.HikerID != "hiker-1" {
		t.Fatalf("unexpected hiker %q", claims.HikerID)
	}
}
