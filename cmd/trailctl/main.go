package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"backend-trekhub/internal/auth"
	"backend-trekhub/internal/completion"
	"backend-trekhub/internal/config"
	"backend-trekhub/internal/gpxio"
	"backend-trekhub/internal/recording"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		logrus.WithError(err).Error("trailctl failed")
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "trailctl",
		Short:         "Inspect GPX tracks and mint tokens for the trekhub API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	root.AddCommand(statsCmd())
	root.AddCommand(verifyCmd())
	root.AddCommand(tokenCmd())
	return root
}

func replayFile(path string, maxAccuracy float64) (recording.Recording, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return recording.Recording{}, err
	}
	track, err := gpxio.Decode(data)
	if err != nil {
		return recording.Recording{}, fmt.Errorf("%s: %w", path, err)
	}
	return gpxio.Replay(track, recording.WithConfig(recording.Config{MaxAccuracyM: maxAccuracy}))
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// statsCmd replays a GPX file through the recorder and prints its stats.
func statsCmd() *cobra.Command {
	var maxAccuracy float64

	cmd := &cobra.Command{
		Use:   "stats [file.gpx]",
		Short: "Print distance, duration and elevation for a GPX track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := replayFile(args[0], maxAccuracy)
			if err != nil {
				return err
			}
			return writeJSON(cmd, struct {
				Name     string                         `json:"name"`
				Segments int                            `json:"segments"`
				Stats    recording.Stats                `json:"stats"`
				Rejects  map[recording.RejectReason]int `json:"rejects,omitempty"`
			}{rec.Name, len(rec.Segments()), rec.Stats, rec.Rejects})
		},
	}

	cmd.Flags().Float64Var(&maxAccuracy, "max-accuracy", 0, "Drop fixes less accurate than this many metres (0 keeps all)")
	return cmd
}

// verifyCmd runs the completion verifier over a GPX file.
func verifyCmd() *cobra.Command {
	var (
		difficulty  string
		fitness     float64
		experience  string
		completed   int
		personalize bool
		policy      = completion.DefaultPolicy()
	)

	cmd := &cobra.Command{
		Use:   "verify [file.gpx]",
		Short: "Check whether a GPX track counts as a completed hike",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := replayFile(args[0], 0)
			if err != nil {
				return err
			}
			in := completion.Input{Difficulty: completion.ParseDifficulty(difficulty)}
			if personalize {
				in.Fitness = &completion.Fitness{
					Level:           fitness,
					Experience:      completion.Experience(experience),
					CompletedTrails: completed,
				}
			}
			return writeJSON(cmd, completion.Verify(rec, policy, in))
		},
	}

	f := cmd.Flags()
	f.StringVar(&difficulty, "difficulty", string(completion.Moderate), "Trail difficulty (Easy, Moderate, Hard, Expert)")
	f.Float64Var(&policy.MinDistanceM, "min-distance", policy.MinDistanceM, "Minimum distance in metres")
	f.DurationVar(&policy.MinDuration, "min-duration", policy.MinDuration, "Minimum moving duration")
	f.IntVar(&policy.MinFixCount, "min-points", policy.MinFixCount, "Minimum accepted fixes")
	f.Float64Var(&policy.TokensPerKm, "tokens-per-km", policy.TokensPerKm, "Reward tokens per kilometre")
	f.BoolVar(&personalize, "personalize", false, "Adjust difficulty for the hiker flags below")
	f.Float64Var(&fitness, "fitness", 50, "Hiker fitness level 0-100")
	f.StringVar(&experience, "experience", string(completion.Intermediate), "Hiker experience level")
	f.IntVar(&completed, "completed-trails", 0, "Trails the hiker has already completed")
	return cmd
}

// tokenCmd signs an access token for local testing against the API.
func tokenCmd() *cobra.Command {
	var (
		secret string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token [hiker-id]",
		Short: "Sign a bearer token for a hiker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = config.Load().JWTSecret
			}
			token, err := auth.SignToken(secret, args[0], ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "Signing secret (defaults to JWT_SECRET)")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.AccessTokenTTL, "Token lifetime")
	return cmd
}
