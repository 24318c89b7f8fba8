package downloader

import (
	"fmt"
	"time"
)

// DefaultTierName is used when a request carries an unrecognized tier.
const DefaultTierName = "720p"

// Tier is a named resolution ceiling. Height 0 means no ceiling.
type Tier struct {
	Name    string        `json:"name"`
	Label   string        `json:"label"`
	Height  int           `json:"height"`
	Timeout time.Duration `json:"-"`
}

// Higher tiers pull bigger files; the per-job wall clock scales with them.
var tiers = []Tier{
	{Name: "best", Label: "Best available", Height: 0, Timeout: 30 * time.Minute},
	{Name: "2160p", Label: "4K (2160p)", Height: 2160, Timeout: 30 * time.Minute},
	{Name: "1440p", Label: "2K (1440p)", Height: 1440, Timeout: 20 * time.Minute},
	{Name: "1080p", Label: "Full HD (1080p)", Height: 1080, Timeout: 15 * time.Minute},
	{Name: "720p", Label: "HD (720p)", Height: 720, Timeout: 10 * time.Minute},
	{Name: "480p", Label: "SD (480p)", Height: 480, Timeout: 10 * time.Minute},
}

// Tiers returns the fixed tier table, highest quality first.
func Tiers() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return out
}

// ResolveTier maps a requested tier name to its Tier, falling back to the
// default tier for unrecognized names.
func ResolveTier(name string) Tier {
	for _, t := range tiers {
		if t.Name == name {
			return t
		}
	}
	return ResolveTier(DefaultTierName)
}

// FormatSelector returns the yt-dlp format expression for the tier.
// With ffmpeg available the best video and audio streams are fetched
// separately and merged; without it only progressive formats work.
func (t Tier) FormatSelector(ffmpegAvailable bool) string {
	if ffmpegAvailable {
		if t.Height == 0 {
			return "bv*+ba/b"
		}
		return fmt.Sprintf("bv*[height<=%d]+ba/b[height<=%d]", t.Height, t.Height)
	}
	if t.Height == 0 {
		return "b"
	}
	return fmt.Sprintf("b[height<=%d]/b", t.Height)
}
