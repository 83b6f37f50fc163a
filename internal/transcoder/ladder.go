package transcoder

// Rung defines video encoding parameters for one resolution of the ladder.
type Rung struct {
	Label     string
	Width     int
	Height    int
	Bitrate   string
	MaxRate   string
	BufSize   string
	AudioBPS  string
	Bandwidth int
}

// DefaultLadder is the fixed, ordered set of resolutions every video is
// encoded into. Lowest rung first so a partial run still yields something
// playable on constrained clients.
var DefaultLadder = []Rung{
	{"360p", 640, 360, "800k", "856k", "1200k", "96k", 856000},
	{"480p", 854, 480, "1400k", "1498k", "2100k", "128k", 1498000},
	{"720p", 1280, 720, "2800k", "2996k", "4200k", "128k", 2996000},
	{"1080p", 1920, 1080, "5000k", "5350k", "7500k", "192k", 5350000},
}

// RungByLabel returns the rung matching the given label, or nil if not found.
func RungByLabel(ladder []Rung, label string) *Rung {
	for i := range ladder {
		if ladder[i].Label == label {
			return &ladder[i]
		}
	}
	return nil
}

// Labels returns the ordered resolution labels of the ladder.
func Labels(ladder []Rung) []string {
	labels := make([]string, len(ladder))
	for i, r := range ladder {
		labels[i] = r.Label
	}
	return labels
}
