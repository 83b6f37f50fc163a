package transcoder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GenerateMasterPlaylist creates the master HLS playlist referencing each
// rung's per-resolution manifest.
func GenerateMasterPlaylist(hlsDir string, ladder []Rung) error {
	var builder strings.Builder
	builder.WriteString("#EXTM3U\n")
	builder.WriteString("#EXT-X-VERSION:3\n")

	for _, rung := range ladder {
		builder.WriteString(fmt.Sprintf("#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%dx%d\n",
			rung.Bandwidth, rung.Width, rung.Height))
		builder.WriteString(fmt.Sprintf("%s/%s\n", rung.Label, ManifestName))
	}

	return os.WriteFile(filepath.Join(hlsDir, "master.m3u8"), []byte(builder.String()), 0644)
}
