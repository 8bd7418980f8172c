// Package media wraps the external ffmpeg/ffprobe tools behind small Go
// types: a prober, a validator, a transcoder, and a thumbnail generator. All
// subprocess invocations carry hard timeouts so a hung tool cannot wedge a
// worker.
package media

// Profile is one target rendition of the HLS ladder. Bitrate is in kbit/s and
// drives both the encoder rate cap and the buffer size (2x bitrate).
type Profile struct {
	Name    string
	Width   int
	Height  int
	Bitrate int
}

// DefaultProfiles returns the full rendition ladder, lowest quality first.
func DefaultProfiles() []Profile {
	return []Profile{
		{Name: "120p", Width: 214, Height: 120, Bitrate: 300},
		{Name: "360p", Width: 640, Height: 360, Bitrate: 800},
		{Name: "480p", Width: 854, Height: 480, Bitrate: 1200},
		{Name: "720p", Width: 1280, Height: 720, Bitrate: 2500},
		{Name: "1080p", Width: 1920, Height: 1080, Bitrate: 5000},
	}
}

// SelectProfiles filters the default ladder by name, preserving order.
// Unknown names are ignored; an empty selection returns the full ladder.
func SelectProfiles(names []string) []Profile {
	all := DefaultProfiles()
	if len(names) == 0 {
		return all
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	var out []Profile
	for _, p := range all {
		if wanted[p.Name] {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return all
	}
	return out
}
