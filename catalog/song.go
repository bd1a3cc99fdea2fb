package catalog

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dhowden/tag"

	"github.com/alfazet/musing"
	"github.com/alfazet/musing/audiocodec"
)

// Song is a single indexed catalog entry.
type Song struct {
	Path     string
	ModTime  time.Time
	Duration int // seconds
	Cover    []byte
	Tags     map[string]string
}

// readSong extracts tags and duration from the file at path, restricting
// the returned tags to musing's closed vocabulary. Returns an error if the
// file cannot be opened, tagged, or decoded; scan() treats any error here
// as "skip this file silently" per spec.md §4.2.
func readSong(path string, modTime time.Time) (*Song, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	m, err := tag.ReadFrom(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("read tags %s: %w", path, err)
	}

	stream, err := audiocodec.Open(path)
	if err != nil {
		return nil, fmt.Errorf("probe duration %s: %w", path, err)
	}
	duration := int(stream.Duration().Round(time.Second).Seconds())
	stream.Close()

	var cover []byte
	if pic := m.Picture(); pic != nil {
		cover = pic.Data
	}

	return &Song{
		Path:     path,
		ModTime:  modTime,
		Duration: duration,
		Cover:    cover,
		Tags:     tagsFromMetadata(m),
	}, nil
}

func tagsFromMetadata(m tag.Metadata) map[string]string {
	tags := make(map[string]string)

	trackNum, _ := m.Track() // no "track total" slot in the closed tag vocabulary
	discNum, discTotal := m.Disc()

	set := func(name, value string) {
		if value != "" && musing.IsSupportedTag(name) {
			tags[name] = value
		}
	}

	set("album", m.Album())
	set("albumartist", m.AlbumArtist())
	set("artist", m.Artist())
	set("composer", m.Composer())
	set("genre", m.Genre())
	set("tracktitle", m.Title())
	if y := m.Year(); y != 0 {
		set("date", fmt.Sprintf("%d", y))
	}
	if trackNum != 0 {
		set("tracknumber", fmt.Sprintf("%d", trackNum))
	}
	if discNum != 0 {
		set("discnumber", fmt.Sprintf("%d", discNum))
	}
	if discTotal != 0 {
		set("disctotal", fmt.Sprintf("%d", discTotal))
	}

	// Raw tags exposed by the underlying format (e.g. vorbis comments,
	// ID3 TXXX frames) may cover the rest of the closed vocabulary under
	// their own key spelling; only keep the ones musing recognizes.
	for k, v := range m.Raw() {
		name := strings.ToLower(fmt.Sprintf("%v", k))
		if s, ok := v.(string); ok {
			set(name, s)
		}
	}

	return tags
}
