package musing

// SupportedTags is the closed vocabulary of tag names the catalog
// understands. Any tag name outside this set appearing in a request is an
// error (ErrUnknownTag).
var SupportedTags = []string{
	"album", "albumartist", "arranger", "artist", "bpm", "composer",
	"conductor", "date", "discnumber", "disctotal", "ensemble", "genre",
	"label", "language", "lyricist", "mood", "movementname",
	"movementnumber", "part", "parttotal", "performer", "producer",
	"script", "sortalbum", "sortalbumartist", "sortartist", "sortcomposer",
	"sorttracktitle", "tracknumber", "tracktitle",
}

var supportedTagSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(SupportedTags))
	for _, t := range SupportedTags {
		m[t] = struct{}{}
	}
	return m
}()

// IsSupportedTag reports whether name is part of the closed tag
// vocabulary.
func IsSupportedTag(name string) bool {
	_, ok := supportedTagSet[name]
	return ok
}

// SupportedAudioExtensions is the closed set of file extensions the
// catalog scanner indexes, without the leading dot.
var SupportedAudioExtensions = map[string]struct{}{
	"mp3":  {},
	"aac":  {},
	"flac": {},
	"wav":  {},
	"aif":  {},
	"ogg":  {},
}
