// Package queue holds the ordered playback queue that every client instance
// mirrors from the background process's broadcasts.
package queue

// Kind distinguishes the sources an entry can come from.
type Kind string

const (
	KindSong    Kind = "song"    // catalog track, can be liked
	KindLocal   Kind = "local"   // file from a local library folder
	KindProgram Kind = "program" // radio program episode
)

// Entry is one track in the queue. ID is stable across instances.
type Entry struct {
	ID       string   `json:"id"`
	Kind     Kind     `json:"kind"`
	Name     string   `json:"name"`
	Artists  []string `json:"artists,omitempty"`
	Album    string   `json:"album,omitempty"`
	AlbumID  int64    `json:"albumId,omitempty"`
	PicURL   string   `json:"picUrl,omitempty"`
	Duration int64    `json:"duration,omitempty"` // milliseconds
	Path     string   `json:"path,omitempty"`     // local files only
}

// Artist returns the first credited artist, or "".
func (e Entry) Artist() string {
	if len(e.Artists) == 0 {
		return ""
	}
	return e.Artists[0]
}

// Standard reports whether e is a regular catalog track as opposed to a
// local file or radio-only entry.
func (e *Entry) Standard() bool {
	return e != nil && e.Kind == KindSong
}

func (e Entry) clone() *Entry {
	c := e
	if e.Artists != nil {
		c.Artists = append([]string(nil), e.Artists...)
	}
	return &c
}
