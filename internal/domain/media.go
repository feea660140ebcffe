package domain

type MediaKind string

const (
	MediaKindAudio MediaKind = "audio"
	MediaKindVideo MediaKind = "video"
)

func (k MediaKind) Valid() bool {
	return k == MediaKindAudio || k == MediaKindVideo
}

// MediaTypeScreen marks a producer as a screen share in its app data.
const MediaTypeScreen = "screen"

// AppData is opaque application data attached by clients to producers.
type AppData map[string]any

func (d AppData) MediaType() string {
	s, _ := d["mediaType"].(string)
	return s
}

func (d AppData) IsScreenShare() bool {
	return d.MediaType() == MediaTypeScreen
}
