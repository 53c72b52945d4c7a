package domain

// AssetKind enumerates asset types.
type AssetKind string

const (
	AssetKindImage AssetKind = "image"
	AssetKindVideo AssetKind = "video"
	AssetKindAudio AssetKind = "audio"
)

// AssetSubType refines an asset kind.
type AssetSubType string

const (
	AssetSubTypeVoiceOver AssetSubType = "voiceover"
	AssetSubTypeMusic     AssetSubType = "music"
)

// GeneratedAsset is one artifact produced by a campaign run. URL is a media
// reference resolvable through the media registry, never embedded bytes.
type GeneratedAsset struct {
	ID        string       `json:"id"`
	Kind      AssetKind    `json:"type"`
	URL       string       `json:"url"`
	Thumbnail string       `json:"thumbnail,omitempty"`
	SubType   AssetSubType `json:"sub_type,omitempty"`
}
