package domain

// VideoMetadata describes the retrieved video. Only Title, DurationSeconds,
// Format, IsLive and IsPrivate are always set; adapters fill the rest with
// whatever they can observe and leave unknown fields zero, never fabricated.
type VideoMetadata struct {
	Title           string  `json:"title"`
	DurationSeconds float64 `json:"duration_seconds"`
	Width           int     `json:"width,omitempty"`
	Height          int     `json:"height,omitempty"`
	SizeBytes       int64   `json:"file_size_bytes,omitempty"`
	Format          string  `json:"format"`
	VideoID         string  `json:"video_id,omitempty"`
	ChannelID       string  `json:"channel_id,omitempty"`
	ChannelName     string  `json:"channel_name,omitempty"`
	UploadDate      string  `json:"upload_date,omitempty"`
	ViewCount       int64   `json:"view_count,omitempty"`
	LikeCount       int64   `json:"like_count,omitempty"`
	IsLive          bool    `json:"is_live"`
	IsPrivate       bool    `json:"is_private"`
}
