package transfer

type TiktokVideoPostInfo struct {
	Title                 string `json:"title"`
	PrivacyLevel          string `json:"privacy_level"`
	DisableDuet           bool   `json:"disable_duet"`
	DisableComment        bool   `json:"disable_comment"`
	DisableStitch         bool   `json:"disable_stitch"`
	VideoCoverTimestampMs int    `json:"video_cover_timestamp_ms"`
}

type TiktokPhotoPostInfo struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	PrivacyLevel   string `json:"privacy_level"`
	DisableComment bool   `json:"disable_comment"`
	AutoAddMusic   bool   `json:"auto_add_music"`
}

type TiktokVideoSourceInfo struct {
	Source   string `json:"source"`
	VideoURL string `json:"video_url"`
}

type TiktokPhotoSourceInfo struct {
	Source          string   `json:"source"`
	PhotoCoverIndex int      `json:"photo_cover_index"`
	PhotoImages     []string `json:"photo_images"`
}

type TiktokVideoUploadRequest struct {
	PostInfo   TiktokVideoPostInfo   `json:"post_info"`
	SourceInfo TiktokVideoSourceInfo `json:"source_info"`
}

type TiktokPhotoUploadRequest struct {
	PostInfo   TiktokPhotoPostInfo   `json:"post_info"`
	SourceInfo TiktokPhotoSourceInfo `json:"source_info"`
	PostMode   string                `json:"post_mode"`
	MediaType  string                `json:"media_type"`
}

type TiktokUploadResponse struct {
	Data  TiktokPublishData `json:"data"`
	Error TiktokError       `json:"error"`
}

type TiktokPublishData struct {
	PublishID string `json:"publish_id"`
}

type TiktokError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	LogID   string `json:"log_id"`
}
