package transfer

// Graph API payloads shared by the Facebook page and Instagram adapters.

type GraphIDResponse struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
}

type GraphPhotoRequest struct {
	URL       string `json:"url"`
	Caption   string `json:"caption,omitempty"`
	Published *bool  `json:"published,omitempty"`
}

type GraphAttachedMedia struct {
	MediaFbID string `json:"media_fbid"`
}

type GraphFeedRequest struct {
	Message       string               `json:"message,omitempty"`
	AttachedMedia []GraphAttachedMedia `json:"attached_media"`
}

type GraphContainerRequest struct {
	ImageURL       string   `json:"image_url,omitempty"`
	Caption        string   `json:"caption,omitempty"`
	IsCarouselItem bool     `json:"is_carousel_item,omitempty"`
	MediaType      string   `json:"media_type,omitempty"`
	Children       []string `json:"children,omitempty"`
}

type GraphPublishRequest struct {
	CreationID string `json:"creation_id"`
}

// GraphContainerStatus is the reply to GET /{container-id}?fields=status_code,status.
type GraphContainerStatus struct {
	ID         string `json:"id"`
	StatusCode string `json:"status_code"`
	Status     string `json:"status"`
}

type GraphErrorResponse struct {
	Error struct {
		Message        string `json:"message"`
		Type           string `json:"type"`
		Code           int    `json:"code"`
		ErrorSubcode   int    `json:"error_subcode"`
		IsTransient    bool   `json:"is_transient"`
		ErrorUserTitle string `json:"error_user_title"`
		ErrorUserMsg   string `json:"error_user_msg"`
		FbtraceID      string `json:"fbtrace_id"`
	} `json:"error"`
}
