package youtube

// APIResponse represents one page of a YouTube search.list call.
type APIResponse struct {
	Items         []Item   `json:"items"`
	NextPageToken string   `json:"nextPageToken"`
	PageInfo      PageInfo `json:"pageInfo"`
}

type PageInfo struct {
	TotalResults   int `json:"totalResults"`
	ResultsPerPage int `json:"resultsPerPage"`
}

type Item struct {
	ID      ItemID  `json:"id"`
	Snippet Snippet `json:"snippet"`
}

type ItemID struct {
	VideoID string `json:"videoId"`
}

type Snippet struct {
	PublishedAt  string     `json:"publishedAt"`
	ChannelID    string     `json:"channelId"`
	ChannelTitle string     `json:"channelTitle"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Thumbnails   Thumbnails `json:"thumbnails"`
}

type Thumbnails struct {
	Default Thumbnail `json:"default"`
	High    Thumbnail `json:"high"`
}

type Thumbnail struct {
	URL string `json:"url"`
}
