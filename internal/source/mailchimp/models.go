package mailchimp

// APIResponse represents one page of a Mailchimp campaigns list call.
type APIResponse struct {
	Campaigns  []Campaign `json:"campaigns"`
	TotalItems int        `json:"total_items"`
}

type Campaign struct {
	ID         string   `json:"id"`
	Type       string   `json:"type"`
	Status     string   `json:"status"`
	CreateTime string   `json:"create_time"`
	SendTime   string   `json:"send_time"`
	ArchiveURL string   `json:"archive_url"`
	EmailsSent int      `json:"emails_sent"`
	Settings   Settings `json:"settings"`
}

type Settings struct {
	SubjectLine string `json:"subject_line"`
	Title       string `json:"title"`
	FromName    string `json:"from_name"`
	PreviewText string `json:"preview_text"`
}
