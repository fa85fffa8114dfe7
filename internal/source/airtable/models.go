package airtable

// APIResponse represents one page of an Airtable list records call.
type APIResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset"`
}

type Record struct {
	ID          string `json:"id"`
	CreatedTime string `json:"createdTime"`
	Fields      Fields `json:"fields"`
}

type Fields struct {
	Name         string   `json:"Name"`
	Description  string   `json:"Description"`
	Category     string   `json:"Category"`
	Link         string   `json:"Link"`
	Tags         []string `json:"Tags"`
	Status       string   `json:"Status"`
	Pricing      string   `json:"Pricing"`
	UsageCount   int      `json:"Usage Count"`
	LastModified string   `json:"Last Modified"`
}
