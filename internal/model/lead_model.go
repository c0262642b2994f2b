package model

// Lead is a submission of the contact form on the storefront. Leads are
// not persisted, only forwarded to the manager chat.
type Lead struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Comment string `json:"comment,omitempty"`
}
