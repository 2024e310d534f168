package models

// CheckEmailResponse is the body of GET /check-email. Success is false for
// the NotFound and AlreadyComplete outcomes, with Message set.
type CheckEmailResponse struct {
	Success  bool    `json:"success"`
	Children []Child `json:"children,omitempty"`
	Message  string  `json:"message,omitempty"`
}

// UploadResponse is the body of a successful POST /upload-image.
type UploadResponse struct {
	Success  bool     `json:"success"`
	Category Category `json:"category"`
	FileName string   `json:"fileName"`
}
