package models

// Upload is a file already spooled to local disk by the transport layer.
type Upload struct {
	// Path is the spooled file. The workflow moves it; callers must not reuse it.
	Path string
	// OriginalName is the client supplied filename, used only for its extension.
	OriginalName string
	Size         int64
}

// SubmitRequest carries one child's submission through the workflow. The
// category is derived inside Submit and never stored outside the call.
type SubmitRequest struct {
	ChildName string
	Email     string
	Age       int
	Upload    Upload
}

// SubmissionResult describes where the file landed and how many ledger
// records changed. Updated is zero when a concurrent submission got there first.
type SubmissionResult struct {
	Category Category
	FileName string
	FilePath string
	Updated  int
}
