package graph

// --- Graph resource types (hand-written, aligned with the v1.0 API) ---

// EmailAddress is a name/address pair.
type EmailAddress struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

// Recipient wraps an EmailAddress the way the message endpoints expect.
type Recipient struct {
	EmailAddress EmailAddress `json:"emailAddress"`
}

// ItemBody is a message body with its content type.
type ItemBody struct {
	ContentType string `json:"contentType"` // "text" or "html"
	Content     string `json:"content"`
}

// Message is an Outlook message resource.
type Message struct {
	ID               string      `json:"id,omitempty"`
	Subject          string      `json:"subject,omitempty"`
	BodyPreview      string      `json:"bodyPreview,omitempty"`
	Body             *ItemBody   `json:"body,omitempty"`
	From             *Recipient  `json:"from,omitempty"`
	ToRecipients     []Recipient `json:"toRecipients,omitempty"`
	CcRecipients     []Recipient `json:"ccRecipients,omitempty"`
	ReceivedDateTime string      `json:"receivedDateTime,omitempty"`
	HasAttachments   bool        `json:"hasAttachments,omitempty"`
	WebLink          string      `json:"webLink,omitempty"`
	Attachments      []FileAttachment `json:"attachments,omitempty"`
}

// FileAttachment is a file attached to a message. ContentBytes is base64 and
// only present when requested or attached outbound.
type FileAttachment struct {
	ODataType    string `json:"@odata.type,omitempty"`
	ID           string `json:"id,omitempty"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType,omitempty"`
	Size         int64  `json:"size,omitempty"`
	ContentBytes string `json:"contentBytes,omitempty"`
}

// fileAttachmentType is the @odata.type for outbound file attachments.
const fileAttachmentType = "#microsoft.graph.fileAttachment"

// DriveItem is a OneDrive file or folder.
type DriveItem struct {
	ID              string           `json:"id,omitempty"`
	Name            string           `json:"name,omitempty"`
	Size            int64            `json:"size,omitempty"`
	WebURL          string           `json:"webUrl,omitempty"`
	Folder          *FolderFacet     `json:"folder,omitempty"`
	File            *FileFacet       `json:"file,omitempty"`
	ParentReference *ParentReference `json:"parentReference,omitempty"`
	LastModified    string           `json:"lastModifiedDateTime,omitempty"`
}

// FolderFacet marks a DriveItem as a folder.
type FolderFacet struct {
	ChildCount int `json:"childCount,omitempty"`
}

// FileFacet marks a DriveItem as a file.
type FileFacet struct {
	MimeType string `json:"mimeType,omitempty"`
}

// ParentReference locates a DriveItem in its drive.
type ParentReference struct {
	DriveID string `json:"driveId,omitempty"`
	ID      string `json:"id,omitempty"`
	Path    string `json:"path,omitempty"`
}

// page is the collection envelope every list endpoint returns.
type page[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"@odata.nextLink,omitempty"`
}
