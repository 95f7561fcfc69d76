package icloud

import "time"

// Well-known drivewsid values. The docs root and the trash root have fixed
// identifiers; everything else is opaque.
const (
	RootID  = "FOLDER::com.apple.CloudDocs::root"
	TrashID = "TRASH::com.apple.CloudDocs::root"
)

// Item type discriminators as returned by the API.
const (
	TypeFile       = "FILE"
	TypeFolder     = "FOLDER"
	TypeAppLibrary = "APP_LIBRARY"
)

// Status values attached to per-id results in retrieveItemDetailsInFolders
// responses. Anything other than OK means the id no longer resolves.
const (
	StatusOK        = "OK"
	StatusIDInvalid = "ID_INVALID"
)

// DriveItem is one node in a retrieveItemDetailsInFolders response: either a
// requested folder (with Items populated) or a child summary inside a parent's
// Items list (Items absent).
type DriveItem struct {
	Drivewsid     string      `json:"drivewsid"`
	Docwsid       string      `json:"docwsid,omitempty"`
	Zone          string      `json:"zone,omitempty"`
	Name          string      `json:"name"`
	Extension     string      `json:"extension,omitempty"`
	ParentID      string      `json:"parentId,omitempty"`
	Etag          string      `json:"etag,omitempty"`
	Type          string      `json:"type"`
	Size          int64       `json:"size,omitempty"`
	DateCreated   time.Time   `json:"dateCreated,omitempty"`
	DateModified  time.Time   `json:"dateModified,omitempty"`
	NumberOfItems int         `json:"numberOfItems,omitempty"`
	Items         []DriveItem `json:"items,omitempty"`
	Status        string      `json:"status,omitempty"`
}

// FolderRequest is one entry in a retrieveItemDetailsInFolders request body.
type FolderRequest struct {
	Drivewsid        string `json:"drivewsid"`
	PartialData      bool   `json:"partialData"`
	IncludeHierarchy bool   `json:"includeHierarchy"`
}

// DownloadURL is one per-document result of a batched download-URL fetch.
// URL is empty when the server returned no token for the document; Err carries
// a per-item decode or status problem without failing the batch.
type DownloadURL struct {
	DocumentID string
	URL        string
	Err        error
}

// downloadBatchItem is the wire shape of one download/batch response entry.
type downloadBatchItem struct {
	DocumentID string `json:"document_id"`
	DataToken  *struct {
		URL string `json:"url"`
	} `json:"data_token,omitempty"`
	PackageToken *struct {
		URL string `json:"url"`
	} `json:"package_token,omitempty"`
	Status string `json:"status,omitempty"`
}

// UploadMeta describes the file being uploaded.
type UploadMeta struct {
	Name        string
	Size        int64
	ContentType string
	Mtime       time.Time
}

// UploadSlot is the server-assigned destination for one upload.
type UploadSlot struct {
	DocumentID string `json:"document_id"`
	URL        string `json:"url"`
}

// UploadReceipt is the proof-of-upload returned after the bytes are stored,
// passed verbatim to RegisterDocument.
type UploadReceipt struct {
	FileChecksum      string `json:"fileChecksum"`
	WrappingKey       string `json:"wrappingKey"`
	ReferenceChecksum string `json:"referenceChecksum"`
	Size              int64  `json:"size"`
	Receipt           string `json:"receipt"`
}

// ItemRef identifies one item in a move/rename/trash request, with the etag
// for the server's optimistic-concurrency check.
type ItemRef struct {
	Drivewsid string `json:"drivewsid"`
	Etag      string `json:"etag"`
}

// RenameRef is an ItemRef plus the new name for renameItems.
type RenameRef struct {
	Drivewsid string `json:"drivewsid"`
	Etag      string `json:"etag"`
	Name      string `json:"name"`
	Extension string `json:"extension,omitempty"`
}

// FolderCreate names one folder for createFolders.
type FolderCreate struct {
	Name     string `json:"name"`
	ClientID string `json:"clientId"`
}

// itemsEnvelope is the common `{"items": [...]}` response wrapper for
// move/rename/trash/createFolders.
type itemsEnvelope struct {
	Items   []DriveItem `json:"items"`
	Folders []DriveItem `json:"folders"`
}
