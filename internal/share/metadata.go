package share

import "strings"

// Link types in folder listings.
const (
	LinkTypeFolder = 1
	LinkTypeFile   = 2
)

// InfoResponse is the subset of the share info payload the engine reads.
type InfoResponse struct {
	Code  int `json:"Code"`
	Token struct {
		Token    string `json:"Token"`
		LinkType int    `json:"LinkType"`
		LinkID   string `json:"LinkID"`
		Name     string `json:"Name"`
		MIMEType string `json:"MIMEType"`
		Size     int64  `json:"Size"`
	} `json:"Token"`
}

// Link is one child entry of a folder listing payload.
type Link struct {
	LinkID       string `json:"LinkID"`
	ParentLinkID string `json:"ParentLinkID"`
	Type         int    `json:"Type"`
	Name         string `json:"Name"`
	Size         int64  `json:"Size"`
	TotalSize    int64  `json:"TotalSize"`
	MIMEType     string `json:"MIMEType"`
	State        int    `json:"State"`
}

// FolderResponse is the folder listing payload.
type FolderResponse struct {
	Code         int    `json:"Code"`
	AllowSorting bool   `json:"AllowSorting"`
	Links        []Link `json:"Links"`
}

// Metadata is the authoritative share description captured from the web API.
type Metadata struct {
	MIMEType string `json:"mime_type"`
	Size     int64  `json:"size"`
	IsFolder bool   `json:"is_folder"`
	Listing  []Link `json:"listing,omitempty"`
}

// IsFolderMIME reports whether an API MIME type denotes a folder.
func IsFolderMIME(mimeType string) bool {
	return strings.EqualFold(mimeType, FolderMIMEType)
}

// CountLinks returns how many folders and files a listing holds.
func CountLinks(links []Link) (folders, files int) {
	for _, l := range links {
		switch l.Type {
		case LinkTypeFolder:
			folders++
		case LinkTypeFile:
			files++
		}
	}
	return folders, files
}
