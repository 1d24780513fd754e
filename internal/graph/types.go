package graph

import "time"

// Identity names the actor on a drive item.
type Identity struct {
	DisplayName string `json:"displayName"`
}

// IdentitySet wraps the user identity Graph returns for created/modified by.
type IdentitySet struct {
	User Identity `json:"user"`
}

// FolderFacet is present on folder items.
type FolderFacet struct {
	ChildCount int `json:"childCount"`
}

// FileFacet is present on file items.
type FileFacet struct {
	MimeType string     `json:"mimeType"`
	Hashes   *HashFacet `json:"hashes,omitempty"`
}

// HashFacet carries content hashes when the drive provides them.
type HashFacet struct {
	QuickXorHash string `json:"quickXorHash,omitempty"`
	SHA1Hash     string `json:"sha1Hash,omitempty"`
}

// DriveItem is one file or folder returned by a children listing.
type DriveItem struct {
	ID                   string       `json:"id"`
	Name                 string       `json:"name"`
	Size                 int64        `json:"size"`
	Folder               *FolderFacet `json:"folder,omitempty"`
	File                 *FileFacet   `json:"file,omitempty"`
	CreatedDateTime      *time.Time   `json:"createdDateTime,omitempty"`
	LastModifiedDateTime *time.Time   `json:"lastModifiedDateTime,omitempty"`
	CreatedBy            *IdentitySet `json:"createdBy,omitempty"`
	LastModifiedBy       *IdentitySet `json:"lastModifiedBy,omitempty"`
	WebURL               string       `json:"webUrl"`
}

// IsFolder reports whether the item carries a folder facet.
func (i DriveItem) IsFolder() bool {
	return i.Folder != nil
}

// ItemPage is one page of a paginated children listing.
type ItemPage struct {
	Value    []DriveItem `json:"value"`
	NextLink string      `json:"@odata.nextLink"`
}

// Site identifies a resolved SharePoint site.
type Site struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	WebURL      string `json:"webUrl"`
}

// Drive is one document library on a site.
type Drive struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	DriveType string `json:"driveType"`
	WebURL    string `json:"webUrl"`
}

type drivePage struct {
	Value []Drive `json:"value"`
}
