package drive

import (
	"time"

	"github.com/icdrive/icdrive/internal/icloud"
)

// Kind discriminates the entity union. Switches over Kind should be
// exhaustive; KindFile is the only non-folder-like variant.
type Kind string

const (
	KindRoot       Kind = "root"
	KindTrash      Kind = "trash"
	KindFolder     Kind = "folder"
	KindAppLibrary Kind = "app_library"
	KindFile       Kind = "file"
)

// Entity is one cached remote node. Folder-like entities exist in two states:
// summary-only (learned as a member of a parent's listing, HasDetails false,
// Items nil) and full details (HasDetails true, Items populated). Files always
// carry their full summary — they have no separate details state.
//
// The summary→details transition is monotonic: merging a summary for an id
// that already holds details never drops the details.
type Entity struct {
	Kind      Kind      `json:"kind"`
	ID        string    `json:"drivewsid"`
	DocID     string    `json:"docwsid,omitempty"`
	Zone      string    `json:"zone,omitempty"`
	ParentID  string    `json:"parentId,omitempty"`
	Name      string    `json:"name"`
	Extension string    `json:"extension,omitempty"`
	Etag      string    `json:"etag,omitempty"`
	Size      int64     `json:"size,omitempty"`
	Created   time.Time `json:"dateCreated,omitzero"`
	Modified  time.Time `json:"dateModified,omitzero"`

	HasDetails bool     `json:"hasDetails,omitempty"`
	Items      []Entity `json:"items,omitempty"`
}

// IsFolderLike reports whether the entity can have children.
func (e Entity) IsFolderLike() bool {
	return e.Kind != KindFile
}

// FullName returns the filename as shown in a directory listing: the name
// plus the extension for files, the bare name otherwise.
func (e Entity) FullName() string {
	if e.Kind == KindFile && e.Extension != "" {
		return e.Name + "." + e.Extension
	}

	return e.Name
}

// summary returns a copy of the entity stripped to its child-summary state.
func (e Entity) summary() Entity {
	e.HasDetails = false
	e.Items = nil

	return e
}

// kindOf maps an API type discriminator and drivewsid to an entity kind.
func kindOf(item icloud.DriveItem) Kind {
	switch item.Drivewsid {
	case icloud.RootID:
		return KindRoot
	case icloud.TrashID:
		return KindTrash
	}

	switch item.Type {
	case icloud.TypeFile:
		return KindFile
	case icloud.TypeAppLibrary:
		return KindAppLibrary
	default:
		return KindFolder
	}
}

// EntityFromItem converts an API folder-details response into an Entity with
// full details, its children attached as summaries.
func EntityFromItem(item icloud.DriveItem) Entity {
	e := entityShallow(item)

	if e.IsFolderLike() {
		e.HasDetails = true
		e.Items = make([]Entity, 0, len(item.Items))

		for _, child := range item.Items {
			e.Items = append(e.Items, entityShallow(child))
		}
	}

	return e
}

// SummaryFromItem converts an API child summary into a summary-only Entity.
func SummaryFromItem(item icloud.DriveItem) Entity {
	return entityShallow(item)
}

func entityShallow(item icloud.DriveItem) Entity {
	return Entity{
		Kind:      kindOf(item),
		ID:        item.Drivewsid,
		DocID:     item.Docwsid,
		Zone:      item.Zone,
		ParentID:  item.ParentID,
		Name:      item.Name,
		Extension: item.Extension,
		Etag:      item.Etag,
		Size:      item.Size,
		Created:   item.DateCreated,
		Modified:  item.DateModified,
	}
}
