package icloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// RetrieveItemDetailsInFolders fetches full details for the given folder ids
// in one call. The response is order-preserving: one DriveItem per requested
// id, with Status set to ID_INVALID for ids the server no longer knows.
func (c *Client) RetrieveItemDetailsInFolders(ctx context.Context, drivewsids []string) ([]DriveItem, error) {
	if len(drivewsids) == 0 {
		return nil, nil
	}

	reqs := make([]FolderRequest, 0, len(drivewsids))
	for _, id := range drivewsids {
		reqs = append(reqs, FolderRequest{
			Drivewsid:        id,
			PartialData:      false,
			IncludeHierarchy: true,
		})
	}

	var items []DriveItem
	if err := c.postJSON(ctx, c.driveURL("/retrieveItemDetailsInFolders"), reqs, &items); err != nil {
		return nil, fmt.Errorf("retrieving details for %d folders: %w", len(drivewsids), err)
	}

	if len(items) != len(drivewsids) {
		return nil, fmt.Errorf("icloud: details response has %d entries, requested %d", len(items), len(drivewsids))
	}

	return items, nil
}

// FetchDownloadURLs requests download URLs for a batch of documents in one
// zone. Results are per-item: a missing token is recorded on the entry, not
// returned as a batch error.
func (c *Client) FetchDownloadURLs(ctx context.Context, zone string, docIDs []string) ([]DownloadURL, error) {
	if len(docIDs) == 0 {
		return nil, nil
	}

	type docRef struct {
		DocumentID string `json:"document_id"`
	}

	refs := make([]docRef, 0, len(docIDs))
	for _, id := range docIDs {
		refs = append(refs, docRef{DocumentID: id})
	}

	path := "/ws/" + url.PathEscape(zone) + "/download/batch"

	var raw []downloadBatchItem
	if err := c.postJSON(ctx, c.docsURL(path), refs, &raw); err != nil {
		return nil, fmt.Errorf("fetching download urls for zone %q: %w", zone, err)
	}

	out := make([]DownloadURL, 0, len(raw))

	for _, item := range raw {
		du := DownloadURL{DocumentID: item.DocumentID}

		switch {
		case item.DataToken != nil:
			du.URL = item.DataToken.URL
		case item.PackageToken != nil:
			du.URL = item.PackageToken.URL
		default:
			du.Err = fmt.Errorf("icloud: no download token for document %q (status %q)", item.DocumentID, item.Status)
		}

		out = append(out, du)
	}

	return out, nil
}

// CreateUploadSlot asks the docs service for an upload destination.
func (c *Client) CreateUploadSlot(ctx context.Context, zone string, meta UploadMeta) (UploadSlot, error) {
	req := map[string]any{
		"filename":     meta.Name,
		"type":         "FILE",
		"content_type": meta.ContentType,
		"size":         meta.Size,
	}

	path := "/ws/" + url.PathEscape(zone) + "/upload/web"

	var slots []UploadSlot
	if err := c.postJSON(ctx, c.docsURL(path), req, &slots); err != nil {
		return UploadSlot{}, fmt.Errorf("creating upload slot for %q: %w", meta.Name, err)
	}

	if len(slots) == 0 {
		return UploadSlot{}, errors.New("icloud: upload slot response is empty")
	}

	return slots[0], nil
}

// UploadBytes streams the file body to the slot URL and returns the receipt
// needed to register the document. The slot URL is pre-authenticated; the
// session is not attached.
func (c *Client) UploadBytes(ctx context.Context, slotURL string, body io.Reader, size int64) (UploadReceipt, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, slotURL, body)
	if err != nil {
		return UploadReceipt{}, fmt.Errorf("icloud: creating upload request: %w", err)
	}

	req.ContentLength = size
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return UploadReceipt{}, fmt.Errorf("icloud: uploading bytes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		errBody, _ := io.ReadAll(resp.Body)

		return UploadReceipt{}, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(errBody),
			Err:        classifyStatus(resp.StatusCode),
		}
	}

	var envelope struct {
		SingleFile UploadReceipt `json:"singleFile"`
	}

	if err := decodeJSON(resp.Body, &envelope); err != nil {
		return UploadReceipt{}, fmt.Errorf("icloud: decoding upload receipt: %w", err)
	}

	return envelope.SingleFile, nil
}

// RegisterDocument binds an uploaded document to its destination folder,
// making it visible in the drive tree. Returns the summary of the new item.
func (c *Client) RegisterDocument(ctx context.Context, zone, parentDocwsid string, slot UploadSlot, receipt UploadReceipt, meta UploadMeta) (DriveItem, error) {
	req := map[string]any{
		"document_id":       slot.DocumentID,
		"command":           "add_file",
		"create_short_guid": true,
		"allow_conflict":    true,
		"path": map[string]any{
			"starting_document_id": parentDocwsid,
			"path":                 meta.Name,
		},
		"data": map[string]any{
			"signature":           receipt.FileChecksum,
			"wrapping_key":        receipt.WrappingKey,
			"reference_signature": receipt.ReferenceChecksum,
			"size":                receipt.Size,
			"receipt":             receipt.Receipt,
		},
		"mtime": meta.Mtime.UnixMilli(),
		"btime": meta.Mtime.UnixMilli(),
	}

	path := "/ws/" + url.PathEscape(zone) + "/update/documents"

	var out struct {
		Results []struct {
			ItemInfo DriveItem `json:"itemInfo"`
			Status   string    `json:"status"`
		} `json:"results"`
	}

	if err := c.postJSON(ctx, c.docsURL(path), req, &out); err != nil {
		return DriveItem{}, fmt.Errorf("registering document %q: %w", meta.Name, err)
	}

	if len(out.Results) == 0 {
		return DriveItem{}, fmt.Errorf("icloud: register response for %q is empty", meta.Name)
	}

	return out.Results[0].ItemInfo, nil
}

// MoveItems moves items under a new parent folder. Each item carries its etag
// for the server's concurrency check. Returns the updated summaries.
func (c *Client) MoveItems(ctx context.Context, destDrivewsid string, items []ItemRef) ([]DriveItem, error) {
	req := map[string]any{
		"destinationDrivewsId": destDrivewsid,
		"items":                withClientID(items, c.clientID),
	}

	var env itemsEnvelope
	if err := c.postJSON(ctx, c.driveURL("/moveItems"), req, &env); err != nil {
		return nil, fmt.Errorf("moving %d items: %w", len(items), err)
	}

	return env.Items, nil
}

// RenameItems renames items in place. Returns the updated summaries.
func (c *Client) RenameItems(ctx context.Context, items []RenameRef) ([]DriveItem, error) {
	req := map[string]any{"items": items}

	var env itemsEnvelope
	if err := c.postJSON(ctx, c.driveURL("/renameItems"), req, &env); err != nil {
		return nil, fmt.Errorf("renaming %d items: %w", len(items), err)
	}

	return env.Items, nil
}

// MoveItemsToTrash moves items to the trash root.
func (c *Client) MoveItemsToTrash(ctx context.Context, items []ItemRef) ([]DriveItem, error) {
	req := map[string]any{
		"items":        withClientID(items, c.clientID),
		"trackChanges": true,
	}

	var env itemsEnvelope
	if err := c.postJSON(ctx, c.driveURL("/moveItemsToTrash"), req, &env); err != nil {
		return nil, fmt.Errorf("trashing %d items: %w", len(items), err)
	}

	return env.Items, nil
}

// DeleteItems permanently deletes items, bypassing the trash.
func (c *Client) DeleteItems(ctx context.Context, items []ItemRef) ([]DriveItem, error) {
	req := map[string]any{"items": withClientID(items, c.clientID)}

	var env itemsEnvelope
	if err := c.postJSON(ctx, c.driveURL("/deleteItems"), req, &env); err != nil {
		return nil, fmt.Errorf("deleting %d items: %w", len(items), err)
	}

	return env.Items, nil
}

// CreateFolders creates folders under the given parent. Returns the new
// folder summaries in request order.
func (c *Client) CreateFolders(ctx context.Context, destDrivewsid string, names []string) ([]DriveItem, error) {
	folders := make([]FolderCreate, 0, len(names))
	for _, name := range names {
		folders = append(folders, FolderCreate{Name: name, ClientID: c.clientID})
	}

	req := map[string]any{
		"destinationDrivewsId": destDrivewsid,
		"folders":              folders,
	}

	var env itemsEnvelope
	if err := c.postJSON(ctx, c.driveURL("/createFolders"), req, &env); err != nil {
		return nil, fmt.Errorf("creating %d folders: %w", len(names), err)
	}

	return env.Folders, nil
}

// withClientID copies item refs into the wire shape that includes clientId.
func withClientID(items []ItemRef, clientID string) []map[string]string {
	out := make([]map[string]string, 0, len(items))
	for _, it := range items {
		out = append(out, map[string]string{
			"drivewsid": it.Drivewsid,
			"etag":      it.Etag,
			"clientId":  clientID,
		})
	}

	return out
}
