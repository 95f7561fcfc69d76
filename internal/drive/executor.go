package drive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/icdrive/icdrive/internal/icloud"
)

// DefaultChunkSize bounds the number of in-flight per-file transfers. It is
// the executor's only backpressure knob.
const DefaultChunkSize = 5

// DownloadAPI is the slice of the API client downloads need.
type DownloadAPI interface {
	FetchDownloadURLs(ctx context.Context, zone string, docIDs []string) ([]icloud.DownloadURL, error)
}

// UploadAPI is the slice of the API client uploads need.
type UploadAPI interface {
	CreateUploadSlot(ctx context.Context, zone string, meta icloud.UploadMeta) (icloud.UploadSlot, error)
	UploadBytes(ctx context.Context, slotURL string, body io.Reader, size int64) (icloud.UploadReceipt, error)
	RegisterDocument(ctx context.Context, zone, parentDocwsid string, slot icloud.UploadSlot, receipt icloud.UploadReceipt, meta icloud.UploadMeta) (icloud.DriveItem, error)
}

// TransferResult is the independent outcome of one item's transfer. A failed
// item never cancels its siblings; the executor always returns the full list.
type TransferResult struct {
	ID        string
	LocalPath string
	Err       error
}

// UploadResult is the outcome of one file upload, carrying the registered
// item summary on success so the caller can upsert the cache.
type UploadResult struct {
	LocalPath string
	Name      string
	Item      icloud.DriveItem
	Err       error
}

// Executor performs the byte transfers of a planned task. Downloads are
// grouped per zone and split into bounded chunks: one batched URL fetch per
// chunk, then the chunk's files transfer in parallel with no ordering
// guarantee among them. Chunks execute sequentially. Uploads are per-file.
type Executor struct {
	downloads    DownloadAPI
	uploads      UploadAPI
	httpClient   *http.Client
	chunkSize    int
	restoreMtime bool
	logger       *slog.Logger
}

// ExecutorOpts configures an Executor.
type ExecutorOpts struct {
	// ChunkSize is the per-chunk transfer bound; DefaultChunkSize if <= 0.
	ChunkSize int
	// RestoreMtime resets each downloaded file's mtime to the remote's
	// recorded modification time.
	RestoreMtime bool
}

// NewExecutor creates an Executor. httpClient fetches the pre-authenticated
// transfer URLs and may be nil for the default client.
func NewExecutor(dl DownloadAPI, ul UploadAPI, httpClient *http.Client, opts ExecutorOpts, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	return &Executor{
		downloads:    dl,
		uploads:      ul,
		httpClient:   httpClient,
		chunkSize:    chunkSize,
		restoreMtime: opts.RestoreMtime,
		logger:       logger,
	}
}

// Download materializes a task: creates the local directories, creates empty
// files directly, and transfers the rest per zone in bounded chunks. A
// directory-creation failure aborts the whole command (nothing has
// transferred yet); from then on every failure is per-item.
func (e *Executor) Download(ctx context.Context, task Task) ([]TransferResult, error) {
	for _, dir := range task.DirsToCreate {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory: %w", err)
		}
	}

	results := make([]TransferResult, 0, len(task.Empty)+len(task.Transferable))

	// Empty files skip the network round trip entirely.
	for _, item := range task.Empty {
		err := os.WriteFile(item.LocalPath, nil, 0o644)
		if err == nil && e.restoreMtime && !item.Remote.Modified.IsZero() {
			err = os.Chtimes(item.LocalPath, item.Remote.Modified, item.Remote.Modified)
		}

		results = append(results, TransferResult{ID: item.Remote.ID, LocalPath: item.LocalPath, Err: err})
	}

	for _, group := range groupByZone(task.Transferable) {
		for chunk := range chunks(group.items, e.chunkSize) {
			results = append(results, e.downloadChunk(ctx, group.zone, chunk)...)
		}
	}

	return results, nil
}

// downloadChunk fetches one batch of URLs and transfers the chunk's files in
// parallel. A failed batch fetch fails every item of the chunk without
// touching sibling chunks.
func (e *Executor) downloadChunk(ctx context.Context, zone string, chunk []PlanItem) []TransferResult {
	docIDs := make([]string, 0, len(chunk))
	for _, item := range chunk {
		docIDs = append(docIDs, item.Remote.DocID)
	}

	e.logger.Debug("downloading chunk",
		slog.String("zone", zone),
		slog.Int("files", len(chunk)),
	)

	results := make([]TransferResult, len(chunk))
	for i, item := range chunk {
		results[i] = TransferResult{ID: item.Remote.ID, LocalPath: item.LocalPath}
	}

	urls, err := e.downloads.FetchDownloadURLs(ctx, zone, docIDs)
	if err != nil {
		for i := range results {
			results[i].Err = err
		}

		return results
	}

	byDoc := make(map[string]icloud.DownloadURL, len(urls))
	for _, u := range urls {
		byDoc[u.DocumentID] = u
	}

	g, gctx := errgroup.WithContext(ctx)

	for i, item := range chunk {
		g.Go(func() error {
			u, ok := byDoc[item.Remote.DocID]

			switch {
			case !ok:
				results[i].Err = fmt.Errorf("no download url for %q: %w", item.Remote.Path, ErrNotFound)
			case u.Err != nil:
				results[i].Err = u.Err
			default:
				results[i].Err = e.fetchFile(gctx, u.URL, item)
			}

			// Per-item failures are recorded, never propagated: one bad
			// file must not cancel its chunk siblings.
			return nil
		})
	}

	_ = g.Wait()

	return results
}

// fetchFile streams one URL to its destination with .partial discipline:
// write to a temp name, then atomically rename into place.
func (e *Executor) fetchFile(ctx context.Context, url string, item PlanItem) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating download request: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("downloading %q: %w", item.Remote.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading %q: unexpected status %d", item.Remote.Path, resp.StatusCode)
	}

	partial := item.LocalPath + ".partial"

	f, err := os.Create(partial)
	if err != nil {
		return fmt.Errorf("creating %q: %w", partial, err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(partial)

		return fmt.Errorf("writing %q: %w", partial, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(partial)

		return fmt.Errorf("closing %q: %w", partial, err)
	}

	if err := os.Rename(partial, item.LocalPath); err != nil {
		os.Remove(partial)

		return fmt.Errorf("renaming %q: %w", partial, err)
	}

	if e.restoreMtime && !item.Remote.Modified.IsZero() {
		if err := os.Chtimes(item.LocalPath, item.Remote.Modified, item.Remote.Modified); err != nil {
			return fmt.Errorf("restoring mtime of %q: %w", item.LocalPath, err)
		}
	}

	return nil
}

// UploadItem is one local file to upload into a remote folder.
type UploadItem struct {
	LocalPath   string
	Name        string
	Zone        string
	ParentDocID string
}

// Upload transfers files one at a time: stat the size, request an upload
// slot, stream the bytes, register the document against its destination
// folder. Per-zone batching applies to downloads only. Failures are per-item.
func (e *Executor) Upload(ctx context.Context, items []UploadItem) []UploadResult {
	results := make([]UploadResult, 0, len(items))

	for _, item := range items {
		registered, err := e.uploadOne(ctx, item)
		results = append(results, UploadResult{
			LocalPath: item.LocalPath,
			Name:      item.Name,
			Item:      registered,
			Err:       err,
		})
	}

	return results
}

func (e *Executor) uploadOne(ctx context.Context, item UploadItem) (icloud.DriveItem, error) {
	info, err := os.Stat(item.LocalPath)
	if err != nil {
		return icloud.DriveItem{}, fmt.Errorf("stat %q: %w", item.LocalPath, err)
	}

	meta := icloud.UploadMeta{
		Name:        item.Name,
		Size:        info.Size(),
		ContentType: contentTypeOf(item.Name),
		Mtime:       info.ModTime(),
	}

	slot, err := e.uploads.CreateUploadSlot(ctx, item.Zone, meta)
	if err != nil {
		return icloud.DriveItem{}, err
	}

	f, err := os.Open(item.LocalPath)
	if err != nil {
		return icloud.DriveItem{}, fmt.Errorf("opening %q: %w", item.LocalPath, err)
	}
	defer f.Close()

	receipt, err := e.uploads.UploadBytes(ctx, slot.URL, f, info.Size())
	if err != nil {
		return icloud.DriveItem{}, err
	}

	e.logger.Debug("uploaded bytes",
		slog.String("name", item.Name),
		slog.Int64("size", info.Size()),
	)

	return e.uploads.RegisterDocument(ctx, item.Zone, item.ParentDocID, slot, receipt, meta)
}

// contentTypeOf guesses a MIME type from the filename extension.
func contentTypeOf(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}

	return "application/octet-stream"
}

// zoneGroup is the transferable items of one storage shard, in plan order.
type zoneGroup struct {
	zone  string
	items []PlanItem
}

// groupByZone partitions items per zone, preserving first-seen zone order.
func groupByZone(items []PlanItem) []zoneGroup {
	index := make(map[string]int)

	var groups []zoneGroup

	for _, item := range items {
		i, ok := index[item.Remote.Zone]
		if !ok {
			i = len(groups)
			index[item.Remote.Zone] = i
			groups = append(groups, zoneGroup{zone: item.Remote.Zone})
		}

		groups[i].items = append(groups[i].items, item)
	}

	return groups
}

// chunks yields fixed-size windows of items.
func chunks(items []PlanItem, size int) func(func([]PlanItem) bool) {
	return func(yield func([]PlanItem) bool) {
		for start := 0; start < len(items); start += size {
			end := min(start+size, len(items))

			if !yield(items[start:end]) {
				return
			}
		}
	}
}
