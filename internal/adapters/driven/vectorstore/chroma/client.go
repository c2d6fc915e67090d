// Package chroma provides a driven.VectorStore backed by a Chroma server,
// spoken to over its v2 REST API.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/chromasync/internal/core/domain"
	"github.com/custodia-labs/chromasync/internal/core/ports/driven"
)

// Ensure Client implements the interface.
var _ driven.VectorStore = (*Client)(nil)

const (
	// DefaultTimeout bounds a single request.
	DefaultTimeout = 60 * time.Second

	// DefaultPageSize is the number of records fetched per get call.
	DefaultPageSize = 1000

	// HeaderToken carries the API key.
	HeaderToken = "x-chroma-token"

	// EnvAPIKey is read when no API key is configured.
	EnvAPIKey = "CHROMA_API_KEY"
)

// Config holds configuration for the Chroma client.
type Config struct {
	// BaseURL is the server URL, e.g. http://127.0.0.1:8000.
	BaseURL  string
	Tenant   string
	Database string
	APIKey   string

	// RequestsPerSecond caps the request rate; 0 means unlimited.
	RequestsPerSecond float64

	Timeout  time.Duration
	PageSize int

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Client talks to one tenant/database of a Chroma server.
type Client struct {
	http     *http.Client
	baseURL  string
	tenant   string
	database string
	apiKey   string
	pageSize int
	limiter  *RateLimiter

	mu  sync.RWMutex
	ids map[string]string // collection name -> id
}

// NewClient creates a Chroma client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: chroma base URL is required", domain.ErrConfiguration)
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("%w: invalid chroma URL %q: %v", domain.ErrConfiguration, cfg.BaseURL, err)
	}
	if cfg.Tenant == "" {
		cfg.Tenant = domain.DefaultTenant
	}
	if cfg.Database == "" {
		cfg.Database = domain.DefaultDatabase
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(EnvAPIKey)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		http:     httpClient,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		tenant:   cfg.Tenant,
		database: cfg.Database,
		apiKey:   cfg.APIKey,
		pageSize: cfg.PageSize,
		limiter:  NewRateLimiter(cfg.RequestsPerSecond),
		ids:      make(map[string]string),
	}, nil
}

// New has the driven.VectorStoreFactory signature.
func New(settings domain.RemoteSettings) (driven.VectorStore, error) {
	return NewClient(Config{
		BaseURL:           settings.URL(),
		Tenant:            settings.Tenant,
		Database:          settings.Database,
		APIKey:            settings.APIKey,
		RequestsPerSecond: settings.RateLimit,
	})
}

// collectionModel is the v2 collection representation.
type collectionModel struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata"`
}

func (c collectionModel) info() domain.CollectionInfo {
	return domain.CollectionInfo{Name: c.Name, ID: c.ID, Metadata: c.Metadata}
}

type createCollectionRequest struct {
	Name        string         `json:"name"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	GetOrCreate bool           `json:"get_or_create"`
}

type getRequest struct {
	IDs     []string `json:"ids,omitempty"`
	Include []string `json:"include"`
	Limit   int      `json:"limit,omitempty"`
	Offset  int      `json:"offset,omitempty"`
}

type getResponse struct {
	IDs       []string         `json:"ids"`
	Metadatas []map[string]any `json:"metadatas"`
}

type upsertRequest struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Documents  []string         `json:"documents"`
	Metadatas  []map[string]any `json:"metadatas"`
}

type deleteRequest struct {
	IDs []string `json:"ids"`
}

// Heartbeat checks the server is reachable.
func (c *Client) Heartbeat(ctx context.Context) error {
	return c.do(ctx, call{op: "heartbeat", method: http.MethodGet, path: "/api/v2/heartbeat"}, nil)
}

// ListCollections returns every collection of the database, paging through
// the listing.
func (c *Client) ListCollections(ctx context.Context) ([]domain.CollectionInfo, error) {
	var out []domain.CollectionInfo
	for offset := 0; ; offset += c.pageSize {
		var page []collectionModel
		path := fmt.Sprintf("%s?limit=%d&offset=%d", c.collectionsPath(), c.pageSize, offset)
		if err := c.do(ctx, call{op: "list collections", method: http.MethodGet, path: path}, &page); err != nil {
			return nil, err
		}
		for _, m := range page {
			out = append(out, m.info())
			c.remember(m.Name, m.ID)
		}
		if len(page) < c.pageSize {
			return out, nil
		}
	}
}

// CreateCollection gets or creates the collection, tagging it with metadata
// and the embedding dimensionality.
func (c *Client) CreateCollection(
	ctx context.Context,
	name string,
	dimensions int,
	metadata map[string]any,
) (*domain.CollectionInfo, error) {
	meta := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	if dimensions > 0 {
		meta[domain.MetaDimensions] = dimensions
	}

	var m collectionModel
	req := createCollectionRequest{Name: name, Metadata: meta, GetOrCreate: true}
	err := c.do(ctx, call{
		op: "create collection", collection: name,
		method: http.MethodPost, path: c.collectionsPath(), body: req,
	}, &m)
	if err != nil {
		return nil, err
	}
	c.remember(m.Name, m.ID)
	info := m.info()
	return &info, nil
}

// DescribeCollection returns the collection or an error matching domain.ErrNotFound.
func (c *Client) DescribeCollection(ctx context.Context, name string) (*domain.CollectionInfo, error) {
	var m collectionModel
	err := c.do(ctx, call{
		op: "describe collection", collection: name,
		method: http.MethodGet, path: c.collectionsPath() + "/" + url.PathEscape(name),
	}, &m)
	if err != nil {
		return nil, err
	}
	c.remember(m.Name, m.ID)
	info := m.info()
	return &info, nil
}

// DeleteCollection drops the collection.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	err := c.do(ctx, call{
		op: "delete collection", collection: name,
		method: http.MethodDelete, path: c.collectionsPath() + "/" + url.PathEscape(name),
	}, nil)
	if err != nil {
		return err
	}
	c.forget(name)
	return nil
}

// GetIDsAndHashes pages through the collection and returns every id with
// its content hash and model. A missing collection yields an empty map.
func (c *Client) GetIDsAndHashes(ctx context.Context, name string) (map[string]domain.RemoteEntry, error) {
	id, err := c.resolve(ctx, name)
	if domain.IsNotFound(err) {
		return map[string]domain.RemoteEntry{}, nil
	}
	if err != nil {
		return nil, err
	}

	out := make(map[string]domain.RemoteEntry)
	for offset := 0; ; offset += c.pageSize {
		var page getResponse
		req := getRequest{Include: []string{"metadatas"}, Limit: c.pageSize, Offset: offset}
		if err := c.do(ctx, call{
			op: "get", collection: name,
			method: http.MethodPost, path: c.recordsPath(id, "get"), body: req,
		}, &page); err != nil {
			return nil, err
		}

		for i, recordID := range page.IDs {
			var entry domain.RemoteEntry
			if i < len(page.Metadatas) && page.Metadatas[i] != nil {
				entry.Hash, _ = page.Metadatas[i][domain.MetaContentHash].(string)
				entry.Model, _ = page.Metadatas[i][domain.MetaModel].(string)
				entry.Archive, _ = page.Metadatas[i][domain.MetaArchive].(string)
			}
			out[recordID] = entry
		}
		if len(page.IDs) < c.pageSize {
			return out, nil
		}
	}
}

// Upsert writes records by id.
func (c *Client) Upsert(ctx context.Context, name string, records []domain.ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}
	ids := recordIDs(records)

	collID, err := c.resolve(ctx, name)
	if err != nil {
		return withIDs(err, ids)
	}

	req := upsertRequest{
		IDs:        ids,
		Embeddings: make([][]float32, len(records)),
		Documents:  make([]string, len(records)),
		Metadatas:  make([]map[string]any, len(records)),
	}
	for i, r := range records {
		req.Embeddings[i] = r.Embedding
		req.Documents[i] = r.Text
		req.Metadatas[i] = RecordMetadata(r)
	}

	return c.do(ctx, call{
		op: "upsert", collection: name, ids: ids,
		method: http.MethodPost, path: c.recordsPath(collID, "upsert"), body: req,
	}, nil)
}

// Delete removes records by id.
func (c *Client) Delete(ctx context.Context, name string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	collID, err := c.resolve(ctx, name)
	if err != nil {
		return withIDs(err, ids)
	}
	return c.do(ctx, call{
		op: "delete", collection: name, ids: ids,
		method: http.MethodPost, path: c.recordsPath(collID, "delete"), body: deleteRequest{IDs: ids},
	}, nil)
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// RecordMetadata is the metadata stored with a record on the server: the
// record's fixed metadata plus its content hash and model.
func RecordMetadata(r domain.ChunkRecord) map[string]any {
	m := r.Metadata.Map()
	m[domain.MetaContentHash] = r.ContentHash
	m[domain.MetaModel] = r.Model
	return m
}

// ==================== Helpers ====================

type call struct {
	op         string
	collection string
	ids        []string
	method     string
	path       string
	body       any
}

// do sends one request and decodes a JSON response into out when non-nil.
func (c *Client) do(ctx context.Context, cl call, out any) error {
	fail := func(status int, network bool, err error) error {
		return &domain.RemoteError{
			Op:         cl.op,
			Collection: cl.collection,
			IDs:        cl.ids,
			StatusCode: status,
			Network:    network,
			Err:        err,
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fail(0, false, err)
	}

	var body io.Reader
	if cl.body != nil {
		payload, err := json.Marshal(cl.body)
		if err != nil {
			return fail(0, false, fmt.Errorf("marshal request: %w", err))
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, body)
	if err != nil {
		return fail(0, false, fmt.Errorf("create request: %w", err))
	}
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(HeaderToken, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fail(0, false, ctxErr)
		}
		return fail(0, true, err)
	}
	defer resp.Body.Close()
	c.limiter.UpdateFromResponse(resp)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(resp.StatusCode, true, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(resp.StatusCode, false, statusError(resp.StatusCode, data))
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fail(resp.StatusCode, false, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// statusError extracts the server's message from an error body.
func statusError(status int, body []byte) error {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil {
		switch {
		case payload.Message != "":
			msg = payload.Message
		case payload.Error != "":
			msg = payload.Error
		}
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("authentication failed: %s", msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, msg)
	default:
		return errors.New(msg)
	}
}

// resolve returns the server id of the named collection.
func (c *Client) resolve(ctx context.Context, name string) (string, error) {
	c.mu.RLock()
	id, ok := c.ids[name]
	c.mu.RUnlock()
	if ok {
		return id, nil
	}

	info, err := c.DescribeCollection(ctx, name)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

func (c *Client) remember(name, id string) {
	if name == "" || id == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids[name] = id
}

func (c *Client) forget(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.ids, name)
}

func (c *Client) collectionsPath() string {
	return fmt.Sprintf("/api/v2/tenants/%s/databases/%s/collections",
		url.PathEscape(c.tenant), url.PathEscape(c.database))
}

func (c *Client) recordsPath(collectionID, action string) string {
	return c.collectionsPath() + "/" + url.PathEscape(collectionID) + "/" + action
}

func recordIDs(records []domain.ChunkRecord) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}

// withIDs attaches ids to a remote error raised before the batch was sent.
func withIDs(err error, ids []string) error {
	var remoteErr *domain.RemoteError
	if errors.As(err, &remoteErr) && remoteErr.IDs == nil {
		cp := *remoteErr
		cp.IDs = ids
		return &cp
	}
	return err
}
