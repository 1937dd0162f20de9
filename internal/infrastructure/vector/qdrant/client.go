package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/notice-extractor/internal/core/domain"
	"github.com/kirillkom/notice-extractor/internal/core/vectorindex"
	"github.com/kirillkom/notice-extractor/internal/infrastructure/resilience"
)

const scrollPageSize = 256

var errCollectionMissing = errors.New("qdrant collection missing")

// Client stores every passage of a document as one point carrying owner_id
// and doc_id payload fields. Load scrolls those points back into a Handle.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
	}
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// IndexPassages upserts the passages of one document. Point ids derive from
// the ref and passage id, so re-indexing overwrites instead of duplicating.
func (c *Client) IndexPassages(ctx context.Context, ref domain.DocumentIndexRef, passages []domain.Passage, vectors [][]float32) error {
	if len(passages) == 0 {
		return nil
	}
	if len(passages) != len(vectors) {
		return domain.WrapError(domain.ErrInvalidInput, "qdrant index", fmt.Errorf("passages/vectors mismatch: %d/%d", len(passages), len(vectors)))
	}
	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	points := make([]point, 0, len(passages))
	for i, p := range passages {
		points = append(points, point{
			ID:     uuid.NewSHA1(uuid.NameSpaceURL, []byte(ref.String()+"#"+p.ID)).String(),
			Vector: vectors[i],
			Payload: map[string]any{
				"owner_id":   ref.OwnerID,
				"doc_id":     ref.DocumentID,
				"passage_id": p.ID,
				"position":   i,
				"text":       p.Text,
				"page":       p.Page,
				"offset":     p.Offset,
			},
		})
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	return c.do(ctx, "qdrant.upsert", http.MethodPut, url, map[string]any{"points": points}, nil)
}

func (c *Client) Exists(ctx context.Context, ref domain.DocumentIndexRef) domain.ExistenceCheckResult {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/count", c.baseURL, c.collection)
	err := c.do(ctx, "qdrant.count", http.MethodPost, url, map[string]any{
		"filter": documentFilter(ref),
		"exact":  true,
	}, &resp)
	switch {
	case errors.Is(err, errCollectionMissing):
		return domain.Absent()
	case err != nil:
		return domain.ExistenceFailed(err)
	case resp.Result.Count == 0:
		return domain.Absent()
	default:
		return domain.Present()
	}
}

func (c *Client) Load(ctx context.Context, ref domain.DocumentIndexRef) (*vectorindex.Handle, error) {
	type scrolled struct {
		position int
		passage  domain.Passage
		vector   []float32
	}
	var all []scrolled

	url := fmt.Sprintf("%s/collections/%s/points/scroll", c.baseURL, c.collection)
	var offset any
	for {
		body := map[string]any{
			"filter":       documentFilter(ref),
			"limit":        scrollPageSize,
			"with_payload": true,
			"with_vector":  true,
		}
		if offset != nil {
			body["offset"] = offset
		}

		var resp struct {
			Result struct {
				Points []struct {
					Payload map[string]any `json:"payload"`
					Vector  []float32      `json:"vector"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}
		if err := c.do(ctx, "qdrant.scroll", http.MethodPost, url, body, &resp); err != nil {
			if errors.Is(err, errCollectionMissing) {
				return nil, domain.WrapError(domain.ErrIndexNotFound, "qdrant load", err)
			}
			return nil, err
		}

		for _, p := range resp.Result.Points {
			if len(p.Vector) == 0 {
				return nil, domain.WrapError(domain.ErrIndexCorrupt, "qdrant load", fmt.Errorf("point without vector in %s", ref))
			}
			all = append(all, scrolled{
				position: getIntPayload(p.Payload, "position"),
				passage: domain.Passage{
					ID:     getStringPayload(p.Payload, "passage_id"),
					Text:   getStringPayload(p.Payload, "text"),
					Page:   getIntPayload(p.Payload, "page"),
					Offset: getIntPayload(p.Payload, "offset"),
				},
				vector: p.Vector,
			})
		}
		if resp.Result.NextPageOffset == nil || len(resp.Result.Points) == 0 {
			break
		}
		offset = resp.Result.NextPageOffset
	}

	if len(all) == 0 {
		return nil, domain.WrapError(domain.ErrIndexNotFound, "qdrant load", fmt.Errorf("no points for %s", ref))
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].position < all[j].position })

	passages := make([]domain.Passage, 0, len(all))
	vectors := make([][]float32, 0, len(all))
	for _, s := range all {
		passages = append(passages, s.passage)
		vectors = append(vectors, s.vector)
	}
	h, err := vectorindex.New(ref, passages, vectors)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIndexCorrupt, "qdrant load", err)
	}
	return h, nil
}

func documentFilter(ref domain.DocumentIndexRef) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{"key": "owner_id", "match": map[string]any{"value": ref.OwnerID}},
			{"key": "doc_id", "match": map[string]any{"value": ref.DocumentID}},
		},
	}
}

func (c *Client) do(ctx context.Context, operation, method, url string, payload any, out any) error {
	fn := func(ctx context.Context) error {
		return c.roundTrip(ctx, operation, method, url, payload, out)
	}
	if c.executor == nil {
		return fn(ctx)
	}
	return c.executor.Execute(ctx, operation, fn, classifyQdrantError)
}

func (c *Client) roundTrip(ctx context.Context, operation, method, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", operation, errCollectionMissing)
	}
	if resp.StatusCode >= 300 {
		return statusError(operation, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func statusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	err := fmt.Errorf("%s status: %s", operation, resp.Status)
	if msg := strings.TrimSpace(string(body)); msg != "" {
		err = fmt.Errorf("%s status: %s: %s", operation, resp.Status, msg)
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func classifyQdrantError(err error) resilience.ErrorClassification {
	switch {
	case err == nil, errors.Is(err, errCollectionMissing):
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case domain.IsKind(err, domain.ErrTemporary):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	}
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	body, err := json.Marshal(map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	})
	if err != nil {
		return fmt.Errorf("marshal create collection body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create collection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant ensure collection request: %w", err)
	}
	defer resp.Body.Close()

	// 409 means it already exists on some versions.
	if resp.StatusCode != http.StatusConflict && resp.StatusCode >= 300 {
		return statusError("qdrant.ensure_collection", resp)
	}

	c.ensureMu.Lock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	c.ensureMu.Unlock()
	return nil
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	default:
		return 0
	}
}

// WriteIndex stores every entry of h as a point of the handle's document.
func (c *Client) WriteIndex(ctx context.Context, h *vectorindex.Handle) error {
	passages, vectors := h.Entries()
	return c.IndexPassages(ctx, h.Ref(), passages, vectors)
}
