package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/rohankatakam/gitbuddy/internal/errors"
	"github.com/rohankatakam/gitbuddy/internal/models"
)

const (
	DefaultAPIURL     = "https://api.pinata.cloud"
	DefaultGatewayURL = "https://gateway.pinata.cloud"

	// DefaultPageLimit is Pinata's maximum pinList page size
	DefaultPageLimit = 1000

	uniqueIDKey = "uniqueId"
)

// Options configures a Pinata client. JWT takes precedence over the key pair.
type Options struct {
	APIURL     string
	GatewayURL string
	JWT        string
	APIKey     string
	SecretKey  string
	HTTPClient *http.Client
}

// Client pins and fetches JSON documents through the Pinata API and gateway
type Client struct {
	apiURL     string
	gatewayURL string
	jwt        string
	apiKey     string
	secretKey  string
	httpClient *http.Client
	logger     *slog.Logger
	newID      func() string
}

// NewClient creates a Pinata client
func NewClient(opts Options) (*Client, error) {
	if opts.JWT == "" && (opts.APIKey == "" || opts.SecretKey == "") {
		return nil, apperrors.ConfigError("pinata credentials missing: set PINATA_JWT or PINATA_API_KEY and PINATA_SECRET_KEY")
	}
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	if opts.GatewayURL == "" {
		opts.GatewayURL = DefaultGatewayURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		apiURL:     strings.TrimSuffix(opts.APIURL, "/"),
		gatewayURL: strings.TrimSuffix(opts.GatewayURL, "/"),
		jwt:        opts.JWT,
		apiKey:     opts.APIKey,
		secretKey:  opts.SecretKey,
		httpClient: opts.HTTPClient,
		logger:     slog.Default().With("component", "pinata"),
		newID:      func() string { return "uid-" + uuid.NewString() },
	}, nil
}

// ListQuery filters ListPins
type ListQuery struct {
	UniqueID string
	Limit    int
	Offset   int
}

type pinResponse struct {
	IpfsHash  string    `json:"IpfsHash"`
	PinSize   int64     `json:"PinSize"`
	Timestamp time.Time `json:"Timestamp"`
}

type pinMetadata struct {
	Name      string            `json:"name"`
	KeyValues map[string]string `json:"keyvalues,omitempty"`
}

type pinListResponse struct {
	Count int `json:"count"`
	Rows  []struct {
		IpfsPinHash string    `json:"ipfs_pin_hash"`
		Size        int64     `json:"size"`
		DatePinned  time.Time `json:"date_pinned"`
		Metadata    struct {
			Name      string                 `json:"name"`
			KeyValues map[string]interface{} `json:"keyvalues"`
		} `json:"metadata"`
	} `json:"rows"`
}

func (c *Client) authorize(req *http.Request) {
	if c.jwt != "" {
		req.Header.Set("Authorization", "Bearer "+c.jwt)
		return
	}
	req.Header.Set("pinata_api_key", c.apiKey)
	req.Header.Set("pinata_secret_api_key", c.secretKey)
}

func (c *Client) do(ctx context.Context, method, rawURL string, body io.Reader, headers map[string]string, auth bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindInternal, "create request")
	}
	if auth {
		c.authorize(req)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.Cancelled(ctx.Err())
		}
		return nil, apperrors.Wrap(err, apperrors.KindTransientHost, "execute request")
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, rawURL string, reqBody, respBody interface{}) error {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return apperrors.Wrap(err, apperrors.KindInternal, "marshal request")
		}
		body = bytes.NewReader(data)
	}

	resp, err := c.do(ctx, method, rawURL, body, map[string]string{"Content-Type": "application/json"}, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if respBody != nil {
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			return apperrors.Wrap(err, apperrors.KindExternal, "decode response")
		}
	}
	return nil
}

// PinJSON pins content under name, tagged with a fresh uniqueId keyvalue
func (c *Client) PinJSON(ctx context.Context, name string, content interface{}) (*models.PinResult, error) {
	if name == "" {
		name = "JSON Data"
	}
	uid := c.newID()

	req := map[string]interface{}{
		"pinataMetadata": pinMetadata{Name: name, KeyValues: map[string]string{uniqueIDKey: uid}},
		"pinataContent":  content,
	}
	var resp pinResponse
	if err := c.doJSON(ctx, http.MethodPost, c.apiURL+"/pinning/pinJSONToIPFS", req, &resp); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.KindOf(err), "pin json %s", name)
	}

	c.logger.Debug("pinned json", "name", name, "hash", resp.IpfsHash, "unique_id", uid)
	return &models.PinResult{
		IPFSHash:  resp.IpfsHash,
		UniqueID:  uid,
		PinSize:   resp.PinSize,
		Timestamp: resp.Timestamp,
	}, nil
}

// PinFile uploads r as a file pin, e.g. a post image
func (c *Client) PinFile(ctx context.Context, filename string, r io.Reader) (*models.PinResult, error) {
	uid := c.newID()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindInternal, "create form file")
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindInvalidArgument, "read "+filename)
	}
	meta, _ := json.Marshal(pinMetadata{Name: filename, KeyValues: map[string]string{uniqueIDKey: uid}})
	if err := w.WriteField("pinataMetadata", string(meta)); err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindInternal, "write metadata field")
	}
	if err := w.Close(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindInternal, "close multipart body")
	}

	resp, err := c.do(ctx, http.MethodPost, c.apiURL+"/pinning/pinFileToIPFS", &buf,
		map[string]string{"Content-Type": w.FormDataContentType()}, true)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.KindOf(err), "pin file %s", filename)
	}
	defer resp.Body.Close()

	var pr pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindExternal, "decode pin response")
	}
	return &models.PinResult{IPFSHash: pr.IpfsHash, UniqueID: uid, PinSize: pr.PinSize, Timestamp: pr.Timestamp}, nil
}

// ListPins returns pinned items, optionally filtered by uniqueId
func (c *Client) ListPins(ctx context.Context, q ListQuery) ([]models.Pin, error) {
	params := url.Values{}
	params.Set("status", "pinned")
	limit := q.Limit
	if limit <= 0 || limit > DefaultPageLimit {
		limit = DefaultPageLimit
	}
	params.Set("pageLimit", strconv.Itoa(limit))
	if q.Offset > 0 {
		params.Set("pageOffset", strconv.Itoa(q.Offset))
	}
	if q.UniqueID != "" {
		filter, _ := json.Marshal(map[string]interface{}{
			uniqueIDKey: map[string]string{"value": q.UniqueID, "op": "eq"},
		})
		params.Set("metadata[keyvalues]", string(filter))
	}

	var resp pinListResponse
	if err := c.doJSON(ctx, http.MethodGet, c.apiURL+"/data/pinList?"+params.Encode(), nil, &resp); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.KindOf(err), "list pins")
	}

	pins := make([]models.Pin, 0, len(resp.Rows))
	for _, row := range resp.Rows {
		pin := models.Pin{
			IPFSHash:   row.IpfsPinHash,
			Size:       row.Size,
			DatePinned: row.DatePinned,
			Name:       row.Metadata.Name,
			KeyValues:  map[string]string{},
		}
		for k, v := range row.Metadata.KeyValues {
			pin.KeyValues[k] = fmt.Sprint(v)
		}
		pins = append(pins, pin)
	}
	return pins, nil
}

// GatewayURL is the public URL of hash
func (c *Client) GatewayURL(hash string) string {
	return c.gatewayURL + "/ipfs/" + url.PathEscape(hash)
}

// Fetch decodes the JSON content of hash from the gateway into out
func (c *Client) Fetch(ctx context.Context, hash string, out interface{}) error {
	if hash == "" {
		return apperrors.InvalidArgument("ipfs hash is required")
	}
	resp, err := c.do(ctx, http.MethodGet, c.GatewayURL(hash), nil, map[string]string{"Accept": "application/json"}, false)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.KindOf(err), "fetch %s", hash)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Wrapf(err, apperrors.KindExternal, "decode content %s", hash)
	}
	return nil
}

// FetchByUniqueID finds the pin tagged uid and decodes its content into out
func (c *Client) FetchByUniqueID(ctx context.Context, uid string, out interface{}) (*models.Pin, error) {
	pin, err := c.findByUniqueID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if err := c.Fetch(ctx, pin.IPFSHash, out); err != nil {
		return nil, err
	}
	return pin, nil
}

// Unpin removes hash from the pinning service
func (c *Client) Unpin(ctx context.Context, hash string) error {
	if hash == "" {
		return apperrors.InvalidArgument("ipfs hash is required")
	}
	resp, err := c.do(ctx, http.MethodDelete, c.apiURL+"/pinning/unpin/"+url.PathEscape(hash), nil, nil, true)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.KindOf(err), "unpin %s", hash)
	}
	resp.Body.Close()
	c.logger.Debug("unpinned", "hash", hash)
	return nil
}

// DeleteByUniqueID unpins the item tagged uid and returns its hash
func (c *Client) DeleteByUniqueID(ctx context.Context, uid string) (string, error) {
	pin, err := c.findByUniqueID(ctx, uid)
	if err != nil {
		return "", err
	}
	if err := c.Unpin(ctx, pin.IPFSHash); err != nil {
		return "", err
	}
	return pin.IPFSHash, nil
}

func (c *Client) findByUniqueID(ctx context.Context, uid string) (*models.Pin, error) {
	if uid == "" {
		return nil, apperrors.InvalidArgument("unique id is required")
	}
	pins, err := c.ListPins(ctx, ListQuery{UniqueID: uid, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(pins) == 0 {
		return nil, apperrors.Newf(apperrors.KindNotFound, "no pinned item with unique id %s", uid)
	}
	return &pins[0], nil
}

// decodeError maps a Pinata error response onto an error kind
func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	message := strings.TrimSpace(string(data))
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	e := apperrors.Newf(kindForStatus(resp.StatusCode), "pinata: HTTP %d: %s", resp.StatusCode, message).
		WithContext("status", resp.StatusCode)
	if resp.StatusCode == http.StatusTooManyRequests {
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			e = e.WithRetryAfter(time.Duration(secs) * time.Second)
		}
	}
	return e
}

func kindForStatus(status int) apperrors.Kind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return apperrors.KindUnauthorized
	case status == http.StatusNotFound:
		return apperrors.KindNotFound
	case status == http.StatusTooManyRequests:
		return apperrors.KindRateLimited
	case status >= 500:
		return apperrors.KindTransientHost
	case status >= 400:
		return apperrors.KindInvalidArgument
	default:
		return apperrors.KindExternal
	}
}
