package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/oracle/content-and-experience-toolkit-sub002/internal/metrics"
)

// Surfaces exposed by the remote service, as seen through the broker.
const (
	SurfaceIDC  = "idc"
	SurfaceREST = "rest"
)

const (
	idcPath  = "/documents/web"
	restPath = "/content/management/api/v1.1"
)

// Client issues typed requests against the session broker's local address.
// Reads go through the broker's forwarders; item mutations go through its
// pseudo-RPC surface so the anti-forgery token is injected server-side.
type Client struct {
	base   string
	http   *http.Client
	logger *zap.Logger
}

// NewClient builds a Client rooted at the broker address.
func NewClient(brokerAddr string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		base:   strings.TrimRight(brokerAddr, "/"),
		http:   &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}
}

// localData is the envelope status block of every legacy IDC response.
type localData struct {
	StatusCode    string `json:"StatusCode"`
	StatusMessage string `json:"StatusMessage"`
}

// statusSiteNotFound is the IDC sentinel for "site does not exist".
const statusSiteNotFound = "-32"

func (c *Client) idcGet(ctx context.Context, service string, params url.Values, out any) error {
	q := url.Values{}
	q.Set("IsJson", "1")
	q.Set("IdcService", service)
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	body, err := c.get(ctx, SurfaceIDC, idcPath+"?"+q.Encode())
	if err != nil {
		return &RemoteError{Surface: SurfaceIDC, Service: service, StatusCode: "transport", Err: err}
	}
	var env struct {
		LocalData localData `json:"LocalData"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return &RemoteError{Surface: SurfaceIDC, Service: service, StatusCode: "decode", Err: err}
	}
	if env.LocalData.StatusCode != "0" {
		if service == "SCS_GET_SITE_INFO" && env.LocalData.StatusCode == statusSiteNotFound {
			return ErrSiteNotFound
		}
		return &RemoteError{
			Surface:    SurfaceIDC,
			Service:    service,
			StatusCode: env.LocalData.StatusCode,
			Message:    env.LocalData.StatusMessage,
		}
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return &RemoteError{Surface: SurfaceIDC, Service: service, StatusCode: "decode", Err: err}
		}
	}
	return nil
}

func (c *Client) restGet(ctx context.Context, path string, out any) error {
	body, err := c.get(ctx, SurfaceREST, path)
	if err != nil {
		return err
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return &RemoteError{Surface: SurfaceREST, Service: path, StatusCode: "decode", Err: err}
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, surface, path string) ([]byte, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveRemoteCall(surface, "transport", time.Since(start))
		return nil, fmt.Errorf("remote call: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	body, err := io.ReadAll(resp.Body)
	metrics.ObserveRemoteCall(surface, strconv.Itoa(resp.StatusCode), time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if surface == SurfaceREST && resp.StatusCode != http.StatusOK {
		return nil, &RemoteError{
			Surface:    SurfaceREST,
			Service:    trimQuery(path),
			StatusCode: strconv.Itoa(resp.StatusCode),
			Message:    restErrorDetail(body),
		}
	}
	return body, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	start := time.Now()
	buf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveRemoteCall(SurfaceREST, "transport", time.Since(start))
		return &RemoteError{Surface: SurfaceREST, Service: path, StatusCode: "transport", Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck
	body, err := io.ReadAll(resp.Body)
	metrics.ObserveRemoteCall(SurfaceREST, strconv.Itoa(resp.StatusCode), time.Since(start))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
	default:
		return &RemoteError{
			Surface:    SurfaceREST,
			Service:    path,
			StatusCode: strconv.Itoa(resp.StatusCode),
			Message:    restErrorDetail(body),
		}
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return &RemoteError{Surface: SurfaceREST, Service: path, StatusCode: "decode", Err: err}
		}
	}
	return nil
}

func restErrorDetail(body []byte) string {
	var e struct {
		Detail string `json:"detail"`
		Title  string `json:"title"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	if e.Detail != "" {
		return e.Detail
	}
	return e.Title
}

func trimQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

// SiteInfo fetches a site's identity block. A remote "site does not exist"
// sentinel maps to ErrSiteNotFound.
func (c *Client) SiteInfo(ctx context.Context, name string) (Site, error) {
	params := url.Values{}
	params.Set("siteName", name)
	var out struct {
		SiteInfo Site `json:"SiteInfo"`
	}
	if err := c.idcGet(ctx, "SCS_GET_SITE_INFO", params, &out); err != nil {
		return Site{}, err
	}
	return out.SiteInfo, nil
}

// Structure fetches the site's full page tree.
func (c *Client) Structure(ctx context.Context, site string) ([]Page, error) {
	params := url.Values{}
	params.Set("siteName", site)
	var out struct {
		Pages []Page `json:"pages"`
	}
	if err := c.idcGet(ctx, "SCS_GET_STRUCTURE", params, &out); err != nil {
		return nil, err
	}
	return out.Pages, nil
}

// wireComponent is the raw keyed entry of a page data blob.
type wireComponent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// wirePageDetail is the raw per-page payload of SCS_GET_PAGE_DATA.
type wirePageDetail struct {
	Properties         PageProperties           `json:"properties"`
	ComponentInstances map[string]wireComponent `json:"componentInstances"`
}

// PageData fetches the data blobs for the given page ids in one request.
// Callers are responsible for keeping len(ids) within the transport limit.
func (c *Client) PageData(ctx context.Context, site string, ids []int) (map[int]PageDetail, error) {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = strconv.Itoa(id)
	}
	params := url.Values{}
	params.Set("siteName", site)
	params.Set("pageIds", strings.Join(strs, ","))
	var out struct {
		Data map[string]wirePageDetail `json:"data"`
	}
	if err := c.idcGet(ctx, "SCS_GET_PAGE_DATA", params, &out); err != nil {
		return nil, err
	}
	result := make(map[int]PageDetail, len(out.Data))
	for key, raw := range out.Data {
		id, err := strconv.Atoi(key)
		if err != nil {
			c.logger.Warn("skipping non-numeric page id in page data", zap.String("page_id", key))
			continue
		}
		detail := PageDetail{Properties: raw.Properties}
		for _, wc := range raw.ComponentInstances {
			inst := ComponentInstance{Kind: ParseComponentKind(wc.Type)}
			if len(wc.Data) > 0 {
				if err := json.Unmarshal(wc.Data, &inst.Data); err != nil {
					c.logger.Warn("skipping undecodable component data",
						zap.Int("page_id", id), zap.String("type", wc.Type), zap.Error(err))
					continue
				}
			}
			detail.Components = append(detail.Components, inst)
		}
		result[id] = detail
	}
	return result, nil
}

// wireItem is the REST representation of a content item.
type wireItem struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Fields      map[string]any `json:"fields"`
	UpdatedDate string         `json:"updatedDate"`
}

func (w wireItem) item() ContentItem {
	item := ContentItem{
		ID:          w.ID,
		Type:        w.Type,
		Name:        w.Name,
		Description: w.Description,
		Fields:      w.Fields,
	}
	if w.UpdatedDate != "" {
		if ts, err := time.Parse(time.RFC3339, w.UpdatedDate); err == nil {
			item.UpdatedDate = ts
		}
	}
	return item
}

type itemList struct {
	Items []wireItem `json:"items"`
}

func (l itemList) items() []ContentItem {
	out := make([]ContentItem, len(l.Items))
	for i, w := range l.Items {
		out[i] = w.item()
	}
	return out
}

// ItemsByIDs issues one OR-predicate query over the given ids.
// Callers are responsible for keeping len(ids) within the query limit.
func (c *Client) ItemsByIDs(ctx context.Context, channelToken string, ids []string) ([]ContentItem, error) {
	preds := make([]string, len(ids))
	for i, id := range ids {
		preds[i] = fmt.Sprintf("id eq %q", id)
	}
	q := url.Values{}
	q.Set("q", "("+strings.Join(preds, " or ")+")")
	q.Set("limit", strconv.Itoa(len(ids)))
	if channelToken != "" {
		q.Set("channelToken", channelToken)
	}
	var out itemList
	if err := c.restGet(ctx, restPath+"/items?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out.items(), nil
}

// ItemByID fetches a single item directly, bypassing the query surface.
func (c *Client) ItemByID(ctx context.Context, channelToken, id string) (ContentItem, error) {
	path := restPath + "/items/" + url.PathEscape(id)
	if channelToken != "" {
		path += "?channelToken=" + url.QueryEscape(channelToken)
	}
	var out wireItem
	if err := c.restGet(ctx, path, &out); err != nil {
		return ContentItem{}, err
	}
	return out.item(), nil
}

// ItemsByQuery runs one content list query with its own limit/offset/order.
func (c *Client) ItemsByQuery(ctx context.Context, channelToken string, lq ListQuery) ([]ContentItem, error) {
	q := url.Values{}
	q.Set("q", fmt.Sprintf("(type eq %q)", lq.Type))
	if lq.Limit > 0 {
		q.Set("limit", strconv.Itoa(lq.Limit))
	}
	if lq.Offset > 0 {
		q.Set("offset", strconv.Itoa(lq.Offset))
	}
	if lq.OrderBy != "" {
		q.Set("orderBy", lq.OrderBy)
	}
	if channelToken != "" {
		q.Set("channelToken", channelToken)
	}
	var out itemList
	if err := c.restGet(ctx, restPath+"/items?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out.items(), nil
}

// itemsByTypeLimit bounds the existing-items listing per request.
const itemsByTypeLimit = 500

// ItemsByType lists all items of a content type from the management surface.
func (c *Client) ItemsByType(ctx context.Context, typeName string) ([]ContentItem, error) {
	var all []ContentItem
	offset := 0
	for {
		q := url.Values{}
		q.Set("q", fmt.Sprintf("(type eq %q)", typeName))
		q.Set("limit", strconv.Itoa(itemsByTypeLimit))
		q.Set("offset", strconv.Itoa(offset))
		var out struct {
			itemList
			HasMore bool `json:"hasMore"`
		}
		if err := c.restGet(ctx, restPath+"/items?"+q.Encode(), &out); err != nil {
			return nil, err
		}
		all = append(all, out.items()...)
		if !out.HasMore {
			return all, nil
		}
		offset += itemsByTypeLimit
	}
}

// TypeSchema fetches a content type's field schema.
func (c *Client) TypeSchema(ctx context.Context, name string) (ContentType, error) {
	var out ContentType
	if err := c.restGet(ctx, restPath+"/types/"+url.PathEscape(name), &out); err != nil {
		return ContentType{}, err
	}
	return out, nil
}

// rpcItem is the broker's response to create/update pseudo-RPC calls.
type rpcItem struct {
	ID     string          `json:"id"`
	Record PageIndexRecord `json:"record"`
}

// CreateItem asks the broker to submit the staged create at the given index.
func (c *Client) CreateItem(ctx context.Context, staged int) (IndexItem, error) {
	var out rpcItem
	if err := c.post(ctx, "/rpc/create-item", map[string]int{"index": staged}, &out); err != nil {
		return IndexItem{}, err
	}
	return IndexItem{ID: out.ID, Record: out.Record}, nil
}

// UpdateItem asks the broker to submit the staged update at the given index.
func (c *Client) UpdateItem(ctx context.Context, staged int) (IndexItem, error) {
	var out rpcItem
	if err := c.post(ctx, "/rpc/update-item", map[string]int{"index": staged}, &out); err != nil {
		return IndexItem{}, err
	}
	return IndexItem{ID: out.ID, Record: out.Record}, nil
}

// AddToChannel makes a freshly created item visible to the publish channel.
func (c *Client) AddToChannel(ctx context.Context, channelID, itemID string) error {
	payload := map[string]string{"channelId": channelID, "itemId": itemID}
	return c.post(ctx, "/rpc/add-to-channel", payload, nil)
}

// SubmitPublish starts a publish job for the channel and returns its job id.
func (c *Client) SubmitPublish(ctx context.Context, channelID string, itemIDs []string) (string, error) {
	payload := map[string]any{"channelId": channelID, "itemIds": itemIDs}
	var out struct {
		JobID string `json:"jobId"`
	}
	if err := c.post(ctx, "/rpc/publish", payload, &out); err != nil {
		return "", err
	}
	return out.JobID, nil
}

// JobStatus polls the bulk-operation status of a publish job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (PublishJob, error) {
	var out struct {
		ID         string `json:"id"`
		Progress   string `json:"progress"`
		Percentage int    `json:"completedPercentage"`
		Error      struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	path := restPath + "/bulkItemsOperations/" + url.PathEscape(jobID)
	if err := c.restGet(ctx, path, &out); err != nil {
		return PublishJob{}, err
	}
	job := PublishJob{
		ID:      jobID,
		Percent: out.Percentage,
		Message: out.Error.Message,
	}
	switch out.Progress {
	case "pending":
		job.Status = JobStatusQueued
	case "succeeded", "success":
		job.Status = JobStatusSuccess
	case "failed", "blocked", "aborted":
		job.Status = JobStatusFailed
	default:
		job.Status = JobStatusInProgress
	}
	return job, nil
}
