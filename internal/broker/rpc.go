package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/oracle/content-and-experience-toolkit-sub002/internal/cms"
)

const restItemsPath = "/content/management/api/v1.1"

// indexFields renders a PageIndexRecord as the remote item field payload.
func indexFields(rec cms.PageIndexRecord) map[string]any {
	keywords := rec.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return map[string]any{
		"site":            rec.Site,
		"pageid":          rec.PageID,
		"pagename":        rec.PageName,
		"pageurl":         rec.PageURL,
		"pagetitle":       rec.PageTitle,
		"pagedescription": rec.PageDescription,
		"keywords":        keywords,
	}
}

// createItem submits the staged create at the requested index as a new remote
// content item. The payload is looked up on the staging area, never carried by
// the caller.
func (b *Broker) createItem(w http.ResponseWriter, r *http.Request) {
	index, ok := decodeIndex(w, r)
	if !ok {
		return
	}
	rec, err := b.staging.create(index)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	repository, contentType, language := b.staging.meta()
	payload := map[string]any{
		"name":         rec.Site + " " + rec.PageID,
		"type":         contentType,
		"repositoryId": repository,
		"language":     language,
		"fields":       indexFields(rec),
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := b.restSend(r.Context(), http.MethodPost, restItemsPath+"/items", payload, &created); err != nil {
		b.logger.Error("create item failed", zap.String("page_id", rec.PageID), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": created.ID, "record": rec})
}

// updateItem replaces the field payload of the staged update at the requested
// index with its freshly generated record.
func (b *Broker) updateItem(w http.ResponseWriter, r *http.Request) {
	index, ok := decodeIndex(w, r)
	if !ok {
		return
	}
	item, err := b.staging.update(index)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	_, contentType, _ := b.staging.meta()
	payload := map[string]any{
		"type":   contentType,
		"fields": indexFields(item.Record),
	}
	path := restItemsPath + "/items/" + url.PathEscape(item.ID)
	if err := b.restSend(r.Context(), http.MethodPut, path, payload, nil); err != nil {
		b.logger.Error("update item failed", zap.String("item_id", item.ID), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": item.ID, "record": item.Record})
}

// addToChannel makes one item visible to the publish channel.
func (b *Broker) addToChannel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChannelID string `json:"channelId"`
		ItemID    string `json:"itemId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChannelID == "" || req.ItemID == "" {
		writeError(w, http.StatusBadRequest, "channelId and itemId are required")
		return
	}
	payload := map[string]any{
		"q": itemIDQuery([]string{req.ItemID}),
		"operations": map[string]any{
			"addChannels": map[string]any{
				"channels": []map[string]string{{"id": req.ChannelID}},
			},
		},
	}
	if err := b.restSend(r.Context(), http.MethodPost, restItemsPath+"/bulkItemsOperations", payload, nil); err != nil {
		b.logger.Error("add to channel failed", zap.String("item_id", req.ItemID), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"itemId": req.ItemID, "channelId": req.ChannelID})
}

// publish submits an asynchronous publish job for the channel.
func (b *Broker) publish(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChannelID string   `json:"channelId"`
		ItemIDs   []string `json:"itemIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChannelID == "" {
		writeError(w, http.StatusBadRequest, "channelId is required")
		return
	}
	payload := map[string]any{
		"q": itemIDQuery(req.ItemIDs),
		"operations": map[string]any{
			"publish": map[string]any{
				"channels": []map[string]string{{"id": req.ChannelID}},
			},
		},
	}
	var out struct {
		StatusID string `json:"statusId"`
	}
	if err := b.restSend(r.Context(), http.MethodPost, restItemsPath+"/bulkItemsOperations", payload, &out); err != nil {
		b.logger.Error("publish submit failed", zap.String("channel_id", req.ChannelID), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": out.StatusID})
}

// exportSite triggers a legacy site export. Kept alongside the reconciler
// handlers because the broker serves both sibling pipelines.
func (b *Broker) exportSite(w http.ResponseWriter, r *http.Request) {
	b.idcRPC(w, r, "SCS_EXPORT_SITE")
}

// activateSite takes a site live through the legacy surface.
func (b *Broker) activateSite(w http.ResponseWriter, r *http.Request) {
	b.idcRPC(w, r, "SCS_ACTIVATE_SITE")
}

func (b *Broker) idcRPC(w http.ResponseWriter, r *http.Request, service string) {
	var req struct {
		SiteID string `json:"siteId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SiteID == "" {
		writeError(w, http.StatusBadRequest, "siteId is required")
		return
	}
	if err := b.idcPost(r.Context(), service, url.Values{"item": {"fFolderGUID:" + req.SiteID}}); err != nil {
		b.logger.Error("legacy site operation failed", zap.String("service", service), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"siteId": req.SiteID, "service": service})
}

func itemIDQuery(ids []string) string {
	preds := make([]string, len(ids))
	for i, id := range ids {
		preds[i] = fmt.Sprintf("id eq %q", id)
	}
	return "(" + strings.Join(preds, " or ") + ")"
}

// restSend performs an authenticated REST mutation against the remote service
// with the session's anti-forgery token attached.
func (b *Broker) restSend(ctx context.Context, method, path string, payload, out any) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.cfg.RemoteURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	b.injectAuth(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", b.session.csrfToken)

	resp, err := b.remote.Do(req)
	if err != nil {
		return fmt.Errorf("call remote %s: %w", path, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read remote response: %w", err)
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
	default:
		return fmt.Errorf("remote %s returned HTTP %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode remote response: %w", err)
		}
	}
	return nil
}

// idcPost performs a legacy form-POST with the write token injected.
func (b *Broker) idcPost(ctx context.Context, service string, params url.Values) error {
	form := url.Values{}
	form.Set("IdcService", service)
	form.Set("idcToken", b.session.writeToken)
	for k, vs := range params {
		for _, v := range vs {
			form.Add(k, v)
		}
	}
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		b.cfg.RemoteURL+"/documents/web?IsJson=1",
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return fmt.Errorf("build %s request: %w", service, err)
	}
	b.injectAuth(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.remote.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", service, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", service, err)
	}
	var env struct {
		LocalData struct {
			StatusCode    string `json:"StatusCode"`
			StatusMessage string `json:"StatusMessage"`
		} `json:"LocalData"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode %s response: %w", service, err)
	}
	if env.LocalData.StatusCode != "0" {
		return fmt.Errorf("%s returned status %s: %s", service, env.LocalData.StatusCode, env.LocalData.StatusMessage)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	var req struct {
		Index *int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Index == nil {
		writeError(w, http.StatusBadRequest, "index is required")
		return 0, false
	}
	return *req.Index, true
}
