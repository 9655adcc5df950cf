package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/oracle/content-and-experience-toolkit-sub002/internal/cms"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/metrics"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/poll"
)

// session holds the tokens obtained while establishing the remote session.
type session struct {
	user       string
	writeToken string // idcToken required on legacy mutating calls
	csrfToken  string // anti-forgery token required on REST mutations
}

type tenantInfo struct {
	User       string
	WriteToken string
}

func (t tenantInfo) ready() bool {
	return t.User != "" && t.User != "anonymous" && t.WriteToken != ""
}

// establishSession polls the tenant-info endpoint until a non-anonymous user
// and a non-empty write token are observed, then fetches the anti-forgery
// token once. A transport or login failure aborts immediately; an exhausted
// poll budget maps to cms.ErrSessionTimeout.
func (b *Broker) establishSession(ctx context.Context) error {
	cfg := poll.Config{Interval: b.cfg.SessionInterval, MaxAttempts: b.cfg.SessionAttempts}
	info, err := poll.Until(ctx, cfg, func(ctx context.Context) (tenantInfo, bool, error) {
		metrics.ObserveSessionPoll()
		info, err := b.tenantInfo(ctx)
		if err != nil {
			return tenantInfo{}, false, err
		}
		if !info.ready() {
			b.logger.Debug("session not ready yet", zap.String("user", info.User))
			return info, false, nil
		}
		return info, true, nil
	})
	if err != nil {
		if errors.Is(err, poll.ErrBudgetExhausted) {
			return cms.ErrSessionTimeout
		}
		return fmt.Errorf("establish session: %w", err)
	}

	token, err := b.fetchAntiForgeryToken(ctx)
	if err != nil {
		return fmt.Errorf("fetch anti-forgery token: %w", err)
	}
	b.session = session{user: info.User, writeToken: info.WriteToken, csrfToken: token}
	b.logger.Info("session established", zap.String("user", info.User))
	return nil
}

func (b *Broker) tenantInfo(ctx context.Context) (tenantInfo, error) {
	body, err := b.idcGet(ctx, "SCS_GET_TENANT_CONFIG", nil)
	if err != nil {
		return tenantInfo{}, err
	}
	var env struct {
		LocalData struct {
			StatusCode string `json:"StatusCode"`
			User       string `json:"dUser"`
			IdcToken   string `json:"idcToken"`
		} `json:"LocalData"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return tenantInfo{}, fmt.Errorf("decode tenant info: %w", err)
	}
	if env.LocalData.StatusCode != "0" {
		return tenantInfo{}, fmt.Errorf("tenant info returned status %s", env.LocalData.StatusCode)
	}
	return tenantInfo{User: env.LocalData.User, WriteToken: env.LocalData.IdcToken}, nil
}

func (b *Broker) fetchAntiForgeryToken(ctx context.Context) (string, error) {
	body, err := b.idcGet(ctx, "CSRF_TOKEN", nil)
	if err != nil {
		return "", err
	}
	var env struct {
		LocalData struct {
			StatusCode string `json:"StatusCode"`
		} `json:"LocalData"`
		Token string `json:"csrfToken"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if env.LocalData.StatusCode != "0" {
		return "", fmt.Errorf("token endpoint returned status %s", env.LocalData.StatusCode)
	}
	if env.Token == "" {
		return "", errors.New("token endpoint returned an empty token")
	}
	return env.Token, nil
}

// idcGet performs an authenticated GET against the remote legacy surface.
func (b *Broker) idcGet(ctx context.Context, service string, params url.Values) ([]byte, error) {
	q := url.Values{}
	q.Set("IsJson", "1")
	q.Set("IdcService", service)
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.cfg.RemoteURL+"/documents/web?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", service, err)
	}
	b.injectAuth(req)
	resp, err := b.remote.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", service, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("call %s: unexpected HTTP %d", service, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", service, err)
	}
	return body, nil
}
