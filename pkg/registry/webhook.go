package registry

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/opst/pht-central/pkg/domain"
	xe "github.com/opst/pht-central/pkg/errors"
)

// name of the webhook policy this platform owns in each project.
const WebhookPolicyName = "pht-central"

// Harbor caps page_size at 100.
const policyPageSize = 100

var webhookEvents = []string{"PUSH_ARTIFACT", "PULL_ARTIFACT", "DELETE_ARTIFACT"}

// Project addresses a registry project.
type Project struct {
	// project id, or project name when ByName.
	Ref    string
	ByName bool
}

func (p Project) String() string {
	if p.ByName {
		return p.Ref
	}
	return "#" + p.Ref
}

type WebhookInterface interface {
	// EnsureWebhook makes the project have the webhook policy of this platform,
	// delivering to the callback with the credential.
	//
	// It updates the policy when present, and creates otherwise.
	EnsureWebhook(ctx context.Context, project Project, credential domain.Credential) error
}

// WebhookTarget is where webhooks deliver.
//
// The address is "<base>/services/REGISTRY/hook".
func WebhookTarget(base string) string {
	return strings.TrimSuffix(base, "/") + "/services/" + domain.Registry.String() + "/hook"
}

type webhookTarget struct {
	Type           string `json:"type"`
	Address        string `json:"address"`
	AuthHeader     string `json:"auth_header,omitempty"`
	SkipCertVerify bool   `json:"skip_cert_verify"`
}

type webhookPolicy struct {
	Id          int64           `json:"id,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Enabled     bool            `json:"enabled"`
	EventTypes  []string        `json:"event_types"`
	Targets     []webhookTarget `json:"targets"`
}

// Harbor is a client of Harbor API v2.0.
type Harbor struct {
	registry Registry
	callback string
	client   *http.Client
}

var _ WebhookInterface = &Harbor{}

// NewHarbor creates a Harbor client.
//
// # Args
//
// - registry: registry and its administrative credential
//
// - callbackBase: base url of the internal API, receiving webhooks
//
// - client: http client. If nil, http.DefaultClient is used.
func NewHarbor(registry Registry, callbackBase string, client *http.Client) *Harbor {
	if client == nil {
		client = http.DefaultClient
	}
	return &Harbor{
		registry: registry,
		callback: WebhookTarget(callbackBase),
		client:   client,
	}
}

func basicAuth(id, secret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(id+":"+secret))
}

func (h *Harbor) apipath(project Project, elem ...string) string {
	p := append(
		[]string{"api", "v2.0", "projects", project.Ref, "webhook", "policies"},
		elem...,
	)
	return h.registry.URL.JoinPath(p...).String()
}

func (h *Harbor) do(ctx context.Context, project Project, method string, path string, body any, out any) error {
	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return xe.Wrap(err)
		}
		payload = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, path, payload)
	if err != nil {
		return xe.Wrap(err)
	}
	req.SetBasicAuth(h.registry.User, h.registry.Password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if project.ByName {
		req.Header.Set("X-Is-Resource-Name", "true")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return xe.Classify(xe.TransientIntegration, "registry is not reachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return xe.Errorf(xe.NotFound, "registry project %s is not found", project)
	}
	if resp.StatusCode < 200 || 300 <= resp.StatusCode {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return xe.Errorf(
			xe.TransientIntegration, "registry responded %d for %s %s: %s",
			resp.StatusCode, method, path, bytes.TrimSpace(msg),
		)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return xe.Classify(xe.TransientIntegration, "registry responded malformed json", err)
	}
	return nil
}

// policies lists all webhook policies in the project, following pages.
func (h *Harbor) policies(ctx context.Context, project Project) ([]webhookPolicy, error) {
	ret := []webhookPolicy{}
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("page_size", strconv.Itoa(policyPageSize))

		chunk := []webhookPolicy{}
		if err := h.do(
			ctx, project, http.MethodGet, h.apipath(project)+"?"+q.Encode(), nil, &chunk,
		); err != nil {
			return nil, err
		}
		ret = append(ret, chunk...)
		if len(chunk) < policyPageSize {
			return ret, nil
		}
	}
}

func (h *Harbor) EnsureWebhook(ctx context.Context, project Project, credential domain.Credential) error {
	existing, err := h.policies(ctx, project)
	if err != nil {
		return xe.Wrap(err)
	}

	policy := webhookPolicy{
		Name:        WebhookPolicyName,
		Description: "notifies pht central of artifact changes",
		Enabled:     true,
		EventTypes:  webhookEvents,
		Targets: []webhookTarget{
			{
				Type:           "http",
				Address:        h.callback,
				AuthHeader:     basicAuth(credential.Id, credential.Secret),
				SkipCertVerify: true,
			},
		},
	}

	for _, p := range existing {
		if p.Name != WebhookPolicyName {
			continue
		}
		policy.Id = p.Id
		return xe.Wrap(h.do(
			ctx, project, http.MethodPut,
			h.apipath(project, fmt.Sprintf("%d", p.Id)), policy, nil,
		))
	}

	return xe.Wrap(h.do(ctx, project, http.MethodPost, h.apipath(project), policy, nil))
}
