package hue

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/openhue/openhue-go"

	"github.com/nerrad567/gray-logic-hue/internal/infrastructure/config"
)

// applicationKeyHeader carries the Hue application key on every request.
const applicationKeyHeader = "hue-application-key"

// OpenHueClient implements HardwareClient against the Hue CLIP v2 API.
//
// An address is either a CLIP v2 resource id (UUID) or the numeric id the
// bridge's v1 API uses ("3" for /lights/3, "1" for /groups/1). Numeric ids
// are resolved through the resources' id_v1 field and cached.
//
// Transient failures (connection errors, 5xx, 429) are retried by the
// transport up to hue.retry.max_attempts times.
type OpenHueClient struct {
	api *openhue.ClientWithResponses

	mu       sync.Mutex
	lightIDs map[string]string // v1 id -> light resource id
	groupIDs map[string]string // v1 id -> grouped_light resource id
}

// NewOpenHueClient creates a client for the bridge at cfg.IP.
// logger may be nil.
func NewOpenHueClient(cfg config.HueConfig, logger Logger) (*OpenHueClient, error) {
	return newOpenHueClient(fmt.Sprintf("https://%s", cfg.IP), cfg, logger)
}

func newOpenHueClient(baseURL string, cfg config.HueConfig, logger Logger) (*OpenHueClient, error) {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{
		Transport: &http.Transport{
			//nolint:gosec // Hue bridges serve a self-signed certificate
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
		},
	}
	rc.RetryMax = cfg.Retry.MaxAttempts
	if cfg.Retry.WaitMin > 0 {
		rc.RetryWaitMin = cfg.Retry.WaitMin
	}
	if cfg.Retry.WaitMax > 0 {
		rc.RetryWaitMax = cfg.Retry.WaitMax
	}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if logger != nil {
		rc.Logger = retryablehttp.LeveledLogger(logger)
	} else {
		rc.Logger = nil
	}

	key := cfg.Username
	api, err := openhue.NewClientWithResponses(
		baseURL,
		openhue.WithHTTPClient(rc.StandardClient()),
		openhue.WithRequestEditorFn(func(_ context.Context, req *http.Request) error {
			req.Header.Set(applicationKeyHeader, key)
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("creating hue client for %s: %w", baseURL, err)
	}

	return &OpenHueClient{api: api}, nil
}

func isResourceID(address string) bool {
	_, err := uuid.Parse(address)
	return err == nil
}

// lightID returns the light resource id for address.
func (c *OpenHueClient) lightID(ctx context.Context, address string) (string, error) {
	if isResourceID(address) {
		return address, nil
	}
	c.mu.Lock()
	id, ok := c.lightIDs[address]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	resp, err := c.api.GetLightsWithResponse(ctx)
	if err != nil {
		return "", err
	}
	if err := checkStatus("list lights", address, resp.StatusCode()); err != nil {
		return "", err
	}

	ids := make(map[string]string)
	if resp.JSON200 != nil && resp.JSON200.Data != nil {
		for _, l := range *resp.JSON200.Data {
			if l.Id != nil && l.IdV1 != nil {
				ids[*l.IdV1] = *l.Id
			}
		}
	}
	return c.remember(&c.lightIDs, ids, "/lights/", "light", address)
}

// groupID returns the grouped_light resource id for address.
func (c *OpenHueClient) groupID(ctx context.Context, address string) (string, error) {
	if isResourceID(address) {
		return address, nil
	}
	c.mu.Lock()
	id, ok := c.groupIDs[address]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	resp, err := c.api.GetGroupedLightsWithResponse(ctx)
	if err != nil {
		return "", err
	}
	if err := checkStatus("list groups", address, resp.StatusCode()); err != nil {
		return "", err
	}

	ids := make(map[string]string)
	if resp.JSON200 != nil && resp.JSON200.Data != nil {
		for _, g := range *resp.JSON200.Data {
			if g.Id != nil && g.IdV1 != nil {
				ids[*g.IdV1] = *g.Id
			}
		}
	}
	return c.remember(&c.groupIDs, ids, "/groups/", "group", address)
}

// remember replaces the cached mapping with a fresh listing keyed by v1 path
// and returns the entry for address.
func (c *OpenHueClient) remember(cache *map[string]string, byPath map[string]string, prefix, kind, address string) (string, error) {
	fresh := make(map[string]string, len(byPath))
	for path, id := range byPath {
		if v1, ok := strings.CutPrefix(path, prefix); ok && v1 != "" {
			fresh[v1] = id
		}
	}

	c.mu.Lock()
	*cache = fresh
	c.mu.Unlock()

	id, ok := fresh[address]
	if !ok {
		return "", fmt.Errorf("%w: no %s with v1 id %s", ErrNoData, kind, address)
	}
	return id, nil
}

// SetLightState switches a single light.
func (c *OpenHueClient) SetLightState(ctx context.Context, address string, cmd LightCommand) error {
	id, err := c.lightID(ctx, address)
	if err != nil {
		return err
	}
	on := cmd.On
	resp, err := c.api.UpdateLightWithResponse(ctx, id, openhue.UpdateLightJSONRequestBody{
		On: &openhue.On{On: &on},
	})
	if err != nil {
		return err
	}
	return checkStatus("update light", address, resp.StatusCode())
}

// SetGroupLightState switches every light in a group.
func (c *OpenHueClient) SetGroupLightState(ctx context.Context, address string, cmd LightCommand) error {
	id, err := c.groupID(ctx, address)
	if err != nil {
		return err
	}
	on := cmd.On
	resp, err := c.api.UpdateGroupedLightWithResponse(ctx, id, openhue.UpdateGroupedLightJSONRequestBody{
		On: &openhue.On{On: &on},
	})
	if err != nil {
		return err
	}
	return checkStatus("update group", address, resp.StatusCode())
}

// LightStatus reports whether a light is on.
func (c *OpenHueClient) LightStatus(ctx context.Context, address string) (bool, error) {
	id, err := c.lightID(ctx, address)
	if err != nil {
		return false, err
	}
	resp, err := c.api.GetLightWithResponse(ctx, id)
	if err != nil {
		return false, err
	}
	if err := checkStatus("get light", address, resp.StatusCode()); err != nil {
		return false, err
	}
	if resp.JSON200 == nil || resp.JSON200.Data == nil || len(*resp.JSON200.Data) == 0 {
		return false, fmt.Errorf("%w: light %s", ErrNoData, address)
	}

	l := (*resp.JSON200.Data)[0]
	if l.On == nil || l.On.On == nil {
		return false, fmt.Errorf("%w: light %s has no on state", ErrNoData, address)
	}
	return *l.On.On, nil
}

// GroupStatus reports the grouped_light on flag. The bridge sets it when any
// light in the group is on.
func (c *OpenHueClient) GroupStatus(ctx context.Context, address string) (GroupState, error) {
	id, err := c.groupID(ctx, address)
	if err != nil {
		return GroupState{}, err
	}
	resp, err := c.api.GetGroupedLightWithResponse(ctx, id)
	if err != nil {
		return GroupState{}, err
	}
	if err := checkStatus("get group", address, resp.StatusCode()); err != nil {
		return GroupState{}, err
	}
	if resp.JSON200 == nil || resp.JSON200.Data == nil || len(*resp.JSON200.Data) == 0 {
		return GroupState{}, fmt.Errorf("%w: group %s", ErrNoData, address)
	}

	g := (*resp.JSON200.Data)[0]
	if g.On == nil || g.On.On == nil {
		return GroupState{}, fmt.Errorf("%w: group %s has no on state", ErrNoData, address)
	}
	return GroupState{LastAction: LastAction{On: *g.On.On}}, nil
}

func checkStatus(op, address string, code int) error {
	switch {
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", ErrNoData, op, address)
	case code < 200 || code > 299:
		return fmt.Errorf("%w: %s %s returned HTTP %d", ErrHardware, op, address, code)
	}
	return nil
}
