package connector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/bankconnect-go/pkg/apperror"
)

// CreateEntity registers a new entity for linkID and returns its server-assigned id.
func (c *Client) CreateEntity(ctx context.Context, linkID string) (entityID string, err error) {
	ctx, span := c.tracer.Start(ctx, "connector.CreateEntity",
		trace.WithAttributes(attribute.String("bankconnect.link_id", linkID)))
	defer func() { endSpan(span, err) }()

	form := url.Values{}
	form.Set("link_id", linkID)
	build := postRequest(c.url("/entity/"), "application/x-www-form-urlencoded", []byte(form.Encode()))

	return retry(ctx, c, OpCreateEntity, func(attempt int) (string, error) {
		resp, err := c.send(ctx, OpCreateEntity, attempt, build)
		if err != nil {
			return "", apperror.Wrap(apperror.KindServiceFailed, OpCreateEntity, err)
		}
		if resp.status != http.StatusCreated && resp.status != http.StatusOK {
			return "", unexpectedStatus(OpCreateEntity, resp)
		}

		var body struct {
			EntityID string `json:"entity_id"`
		}
		if err := json.Unmarshal(resp.body, &body); err != nil || body.EntityID == "" {
			return "", apperror.New(apperror.KindFormatChanged, OpCreateEntity, "response is missing entity_id")
		}
		c.logger.Info("entity created", "link_id", linkID, "entity_id", body.EntityID, "attempt", attempt)
		return body.EntityID, nil
	})
}

// GetLinkID returns the link id the entity was created with.
func (c *Client) GetLinkID(ctx context.Context, entityID string) (linkID string, err error) {
	ctx, span := c.tracer.Start(ctx, "connector.GetLinkID",
		trace.WithAttributes(attribute.String("bankconnect.entity_id", entityID)))
	defer func() { endSpan(span, err) }()

	build := getRequest(c.url("/entity/%s/", url.PathEscape(entityID)))

	return retry(ctx, c, OpGetLinkID, func(attempt int) (string, error) {
		resp, err := c.send(ctx, OpGetLinkID, attempt, build)
		if err != nil {
			return "", apperror.Wrap(apperror.KindServiceFailed, OpGetLinkID, err)
		}

		switch resp.status {
		case http.StatusOK:
			if linkID, ok := decodeLinkID(resp.body); ok {
				return linkID, nil
			}
			return "", apperror.New(apperror.KindFormatChanged, OpGetLinkID, "response is missing link_id")
		case http.StatusNotFound:
			return "", apperror.New(apperror.KindEntityNotFound, OpGetLinkID, "")
		default:
			return "", unexpectedStatus(OpGetLinkID, resp)
		}
	})
}

// decodeLinkID requires the link_id key; a null value means the entity has no link id.
func decodeLinkID(body []byte) (string, bool) {
	var wire map[string]json.RawMessage
	if err := json.Unmarshal(body, &wire); err != nil {
		return "", false
	}
	raw, ok := wire["link_id"]
	if !ok {
		return "", false
	}
	if isJSONNull(raw) {
		return "", true
	}
	var linkID string
	if err := json.Unmarshal(raw, &linkID); err != nil {
		return "", false
	}
	return linkID, true
}
