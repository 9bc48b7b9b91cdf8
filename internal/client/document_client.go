package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/noah-isme/policy-docs-api/internal/dto"
	"github.com/noah-isme/policy-docs-api/internal/models"
)

// DocumentClient talks to the document service on behalf of a bearer.
type DocumentClient struct {
	base
}

// NewDocumentClient constructs a DocumentClient.
func NewDocumentClient(cfg Config) *DocumentClient {
	return &DocumentClient{base: newBase("document-service", cfg)}
}

// Published lists the published documents of the bearer's institution.
func (c *DocumentClient) Published(ctx context.Context, bearer string) ([]models.Document, error) {
	docs := []models.Document{}
	if err := c.do(ctx, call{method: http.MethodGet, path: "/documents/published", bearer: bearer}, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Changes lists changes with the given statuses.
func (c *DocumentClient) Changes(ctx context.Context, bearer string, statuses ...models.ChangeStatus) ([]models.Change, error) {
	path := "/changes"
	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, s := range statuses {
			names[i] = string(s)
		}
		path += "?" + url.Values{"status": {strings.Join(names, ",")}}.Encode()
	}
	changes := []models.Change{}
	if err := c.do(ctx, call{method: http.MethodGet, path: path, bearer: bearer}, &changes); err != nil {
		return nil, err
	}
	return changes, nil
}

// ProposeChange creates a change on a document.
func (c *DocumentClient) ProposeChange(ctx context.Context, bearer, documentID string, req dto.ProposeChangeRequest) (*models.Change, error) {
	var change models.Change
	path := "/documents/" + url.PathEscape(documentID) + "/propose-change"
	if err := c.do(ctx, call{method: http.MethodPost, path: path, bearer: bearer, body: req}, &change); err != nil {
		return nil, err
	}
	return &change, nil
}
