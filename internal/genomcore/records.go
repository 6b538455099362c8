package genomcore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gcload/internal/records"
)

const pathRecords = "/v1/records"

// CreateRecords posts body to the record-creation endpoint of template. body
// is either a batch of records or an {"items": [...]} envelope; it is sent
// as is.
func (c *Client) CreateRecords(ctx context.Context, template string, body any) (Response, error) {
	template = strings.TrimSpace(template)
	if template == "" || strings.Contains(template, "/") {
		return Response{}, fmt.Errorf("genomcore: invalid record template %q", template)
	}
	resp, _, err := c.do(ctx, http.MethodPost, pathRecords+"/"+template, nil, body, c.maxRetries)
	return resp, err
}

// DeleteRecords deletes the records listed in body.
func (c *Client) DeleteRecords(ctx context.Context, body records.DeleteBody) (Response, error) {
	if len(body.Records) == 0 {
		return Response{}, errors.New("genomcore: no records to delete")
	}
	resp, _, err := c.do(ctx, http.MethodDelete, pathRecords, nil, body, c.maxRetries)
	return resp, err
}
