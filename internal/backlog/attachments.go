package backlog

import (
	"context"
	"fmt"
	"net/http"
)

func (c *Client) ListAttachments(ctx context.Context, issueKey string) ([]Attachment, error) {
	var attachments []Attachment
	if err := c.getJSON(ctx, "/issues/"+issueKey+"/attachments", nil, &attachments); err != nil {
		return nil, err
	}
	return attachments, nil
}

// DownloadAttachment returns the raw bytes of an issue attachment.
func (c *Client) DownloadAttachment(ctx context.Context, issueKey string, attachmentID int) ([]byte, error) {
	path := fmt.Sprintf("/issues/%s/attachments/%d", issueKey, attachmentID)
	return c.download(ctx, path, "attachment", attachmentID)
}

// DownloadDocumentAttachment returns the raw bytes of a document attachment.
func (c *Client) DownloadDocumentAttachment(ctx context.Context, documentID string, attachmentID int) ([]byte, error) {
	path := fmt.Sprintf("/documents/%s/attachments/%d", documentID, attachmentID)
	return c.download(ctx, path, "document attachment", attachmentID)
}

// download fetches a binary body. Failures other than rate-limit exhaustion
// are reported as download failures tagged with the attachment id.
func (c *Client) download(ctx context.Context, path, label string, attachmentID int) ([]byte, error) {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: path, category: CategoryRead})
	if err != nil {
		if IsRateLimited(err) {
			return nil, err
		}
		cause := err
		if apiErr, ok := AsError(err); ok && apiErr.Err != nil {
			cause = apiErr.Err
		}
		return nil, &Error{
			Message:    fmt.Sprintf("Failed to download %s %d: %v", label, attachmentID, cause),
			StatusCode: 0,
			Err:        cause,
		}
	}
	if !resp.ok() {
		return nil, &Error{
			Message:    fmt.Sprintf("Failed to download %s %d: %d", label, attachmentID, resp.status),
			StatusCode: resp.status,
			Errors:     parseErrorEntries(resp.body),
		}
	}
	return resp.body, nil
}
