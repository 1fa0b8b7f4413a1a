package backlog

import (
	"context"
	"fmt"
	"net/http"
)

// ListComments returns every comment of an issue, oldest first.
func (c *Client) ListComments(ctx context.Context, issueKey string) ([]Comment, error) {
	path := "/issues/" + issueKey + "/comments"
	return collectWatermark(ctx, func(ctx context.Context, minID *int) ([]Comment, error) {
		p := Params{}
		p.Set("count", Int(PageSize))
		p.Set("order", String("asc"))
		p.Set("minId", OptInt(minID))

		var page []Comment
		if err := c.getJSON(ctx, path, p, &page); err != nil {
			return nil, err
		}
		return page, nil
	}, func(comment Comment) int { return comment.ID })
}

func (c *Client) GetComment(ctx context.Context, issueKey string, commentID int) (*Comment, error) {
	var comment Comment
	if err := c.getJSON(ctx, commentPath(issueKey, commentID), nil, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// AddComment posts a comment. notifiedUserIDs is sent only when non-empty.
func (c *Client) AddComment(ctx context.Context, issueKey, content string, notifiedUserIDs []int) (*Comment, error) {
	body := Params{}
	body.Set("content", String(content))
	body.Set("notifiedUserId", Ints(notifiedUserIDs))

	var comment Comment
	if err := c.submitForm(ctx, http.MethodPost, "/issues/"+issueKey+"/comments", body, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (c *Client) UpdateComment(ctx context.Context, issueKey string, commentID int, content string) (*Comment, error) {
	body := Params{}
	body.Set("content", String(content))

	var comment Comment
	if err := c.submitForm(ctx, http.MethodPatch, commentPath(issueKey, commentID), body, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (c *Client) DeleteComment(ctx context.Context, issueKey string, commentID int) (*Comment, error) {
	var comment Comment
	if err := c.submitForm(ctx, http.MethodDelete, commentPath(issueKey, commentID), nil, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func commentPath(issueKey string, commentID int) string {
	return fmt.Sprintf("/issues/%s/comments/%d", issueKey, commentID)
}
