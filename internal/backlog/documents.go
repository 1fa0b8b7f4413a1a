package backlog

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// DocumentListOptions shapes a document listing. Offset defaults to 0.
type DocumentListOptions struct {
	Keyword string
	Sort    string
	Order   string
	Offset  int
	Count   *int
}

func (c *Client) ListDocuments(ctx context.Context, projectID int, opts DocumentListOptions) ([]Document, error) {
	p := Params{}
	p.Set("projectId[]", Int(projectID))
	p.Set("offset", Int(opts.Offset))
	if keyword := strings.TrimSpace(opts.Keyword); keyword != "" {
		p.Set("keyword", String(keyword))
	}
	if opts.Sort != "" {
		p.Set("sort", String(opts.Sort))
	}
	if opts.Order != "" {
		p.Set("order", String(opts.Order))
	}
	p.Set("count", OptInt(opts.Count))

	var docs []Document
	if err := c.getJSON(ctx, "/documents", p, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *Client) GetDocument(ctx context.Context, documentID string) (*Document, error) {
	var doc Document
	if err := c.getJSON(ctx, "/documents/"+documentID, nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) GetDocumentTree(ctx context.Context, projectIDOrKey string) (*DocumentTree, error) {
	p := Params{}
	p.Set("projectIdOrKey", String(projectIDOrKey))

	var tree DocumentTree
	if err := c.getJSON(ctx, "/documents/tree", p, &tree); err != nil {
		return nil, err
	}
	return &tree, nil
}

type AddDocumentParams struct {
	ProjectID int
	Title     *string
	Content   *string
	Emoji     *string
	ParentID  *string
	AddLast   *bool
}

func (c *Client) AddDocument(ctx context.Context, params AddDocumentParams) (*Document, error) {
	if params.ProjectID == 0 {
		return nil, errors.New("projectId is required")
	}
	body := Params{}
	body.Set("projectId", Int(params.ProjectID))
	body.Set("title", OptString(params.Title))
	body.Set("content", OptString(params.Content))
	body.Set("emoji", OptString(params.Emoji))
	body.Set("parentId", OptString(params.ParentID))
	body.Set("addLast", OptBool(params.AddLast))

	var doc Document
	if err := c.submitForm(ctx, http.MethodPost, "/documents", body, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) DeleteDocument(ctx context.Context, documentID string) (*Document, error) {
	var doc Document
	if err := c.submitForm(ctx, http.MethodDelete, "/documents/"+documentID, nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
