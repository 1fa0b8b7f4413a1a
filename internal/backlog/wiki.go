package backlog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ListWikiPages lists wiki pages of a project, optionally filtered by keyword.
func (c *Client) ListWikiPages(ctx context.Context, projectIDOrKey, keyword string) ([]WikiPage, error) {
	p := Params{}
	p.Set("projectIdOrKey", String(projectIDOrKey))
	if keyword = strings.TrimSpace(keyword); keyword != "" {
		p.Set("keyword", String(keyword))
	}

	var pages []WikiPage
	if err := c.getJSON(ctx, "/wikis", p, &pages); err != nil {
		return nil, err
	}
	return pages, nil
}

func (c *Client) CountWikiPages(ctx context.Context, projectIDOrKey string) (int, error) {
	p := Params{}
	p.Set("projectIdOrKey", String(projectIDOrKey))

	var out countResponse
	if err := c.getJSON(ctx, "/wikis/count", p, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (c *Client) GetWikiPage(ctx context.Context, wikiID int) (*WikiPage, error) {
	var page WikiPage
	if err := c.getJSON(ctx, wikiPath(wikiID), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

type AddWikiPageParams struct {
	ProjectID  int
	Name       string
	Content    string
	MailNotify *bool
}

func (c *Client) AddWikiPage(ctx context.Context, params AddWikiPageParams) (*WikiPage, error) {
	if params.ProjectID == 0 {
		return nil, errors.New("projectId is required")
	}
	if strings.TrimSpace(params.Name) == "" {
		return nil, errors.New("name is required")
	}
	body := Params{}
	body.Set("projectId", Int(params.ProjectID))
	body.Set("name", String(params.Name))
	body.Set("content", String(params.Content))
	body.Set("mailNotify", OptBool(params.MailNotify))

	var page WikiPage
	if err := c.submitForm(ctx, http.MethodPost, "/wikis", body, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

type UpdateWikiPageParams struct {
	Name       *string
	Content    *string
	MailNotify *bool
}

func (c *Client) UpdateWikiPage(ctx context.Context, wikiID int, params UpdateWikiPageParams) (*WikiPage, error) {
	body := Params{}
	body.Set("name", OptString(params.Name))
	body.Set("content", OptString(params.Content))
	body.Set("mailNotify", OptBool(params.MailNotify))

	var page WikiPage
	if err := c.submitForm(ctx, http.MethodPatch, wikiPath(wikiID), body, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) DeleteWikiPage(ctx context.Context, wikiID int, mailNotify *bool) (*WikiPage, error) {
	body := Params{}
	body.Set("mailNotify", OptBool(mailNotify))

	var page WikiPage
	if err := c.submitForm(ctx, http.MethodDelete, wikiPath(wikiID), body, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func wikiPath(wikiID int) string {
	return fmt.Sprintf("/wikis/%d", wikiID)
}
