package backlog

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// IssueFilter narrows issue listings. Zero fields are not sent.
type IssueFilter struct {
	StatusIDs      []int
	IssueTypeIDs   []int
	CategoryIDs    []int
	MilestoneIDs   []int
	AssigneeIDs    []int
	VersionIDs     []int
	PriorityIDs    []int
	CreatedUserIDs []int
	ResolutionIDs  []int
	Keyword        string
	ParentChild    *int
}

func (f IssueFilter) params(projectID int) Params {
	p := Params{}
	p.Set("projectId[]", Int(projectID))
	p.Set("statusId", Ints(f.StatusIDs))
	p.Set("issueTypeId", Ints(f.IssueTypeIDs))
	p.Set("categoryId", Ints(f.CategoryIDs))
	p.Set("milestoneId", Ints(f.MilestoneIDs))
	p.Set("assigneeId", Ints(f.AssigneeIDs))
	p.Set("versionId", Ints(f.VersionIDs))
	p.Set("priorityId", Ints(f.PriorityIDs))
	p.Set("createdUserId", Ints(f.CreatedUserIDs))
	p.Set("resolutionId", Ints(f.ResolutionIDs))
	if keyword := strings.TrimSpace(f.Keyword); keyword != "" {
		p.Set("keyword", String(keyword))
	}
	p.Set("parentChild", OptInt(f.ParentChild))
	return p
}

// IssueSearch requests a single page of issues.
type IssueSearch struct {
	IssueFilter
	Count  *int
	Offset *int
	Sort   string
	Order  string
}

// ListAllIssues returns every issue of a project matching filter, most
// recently updated first.
func (c *Client) ListAllIssues(ctx context.Context, projectID int, filter IssueFilter) ([]Issue, error) {
	return collectOffset(ctx, func(ctx context.Context, offset int) ([]Issue, error) {
		p := filter.params(projectID)
		p.Set("count", Int(PageSize))
		p.Set("offset", Int(offset))
		p.Set("sort", String("updated"))
		p.Set("order", String("desc"))

		var page []Issue
		if err := c.getJSON(ctx, "/issues", p, &page); err != nil {
			return nil, err
		}
		return page, nil
	})
}

// SearchIssues returns one page of issues.
func (c *Client) SearchIssues(ctx context.Context, projectID int, search IssueSearch) ([]Issue, error) {
	p := search.params(projectID)
	p.Set("count", OptInt(search.Count))
	p.Set("offset", OptInt(search.Offset))
	if search.Sort != "" {
		p.Set("sort", String(search.Sort))
	}
	if search.Order != "" {
		p.Set("order", String(search.Order))
	}

	var issues []Issue
	if err := c.getJSON(ctx, "/issues", p, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// CountIssues returns the number of issues matching filter.
func (c *Client) CountIssues(ctx context.Context, projectID int, filter IssueFilter) (int, error) {
	var out countResponse
	if err := c.getJSON(ctx, "/issues/count", filter.params(projectID), &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (c *Client) GetIssue(ctx context.Context, issueKey string) (*Issue, error) {
	var issue Issue
	if err := c.getJSON(ctx, "/issues/"+issueKey, nil, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// AddIssueParams are the fields accepted when creating an issue.
type AddIssueParams struct {
	ProjectID      int
	Summary        string
	IssueTypeID    int
	PriorityID     int
	Description    *string
	AssigneeID     *int
	CategoryIDs    []int
	VersionIDs     []int
	MilestoneIDs   []int
	StartDate      *string
	DueDate        *string
	EstimatedHours *float64
	ActualHours    *float64
	ParentIssueID  *int
}

func (a AddIssueParams) validate() error {
	switch {
	case a.ProjectID == 0:
		return errors.New("projectId is required")
	case strings.TrimSpace(a.Summary) == "":
		return errors.New("summary is required")
	case a.IssueTypeID == 0:
		return errors.New("issueTypeId is required")
	case a.PriorityID == 0:
		return errors.New("priorityId is required")
	}
	return nil
}

func (c *Client) AddIssue(ctx context.Context, params AddIssueParams) (*Issue, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	body := Params{}
	body.Set("projectId", Int(params.ProjectID))
	body.Set("summary", String(params.Summary))
	body.Set("issueTypeId", Int(params.IssueTypeID))
	body.Set("priorityId", Int(params.PriorityID))
	body.Set("description", OptString(params.Description))
	body.Set("assigneeId", OptInt(params.AssigneeID))
	body.Set("categoryId", Ints(params.CategoryIDs))
	body.Set("versionId", Ints(params.VersionIDs))
	body.Set("milestoneId", Ints(params.MilestoneIDs))
	body.Set("startDate", OptString(params.StartDate))
	body.Set("dueDate", OptString(params.DueDate))
	body.Set("estimatedHours", OptFloat(params.EstimatedHours))
	body.Set("actualHours", OptFloat(params.ActualHours))
	body.Set("parentIssueId", OptInt(params.ParentIssueID))

	var issue Issue
	if err := c.submitForm(ctx, http.MethodPost, "/issues", body, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// UpdateIssueParams are the fields accepted when updating an issue. Only
// non-nil fields are sent.
type UpdateIssueParams struct {
	Summary        *string
	Description    *string
	StatusID       *int
	AssigneeID     *int
	PriorityID     *int
	IssueTypeID    *int
	ResolutionID   *int
	CategoryIDs    []int
	VersionIDs     []int
	MilestoneIDs   []int
	StartDate      *string
	DueDate        *string
	EstimatedHours *float64
	ActualHours    *float64
	Comment        *string
}

// Empty reports whether no field is set.
func (u UpdateIssueParams) Empty() bool {
	return len(u.body()) == 0
}

func (u UpdateIssueParams) body() Params {
	body := Params{}
	body.Set("summary", OptString(u.Summary))
	body.Set("description", OptString(u.Description))
	body.Set("statusId", OptInt(u.StatusID))
	body.Set("assigneeId", OptInt(u.AssigneeID))
	body.Set("priorityId", OptInt(u.PriorityID))
	body.Set("issueTypeId", OptInt(u.IssueTypeID))
	body.Set("resolutionId", OptInt(u.ResolutionID))
	body.Set("categoryId", Ints(u.CategoryIDs))
	body.Set("versionId", Ints(u.VersionIDs))
	body.Set("milestoneId", Ints(u.MilestoneIDs))
	body.Set("startDate", OptString(u.StartDate))
	body.Set("dueDate", OptString(u.DueDate))
	body.Set("estimatedHours", OptFloat(u.EstimatedHours))
	body.Set("actualHours", OptFloat(u.ActualHours))
	body.Set("comment", OptString(u.Comment))
	return body
}

func (c *Client) UpdateIssue(ctx context.Context, issueKey string, params UpdateIssueParams) (*Issue, error) {
	var issue Issue
	if err := c.submitForm(ctx, http.MethodPatch, "/issues/"+issueKey, params.body(), &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

func (c *Client) DeleteIssue(ctx context.Context, issueKey string) (*Issue, error) {
	var issue Issue
	if err := c.submitForm(ctx, http.MethodDelete, "/issues/"+issueKey, nil, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}
