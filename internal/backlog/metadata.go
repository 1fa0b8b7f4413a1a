package backlog

import "context"

func (c *Client) GetProject(ctx context.Context, projectIDOrKey string) (*Project, error) {
	var project Project
	if err := c.getJSON(ctx, "/projects/"+projectIDOrKey, nil, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

func (c *Client) GetStatuses(ctx context.Context, projectIDOrKey string) ([]Status, error) {
	var out []Status
	if err := c.getJSON(ctx, "/projects/"+projectIDOrKey+"/statuses", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetIssueTypes(ctx context.Context, projectIDOrKey string) ([]IssueType, error) {
	var out []IssueType
	if err := c.getJSON(ctx, "/projects/"+projectIDOrKey+"/issueTypes", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetCategories(ctx context.Context, projectIDOrKey string) ([]Category, error) {
	var out []Category
	if err := c.getJSON(ctx, "/projects/"+projectIDOrKey+"/categories", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetVersions returns versions and milestones of a project.
func (c *Client) GetVersions(ctx context.Context, projectIDOrKey string) ([]Version, error) {
	var out []Version
	if err := c.getJSON(ctx, "/projects/"+projectIDOrKey+"/versions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetProjectUsers(ctx context.Context, projectIDOrKey string) ([]User, error) {
	var out []User
	if err := c.getJSON(ctx, "/projects/"+projectIDOrKey+"/users", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetPriorities(ctx context.Context) ([]Priority, error) {
	var out []Priority
	if err := c.getJSON(ctx, "/priorities", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetResolutions(ctx context.Context) ([]Resolution, error) {
	var out []Resolution
	if err := c.getJSON(ctx, "/resolutions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetRateLimit reports the remote quota for the API key in use.
func (c *Client) GetRateLimit(ctx context.Context) (*RateLimit, error) {
	var out struct {
		RateLimit RateLimit `json:"rateLimit"`
	}
	if err := c.getJSON(ctx, "/rateLimit", nil, &out); err != nil {
		return nil, err
	}
	return &out.RateLimit, nil
}
