package backlog

// Project is a Backlog project.
type Project struct {
	ID         int    `json:"id" yaml:"id"`
	ProjectKey string `json:"projectKey" yaml:"projectKey"`
	Name       string `json:"name" yaml:"name"`
	Archived   bool   `json:"archived,omitempty" yaml:"archived,omitempty"`
}

// User is a space member.
type User struct {
	ID          int    `json:"id" yaml:"id"`
	UserID      string `json:"userId,omitempty" yaml:"userId,omitempty"`
	Name        string `json:"name" yaml:"name"`
	RoleType    int    `json:"roleType,omitempty" yaml:"roleType,omitempty"`
	MailAddress string `json:"mailAddress,omitempty" yaml:"mailAddress,omitempty"`
}

type Status struct {
	ID           int    `json:"id" yaml:"id"`
	ProjectID    int    `json:"projectId,omitempty" yaml:"projectId,omitempty"`
	Name         string `json:"name" yaml:"name"`
	Color        string `json:"color,omitempty" yaml:"color,omitempty"`
	DisplayOrder int    `json:"displayOrder,omitempty" yaml:"displayOrder,omitempty"`
}

type IssueType struct {
	ID           int    `json:"id" yaml:"id"`
	ProjectID    int    `json:"projectId,omitempty" yaml:"projectId,omitempty"`
	Name         string `json:"name" yaml:"name"`
	Color        string `json:"color,omitempty" yaml:"color,omitempty"`
	DisplayOrder int    `json:"displayOrder,omitempty" yaml:"displayOrder,omitempty"`
}

type Priority struct {
	ID   int    `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

type Resolution struct {
	ID   int    `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

type Category struct {
	ID           int    `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	DisplayOrder int    `json:"displayOrder" yaml:"displayOrder"`
}

// Version is a project version. Milestones share the same shape.
type Version struct {
	ID             int     `json:"id" yaml:"id"`
	ProjectID      int     `json:"projectId" yaml:"projectId"`
	Name           string  `json:"name" yaml:"name"`
	Description    *string `json:"description,omitempty" yaml:"description,omitempty"`
	StartDate      *string `json:"startDate,omitempty" yaml:"startDate,omitempty"`
	ReleaseDueDate *string `json:"releaseDueDate,omitempty" yaml:"releaseDueDate,omitempty"`
	Archived       bool    `json:"archived" yaml:"archived"`
	DisplayOrder   int     `json:"displayOrder" yaml:"displayOrder"`
}

// Issue is a Backlog issue as returned by the issue endpoints.
type Issue struct {
	ID             int         `json:"id" yaml:"id"`
	ProjectID      int         `json:"projectId,omitempty" yaml:"projectId,omitempty"`
	IssueKey       string      `json:"issueKey" yaml:"issueKey"`
	KeyID          int         `json:"keyId,omitempty" yaml:"keyId,omitempty"`
	Summary        string      `json:"summary" yaml:"summary"`
	Description    *string     `json:"description,omitempty" yaml:"description,omitempty"`
	Status         Status      `json:"status" yaml:"status"`
	IssueType      IssueType   `json:"issueType" yaml:"issueType"`
	Priority       Priority    `json:"priority" yaml:"priority"`
	Resolution     *Resolution `json:"resolution,omitempty" yaml:"resolution,omitempty"`
	Assignee       *User       `json:"assignee,omitempty" yaml:"assignee,omitempty"`
	CreatedUser    User        `json:"createdUser" yaml:"createdUser"`
	Created        string      `json:"created" yaml:"created"`
	Updated        string      `json:"updated" yaml:"updated"`
	StartDate      *string     `json:"startDate,omitempty" yaml:"startDate,omitempty"`
	DueDate        *string     `json:"dueDate,omitempty" yaml:"dueDate,omitempty"`
	EstimatedHours *float64    `json:"estimatedHours,omitempty" yaml:"estimatedHours,omitempty"`
	ActualHours    *float64    `json:"actualHours,omitempty" yaml:"actualHours,omitempty"`
	ParentIssueID  *int        `json:"parentIssueId,omitempty" yaml:"parentIssueId,omitempty"`
	Category       []Category  `json:"category,omitempty" yaml:"category,omitempty"`
	Versions       []Version   `json:"versions,omitempty" yaml:"versions,omitempty"`
	Milestone      []Version   `json:"milestone,omitempty" yaml:"milestone,omitempty"`
}

// Comment is an issue comment. Content is nil for change-log only entries.
type Comment struct {
	ID          int     `json:"id" yaml:"id"`
	Content     *string `json:"content" yaml:"content"`
	CreatedUser User    `json:"createdUser" yaml:"createdUser"`
	Created     string  `json:"created" yaml:"created"`
	Updated     string  `json:"updated,omitempty" yaml:"updated,omitempty"`
}

type Attachment struct {
	ID   int    `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Size int64  `json:"size" yaml:"size"`
}

type Tag struct {
	ID   int    `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

type WikiPage struct {
	ID          int          `json:"id" yaml:"id"`
	ProjectID   int          `json:"projectId" yaml:"projectId"`
	Name        string       `json:"name" yaml:"name"`
	Content     string       `json:"content,omitempty" yaml:"content,omitempty"`
	Tags        []Tag        `json:"tags" yaml:"tags"`
	Attachments []Attachment `json:"attachments,omitempty" yaml:"attachments,omitempty"`
	CreatedUser User         `json:"createdUser" yaml:"createdUser"`
	Created     string       `json:"created" yaml:"created"`
	UpdatedUser User         `json:"updatedUser" yaml:"updatedUser"`
	Updated     string       `json:"updated" yaml:"updated"`
}

// Document is a page of the document feature. Its id is a string.
type Document struct {
	ID          string       `json:"id" yaml:"id"`
	ProjectID   int          `json:"projectId" yaml:"projectId"`
	Title       string       `json:"title" yaml:"title"`
	Plain       string       `json:"plain,omitempty" yaml:"plain,omitempty"`
	StatusID    int          `json:"statusId" yaml:"statusId"`
	Emoji       *string      `json:"emoji,omitempty" yaml:"emoji,omitempty"`
	Attachments []Attachment `json:"attachments" yaml:"attachments"`
	Tags        []Tag        `json:"tags" yaml:"tags"`
	CreatedUser User         `json:"createdUser" yaml:"createdUser"`
	Created     string       `json:"created" yaml:"created"`
	UpdatedUser User         `json:"updatedUser" yaml:"updatedUser"`
	Updated     string       `json:"updated" yaml:"updated"`
}

// DocumentNode is an entry of the document tree.
type DocumentNode struct {
	ID       string         `json:"id" yaml:"id"`
	Name     string         `json:"name" yaml:"name"`
	Emoji    *string        `json:"emoji,omitempty" yaml:"emoji,omitempty"`
	Children []DocumentNode `json:"children" yaml:"children"`
}

type DocumentTree struct {
	ProjectID  int          `json:"projectId" yaml:"projectId"`
	ActiveTree DocumentNode `json:"activeTree" yaml:"activeTree"`
	TrashTree  DocumentNode `json:"trashTree" yaml:"trashTree"`
}

// RateLimitQuota is the remote view of one quota bucket.
type RateLimitQuota struct {
	Limit     int   `json:"limit" yaml:"limit"`
	Remaining int   `json:"remaining" yaml:"remaining"`
	Reset     int64 `json:"reset" yaml:"reset"`
}

type RateLimit struct {
	Read   RateLimitQuota `json:"read" yaml:"read"`
	Update RateLimitQuota `json:"update" yaml:"update"`
	Search RateLimitQuota `json:"search" yaml:"search"`
	Icon   RateLimitQuota `json:"icon" yaml:"icon"`
}

type countResponse struct {
	Count int `json:"count"`
}
