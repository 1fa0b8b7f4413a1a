package output

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/backlogsync/backlogsync/internal/backlog"
)

var imageName = regexp.MustCompile(`(?i)\.(png|jpe?g|gif|webp|bmp|svg)$`)

const stampPrefix = "<!-- updated: "

// IsImage reports whether an attachment should be embedded rather than linked.
func IsImage(filename string) bool {
	return imageName.MatchString(filename)
}

// RenderIssue renders issue.md. The last line records the issue's updated
// timestamp so later syncs can skip unchanged issues.
func RenderIssue(issue backlog.Issue, webURL string, attachments []backlog.Attachment) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# [%s] %s\n\n", issue.IssueKey, issue.Summary)
	fmt.Fprintf(&b, "- **URL**: %s\n", webURL)
	fmt.Fprintf(&b, "- **Status**: %s\n", issue.Status.Name)
	fmt.Fprintf(&b, "- **Type**: %s\n", issue.IssueType.Name)
	fmt.Fprintf(&b, "- **Priority**: %s\n", issue.Priority.Name)
	if issue.Assignee != nil {
		fmt.Fprintf(&b, "- **Assignee**: %s\n", issue.Assignee.Name)
	}
	fmt.Fprintf(&b, "- **Reporter**: %s\n", issue.CreatedUser.Name)
	fmt.Fprintf(&b, "- **Created**: %s\n", datePart(issue.Created))
	fmt.Fprintf(&b, "- **Updated**: %s\n", datePart(issue.Updated))
	if issue.DueDate != nil && *issue.DueDate != "" {
		fmt.Fprintf(&b, "- **Due Date**: %s\n", datePart(*issue.DueDate))
	}
	if issue.EstimatedHours != nil {
		fmt.Fprintf(&b, "- **Estimated Hours**: %s\n", formatHours(*issue.EstimatedHours))
	}
	if issue.ActualHours != nil {
		fmt.Fprintf(&b, "- **Actual Hours**: %s\n", formatHours(*issue.ActualHours))
	}

	b.WriteString("\n## Description\n\n")
	if issue.Description != nil {
		b.WriteString(*issue.Description)
	} else {
		b.WriteString("(No description)")
	}
	b.WriteString("\n\n")

	if len(attachments) > 0 {
		b.WriteString("## Attachments\n\n")
		for _, att := range attachments {
			if IsImage(att.Name) {
				fmt.Fprintf(&b, "![%s](attachments/%s)\n", att.Name, att.Name)
			} else {
				fmt.Fprintf(&b, "- [%s](attachments/%s)\n", att.Name, att.Name)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString(UpdatedStamp(issue.Updated))
	b.WriteString("\n")
	return b.String()
}

// RenderComments renders comments.md. Comments without content (pure field
// changes) are left out; ok is false when nothing remains.
func RenderComments(issue backlog.Issue, comments []backlog.Comment, loc *time.Location) (string, bool) {
	var withContent []backlog.Comment
	for _, c := range comments {
		if c.Content != nil && strings.TrimSpace(*c.Content) != "" {
			withContent = append(withContent, c)
		}
	}
	if len(withContent) == 0 {
		return "", false
	}
	if loc == nil {
		loc = time.Local
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Comments: [%s] %s\n\n", issue.IssueKey, issue.Summary)
	for i, c := range withContent {
		if i > 0 {
			b.WriteString("---\n\n")
		}
		fmt.Fprintf(&b, "## %s (%s)\n\n", c.CreatedUser.Name, dateTime(c.Created, loc))
		b.WriteString(*c.Content)
		b.WriteString("\n\n")
	}
	return b.String(), true
}

// UpdatedStamp is the trailing marker written to issue.md.
func UpdatedStamp(updated string) string {
	return stampPrefix + updated + " -->"
}

// ParseUpdatedStamp returns the updated timestamp recorded on the last
// non-empty line of an issue.md document.
func ParseUpdatedStamp(document string) (string, bool) {
	lines := strings.Split(strings.TrimRight(document, "\n"), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if !strings.HasPrefix(last, stampPrefix) || !strings.HasSuffix(last, "-->") {
		return "", false
	}
	value := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(last, stampPrefix), "-->"))
	return value, value != ""
}

func datePart(value string) string {
	if len(value) >= 10 {
		return value[:10]
	}
	return value
}

func dateTime(value string, loc *time.Location) string {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		if len(value) >= 16 {
			return strings.Replace(value[:16], "T", " ", 1)
		}
		return value
	}
	return parsed.In(loc).Format("2006-01-02 15:04")
}

func formatHours(hours float64) string {
	return strconv.FormatFloat(hours, 'f', -1, 64)
}
