// Package render turns an aggregated agenda bundle into the markdown
// meeting document.
package render

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/kubestellar/agenda-gen/internal/config"
	"github.com/kubestellar/agenda-gen/internal/domain"
)

const (
	staleThresholdDays = 7
	highSeverityDays   = 14
	maxAttentionRows   = 5
	nextMeetingGapDays = 14

	// How many of each source feed the attention table. The table stays
	// short on purpose; it flags, it does not enumerate.
	stalePRCandidates    = 3
	breakingPRCandidates = 2
	helpWantedCandidates = 2

	renderedLabelCap = 2
)

// breakingLabels mark a merged PR as worth calling out in the attention table.
var breakingLabels = []string{"breaking-change", "major"}

// AttentionRow is one row of the "Attention Needed" table.
type AttentionRow struct {
	Item  string
	Why   string
	Owner string
}

// templateData is the flattened, pre-formatted view handed to the template.
type templateData struct {
	MeetingDate    string
	MeetingTime    string
	MeetingLink    string
	YouTubeLink    string
	SlackChannel   string
	PullsLink      string
	GeneratedDate  string
	GeneratedStamp string
	MergedCount    int
	ReviewCount    int
	HelpCount      int
	BacklogMedian  string
	BacklogOldest  string
	AttentionRows  []AttentionRow
	Discussion     string
	Contributors   string
	Release        domain.Release
	NextMeeting    string
	Warnings       []string
}

// Markdown renders the complete agenda document.
func Markdown(agenda *domain.Agenda, cfg config.Config) (string, error) {
	tmpl, err := template.New("agenda").Parse(agendaTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse agenda template: %w", err)
	}

	data := templateData{
		MeetingDate:    agenda.MeetingDate.Format("2006-01-02"),
		MeetingTime:    cfg.MeetingTime,
		MeetingLink:    cfg.MeetingLink,
		YouTubeLink:    cfg.YouTubeLink,
		SlackChannel:   cfg.SlackChannel,
		PullsLink:      fmt.Sprintf("https://github.com/%s/pulls", cfg.Repos[0]),
		GeneratedDate:  agenda.GeneratedAt.UTC().Format("2006-01-02"),
		GeneratedStamp: agenda.GeneratedAt.UTC().Format("2006-01-02 15:04"),
		MergedCount:    len(agenda.MergedPRs),
		ReviewCount:    len(agenda.OpenPRs),
		HelpCount:      len(agenda.HelpWanted),
		BacklogMedian:  fmt.Sprintf("%.0fd", agenda.BacklogMedianDays),
		BacklogOldest:  fmt.Sprintf("%.0fd", agenda.BacklogMaxDays),
		AttentionRows:  AttentionRows(agenda),
		Discussion:     discussionSection(agenda.DiscussionTopics),
		Contributors:   contributorsLine(agenda.Contributors),
		Release:        agenda.Release,
		NextMeeting:    NextMeetingDate(agenda.MeetingDate),
		Warnings:       agenda.Warnings,
	}

	var out strings.Builder
	if err := tmpl.Execute(&out, data); err != nil {
		return "", fmt.Errorf("failed to render agenda template: %w", err)
	}
	return out.String(), nil
}

// NextMeetingDate computes the following bi-weekly meeting date, rendered
// MM/DD/YYYY.
func NextMeetingDate(meeting time.Time) string {
	return meeting.AddDate(0, 0, nextMeetingGapDays).Format("01/02/2006")
}

// AttentionRows builds the attention table: stale open PRs first, then
// breaking-change merges, then help-wanted issues, capped at
// maxAttentionRows. An empty table renders a single all-clear row.
func AttentionRows(agenda *domain.Agenda) []AttentionRow {
	var rows []AttentionRow

	for _, pr := range head(agenda.OpenPRs, stalePRCandidates) {
		if pr.DaysOpen < staleThresholdDays {
			continue
		}
		marker := "🟠"
		if pr.DaysOpen >= highSeverityDays {
			marker = "🔴"
		}
		rows = append(rows, AttentionRow{
			Item:  fmt.Sprintf("[PR #%d](%s)", pr.Number, pr.URL),
			Why:   fmt.Sprintf("%s Open %dd", marker, pr.DaysOpen),
			Owner: "@" + pr.Author,
		})
	}

	for _, pr := range head(agenda.MergedPRs, breakingPRCandidates) {
		if !hasAnyLabel(pr.Labels, breakingLabels) {
			continue
		}
		rows = append(rows, AttentionRow{
			Item:  fmt.Sprintf("[PR #%d](%s)", pr.Number, pr.URL),
			Why:   "🚨 Breaking change merged",
			Owner: "@" + pr.Author,
		})
	}

	for _, issue := range head(agenda.HelpWanted, helpWantedCandidates) {
		rows = append(rows, AttentionRow{
			Item:  fmt.Sprintf("[#%d](%s)", issue.Number, issue.URL),
			Why:   "🆘 Help wanted",
			Owner: "-",
		})
	}

	if len(rows) > maxAttentionRows {
		rows = rows[:maxAttentionRows]
	}
	if len(rows) == 0 {
		rows = []AttentionRow{{Item: "✅", Why: "All clear this sprint!", Owner: "-"}}
	}
	return rows
}

func discussionSection(topics []domain.RepoTopics) string {
	var b strings.Builder
	for _, topic := range topics {
		if len(topic.Issues) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n**%s:**\n", domain.ShortRepoName(topic.Repo))
		for _, issue := range topic.Issues {
			labels := ""
			for _, label := range head(issue.Labels, renderedLabelCap) {
				labels += fmt.Sprintf(" `%s`", label)
			}
			fmt.Fprintf(&b, "- [#%d](%s): %s%s\n", issue.Number, issue.URL, issue.Title, labels)
		}
	}
	if b.Len() == 0 {
		return "\n_No active issues to highlight_\n"
	}
	return b.String()
}

func contributorsLine(contributors []string) string {
	if len(contributors) == 0 {
		return "_none this period_"
	}
	handles := make([]string, 0, len(contributors))
	for _, c := range contributors {
		handles = append(handles, "@"+c)
	}
	return strings.Join(handles, ", ")
}

func hasAnyLabel(labels, wanted []string) bool {
	for _, label := range labels {
		for _, w := range wanted {
			if label == w {
				return true
			}
		}
	}
	return false
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

const agendaTemplate = `# KubeStellar Community Meeting
## 📅 {{.MeetingDate}} | {{.MeetingTime}} | ⏱️ 30 min

[Join]({{.MeetingLink}}) | [YouTube]({{.YouTubeLink}}) | [Slack]({{.SlackChannel}})

---

## 🎯 Decision Needed (5 min)
> **_[Add focus topic before meeting]_**

Vote: 👍 / 👎 / 💬

---

## 🔥 Repo Pulse (8 min)
*Auto-generated {{.GeneratedDate}} | [Full PR list]({{.PullsLink}})*

**Merged:** {{.MergedCount}} PRs | **Needs Review:** {{.ReviewCount}} PRs (median age {{.BacklogMedian}}, oldest {{.BacklogOldest}}) | **Help Wanted:** {{.HelpCount}} issues

**Recent contributors:** {{.Contributors}}

### 🚨 Attention Needed
| Item | Why | Owner |
|------|-----|-------|
{{range .AttentionRows}}| {{.Item}} | {{.Why}} | {{.Owner}} |
{{end}}
### 💬 Top Issues to Discuss
*From most active repos*
{{.Discussion}}
---

## 🚀 Release (3 min)
**Current:** [{{.Release.Version}}]({{.Release.URL}}) ({{.Release.Date}}) | **Next:** _[version]_ - _[status]_

---

## 📢 Quick Updates (4 min)
*30 sec each max - post details in Slack*

- **LFX/IFOS:** _[one line or "no update"]_
- **Events:** _[one line or "no update"]_
- **Integrations:** _[one line or "no update"]_

---

## 💬 Open Mic (8 min)
*Sign up in PR or Slack*

| Slot | Who | Topic |
|------|-----|-------|
| 1 | _[name]_ | _[topic]_ |
| 2 | _[name]_ | _[topic]_ |

---

## ✅ Actions
| What | Who | Due |
|------|-----|-----|
| _[from last meeting]_ | | |

---

**Next:** {{.NextMeeting}} | 👥 _Add name in chat_
{{if .Warnings}}
> ⚠️ Some sections may be incomplete:
{{range .Warnings}}> - {{.}}
{{end}}{{end}}
<sub>Generated {{.GeneratedStamp}} UTC</sub>
`
