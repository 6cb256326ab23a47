package notify

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/vanshika/quickpay/internal/analytics"
	"github.com/vanshika/quickpay/internal/quality"
)

// Attachment colors by quality score band.
const (
	ColorGood    = "#1CB875"
	ColorWarning = "#FFB800"
	ColorDanger  = "#F04438"
)

// Payload is an incoming-webhook message in Slack's Block Kit shape.
type Payload struct {
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type Attachment struct {
	Color  string  `json:"color"`
	Blocks []Block `json:"blocks"`
}

type Block struct {
	Type     string    `json:"type"`
	Text     *Text     `json:"text,omitempty"`
	Fields   []Text    `json:"fields,omitempty"`
	Elements []Element `json:"elements,omitempty"`
}

type Text struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type Element struct {
	Type string `json:"type"`
	Text Text   `json:"text"`
	URL  string `json:"url,omitempty"`
}

// Color maps a quality score to the attachment color: >= 90 green,
// >= 70 yellow, red otherwise.
func Color(score float64) string {
	switch {
	case score >= 90:
		return ColorGood
	case score >= 70:
		return ColorWarning
	default:
		return ColorDanger
	}
}

func statusMark(score float64) string {
	switch {
	case score >= 90:
		return ":white_check_mark:"
	case score >= 70:
		return ":warning:"
	default:
		return ":red_circle:"
	}
}

func severityMark(s quality.Severity) string {
	if s == quality.SeverityCritical {
		return ":red_circle:"
	}
	return ":large_yellow_circle:"
}

func mrkdwn(text string) Text { return Text{Type: "mrkdwn", Text: text} }

// QualityPayload builds the quality report message: header, score and
// counts, run time and environment, the failed checks if any and a button
// linking to the full report.
func QualityPayload(report quality.Report, environment, reportURL string) Payload {
	score := report.QualityScore
	blocks := []Block{
		{
			Type: "header",
			Text: &Text{Type: "plain_text", Text: statusMark(score) + " QuickPay Data Quality Report", Emoji: true},
		},
		{
			Type: "section",
			Fields: []Text{
				mrkdwn(fmt.Sprintf("*Quality score*\n%s%%", strconv.FormatFloat(score, 'f', -1, 64))),
				mrkdwn(fmt.Sprintf("*Results*\n:white_check_mark: %d / :x: %d / total %d", report.Passed, report.Failed, report.TotalChecks)),
				mrkdwn(fmt.Sprintf("*Run at*\n%s", report.RunTimestamp.UTC().Format("2006-01-02T15:04:05"))),
				mrkdwn(fmt.Sprintf("*Environment*\nPostgreSQL (%s)", environment)),
			},
		},
	}

	if failed := report.FailedResults(); len(failed) > 0 {
		lines := make([]string, len(failed))
		for i, r := range failed {
			lines[i] = fmt.Sprintf("%s `%s`: %s", severityMark(r.Severity), r.CheckName, r.Details)
		}
		blocks = append(blocks, Block{
			Type: "section",
			Text: &Text{Type: "mrkdwn", Text: "*:x: Failed checks:*\n" + strings.Join(lines, "\n")},
		})
	}

	blocks = append(blocks, Block{
		Type: "actions",
		Elements: []Element{{
			Type: "button",
			Text: Text{Type: "plain_text", Text: ":bar_chart: View full report"},
			URL:  reportURL,
		}},
	})

	return Payload{Attachments: []Attachment{{Color: Color(score), Blocks: blocks}}}
}

// AnomalyPayload builds the plain-text metric anomaly alert.
func AnomalyPayload(metric string, a analytics.Anomaly, at time.Time) Payload {
	direction := ":chart_with_downwards_trend: drop"
	if a.ZScore > 0 {
		direction = ":chart_with_upwards_trend: spike"
	}
	change := 0.0
	if a.Expected != 0 {
		change = math.Round((a.Value-a.Expected)/a.Expected*1000) / 10
	}
	return Payload{Text: fmt.Sprintf(
		":rotating_light: *Metric anomaly - %s*\n>%s | current: %s | expected: %s\n>change: %+.1f%% | z-score: %.2f\n>at: %s",
		metric, direction, thousands(a.Value), thousands(a.Expected), change, a.ZScore, at.Format("2006-01-02 15:04"),
	)}
}

// thousands formats v rounded to an integer with comma separators.
func thousands(v float64) string {
	s := strconv.FormatInt(int64(math.Round(math.Abs(v))), 10)
	var b strings.Builder
	if v < 0 && s != "0" {
		b.WriteByte('-')
	}
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}
