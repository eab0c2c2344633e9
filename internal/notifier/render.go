package notifier

import (
	"fmt"
	"strings"

	"jobtracker/internal/storage"
	"jobtracker/pkg/tgui"
)

const ParseModeHTML = "HTML"

// errorTextLimit bounds the error description shown to subscribers.
const errorTextLimit = 300

// ChooseTemplate picks the cycle template. It is total over its inputs and the
// checks are ordered: an error wins, then "nothing listed", then "something
// new", and everything else is "nothing new". The last argument is the active
// total; it only shapes the rendered text, never the choice.
func ChooseTemplate(newCount, updatedCount int, hadError bool, _ int) Template {
	switch {
	case hadError:
		return TemplateError
	case newCount == 0 && updatedCount == 0:
		return TemplateEmpty
	case newCount > 0:
		return TemplateNew
	default:
		return TemplateNoNew
	}
}

// Render builds the cycle message for r.
func Render(r CycleReport) (Template, Message) {
	tpl := ChooseTemplate(r.New, r.Updated, r.Err != nil, r.TotalActive)

	var b strings.Builder
	switch tpl {
	case TemplateError:
		b.WriteString("⚠️ ")
		b.WriteString(tgui.B("Could not check for new jobs").String())
		b.WriteString("\n")
		b.WriteString(tgui.Code(tgui.TruncRunes(r.Err.Error(), errorTextLimit)).String())
		b.WriteString("\n")
		b.WriteString(tgui.I("The next check runs as scheduled.").String())
	case TemplateEmpty:
		b.WriteString(tgui.B("No jobs listed").String())
		b.WriteString("\n")
		b.WriteString(tgui.Esc("The jobs page was reachable but listed no postings today.").String())
	case TemplateNew:
		b.WriteString(tgui.B(fmt.Sprintf("New jobs today (%d):", r.New)).String())
		b.WriteString("\n")
		b.WriteString(FormatPostings(r.Inserted))
		if r.TotalActive > 0 {
			b.WriteString("\n")
			b.WriteString(tgui.I(fmt.Sprintf("%d active in total.", r.TotalActive)).String())
		}
	default:
		b.WriteString(tgui.B("No new jobs today").String())
		b.WriteString("\n")
		b.WriteString(tgui.Esc(activeLine(r.TotalActive)).String())
	}

	return tpl, Message{Text: b.String(), ParseMode: ParseModeHTML}
}

func activeLine(n int) string {
	switch n {
	case 0:
		return "There are no active postings."
	case 1:
		return "There is 1 active posting. Use /active to list it."
	default:
		return fmt.Sprintf("There are %d active postings. Use /active to list them.", n)
	}
}

// FormatPostings renders one HTML line per posting: linked name and the
// discovery date.
func FormatPostings(ps []storage.Posting) string {
	lines := make([]string, 0, len(ps))
	for _, p := range ps {
		line := "• " + tgui.Link(p.Name, p.URL).String() + " " + tgui.I("("+p.FirstSeen+")").String()
		if !p.IsActive {
			line += " " + tgui.Esc("[closed]").String()
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// Listing renders a titled posting list, or empty when there is nothing to
// show.
func Listing(title, empty string, ps []storage.Posting) Message {
	if len(ps) == 0 {
		return Message{Text: tgui.Esc(empty).String(), ParseMode: ParseModeHTML}
	}
	text := tgui.B(title).String() + "\n" + FormatPostings(ps)
	return Message{Text: text, ParseMode: ParseModeHTML}
}
