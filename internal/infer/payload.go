package infer

import (
	"fmt"
	"strings"

	"bluestar/internal/article"
	"bluestar/internal/commit"
)

func analysisUserPrompt(facts commit.Facts, guidance string) string {
	var b strings.Builder
	writeFacts(&b, facts)
	if guidance = strings.TrimSpace(guidance); guidance != "" {
		b.WriteString("\nAuthor guidance:\n")
		b.WriteString(guidance)
		b.WriteString("\n")
	}
	return b.String()
}

func synthesisUserPrompt(in SynthesisInput) string {
	var b strings.Builder
	writeInterpretation(&b, in.Interpretation)
	b.WriteString("\n")
	writeFacts(&b, in.Facts)
	if guidance := strings.TrimSpace(in.Guidance); guidance != "" {
		b.WriteString("\nAuthor guidance:\n")
		b.WriteString(guidance)
		b.WriteString("\n")
	}
	if in.Previous != nil {
		b.WriteString("\nPrevious draft:\n")
		b.WriteString(article.Markdown(*in.Previous))
	}
	if feedback := strings.TrimSpace(in.Feedback); feedback != "" {
		b.WriteString("\nReviewer feedback to address:\n")
		b.WriteString(feedback)
		b.WriteString("\n")
	}
	return b.String()
}

func assessUserPrompt(facts commit.Facts, interp commit.Interpretation, feedback string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Commit message:\n%s\n\n", facts.Message)
	fmt.Fprintf(&b, "Changed files: %s\n", strings.Join(facts.FilePaths(), ", "))
	fmt.Fprintf(&b, "Analysis summary: %s\n", interp.Summary)
	fmt.Fprintf(&b, "Analysis completeness: %.2f\n", interp.Completeness)
	if len(facts.Extra.Fetched) > 0 {
		fmt.Fprintf(&b, "Already fetched: %s\n", joinSubsets(facts.Extra.Fetched))
	}
	fmt.Fprintf(&b, "\nReviewer feedback:\n%s\n", strings.TrimSpace(feedback))
	return b.String()
}

func writeFacts(b *strings.Builder, facts commit.Facts) {
	fmt.Fprintf(b, "Commit %s by %s", facts.SHA, facts.Author)
	if !facts.Date.IsZero() {
		fmt.Fprintf(b, " on %s", facts.Date.Format("2006-01-02"))
	}
	b.WriteString("\n\nMessage:\n")
	b.WriteString(facts.Message)
	b.WriteString("\n\nChanged files:\n")
	for _, file := range facts.Files {
		fmt.Fprintf(b, "- %s (%s, +%d/-%d)\n", file.Path, file.Status, file.Additions, file.Deletions)
	}
	if project := facts.Project; project != nil {
		b.WriteString("\nProject context:\n")
		writeLine(b, "Description", project.Description)
		writeLine(b, "Language", project.Language)
		writeLine(b, "Project type", project.ProjectType)
		if len(project.Topics) > 0 {
			writeLine(b, "Topics", strings.Join(project.Topics, ", "))
		}
		if project.ReadmeSummary != "" {
			b.WriteString("README excerpt:\n")
			b.WriteString(project.ReadmeSummary)
			b.WriteString("\n")
		}
	}
	writeEnhancement(b, facts.Extra)
	b.WriteString("\nDiff:\n")
	b.WriteString(facts.Diff)
	if facts.DiffTruncated {
		b.WriteString("\n(diff truncated)")
	}
	b.WriteString("\n")
}

func writeEnhancement(b *strings.Builder, extra commit.Enhancement) {
	if extra.Empty() {
		return
	}
	b.WriteString("\nAdditional context:\n")
	for _, pr := range extra.RelatedChanges {
		fmt.Fprintf(b, "Pull request #%d: %s\n", pr.Number, pr.Title)
		if body := strings.TrimSpace(pr.Body); body != "" {
			b.WriteString(body)
			b.WriteString("\n")
		}
	}
	for _, issue := range extra.Issues {
		fmt.Fprintf(b, "Issue #%d (%s): %s\n", issue.Number, issue.State, issue.Title)
		if body := strings.TrimSpace(issue.Body); body != "" {
			b.WriteString(body)
			b.WriteString("\n")
		}
	}
	if len(extra.RecentHistory) > 0 {
		b.WriteString("Recent history of the changed files:\n")
		for _, entry := range extra.RecentHistory {
			title, _, _ := strings.Cut(entry.Message, "\n")
			fmt.Fprintf(b, "- %s %s (%s)\n", shortSHA(entry.SHA), title, entry.Author)
		}
	}
	if len(extra.Structure) > 0 {
		fmt.Fprintf(b, "Repository layout: %s\n", strings.Join(extra.Structure, ", "))
	}
}

func writeInterpretation(b *strings.Builder, interp commit.Interpretation) {
	b.WriteString("Analysis:\n")
	writeLine(b, "Category", string(interp.Category))
	writeLine(b, "Summary", interp.Summary)
	writeLine(b, "Impact", interp.Impact)
	writeLine(b, "Narrative angle", interp.NarrativeAngle)
	writeList(b, "Key points", interp.KeyPoints)
	writeList(b, "Technical details", interp.TechnicalDetails)
	writeList(b, "Affected components", interp.AffectedComponents)
}

func writeLine(b *strings.Builder, label, value string) {
	if value = strings.TrimSpace(value); value != "" {
		fmt.Fprintf(b, "%s: %s\n", label, value)
	}
}

func writeList(b *strings.Builder, label string, values []string) {
	if len(values) == 0 {
		return
	}
	b.WriteString(label + ":\n")
	for _, v := range values {
		b.WriteString("- " + v + "\n")
	}
}

func joinSubsets(subsets []commit.Subset) string {
	names := make([]string, 0, len(subsets))
	for _, s := range subsets {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
