package ai

import (
	"fmt"
	"strings"

	"github.com/umayarajkumar17/portfolio/backend/internal/model/profile"
)

var styleHints = []string{
	"Answer as if you are representing the owner of the portfolio, with a friendly and slightly humorous tone.",
	"Be helpful and professional, sprinkle in a light joke or witty remark where it fits, but never get excessively silly.",
	"Keep answers concise and informative.",
	"If a question is unrelated to the owner's background, skills, experience or projects, steer the conversation back with a clever quip.",
}

// BuildSystemPrompt renders the persona, house rules and resume knowledge for p.
func BuildSystemPrompt(p profile.Profile) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s's fun and witty AI assistant on the %s portfolio website. ", p.Name, p.FirstName())
	b.WriteString("Answer questions based on the resume and profile information below.\n\n")

	b.WriteString("Style:\n")
	for _, hint := range styleHints {
		b.WriteString("- ")
		b.WriteString(hint)
		b.WriteByte('\n')
	}

	b.WriteString("\nRules:\n")
	fmt.Fprintf(&b, "- When mentioning GitHub, always use %s and never any other username or URL.\n", p.GitHubURL)
	fmt.Fprintf(&b, "- When mentioning email, always use %s and never any other address.\n", p.Email)
	b.WriteString("- Formatting is limited to **bold**, line breaks and links. Write links as markdown, for example ")
	fmt.Fprintf(&b, "[%s](%s).\n", p.GitHubURL, p.GitHubURL)

	b.WriteString("\nResume:\n")
	b.WriteString(ResumeSummary(p))
	return b.String()
}

// ResumeSummary flattens the profile into the reference text given to the model.
func ResumeSummary(p profile.Profile) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s, %s.\n", p.Name, p.Title)
	if p.Objective != "" {
		fmt.Fprintf(&b, "Objective: %s\n", p.Objective)
	}

	if len(p.Education) > 0 {
		b.WriteString("Education:\n")
		for _, e := range p.Education {
			fmt.Fprintf(&b, "- %s, %s", e.Degree, e.Institution)
			if e.Period != "" {
				fmt.Fprintf(&b, " (%s)", e.Period)
			}
			if e.Score != "" {
				fmt.Fprintf(&b, ", %s", e.Score)
			}
			b.WriteByte('\n')
		}
	}

	if len(p.Skills) > 0 {
		b.WriteString("Technical skills:\n")
		for _, group := range p.Skills {
			fmt.Fprintf(&b, "- %s: %s\n", group.Group, strings.Join(group.Items, ", "))
		}
	}
	if len(p.SoftSkills) > 0 {
		fmt.Fprintf(&b, "Soft skills: %s\n", strings.Join(p.SoftSkills, ", "))
	}

	if len(p.Experience) > 0 {
		b.WriteString("Experience:\n")
		for _, line := range p.Experience {
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}

	if len(p.Projects) > 0 {
		b.WriteString("Projects:\n")
		for _, project := range p.Projects {
			status := "Completed"
			if project.Status == profile.StatusInProgress {
				status = "Under Development"
			}
			fmt.Fprintf(&b, "- %s (%s): %s", project.Name, status, project.Summary)
			if len(project.Tech) > 0 {
				fmt.Fprintf(&b, " Tech: %s.", strings.Join(project.Tech, ", "))
			}
			b.WriteByte('\n')
		}
	}

	if len(p.Certifications) > 0 {
		b.WriteString("Certifications:\n")
		for _, c := range p.Certifications {
			fmt.Fprintf(&b, "- %s, %s", c.Name, c.Issuer)
			if c.Date != "" {
				fmt.Fprintf(&b, " (%s)", c.Date)
			}
			b.WriteByte('\n')
		}
	}

	if len(p.Responsibilities) > 0 {
		b.WriteString("Positions of responsibility:\n")
		for _, r := range p.Responsibilities {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}

	b.WriteString("Contact:\n")
	fmt.Fprintf(&b, "- Email: %s\n", p.Email)
	fmt.Fprintf(&b, "- GitHub: %s\n", p.GitHubURL)
	if p.Location.Current != "" {
		fmt.Fprintf(&b, "- Location: %s", p.Location.Current)
		if p.Location.Native != "" {
			fmt.Fprintf(&b, " (natively from %s)", p.Location.Native)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
