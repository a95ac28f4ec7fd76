package provider

import (
	"fmt"
	"strings"
)

// SystemPrompt pins the provider to bare JSON output.
const SystemPrompt = "You are a task planning assistant. Always respond with valid JSON only, no markdown or other formatting. The response should be a single JSON object with a 'tasks' array."

// PromptContext carries the goal fields a plan prompt is built from.
type PromptContext struct {
	Title        string
	Description  string
	CurrentLevel string
	FocusAreas   []string
	DailyMinutes int
	Days         int
	StartDate    string
	EndDate      string
}

// BuildPrompt renders the single structured plan request sent to the provider.
func BuildPrompt(pc PromptContext) string {
	areas := strings.Join(pc.FocusAreas, ", ")
	if areas == "" {
		areas = "General Practice"
	}
	var b strings.Builder
	b.WriteString("Create a daily practice plan for the following goal. Return ONLY a valid JSON object with a \"tasks\" array:\n\n")
	fmt.Fprintf(&b, "Goal Title: %s\n", pc.Title)
	fmt.Fprintf(&b, "Description: %s\n", pc.Description)
	fmt.Fprintf(&b, "Current Level: %s\n", pc.CurrentLevel)
	fmt.Fprintf(&b, "Specific Areas to Focus On: %s\n", areas)
	fmt.Fprintf(&b, "Daily Practice Time: %d minutes\n", pc.DailyMinutes)
	fmt.Fprintf(&b, "Total Days Available: %d days\n\n", pc.Days)
	b.WriteString(`Each task in the tasks array should have these exact fields:
{
  "title": "string",
  "description": "string",
  "estimatedTime": number,
  "status": "pending",
  "successCriteria": ["string"],
  "prerequisites": ["string"],
  "notes": "string",
  "dailyFocus": "string",
  "resources": ["string"]
}

`)
	fmt.Fprintf(&b, "Generate %d tasks, one for each day from %s up to (not including) %s.", pc.Days, pc.StartDate, pc.EndDate)
	return b.String()
}
