package voice

import (
	"fmt"
	"strings"
)

// Defaults for missing context fields. Descriptive only; the agent script
// works with generic values.
const (
	defaultName       = "the customer"
	defaultVehicle    = "their vehicle"
	defaultLocation   = "their reported location"
	defaultIssue      = "a roadside incident"
	defaultMembership = "Roadside Assistance"
)

// BuildTask renders the agent instruction prompt from the call context.
func BuildTask(c CallContext) string {
	name := orDefault(c.CustomerName, defaultName)
	vehicle := orDefault(c.Vehicle, defaultVehicle)
	location := orDefault(c.Location, defaultLocation)
	issue := orDefault(c.Issue, defaultIssue)
	membership := orDefault(c.Membership, defaultMembership)

	var history strings.Builder
	fmt.Fprintf(&history, "Customer Name: %s\n", name)
	if len(c.PreviousIssues) > 0 {
		fmt.Fprintf(&history, "Previous Issues: %s\n", strings.Join(c.PreviousIssues, ", "))
	}
	if c.LastServiceDate != "" {
		fmt.Fprintf(&history, "Last Service Date: %s\n", c.LastServiceDate)
	}
	fmt.Fprintf(&history, "Membership Level: %s\n", membership)
	if c.ImageSummary != "" {
		fmt.Fprintf(&history, "Image Analysis Summary: %s\n", c.ImageSummary)
	}

	var b strings.Builder
	fmt.Fprintf(&b,
		"You are the Road Assistance AI agent. A customer named %s with a %s has requested roadside assistance from %s. They have reported the following issue: %q.\n\n",
		name, vehicle, location, issue)
	fmt.Fprintf(&b, "This is what we know about the customer from their history:\n%s\n", history.String())
	fmt.Fprintf(&b,
		"Introduce yourself as the Road Assistance AI. Confirm you are speaking with %s, reference their membership level, then confirm their current location and the issue with their %s. ",
		name, vehicle)
	b.WriteString("If their reported issue matches the image analysis summary, acknowledge the consistency and ask for any additional details. ")
	b.WriteString("Inform them a ticket is being created and assistance dispatched, with an estimated arrival of 30-45 minutes. ")
	b.WriteString("Ask whether they need immediate emergency services; if so, advise them to hang up and call emergency services directly. ")
	b.WriteString("Before ending, summarize the collected information, confirm next steps, provide a 6-digit reference number, and mention they will receive updates via SMS. Thank them and end the call politely.")
	return b.String()
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
