package tooling

import (
	"fmt"
	"strings"
)

// Outcomes accepted by the assistant profile's respond tool.
const (
	OutcomeOKAnswer            = "ok_answer"
	OutcomeOKNotFound          = "ok_not_found"
	OutcomeDeniedSecurity      = "denied_security"
	OutcomeClarificationNeeded = "none_clarification_needed"
	OutcomeUnsupported         = "none_unsupported"
	OutcomeErrorInternal       = "error_internal"
)

// RespondOutcomes lists the accepted respond outcomes in prompt order.
func RespondOutcomes() []string {
	return []string{
		OutcomeOKAnswer,
		OutcomeOKNotFound,
		OutcomeDeniedSecurity,
		OutcomeClarificationNeeded,
		OutcomeUnsupported,
		OutcomeErrorInternal,
	}
}

// TaskFinishedMarker is the explicit completion marker the executor prompt
// asks the model to emit after a successful terminal call.
const TaskFinishedMarker = "[TASK FINISHED]"

const taskFinishedPhrase = "Task Finished"

// SignalsCompletion reports whether executor output claims the task is done:
// either the explicit marker, or the terminal endpoint name together with
// the finished phrase.
func SignalsCompletion(output, terminalEndpoint string) bool {
	if strings.Contains(output, TaskFinishedMarker) {
		return true
	}
	if terminalEndpoint == "" {
		return false
	}
	return strings.Contains(output, terminalEndpoint) && strings.Contains(output, taskFinishedPhrase)
}

// Profile bundles the tool surface of one benchmark domain.
type Profile struct {
	Name        string
	Description string
	Cards       []ToolCard
	// SnapshotTools are read tools whose responses merge into the
	// environment snapshot before the first turn, keyed by tool name.
	SnapshotTools []string
	// InitClearTool is an optional mutating tool invoked before the first
	// turn to reset leftover remote state.
	InitClearTool string
}

// Registry builds the validated tool registry for this profile.
func (p Profile) Registry() (*Registry, error) {
	return NewRegistry(p.Cards)
}

// AssistantProfile is the business-assistant domain: directory lookups,
// knowledge documents, and a respond/finish terminal pair.
func AssistantProfile() Profile {
	return Profile{
		Name:        "assistant",
		Description: "internal business assistant answering requests against company records",
		Cards: []ToolCard{
			{Name: "who_am_i", Endpoint: "/whoami", Kind: KindRead, Description: "Returns the identity and role of the current actor."},
			{Name: "list_employees", Endpoint: "/employees/list", Kind: KindRead, Paginated: true, Description: "Lists employee records."},
			{Name: "get_employee", Endpoint: "/employees/get", Kind: KindRead, Description: "Fetches one employee record.", ArgsHint: "id"},
			{Name: "list_projects", Endpoint: "/projects/list", Kind: KindRead, Paginated: true, Description: "Lists project records."},
			{Name: "get_project", Endpoint: "/projects/get", Kind: KindRead, Description: "Fetches one project record.", ArgsHint: "id"},
			{Name: "list_customers", Endpoint: "/customers/list", Kind: KindRead, Paginated: true, Description: "Lists customer records."},
			{Name: "get_customer", Endpoint: "/customers/get", Kind: KindRead, Description: "Fetches one customer record.", ArgsHint: "id"},
			{Name: "search_wiki", Endpoint: "/wiki/search", Kind: KindRead, Paginated: true, Description: "Searches knowledge documents.", ArgsHint: "query"},
			{Name: "read_wiki", Endpoint: "/wiki/get", Kind: KindRead, Description: "Fetches one knowledge document.", ArgsHint: "slug"},
			{Name: "current_time", Endpoint: "/time", Kind: KindRead, Description: "Returns the benchmark clock."},
			{Name: "respond", Endpoint: "/respond", Kind: KindTerminal, Description: "Delivers the final answer and finishes the task.",
				ArgsHint: "message, outcome (" + strings.Join(RespondOutcomes(), "|") + "), links (optional)"},
			{Name: "finish_task", Endpoint: "/tasks/finish", Kind: KindTerminal, Description: "Finishes the task without a user-facing answer.", ArgsHint: "reason"},
		},
		SnapshotTools: []string{"who_am_i"},
	}
}

// StorefrontProfile is the e-commerce domain: product search, basket
// mutation, and a checkout terminal whose authoritative stock check can
// reject items the search surface offered.
func StorefrontProfile() Profile {
	return Profile{
		Name:        "storefront",
		Description: "storefront shopper assembling and finalizing a basket",
		Cards: []ToolCard{
			{Name: "who_am_i", Endpoint: "/whoami", Kind: KindRead, Description: "Returns the identity of the current shopper."},
			{Name: "search_products", Endpoint: "/products/search", Kind: KindRead, Paginated: true, Description: "Searches the product catalog.", ArgsHint: "query"},
			{Name: "get_product", Endpoint: "/products/get", Kind: KindRead, Description: "Fetches one product record.", ArgsHint: "id"},
			{Name: "get_basket", Endpoint: "/basket/get", Kind: KindRead, Description: "Returns the current basket contents."},
			{Name: "add_to_basket", Endpoint: "/basket/add", Kind: KindMutating, Description: "Adds a product to the basket.", ArgsHint: "product_id, quantity"},
			{Name: "remove_from_basket", Endpoint: "/basket/remove", Kind: KindMutating, Description: "Removes a product from the basket.", ArgsHint: "product_id"},
			{Name: "clear_basket", Endpoint: "/basket/clear", Kind: KindMutating, Description: "Empties the basket."},
			{Name: "apply_coupon", Endpoint: "/basket/coupon", Kind: KindMutating, Description: "Applies a coupon code to the basket.", ArgsHint: "code"},
			{Name: "checkout", Endpoint: "/checkout", Kind: KindTerminal, Description: "Finalizes the purchase; stock is authoritatively checked here."},
		},
		SnapshotTools: []string{"who_am_i", "get_basket"},
		InitClearTool: "clear_basket",
	}
}

// ProfileByName resolves a configured profile name.
func ProfileByName(name string) (Profile, error) {
	switch name {
	case "assistant", "":
		return AssistantProfile(), nil
	case "storefront":
		return StorefrontProfile(), nil
	default:
		return Profile{}, fmt.Errorf("unknown profile %q", name)
	}
}
