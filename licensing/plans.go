package licensing

// Plan is one row of the fixed paid-plan catalog.
type Plan struct {
	Code  string
	Label string
	Days  int
	Price string
	// ApproveLabel is the text shown on the admin approval button.
	ApproveLabel string
}

// plans is the catalog in display order. Durations are what the admin
// approval grants; the permanent plan uses a sentinel duration far beyond
// any realistic product lifetime.
var plans = []Plan{
	{Code: "starter", Label: "Starter", Days: 15, Price: "300 TK", ApproveLabel: "Approve Starter (15d)"},
	{Code: "30d", Label: "Standard", Days: 30, Price: "600 TK", ApproveLabel: "Approve 30 Days"},
	{Code: "6m", Label: "Pro", Days: 180, Price: "1500 TK", ApproveLabel: "Approve 6 Months"},
	{Code: "perm", Label: "Permanent", Days: 3650, Price: "3500 TK", ApproveLabel: "Approve Permanent"},
}

// Plans returns the paid-plan catalog in display order.
func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

// PlanByCode looks a plan up by its catalog code.
func PlanByCode(code string) (Plan, bool) {
	for _, p := range plans {
		if p.Code == code {
			return p, true
		}
	}
	return Plan{}, false
}
