package core

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string  `json:"name" yaml:"name"`
	Amount float64 `json:"amount" yaml:"amount"`
}

// MonthSummary is a compact overview of one month's tree.
type MonthSummary struct {
	Month      string           `json:"month" yaml:"month"`
	Label      string           `json:"label" yaml:"label"`
	Total      float64          `json:"total" yaml:"total"`
	ItemCount  int              `json:"itemCount" yaml:"itemCount"`
	ByCategory []CategoryAmount `json:"byCategory" yaml:"byCategory"`
}

// TotalCost sums quantity times price over every item.
func TotalCost(t Tree) float64 {
	var total float64
	for _, c := range t {
		for _, it := range c.Items {
			total += it.Subtotal()
		}
	}
	return total
}

// CategoryNames returns the distinct category names in tree order.
func CategoryNames(t Tree) []string {
	seen := make(map[string]struct{}, len(t))
	out := make([]string, 0, len(t))
	for _, c := range t {
		if _, ok := seen[c.Name]; ok {
			continue
		}
		seen[c.Name] = struct{}{}
		out = append(out, c.Name)
	}
	return out
}

// Summarize computes totals for month.
func Summarize(month string, t Tree) MonthSummary {
	s := MonthSummary{
		Month:      month,
		Label:      MonthLabel(month),
		ByCategory: make([]CategoryAmount, 0, len(t)),
	}
	for _, c := range t {
		var amount float64
		for _, it := range c.Items {
			amount += it.Subtotal()
		}
		s.ByCategory = append(s.ByCategory, CategoryAmount{Name: c.Name, Amount: amount})
		s.Total += amount
		s.ItemCount += len(c.Items)
	}
	return s
}
