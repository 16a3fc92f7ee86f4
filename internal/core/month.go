package core

import (
	"strconv"
	"strings"
	"time"
)

// Months lists the partition keys in calendar order.
var Months = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

var monthLabels = map[string]string{
	"January": "Janeiro", "February": "Fevereiro", "March": "Março", "April": "Abril",
	"May": "Maio", "June": "Junho", "July": "Julho", "August": "Agosto",
	"September": "Setembro", "October": "Outubro", "November": "Novembro", "December": "Dezembro",
}

// MonthLabel returns the pt-BR display name for a month key.
func MonthLabel(key string) string {
	if l, ok := monthLabels[key]; ok {
		return l
	}
	return key
}

// ParseMonth resolves an English key, a pt-BR label or a number 1-12 to
// the canonical month key.
func ParseMonth(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrInvalidMonth
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > 12 {
			return "", ErrInvalidMonth
		}
		return Months[n-1], nil
	}
	for _, m := range Months {
		if strings.EqualFold(m, s) || strings.EqualFold(monthLabels[m], s) {
			return m, nil
		}
	}
	return "", ErrInvalidMonth
}

// CurrentMonth returns the month key for t.
func CurrentMonth(t time.Time) string {
	return Months[int(t.Month())-1]
}
