// Package estimation asks a generative model how much of each catalog item
// a household needs in a month. Results are suggestions only; they are
// cached in memory and never persisted.
package estimation

import (
	"fmt"
	"strings"
)

// DefaultProfile describes the household the estimates are made for.
const DefaultProfile = "Família brasileira de 4 pessoas (2 adultos e 2 crianças em idade escolar), " +
	"que faz as principais refeições em casa e compra mantimentos uma vez por mês."

// BuildPrompt renders the request sent to the model: the household profile,
// the catalog item names and the exact JSON shape expected back.
func BuildPrompt(profile string, names []string) string {
	if strings.TrimSpace(profile) == "" {
		profile = DefaultProfile
	}
	var b strings.Builder
	b.WriteString("Você é um assistente de planejamento de compras domésticas.\n")
	fmt.Fprintf(&b, "Perfil da casa: %s\n\n", strings.TrimSpace(profile))
	b.WriteString("Estime a quantidade mensal necessária de cada item abaixo. ")
	b.WriteString("Use a unidade indicada entre parênteses quando houver; caso contrário use \"un\".\n\n")
	b.WriteString("Itens:\n")
	for _, n := range names {
		fmt.Fprintf(&b, "- %s\n", n)
	}
	b.WriteString("\nResponda somente com JSON no formato ")
	b.WriteString(`{"estimations":[{"name":"<item>","estimatedQuantity":<número>,"unit":"<unidade>"}]}`)
	b.WriteString(", usando exatamente os nomes da lista.\n")
	return b.String()
}
