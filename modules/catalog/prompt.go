package catalog

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ReviewCount - reviews generated per product
const ReviewCount = 5

const catalogInstruction = `Gere uma entrada detalhada de catálogo de e-commerce para este item em português. Inclua:

1. Nome do Produto
2. Marca (se visível)
3. Categoria
4. Subcategoria
5. Descrição Curta (50-60 palavras)
6. Descrição Longa (100-150 palavras)
7. Características Principais (mínimo 3 características)
8. Especificações Técnicas (incluindo material, modelo, fabricante, país de origem, garantia e certificações)
9. Dimensões (altura, largura, profundidade e peso)
10. Opções de Cores (mínimo 1 cor)
11. Faixa de Preço Sugerida
12. Público-Alvo
13. Palavras-chave SEO (mínimo 3 palavras-chave)
14. Tags de Busca (mínimo 3 tags)

A saída deve seguir estritamente o schema JSON fornecido.
`

// BuildCatalogPrompt - instruction sent alongside the product photo
func BuildCatalogPrompt() string {
	return catalogInstruction
}

// BuildReviewsPrompt - asks for five reviews of entry dated within 30 days before today.
// Only the product name, short description and features are used.
func BuildReviewsPrompt(entry CatalogEntry, today time.Time) string {
	from := today.AddDate(0, 0, -30)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Com base nas informações do produto abaixo, gere %d avaliações realistas de usuários em português.\n", ReviewCount))
	sb.WriteString("Cada avaliação deve incluir:\n")
	sb.WriteString("1. Nome do usuário\n")
	sb.WriteString("2. Classificação (1-5 estrelas)\n")
	sb.WriteString("3. Título da avaliação\n")
	sb.WriteString("4. Texto da avaliação (2-3 frases)\n")
	sb.WriteString(fmt.Sprintf("5. Data (formato YYYY-MM-DD, últimos 30 dias: entre %s e %s)\n",
		from.Format(time.DateOnly), today.Format(time.DateOnly)))
	sb.WriteString("6. Prós (mínimo 1) e Contras (opcional)\n\n")

	sb.WriteString("Informações do Produto:\n")
	sb.WriteString(fmt.Sprintf("Nome: %s\n", entry.ProductName))
	sb.WriteString(fmt.Sprintf("Descrição: %s\n", entry.ShortDescription))
	sb.WriteString(fmt.Sprintf("Características: %s\n\n", strings.Join(entry.Features, "; ")))

	sb.WriteString("A saída deve seguir estritamente o schema JSON fornecido.\n")
	return sb.String()
}

// BuildSummaryPrompt - embeds the review set as indented JSON context
func BuildSummaryPrompt(reviews ReviewSet) (string, error) {
	data, err := json.MarshalIndent(reviews, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal reviews: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("Com base nas avaliações abaixo, gere um resumo conciso em português que destaque:\n")
	sb.WriteString("1. Pontos fortes mais mencionados (mínimo 3)\n")
	sb.WriteString("2. Principais críticas (se houver)\n")
	sb.WriteString("3. Sentimento geral dos usuários\n")
	sb.WriteString("4. Recomendações para potenciais compradores\n\n")
	sb.WriteString("Avaliações:\n")
	sb.Write(data)
	sb.WriteString("\n\nA saída deve seguir estritamente o schema JSON fornecido.\n")
	return sb.String(), nil
}
