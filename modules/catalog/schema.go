package catalog

import "google.golang.org/genai"

// Catalog field names, in output order
const (
	fieldProductName    = "Nome do Produto"
	fieldBrand          = "Marca"
	fieldCategory       = "Categoria"
	fieldSubcategory    = "Subcategoria"
	fieldShortDesc      = "Descrição Curta"
	fieldLongDesc       = "Descrição Longa"
	fieldFeatures       = "Características Principais"
	fieldTechnicalSpecs = "Especificações Técnicas"
	fieldDimensions     = "Dimensões"
	fieldColors         = "Opções de Cores"
	fieldPriceRange     = "Faixa de Preço Sugerida"
	fieldTargetAudience = "Público-Alvo"
	fieldSEOKeywords    = "Palavras-chave SEO"
	fieldSearchTags     = "Tags de Busca"
)

var catalogFieldOrder = []string{
	fieldProductName,
	fieldBrand,
	fieldCategory,
	fieldSubcategory,
	fieldShortDesc,
	fieldLongDesc,
	fieldFeatures,
	fieldTechnicalSpecs,
	fieldDimensions,
	fieldColors,
	fieldPriceRange,
	fieldTargetAudience,
	fieldSEOKeywords,
	fieldSearchTags,
}

func stringSchema() *genai.Schema {
	return &genai.Schema{Type: genai.TypeString}
}

func stringArraySchema(minItems int64) *genai.Schema {
	s := &genai.Schema{Type: genai.TypeArray, Items: stringSchema()}
	if minItems > 0 {
		s.MinItems = genai.Ptr(minItems)
	}
	return s
}

// flatObjectSchema - object whose listed properties are all free text
func flatObjectSchema(names ...string) *genai.Schema {
	props := make(map[string]*genai.Schema, len(names))
	for _, name := range names {
		props[name] = stringSchema()
	}
	return &genai.Schema{Type: genai.TypeObject, Properties: props}
}

// CatalogSchema - output schema for catalog extraction. Built fresh on every call.
func CatalogSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			fieldProductName: stringSchema(),
			fieldBrand:       stringSchema(),
			fieldCategory:    stringSchema(),
			fieldSubcategory: stringSchema(),
			fieldShortDesc:   stringSchema(),
			fieldLongDesc:    stringSchema(),
			fieldFeatures:    stringArraySchema(3),
			fieldTechnicalSpecs: flatObjectSchema(
				"Material", "Modelo", "Fabricante", "País de Origem", "Garantia", "Certificações",
			),
			fieldDimensions:     flatObjectSchema("Altura", "Largura", "Profundidade", "Peso"),
			fieldColors:         stringArraySchema(1),
			fieldPriceRange:     stringSchema(),
			fieldTargetAudience: stringSchema(),
			fieldSEOKeywords:    stringArraySchema(3),
			fieldSearchTags:     stringArraySchema(3),
		},
		Required: []string{
			fieldProductName,
			fieldCategory,
			fieldShortDesc,
			fieldLongDesc,
			fieldFeatures,
		},
		PropertyOrdering: append([]string(nil), catalogFieldOrder...),
	}
}

// ReviewsSchema - exactly five reviews
func ReviewsSchema() *genai.Schema {
	review := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"nome": stringSchema(),
			"estrelas": {
				Type:    genai.TypeInteger,
				Minimum: genai.Ptr[float64](1),
				Maximum: genai.Ptr[float64](5),
			},
			"titulo":  stringSchema(),
			"texto":   stringSchema(),
			"data":    {Type: genai.TypeString, Format: "date"},
			"pros":    stringArraySchema(1),
			"contras": stringArraySchema(0),
		},
		Required:         []string{"nome", "estrelas", "titulo", "texto", "data", "pros"},
		PropertyOrdering: []string{"nome", "estrelas", "titulo", "texto", "data", "pros", "contras"},
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"reviews": {
				Type:     genai.TypeArray,
				Items:    review,
				MinItems: genai.Ptr[int64](ReviewCount),
				MaxItems: genai.Ptr[int64](ReviewCount),
			},
		},
		Required:         []string{"reviews"},
		PropertyOrdering: []string{"reviews"},
	}
}

// SummarySchema - review digest
func SummarySchema() *genai.Schema {
	order := []string{"pontos_fortes", "criticas", "sentimento_geral", "recomendacoes"}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"pontos_fortes":    stringArraySchema(3),
			"criticas":         stringArraySchema(0),
			"sentimento_geral": stringSchema(),
			"recomendacoes":    stringSchema(),
		},
		Required:         append([]string(nil), order...),
		PropertyOrdering: order,
	}
}
