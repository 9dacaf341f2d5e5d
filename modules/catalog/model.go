package catalog

// CatalogEntry - product listing generated from a photo.
// JSON keys are the Portuguese field names the model is asked to emit.
type CatalogEntry struct {
	ProductName      string            `json:"Nome do Produto" validate:"required,notblank" jsonschema:"title=Nome do Produto"`
	Brand            string            `json:"Marca,omitempty"`
	Category         string            `json:"Categoria" validate:"required,notblank"`
	Subcategory      string            `json:"Subcategoria,omitempty"`
	ShortDescription string            `json:"Descrição Curta" validate:"required,notblank" jsonschema:"description=50-60 palavras"`
	LongDescription  string            `json:"Descrição Longa" validate:"required,notblank" jsonschema:"description=100-150 palavras"`
	Features         []string          `json:"Características Principais" validate:"min=3,dive,notblank" jsonschema:"minItems=3"`
	TechnicalSpecs   map[string]string `json:"Especificações Técnicas,omitempty"`
	Dimensions       map[string]string `json:"Dimensões,omitempty"`
	Colors           []string          `json:"Opções de Cores,omitempty" validate:"omitempty,min=1,dive,notblank" jsonschema:"minItems=1"`
	PriceRange       string            `json:"Faixa de Preço Sugerida,omitempty"`
	TargetAudience   string            `json:"Público-Alvo,omitempty"`
	SEOKeywords      []string          `json:"Palavras-chave SEO,omitempty" validate:"omitempty,min=3,dive,notblank" jsonschema:"minItems=3"`
	SearchTags       []string          `json:"Tags de Busca,omitempty" validate:"omitempty,min=3,dive,notblank" jsonschema:"minItems=3"`
}

// Review - one synthetic customer review
type Review struct {
	Name  string   `json:"nome" validate:"required,notblank"`
	Stars int      `json:"estrelas" validate:"min=1,max=5" jsonschema:"minimum=1,maximum=5"`
	Title string   `json:"titulo" validate:"required,notblank"`
	Text  string   `json:"texto" validate:"required,notblank"`
	Date  string   `json:"data" validate:"required,datetime=2006-01-02" jsonschema:"format=date"`
	Pros  []string `json:"pros" validate:"min=1,dive,notblank" jsonschema:"minItems=1"`
	Cons  []string `json:"contras,omitempty"`
}

// ReviewSet - exactly five reviews
type ReviewSet struct {
	Reviews []Review `json:"reviews" validate:"len=5,dive" jsonschema:"minItems=5,maxItems=5"`
}

// ReviewSummary - digest of a ReviewSet
type ReviewSummary struct {
	Strengths       []string `json:"pontos_fortes" validate:"min=3,dive,notblank" jsonschema:"minItems=3"`
	Criticisms      []string `json:"criticas"`
	Sentiment       string   `json:"sentimento_geral" validate:"required,notblank"`
	Recommendations string   `json:"recomendacoes" validate:"required,notblank"`
}

// ReviewsInfo - reviews plus their summary
type ReviewsInfo struct {
	Reviews []Review      `json:"reviews"`
	Summary ReviewSummary `json:"summary"`
}

// ProductInfo - full generation result returned by the API
type ProductInfo struct {
	CatalogInfo CatalogEntry `json:"catalog_info"`
	ReviewsInfo ReviewsInfo  `json:"reviews_info"`
}

// AverageRating - mean star rating, 0 for no reviews
func (r ReviewsInfo) AverageRating() float64 {
	if len(r.Reviews) == 0 {
		return 0
	}
	total := 0
	for _, review := range r.Reviews {
		total += review.Stars
	}
	return float64(total) / float64(len(r.Reviews))
}
