package preview

import (
	"bytes"
	"embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"pic2catalog-server/modules/catalog"
	"pic2catalog-server/modules/common/config"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(
	template.New("page.html").Funcs(template.FuncMap{"stars": stars}).ParseFS(templateFS, "templates/page.html"),
)

// PreviewHandler renders the upload form and the generated product page.
type PreviewHandler struct {
	catalog *catalog.Handler
	logger  *slog.Logger
}

// PageData - everything page.html renders
type PageData struct {
	MaxUploadMB     int64
	ConfigError     string
	GenerationError string
	Product         *catalog.ProductInfo
	AverageRating   float64
	ImageURI        template.URL
	DownloadURI     template.URL
	RawJSON         string
}

// NewPreviewHandler creates a handler that shares the catalog pipeline and its configuration state.
func NewPreviewHandler(h *catalog.Handler, logger *slog.Logger) *PreviewHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PreviewHandler{catalog: h, logger: logger}
}

// RegisterRoutes wires the HTML endpoints.
func (h *PreviewHandler) RegisterRoutes(r *mux.Router, guard func(http.Handler) http.Handler) {
	if guard == nil {
		guard = func(next http.Handler) http.Handler { return next }
	}
	r.HandleFunc("/", h.handleForm).Methods("GET")
	r.Handle("/", guard(http.HandlerFunc(h.handleUpload))).Methods("POST")
}

func (h *PreviewHandler) basePage() PageData {
	data := PageData{MaxUploadMB: h.catalog.MaxUploadBytes() >> 20}
	if _, err := h.catalog.Service(); err != nil {
		data.ConfigError = configMessage(err)
	}
	return data
}

func (h *PreviewHandler) handleForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, h.basePage())
}

func (h *PreviewHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	logger := h.logger.With("request_id", requestID)
	data := h.basePage()

	svc, err := h.catalog.Service()
	if err != nil {
		logger.Error("❌ [Preview] Configuration error", "error", err)
		h.render(w, http.StatusInternalServerError, data)
		return
	}

	img, err := catalog.ReadUpload(r, "file", h.catalog.MaxUploadBytes())
	if err != nil {
		logger.Warn("⚠️  [Preview] Rejected upload", "error", err)
		data.GenerationError = err.Error()
		h.render(w, http.StatusBadRequest, data)
		return
	}

	info, err := svc.Generate(r.Context(), img.Data, img.MIMEType, func(stage string) {
		logger.Debug("🔄 [Preview] Pipeline stage", "stage", stage)
	})
	if err != nil {
		logger.Error("❌ [Preview] Generation failed", "error", err)
		status, _ := catalog.Classify(err)
		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) {
			data.ConfigError = configMessage(err)
		} else {
			data.GenerationError = err.Error()
		}
		h.render(w, status, data)
		return
	}

	raw, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		logger.Error("❌ [Preview] Failed to encode result", "error", err)
	}
	entry, err := json.MarshalIndent(info.CatalogInfo, "", "  ")
	if err != nil {
		logger.Error("❌ [Preview] Failed to encode catalog entry", "error", err)
	}

	data.Product = info
	data.AverageRating = info.ReviewsInfo.AverageRating()
	data.ImageURI = template.URL("data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data))
	data.RawJSON = string(raw)
	if len(entry) > 0 {
		data.DownloadURI = template.URL("data:application/json;charset=utf-8;base64," + base64.StdEncoding.EncodeToString(entry))
	}

	logger.Info("✅ [Preview] Product page rendered", "product", info.CatalogInfo.ProductName)
	h.render(w, http.StatusOK, data)
}

func (h *PreviewHandler) render(w http.ResponseWriter, status int, data PageData) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		h.logger.Error("❌ [Preview] Template execution failed", "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func configMessage(err error) string {
	var cfgErr *config.ConfigurationError
	if errors.As(err, &cfgErr) {
		return cfgErr.Err.Error()
	}
	return err.Error()
}

// stars - five-star bar for an int or float rating, rounded to the nearest star
func stars(rating any) template.HTML {
	var v float64
	switch r := rating.(type) {
	case int:
		v = float64(r)
	case float64:
		v = r
	}
	filled := int(math.Round(v))
	filled = max(0, min(5, filled))
	return template.HTML(strings.Repeat("★", filled) + `<span class="empty">` + strings.Repeat("☆", 5-filled) + `</span>`)
}
