package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/invopop/jsonschema"

	"pic2catalog-server/modules/common/config"
	"pic2catalog-server/modules/common/utils"
)

// WelcomeMessage - body of GET /api/info
const WelcomeMessage = "Welcome to the Pic2Catalog API"

// Error kinds reported in API error bodies
const (
	KindConfiguration = "configuration"
	KindGeneration    = "generation"
	KindUpload        = "upload"
)

// ErrMissingFile - multipart request without an image
var ErrMissingFile = errors.New("missing image file")

// HandlerOptions - dependencies of the HTTP layer
type HandlerOptions struct {
	// ConfigErr is reported on every generation request when set
	ConfigErr error
	// MaxUploadBytes caps the multipart body
	MaxUploadBytes int64
	// Guard wraps generation routes (rate limiting); nil means none
	Guard  func(http.Handler) http.Handler
	Logger *slog.Logger
}

// Handler - REST and WebSocket endpoints of the catalog pipeline
type Handler struct {
	svc       *Service
	configErr error
	maxUpload int64
	guard     func(http.Handler) http.Handler
	logger    *slog.Logger
}

// ErrorResponse - JSON error body
type ErrorResponse struct {
	Detail    string `json:"detail"`
	Kind      string `json:"kind"`
	RequestID string `json:"request_id,omitempty"`
}

func NewHandler(svc *Service, opts HandlerOptions) *Handler {
	h := &Handler{
		svc:       svc,
		configErr: opts.ConfigErr,
		maxUpload: opts.MaxUploadBytes,
		guard:     opts.Guard,
		logger:    opts.Logger,
	}
	if h.maxUpload <= 0 {
		h.maxUpload = 10 << 20
	}
	if h.guard == nil {
		h.guard = func(next http.Handler) http.Handler { return next }
	}
	if h.logger == nil {
		h.logger = slog.New(slog.DiscardHandler)
	}
	if h.svc == nil && h.configErr == nil {
		h.configErr = &config.ConfigurationError{Setting: "GEMINI_BACKEND", Err: errors.New("generation backend not initialized")}
	}
	return h
}

// RegisterRoutes wires the catalog endpoints.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.Handle("/generate_catalog", h.guard(http.HandlerFunc(h.handleGenerate))).Methods("POST", "OPTIONS")
	r.Handle("/ws/catalog", h.guard(http.HandlerFunc(h.handleStream)))
	r.HandleFunc("/api/info", h.handleInfo).Methods("GET")
	r.HandleFunc("/api/schema", h.handleSchema).Methods("GET")
}

// Service - nil when the server started without a usable configuration
func (h *Handler) Service() (*Service, error) {
	if h.configErr != nil {
		return nil, h.configErr
	}
	return h.svc, nil
}

// MaxUploadBytes - upload cap shared with the HTML form
func (h *Handler) MaxUploadBytes() int64 { return h.maxUpload }

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	requestID := uuid.NewString()
	logger := h.logger.With("request_id", requestID)

	svc, err := h.Service()
	if err != nil {
		logger.Error("❌ [Catalog API] Configuration error", "error", err)
		writeError(w, requestID, err)
		return
	}

	img, err := ReadUpload(r, "file", h.maxUpload)
	if err != nil {
		logger.Warn("⚠️  [Catalog API] Rejected upload", "error", err)
		writeError(w, requestID, err)
		return
	}

	logger.Info("📸 [Catalog API] Generating product info",
		"mime_type", img.MIMEType, "bytes", len(img.Data), "width", img.Width, "height", img.Height)

	info, err := svc.Generate(r.Context(), img.Data, img.MIMEType, nil)
	if err != nil {
		logger.Error("❌ [Catalog API] Generation failed", "error", err)
		writeError(w, requestID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	if err := json.NewEncoder(w).Encode(info); err != nil {
		logger.Error("❌ [Catalog API] Failed to encode response", "error", err)
	}
}

func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": WelcomeMessage})
}

func (h *Handler) handleSchema(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/schema+json")
	json.NewEncoder(w).Encode(ResponseJSONSchema())
}

// ResponseJSONSchema - JSON Schema of the POST /generate_catalog body
func ResponseJSONSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(&ProductInfo{})
}

// ReadUpload - reads and validates the image in a multipart field
func ReadUpload(r *http.Request, field string, maxBytes int64) (*utils.Image, error) {
	// multipart framing on top of the image itself
	r.Body = http.MaxBytesReader(nil, r.Body, maxBytes+1<<20)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, fmt.Errorf("%w (%d MB)", utils.ErrImageTooLarge, maxBytes>>20)
		}
		return nil, fmt.Errorf("%w: %v", ErrMissingFile, err)
	}

	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingFile, err)
	}
	defer file.Close()

	return utils.ReadImage(file, maxBytes)
}

// Classify - HTTP status and error kind for a pipeline error
func Classify(err error) (int, string) {
	var cfgErr *config.ConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError, KindConfiguration
	case errors.Is(err, ErrMissingFile),
		errors.Is(err, utils.ErrInvalidImage),
		errors.Is(err, utils.ErrImageTooLarge):
		return http.StatusBadRequest, KindUpload
	default:
		return http.StatusBadGateway, KindGeneration
	}
}

// ErrorDetail - user-facing message for a pipeline error
func ErrorDetail(err error) string {
	var cfgErr *config.ConfigurationError
	if errors.As(err, &cfgErr) {
		return cfgErr.Err.Error()
	}
	if _, kind := Classify(err); kind == KindUpload {
		return err.Error()
	}
	return fmt.Sprintf("Error processing image: %v", err)
}

func writeError(w http.ResponseWriter, requestID string, err error) {
	status, kind := Classify(err)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Detail:    ErrorDetail(err),
		Kind:      kind,
		RequestID: requestID,
	})
}
