package handlers

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/AnshRaj112/usedgoods-backend/internal/config"
	"github.com/AnshRaj112/usedgoods-backend/internal/database"
	"github.com/AnshRaj112/usedgoods-backend/internal/httpx"
	"github.com/AnshRaj112/usedgoods-backend/internal/services"
	"github.com/AnshRaj112/usedgoods-backend/internal/validation"
)

// APIError is an error with the status and message the client should see.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

func apiError(status int, msg string) *APIError {
	return &APIError{Status: status, Message: msg}
}

// Deps is everything the handlers need. Redis, History and Images may be nil.
type Deps struct {
	Config   *config.Config
	Logger   *zap.Logger
	DB       *database.DB
	Redis    *redis.Client
	Tokens   *services.TokenIssuer
	Users    *services.UserService
	Sessions *services.SessionService
	Attempts *services.LoginAttemptService
	Products *services.ProductService
	Cart     *services.CartService
	History  services.SearchRecorder
	Images   services.ImageStore
	Uploads  services.UploadPolicy
}

type Handler struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *database.DB
	redis    *redis.Client
	tokens   *services.TokenIssuer
	users    *services.UserService
	sessions *services.SessionService
	attempts *services.LoginAttemptService
	products *services.ProductService
	cart     *services.CartService
	history  services.SearchRecorder
	images   services.ImageStore
	uploads  services.UploadPolicy
}

func New(d Deps) *Handler {
	return &Handler{
		cfg:      d.Config,
		logger:   d.Logger,
		db:       d.DB,
		redis:    d.Redis,
		tokens:   d.Tokens,
		users:    d.Users,
		sessions: d.Sessions,
		attempts: d.Attempts,
		products: d.Products,
		cart:     d.Cart,
		history:  d.History,
		images:   d.Images,
		uploads:  d.Uploads,
	}
}

// Handle adapts a handler that returns an error. It is the single place
// where errors become responses.
func (h *Handler) Handle(fn func(w http.ResponseWriter, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			h.writeError(w, r, err)
		}
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		apiErr    *APIError
		fieldErrs validation.Errors
		uploadErr *services.UploadError
		tooLarge  *http.MaxBytesError
	)
	switch {
	case errors.As(err, &apiErr):
		httpx.Error(w, r, apiErr.Status, apiErr.Message)
	case errors.As(err, &fieldErrs):
		httpx.Invalid(w, r, fieldErrs)
	case errors.As(err, &uploadErr):
		httpx.Error(w, r, http.StatusBadRequest, uploadErr.Message)
	case errors.As(err, &tooLarge):
		httpx.Error(w, r, http.StatusRequestEntityTooLarge, "request body too large")
	case errors.Is(err, services.ErrEmailTaken), errors.Is(err, services.ErrUsernameTaken),
		errors.Is(err, services.ErrProductUnavailable), errors.Is(err, services.ErrOwnProduct),
		errors.Is(err, services.ErrInvalidQuantity):
		httpx.Error(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrWrongPassword):
		httpx.Error(w, r, http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrForbidden):
		httpx.Error(w, r, http.StatusForbidden, "access denied")
	case errors.Is(err, services.ErrNotFound):
		httpx.Error(w, r, http.StatusNotFound, "resource not found")
	case database.IsUniqueViolation(err):
		httpx.Error(w, r, http.StatusConflict, "resource already exists")
	default:
		h.logger.Error("request failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))
		env := httpx.Envelope{Success: false, Message: "internal server error"}
		if !h.cfg.IsProduction() {
			env.Message = err.Error()
			env.Stack = string(debug.Stack())
		}
		httpx.JSON(w, r, http.StatusInternalServerError, env)
	}
}

// NotFound answers unmatched routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	httpx.Error(w, r, http.StatusNotFound, "route not found")
}

func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	httpx.Error(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
