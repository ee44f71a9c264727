package http

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/threadgate/threadgate/internal/domain/auth"
	"github.com/threadgate/threadgate/internal/domain/fault"
	"github.com/threadgate/threadgate/internal/domain/thread"
	"github.com/threadgate/threadgate/internal/port/outbound"
	"github.com/threadgate/threadgate/internal/service"
)

// API holds the route handlers and their dependencies.
type API struct {
	decoder       *auth.Decoder
	relay         *service.RelayService
	conversations *service.ConversationService
	admin         *service.AdminService
	beta          *service.BetaService
	validate      *validator.Validate
	metrics       *Metrics
	environment   string
	version       string
}

// NewAPI creates the handler set for the gateway routes.
func NewAPI(
	decoder *auth.Decoder,
	relay *service.RelayService,
	conversations *service.ConversationService,
	admin *service.AdminService,
	beta *service.BetaService,
	metrics *Metrics,
	environment, version string,
) *API {
	return &API{
		decoder:       decoder,
		relay:         relay,
		conversations: conversations,
		admin:         admin,
		beta:          beta,
		validate:      validator.New(),
		metrics:       metrics,
		environment:   environment,
		version:       version,
	}
}

// decodeJSON reads and validates a JSON request body into v.
func (a *API) decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fault.Validation("Invalid JSON body").With("cause", err.Error())
	}
	return a.validate.Struct(v)
}

func (a *API) handleRoot(w http.ResponseWriter, r *http.Request) error {
	respondJSON(w, http.StatusOK, map[string]string{
		"service":     "threadgate",
		"status":      "running",
		"environment": a.environment,
		"version":     a.version,
	})
	return nil
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) error {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": a.version,
	})
	return nil
}

// handleMe reports the verified caller's identity.
func (a *API) handleMe(w http.ResponseWriter, r *http.Request) error {
	identity := IdentityFromContext(r.Context())
	role := identity.CustomRole
	if role == "" {
		role = identity.Role
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"user_id":   identity.Subject,
		"email":     identity.Email,
		"user_role": role,
	})
	return nil
}

type checkUserRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (a *API) handleCheckUser(w http.ResponseWriter, r *http.Request) error {
	var req checkUserRequest
	if err := a.decodeJSON(r, &req); err != nil {
		return err
	}
	check, err := a.beta.CheckUser(r.Context(), req.Email)
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, check)
	return nil
}

type signupRequest struct {
	Email     string `json:"email" validate:"required,email"`
	UserAgent string `json:"user_agent" validate:"omitempty,max=512"`
	IPAddress string `json:"ip_address" validate:"omitempty,max=64"`
}

func (a *API) handleNonBetaRequest(w http.ResponseWriter, r *http.Request) error {
	var req signupRequest
	if err := a.decodeJSON(r, &req); err != nil {
		return err
	}
	if req.UserAgent == "" {
		req.UserAgent = r.UserAgent()
	}
	if req.IPAddress == "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			req.IPAddress = host
		}
	}
	message, err := a.beta.RecordInterest(r.Context(), signupFromRequest(req))
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": message,
	})
	return nil
}

func (a *API) handleCreateThread(w http.ResponseWriter, r *http.Request) error {
	identity := IdentityFromContext(r.Context())
	threadID, err := a.conversations.Create(r.Context(), identity)
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, map[string]string{"thread_id": threadID})
	return nil
}

func (a *API) handleGetThread(w http.ResponseWriter, r *http.Request) error {
	state, err := a.conversations.State(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	return writeRawJSON(w, state)
}

func (a *API) handleAdminListThreads(w http.ResponseWriter, r *http.Request) error {
	threads, err := a.admin.ListThreads(r.Context())
	if err != nil {
		return err
	}
	if threads == nil {
		threads = []thread.Thread{}
	}
	respondJSON(w, http.StatusOK, threads)
	return nil
}

func (a *API) handleAdminGetThread(w http.ResponseWriter, r *http.Request) error {
	state, err := a.admin.ThreadDetails(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	return writeRawJSON(w, state)
}

func (a *API) handleAdminDeleteThread(w http.ResponseWriter, r *http.Request) error {
	if err := a.admin.DeleteThread(r.Context(), r.PathValue("id")); err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Thread deleted",
	})
	return nil
}

func (a *API) handleAdminStats(w http.ResponseWriter, r *http.Request) error {
	stats, err := a.admin.Stats(r.Context())
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, stats)
	return nil
}

func signupFromRequest(req signupRequest) outbound.Signup {
	return outbound.Signup{
		Email:     req.Email,
		UserAgent: req.UserAgent,
		IPAddress: req.IPAddress,
	}
}

// writeRawJSON passes an upstream JSON document through untouched.
func writeRawJSON(w http.ResponseWriter, raw json.RawMessage) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
	return nil
}
