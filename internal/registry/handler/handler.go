package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tckt/internal/registry"
	"tckt/internal/registry/tracer"
	"tckt/pkg/domain"
	"tckt/pkg/platform/httputil"
	"tckt/pkg/platform/middleware/request"
	"tckt/pkg/platform/middleware/requesttime"
	"tckt/pkg/platform/validation"
)

// Service defines the registry operations used by handlers.
type Service interface {
	DefaultChain() domain.ChainID
	ResolveHandle(ctx context.Context, addr domain.Address) (domain.Handle, error)
	HandleOf(ctx context.Context, chainID domain.ChainID, addr domain.Address) (domain.Handle, error)
	ExposureReported(ctx context.Context, chainID domain.ChainID, addr domain.Address) (uint64, error)
	ExposureReportedAt(ctx context.Context, reportID domain.ReportID) (time.Time, error)
	LastRevokeTimestamp(ctx context.Context, addr domain.Address) (time.Time, error)
	CheckSigners(ctx context.Context, signers []domain.Address, at time.Time) (registry.SignerTally, error)
}

// Handler serves registry lookups over HTTP.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates a new registry handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the handler routes on the given router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/addresses/{address}/handle", h.HandleResolveHandle)
		r.Get("/addresses/{address}/revocation", h.HandleRevocation)
		r.Get("/chains/{chainID}/addresses/{address}/handle", h.HandleHandleOf)
		r.Get("/chains/{chainID}/addresses/{address}/exposure", h.HandleExposure)
		r.Get("/exposure-reports/{reportID}", h.HandleExposureReport)
		r.Post("/signers/check", h.HandleCheckSigners)
	})
}

// HandleResponse is the response body for handle lookups.
type HandleResponse struct {
	ChainID string `json:"chain_id"`
	Address string `json:"address"`
	Handle  string `json:"handle"`
}

// ExposureResponse is the response body for exposure count lookups.
type ExposureResponse struct {
	ChainID       string `json:"chain_id"`
	Address       string `json:"address"`
	ExposureCount uint64 `json:"exposure_count"`
}

// RevocationResponse is the response body for revocation lookups.
type RevocationResponse struct {
	Address       string `json:"address"`
	Revoked       bool   `json:"revoked"`
	LastRevokedAt string `json:"last_revoked_at,omitempty"`
}

// ExposureReportResponse is the response body for exposure report lookups.
type ExposureReportResponse struct {
	ReportID   string `json:"report_id"`
	Reported   bool   `json:"reported"`
	ReportedAt string `json:"reported_at,omitempty"`
}

// SignerCheckRequest is the request body for signer checks. Timestamp is a
// unix time in seconds; zero means the request time.
type SignerCheckRequest struct {
	Signers   []string `json:"signers" validate:"required,min=1,dive,eth_addr"`
	Timestamp int64    `json:"timestamp,omitempty" validate:"gte=0"`

	parsed []domain.Address
}

// Validate bounds the batch size before checking each signer address.
func (r *SignerCheckRequest) Validate() error {
	if err := validation.CheckSliceCount("signers", len(r.Signers), validation.MaxSigners); err != nil {
		return err
	}
	if err := validation.Validate(r); err != nil {
		return err
	}
	r.parsed = make([]domain.Address, len(r.Signers))
	for i, s := range r.Signers {
		addr, err := domain.ParseAddress(s)
		if err != nil {
			return err
		}
		r.parsed[i] = addr
	}
	return nil
}

// SignerResult is one signer in a signer check response.
type SignerResult struct {
	Address string `json:"address"`
	Valid   bool   `json:"valid"`
	StartTs uint64 `json:"start_ts"`
	EndTs   uint64 `json:"end_ts"`
	Deposit uint64 `json:"deposit"`
}

// SignerCheckResponse is the response body for signer checks.
type SignerCheckResponse struct {
	Timestamp    int64          `json:"timestamp"`
	ValidCount   int            `json:"valid_count"`
	TotalDeposit uint64         `json:"total_deposit"`
	CountNeeded  uint64         `json:"count_needed"`
	StakeNeeded  uint64         `json:"stake_needed"`
	Sufficient   bool           `json:"sufficient"`
	Shortfalls   []string       `json:"shortfalls"`
	Signers      []SignerResult `json:"signers"`
}

// HandleResolveHandle handles GET /v1/addresses/{address}/handle.
func (h *Handler) HandleResolveHandle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	addr, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	handle, err := h.service.ResolveHandle(ctx, addr)
	if err != nil {
		h.writeLookupError(ctx, w, "handle lookup failed", err, addr)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, HandleResponse{
		ChainID: h.service.DefaultChain().String(),
		Address: addr.Hex(),
		Handle:  handle.Hex(),
	})
}

// HandleHandleOf handles GET /v1/chains/{chainID}/addresses/{address}/handle.
func (h *Handler) HandleHandleOf(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chainID, addr, err := parseChainAddress(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	handle, err := h.service.HandleOf(ctx, chainID, addr)
	if err != nil {
		h.writeLookupError(ctx, w, "handle lookup failed", err, addr)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, HandleResponse{
		ChainID: chainID.String(),
		Address: addr.Hex(),
		Handle:  handle.Hex(),
	})
}

// HandleExposure handles GET /v1/chains/{chainID}/addresses/{address}/exposure.
func (h *Handler) HandleExposure(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chainID, addr, err := parseChainAddress(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	count, err := h.service.ExposureReported(ctx, chainID, addr)
	if err != nil {
		h.writeLookupError(ctx, w, "exposure lookup failed", err, addr)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ExposureResponse{
		ChainID:       chainID.String(),
		Address:       addr.Hex(),
		ExposureCount: count,
	})
}

// HandleRevocation handles GET /v1/addresses/{address}/revocation.
func (h *Handler) HandleRevocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	addr, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	at, err := h.service.LastRevokeTimestamp(ctx, addr)
	if err != nil {
		h.writeLookupError(ctx, w, "revocation lookup failed", err, addr)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RevocationResponse{
		Address:       addr.Hex(),
		Revoked:       !at.IsZero(),
		LastRevokedAt: formatTime(at),
	})
}

// HandleExposureReport handles GET /v1/exposure-reports/{reportID}.
func (h *Handler) HandleExposureReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw := chi.URLParam(r, "reportID")
	if err := validation.CheckStringLength("report_id", raw, validation.MaxHexArgLength); err != nil {
		httputil.WriteError(w, err)
		return
	}
	reportID, err := domain.ParseReportID(raw)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	at, err := h.service.ExposureReportedAt(ctx, reportID)
	if err != nil {
		h.writeLookupError(ctx, w, "exposure report lookup failed", err, domain.Address{})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ExposureReportResponse{
		ReportID:   reportID.Hex(),
		Reported:   !at.IsZero(),
		ReportedAt: formatTime(at),
	})
}

// HandleCheckSigners handles POST /v1/signers/check.
func (h *Handler) HandleCheckSigners(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SignerCheckRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	at := requesttime.Now(ctx)
	if req.Timestamp > 0 {
		at = time.Unix(req.Timestamp, 0)
	}

	tally, err := h.service.CheckSigners(ctx, req.parsed, at)
	if err != nil {
		h.writeLookupError(ctx, w, "signer check failed", err, domain.Address{})
		return
	}

	response := SignerCheckResponse{
		Timestamp:    tally.At.Unix(),
		ValidCount:   tally.ValidCount,
		TotalDeposit: tally.TotalDeposit,
		CountNeeded:  tally.CountNeeded,
		StakeNeeded:  tally.StakeNeeded,
		Sufficient:   tally.Sufficient(),
		Shortfalls:   make([]string, len(tally.Shortfalls)),
		Signers:      make([]SignerResult, len(tally.Signers)),
	}
	for i, f := range tally.Shortfalls {
		response.Shortfalls[i] = string(f)
	}
	for i, s := range tally.Signers {
		response.Signers[i] = SignerResult{
			Address: s.Address.Hex(),
			Valid:   s.Valid,
			StartTs: s.Info.StartTs,
			EndTs:   s.Info.EndTs,
			Deposit: s.Info.Deposit,
		}
	}
	httputil.WriteJSON(w, http.StatusOK, response)
}

// writeLookupError logs service failures except unbound handles, then writes
// the translated error.
func (h *Handler) writeLookupError(ctx context.Context, w http.ResponseWriter, msg string, err error, addr domain.Address) {
	if !errors.Is(err, registry.ErrHandleNotFound) {
		attrs := []any{
			"request_id", request.GetRequestID(ctx),
			"error", err,
		}
		if !addr.IsZero() {
			attrs = append(attrs, "address", tracer.ShortAddress(addr))
		}
		h.logger.ErrorContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}

func parseChainAddress(r *http.Request) (domain.ChainID, domain.Address, error) {
	chainID, err := domain.ParseChainID(chi.URLParam(r, "chainID"))
	if err != nil {
		return 0, domain.Address{}, err
	}
	addr, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		return 0, domain.Address{}, err
	}
	return chainID, addr, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
