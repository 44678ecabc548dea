package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/careerforge/careerforge/internal/analytics"
	"github.com/careerforge/careerforge/internal/betagate"
	"github.com/careerforge/careerforge/internal/billing"
	"github.com/careerforge/careerforge/internal/entitlement"
	"github.com/careerforge/careerforge/internal/export"
	"github.com/careerforge/careerforge/internal/tailor"
	"github.com/careerforge/careerforge/internal/usage"
	"github.com/rs/zerolog/log"
)

// handleBetaValidate checks a submitted invite code against the configured
// allow-list and master code.
func (d *Deps) handleBetaValidate(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	ok, err := d.Gate.Validate(req.Code)
	if errors.Is(err, betagate.ErrNotConfigured) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"ok":    false,
			"error": "beta access not configured: set BETA_INVITE_CODES or BETA_MASTER_CODE",
		})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "internal error"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"ok": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleProStatus reports the entitlement flag for a device.
func (d *Deps) handleProStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	deviceID := strings.TrimSpace(r.URL.Query().Get("deviceId"))
	if deviceID == "" {
		writeError(w, http.StatusBadRequest, "missing deviceId parameter")
		return
	}

	isPro := entitlement.ProStatusOrFalse(r.Context(), d.Store, deviceID)
	writeJSON(w, http.StatusOK, map[string]bool{"isPro": isPro})
}

// handleCheckout creates a Stripe Checkout Session for the device.
func (d *Deps) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req struct {
		DeviceID string `json:"deviceId"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID == "" {
		writeError(w, http.StatusBadRequest, "missing deviceId")
		return
	}

	url, err := d.Billing.CheckoutSession(r.Context(), deviceID)
	if errors.Is(err, billing.ErrNotConfigured) {
		writeError(w, http.StatusInternalServerError, "billing not configured: set STRIPE_SECRET_KEY and STRIPE_PRICE_ID_PRO")
		return
	}
	if errors.Is(err, billing.ErrNoOrigin) {
		writeError(w, http.StatusInternalServerError, "billing not configured: set APP_BASE_URL")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create checkout session")
		return
	}

	d.track(deviceID, "checkout_started", nil)
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// handlePortal creates a billing-portal session for the device's customer.
func (d *Deps) handlePortal(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req struct {
		DeviceID string `json:"deviceId"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID == "" {
		writeError(w, http.StatusBadRequest, "missing deviceId")
		return
	}

	url, err := d.Billing.PortalSession(r.Context(), deviceID)
	if errors.Is(err, billing.ErrNoCustomer) {
		writeError(w, http.StatusNotFound, "customer_not_found")
		return
	}
	if errors.Is(err, billing.ErrNotConfigured) {
		writeError(w, http.StatusInternalServerError, "billing not configured: set STRIPE_SECRET_KEY")
		return
	}
	if errors.Is(err, billing.ErrNoOrigin) {
		writeError(w, http.StatusInternalServerError, "billing not configured: set APP_BASE_URL")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create portal session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// handleGenerate runs the full four-section tailoring pass.
func (d *Deps) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req struct {
		ResumeText string `json:"resumeText"`
		JobText    string `json:"jobText"`
		DeviceID   string `json:"deviceId"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ResumeText) == "" || strings.TrimSpace(req.JobText) == "" {
		writeError(w, http.StatusBadRequest, "missing resumeText or jobText")
		return
	}

	deviceID := strings.TrimSpace(req.DeviceID)
	if !d.allowUsage(r.Context(), w, deviceID, usage.OpGenerate) {
		return
	}

	result, err := d.Tailor.Generate(r.Context(), req.ResumeText, req.JobText)
	if err != nil {
		var malformed *tailor.MalformedResponseError
		if errors.As(err, &malformed) {
			log.Error().Err(err).Msg("generation produced incomplete sections")
			writeError(w, http.StatusInternalServerError, "provider returned an incomplete response, please retry")
			return
		}
		log.Error().Err(err).Msg("generation failed")
		writeError(w, http.StatusInternalServerError, "generation failed")
		return
	}

	d.track(deviceID, "generation_completed", nil)
	writeJSON(w, http.StatusOK, result)
}

// handleRefine regenerates a single section under a user instruction.
func (d *Deps) handleRefine(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req struct {
		OutputType  string `json:"outputType"`
		CurrentText string `json:"currentText"`
		Instruction string `json:"instruction"`
		ResumeText  string `json:"resumeText"`
		JobText     string `json:"jobText"`
		DeviceID    string `json:"deviceId"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if !tailor.ValidSectionKind(req.OutputType) {
		writeError(w, http.StatusBadRequest, "invalid outputType")
		return
	}
	if strings.TrimSpace(req.Instruction) == "" || strings.TrimSpace(req.CurrentText) == "" {
		writeError(w, http.StatusBadRequest, "missing instruction or currentText")
		return
	}

	deviceID := strings.TrimSpace(req.DeviceID)
	if !d.allowUsage(r.Context(), w, deviceID, usage.OpRefine) {
		return
	}

	refined, err := d.Tailor.Refine(r.Context(), tailor.RefineInput{
		Kind:        tailor.SectionKind(req.OutputType),
		CurrentText: req.CurrentText,
		Instruction: req.Instruction,
		ResumeText:  req.ResumeText,
		JobText:     req.JobText,
	})
	if errors.Is(err, tailor.ErrEmptyResponse) {
		writeError(w, http.StatusInternalServerError, "provider returned an empty response, please retry")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("output_type", req.OutputType).Msg("refinement failed")
		writeError(w, http.StatusInternalServerError, "refinement failed")
		return
	}

	d.track(deviceID, "refinement_completed", map[string]any{"outputType": req.OutputType})
	writeJSON(w, http.StatusOK, map[string]string{"refinedText": refined})
}

// handleExportPDF renders a section as a downloadable PDF. Pro only.
func (d *Deps) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req struct {
		Filename string `json:"filename"`
		Title    string `json:"title"`
		Content  string `json:"content"`
		DeviceID string `json:"deviceId"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID == "" {
		writeError(w, http.StatusBadRequest, "missing deviceId")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "missing content")
		return
	}

	if !entitlement.ProStatusOrFalse(r.Context(), d.Store, deviceID) {
		writeError(w, http.StatusForbidden, "pro_required")
		return
	}

	pdf, err := d.Exporter.Generate(req.Title, req.Content)
	if err != nil {
		log.Error().Err(err).Msg("PDF generation failed")
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		filename = export.Filename(req.Title)
	}
	if !strings.HasSuffix(filename, ".pdf") {
		filename += ".pdf"
	}

	d.track(deviceID, "export_completed", map[string]any{"title": req.Title})

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

// handleModels lists the models available to the configured provider key.
func (d *Deps) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	models, err := d.Provider.ListModels(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("model listing failed")
		writeError(w, http.StatusBadGateway, "failed to list models")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

// handleDebugStore is an admin probe into the entitlement backend.
func (d *Deps) handleDebugStore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	deviceID := strings.TrimSpace(r.URL.Query().Get("deviceId"))
	if deviceID == "" {
		writeError(w, http.StatusBadRequest, "missing deviceId parameter")
		return
	}

	isPro, err := d.Store.ProStatus(r.Context(), deviceID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store read failed")
		return
	}
	customerID, err := d.Store.CustomerID(r.Context(), deviceID)
	if err != nil && !errors.Is(err, entitlement.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "store read failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"deviceId":   deviceID,
		"isPro":      isPro,
		"customerId": customerID,
	})
}

// allowUsage applies the free-tier daily limit. Pro devices bypass it, as
// does a request without a device ID (the client always sends one; the
// limit is advisory, not a security boundary). Writes the 429 response
// itself when denied.
func (d *Deps) allowUsage(ctx context.Context, w http.ResponseWriter, deviceID string, op usage.Op) bool {
	if deviceID == "" {
		return true
	}
	if entitlement.ProStatusOrFalse(ctx, d.Store, deviceID) {
		return true
	}

	decision := usage.AllowOrFailOpen(ctx, d.Limiter, deviceID, op)
	if !decision.Allowed {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":     "limit_reached",
			"limit":     decision.Limit,
			"remaining": 0,
		})
		return false
	}
	return true
}

// track captures an analytics event without blocking the request.
func (d *Deps) track(deviceID, name string, props map[string]any) {
	if d.Tracker == nil || deviceID == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.Tracker.Capture(ctx, analytics.Event{
			Name:       name,
			DistinctID: deviceID,
			Properties: props,
		}); err != nil {
			log.Debug().Err(err).Str("event", name).Msg("analytics capture failed")
		}
	}()
}
