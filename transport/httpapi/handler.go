// Package httpapi exposes the inbound submission endpoint. The handler is
// synchronous only up to the lead store commit; channel delivery runs on the
// queue workers and never blocks the request.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net"
	"net/http"
	"net/mail"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-leads/core"
)

const defaultMaxBodyBytes int64 = 1 << 20

// Submitter is the slice of the lead service the endpoint needs.
type Submitter interface {
	Submit(ctx context.Context, req core.SubmitRequest) (core.SubmitResult, error)
}

type SubmissionHandler struct {
	Service  Submitter
	Settings core.SettingsProvider
	Logger   core.Logger

	// DefaultSiteID is used when the submission carries no site_id field,
	// e.g. single-tenant deployments mounting one handler per site.
	DefaultSiteID string
	MaxBodyBytes  int64
}

func NewSubmissionHandler(service Submitter, settings core.SettingsProvider) *SubmissionHandler {
	return &SubmissionHandler{
		Service:      service,
		Settings:     settings,
		Logger:       glog.Nop(),
		MaxBodyBytes: defaultMaxBodyBytes,
	}
}

type submissionResponse struct {
	Success bool              `json:"success"`
	LeadID  string            `json:"lead_id,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func (h *SubmissionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Service == nil {
		writeJSON(w, http.StatusInternalServerError, submissionResponse{
			Success: false,
			Errors:  map[string]string{"form": "submission service is unavailable"},
		})
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, submissionResponse{
			Success: false,
			Errors:  map[string]string{"method": "only POST is accepted"},
		})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes())
	fields, err := parseSubmissionFields(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, submissionResponse{
			Success: false,
			Errors:  map[string]string{"body": "request body could not be parsed"},
		})
		return
	}

	siteID := takeField(fields, "site_id")
	if siteID == "" {
		siteID = strings.TrimSpace(h.DefaultSiteID)
	}

	req := core.SubmitRequest{
		SiteID:   siteID,
		FormType: takeField(fields, "form_type"),
		ClientIP: clientIP(r),

		Name:    takeField(fields, "name"),
		Email:   takeField(fields, "email"),
		Phone:   takeField(fields, "phone"),
		Message: takeField(fields, "message"),

		TimingToken: takeField(fields, "_time_token"),

		UTMSource:      takeField(fields, "utm_source"),
		UTMMedium:      takeField(fields, "utm_medium"),
		UTMCampaign:    takeField(fields, "utm_campaign"),
		UTMTerm:        takeField(fields, "utm_term"),
		UTMContent:     takeField(fields, "utm_content"),
		LandingPageURL: takeField(fields, "landing_page_url"),
		PageURL:        takeField(fields, "page_url"),
		ReferrerURL:    takeField(fields, "referrer_url"),
	}

	if h.Settings != nil && req.SiteID != "" {
		settings, err := h.Settings.Settings(r.Context(), req.SiteID)
		if err != nil {
			h.logger().Error("httpapi: resolve site settings", "site_id", req.SiteID, "error", err)
			writeJSON(w, http.StatusInternalServerError, submissionResponse{
				Success: false,
				Errors:  map[string]string{"form": "submission could not be processed"},
			})
			return
		}
		if honeypot := strings.TrimSpace(settings.HoneypotField); honeypot != "" {
			if value, ok := fields[honeypot]; ok {
				req.HoneypotValue = value
				delete(fields, honeypot)
			}
		}
	}

	// Everything the form sent beyond the known fields is preserved verbatim.
	req.FormData = fields

	if errs := validateSubmission(req); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, submissionResponse{Success: false, Errors: errs})
		return
	}

	result, err := h.Service.Submit(r.Context(), req)
	if err != nil {
		status, errs := mapSubmitError(err)
		if status >= http.StatusInternalServerError {
			h.logger().Error("httpapi: submit lead", "site_id", req.SiteID, "error", err)
		}
		writeJSON(w, status, submissionResponse{Success: false, Errors: errs})
		return
	}

	writeJSON(w, http.StatusOK, submissionResponse{Success: true, LeadID: result.LeadID})
}

// mapSubmitError folds service errors into the wire contract. Spam rejections
// reuse the validation shape so automated clients cannot tell detection apart
// from a field error; only rate limiting gets a distinct status.
func mapSubmitError(err error) (int, map[string]string) {
	rich := core.DefaultErrorMapper(err)
	if rich == nil {
		return http.StatusInternalServerError, map[string]string{"form": "submission could not be processed"}
	}
	switch rich.TextCode {
	case core.LeadErrorRateLimited:
		return http.StatusTooManyRequests, map[string]string{"form": "too many submissions, retry later"}
	case core.LeadErrorSpamRejected:
		return http.StatusBadRequest, map[string]string{"form": "invalid submission"}
	}

	if fieldErrors := rich.AllValidationErrors(); len(fieldErrors) > 0 {
		errs := make(map[string]string, len(fieldErrors))
		for _, fieldErr := range fieldErrors {
			errs[fieldErr.Field] = fieldErr.Message
		}
		return http.StatusBadRequest, errs
	}
	if rich.Category == goerrors.CategoryBadInput || rich.Category == goerrors.CategoryValidation {
		return http.StatusBadRequest, map[string]string{"form": "invalid submission"}
	}
	return http.StatusInternalServerError, map[string]string{"form": "submission could not be processed"}
}

func validateSubmission(req core.SubmitRequest) map[string]string {
	errs := map[string]string{}
	if strings.TrimSpace(req.SiteID) == "" {
		errs["site_id"] = "site id is required"
	}
	if strings.TrimSpace(req.Name) == "" {
		errs["name"] = "name is required"
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		errs["email"] = "email is required"
	} else if _, err := mail.ParseAddress(email); err != nil {
		errs["email"] = "email is not a valid address"
	}
	if strings.TrimSpace(req.Message) == "" {
		errs["message"] = "message is required"
	}
	return errs
}

func parseSubmissionFields(r *http.Request) (map[string]string, error) {
	contentType := r.Header.Get("Content-Type")
	mediaType := ""
	if contentType != "" {
		parsed, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return nil, fmt.Errorf("httpapi: parse content type: %w", err)
		}
		mediaType = parsed
	}

	if mediaType == "application/json" {
		return decodeJSONFields(r)
	}
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("httpapi: parse form: %w", err)
	}
	fields := make(map[string]string, len(r.PostForm))
	for key, values := range r.PostForm {
		value := ""
		if len(values) > 0 {
			value = values[0]
		}
		fields[key] = value
	}
	return fields, nil
}

func decodeJSONFields(r *http.Request) (map[string]string, error) {
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	raw := map[string]any{}
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("httpapi: decode json body: %w", err)
	}
	fields := make(map[string]string, len(raw))
	for key, value := range raw {
		fields[key] = stringifyField(value)
	}
	return fields, nil
}

func stringifyField(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case json.Number:
		return typed.String()
	case bool:
		return strconv.FormatBool(typed)
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprint(typed)
		}
		return string(encoded)
	}
}

func takeField(fields map[string]string, key string) string {
	value, ok := fields[key]
	if !ok {
		return ""
	}
	delete(fields, key)
	return strings.TrimSpace(value)
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// connection's remote address.
func clientIP(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, payload submissionResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *SubmissionHandler) maxBodyBytes() int64 {
	if h != nil && h.MaxBodyBytes > 0 {
		return h.MaxBodyBytes
	}
	return defaultMaxBodyBytes
}

func (h *SubmissionHandler) logger() core.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return glog.Nop()
}

var _ http.Handler = (*SubmissionHandler)(nil)
