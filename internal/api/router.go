package api

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/quorumhq/quorum/internal/middleware"
	"github.com/quorumhq/quorum/internal/models"
	"github.com/quorumhq/quorum/internal/obs"
	"github.com/quorumhq/quorum/internal/services"
)

// Router wires the domain services to HTTP. Handlers stay thin: decode,
// delegate, encode.
type Router struct {
	OTP         *services.OTPService
	Admin       *services.AdminService
	Questions   *services.QuestionService
	Submissions *services.SubmissionService
	Export      *services.ExportService
	Mode        *services.ModeService
}

func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/auth/request-code", rt.handleRequestCode)    // POST
	mux.HandleFunc("/api/auth/verify", rt.handleVerifyCode)           // POST
	mux.HandleFunc("/api/admin/login", rt.handleAdminLogin)           // POST
	mux.HandleFunc("/api/questions", rt.handleQuestions)              // GET (participant)
	mux.HandleFunc("/api/responses", rt.handleSubmit)                 // POST (participant)
	mux.Handle("/api/admin/invitations", middleware.RequireAdmin(http.HandlerFunc(rt.handleInvitations)))
	mux.Handle("/api/admin/invitations/block", middleware.RequireAdmin(http.HandlerFunc(rt.handleBlock)))
	mux.Handle("/api/admin/invitations/unblock", middleware.RequireAdmin(http.HandlerFunc(rt.handleUnblock)))
	mux.Handle("/api/admin/export", middleware.RequireAdmin(http.HandlerFunc(rt.handleExport)))
	mux.Handle("/api/admin/audit", middleware.RequireAdmin(http.HandlerFunc(rt.handleAudit)))
	mux.Handle("/api/admin/mode/restricted", middleware.RequireAdmin(http.HandlerFunc(rt.handleRestrictedMode)))
	mux.Handle("/api/admin/mode", middleware.RequireAdmin(http.HandlerFunc(rt.handleMode)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a service error onto an HTTP status. Expected auth and
// rate-limit failures are not logged; unexpected failures are.
func writeError(w http.ResponseWriter, err error) {
	se, ok := services.AsServiceError(err)
	if !ok {
		log.Printf("api: internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		return
	}
	status := http.StatusInternalServerError
	switch se.Code {
	case services.ErrorInvalid:
		status = http.StatusBadRequest
	case services.ErrorUnauthorized:
		status = http.StatusUnauthorized
	case services.ErrorForbidden:
		status = http.StatusForbidden
	case services.ErrorNotFound:
		status = http.StatusNotFound
	case services.ErrorConflict:
		status = http.StatusConflict
	case services.ErrorTooManyRequests:
		status = http.StatusTooManyRequests
	case services.ErrorInternal:
		log.Printf("api: internal error: %v", se.Message)
	}
	body := map[string]any{"error": se.Message, "code": string(se.Code)}
	if se.Kind != "" {
		body["kind"] = string(se.Kind)
	}
	writeJSON(w, status, body)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// POST /api/auth/request-code
func (rt *Router) handleRequestCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err := rt.OTP.RequestCode(r.Context(), req.Email, clientIP(r))
	rt.setQuotaHeaders(r.Context(), w, req.Email)
	if err != nil {
		obs.CountCodeRequest(outcomeOf(err))
		writeError(w, err)
		return
	}
	obs.CountCodeRequest("ok")
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/auth/verify
func (rt *Router) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Email   string `json:"email"`
		Code    string `json:"code"`
		Consent bool   `json:"consent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	session, err := rt.OTP.VerifyCode(r.Context(), req.Email, req.Code, req.Consent)
	if err != nil {
		obs.CountCodeValidation(outcomeOf(err))
		writeError(w, err)
		return
	}
	obs.CountCodeValidation("ok")
	writeJSON(w, http.StatusOK, map[string]any{"token": session.Token, "group": session.Group})
}

func outcomeOf(err error) string {
	if se, ok := services.AsServiceError(err); ok {
		if se.Kind != "" {
			return string(se.Kind)
		}
		return string(se.Code)
	}
	return "internal"
}

func (rt *Router) setQuotaHeaders(ctx context.Context, w http.ResponseWriter, email string) {
	remaining, resetAt := rt.OTP.RequestQuota(ctx, email)
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !resetAt.IsZero() {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
	}
}

// POST /api/admin/login
func (rt *Router) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	session, err := rt.Admin.Login(req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": session.Token, "name": session.Name, "role": session.Role})
}

// GET /api/questions; the group comes from the participant token.
func (rt *Router) handleQuestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	c, ok := middleware.ClaimsFromContext(r.Context())
	if !ok || c.Kind != middleware.KindParticipant {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	qs, err := rt.Questions.ListQuestions(models.StakeholderGroup(c.Group))
	if err != nil {
		writeError(w, err)
		return
	}
	type outQuestion struct {
		ID       string   `json:"id"`
		Text     string   `json:"text"`
		Type     string   `json:"type"`
		Options  []string `json:"options,omitempty"`
		Required bool     `json:"required"`
	}
	out := make([]outQuestion, 0, len(qs))
	for _, q := range qs {
		out = append(out, outQuestion{ID: q.ID, Text: q.Text, Type: q.Type, Options: q.Options, Required: q.Required})
	}
	writeJSON(w, http.StatusOK, map[string]any{"group": c.Group, "questions": out})
}

// POST /api/responses
func (rt *Router) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	c, ok := middleware.ClaimsFromContext(r.Context())
	if !ok || c.Kind != middleware.KindParticipant {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req struct {
		Answers []models.Answer `json:"answers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sub, err := rt.Submissions.Submit(c.Email, req.Answers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "submission_id": sub.ID, "count": len(sub.Answers)})
}

// GET/POST /api/admin/invitations
func (rt *Router) handleInvitations(w http.ResponseWriter, r *http.Request) {
	c, _ := middleware.ClaimsFromContext(r.Context())
	switch r.Method {
	case http.MethodGet:
		invs, err := rt.Admin.ListInvitations()
		if err != nil {
			writeError(w, err)
			return
		}
		type outInvitation struct {
			Email     string     `json:"email"`
			Group     string     `json:"group"`
			Consented bool       `json:"consented"`
			Completed bool       `json:"completed"`
			Blocked   bool       `json:"blocked"`
			Reason    string     `json:"block_reason,omitempty"`
			CreatedAt time.Time  `json:"created_at"`
			BlockedAt *time.Time `json:"blocked_at,omitempty"`
		}
		out := make([]outInvitation, 0, len(invs))
		for _, inv := range invs {
			out = append(out, outInvitation{
				Email: inv.Email, Group: string(inv.Group),
				Consented: inv.Consented, Completed: inv.Completed,
				Blocked: inv.Blocked, Reason: inv.BlockReason,
				CreatedAt: inv.CreatedAt, BlockedAt: inv.BlockedAt,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"invitations": out})
	case http.MethodPost:
		var req struct {
			Email string `json:"email"`
			Group string `json:"group"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		inv, err := rt.Admin.CreateInvitation(c.Email, req.Email, models.StakeholderGroup(req.Group))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"email": inv.Email, "group": inv.Group})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// POST /api/admin/invitations/block
func (rt *Router) handleBlock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	c, _ := middleware.ClaimsFromContext(r.Context())
	var req struct {
		Email  string `json:"email"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := rt.Admin.BlockInvitation(c.Email, req.Email, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/admin/invitations/unblock
func (rt *Router) handleUnblock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	c, _ := middleware.ClaimsFromContext(r.Context())
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := rt.Admin.UnblockInvitation(c.Email, req.Email); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/admin/export?format=long|wide&group=...
func (rt *Router) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	c, _ := middleware.ClaimsFromContext(r.Context())
	res, err := rt.Export.ExportCSV(c.Email, services.ExportParams{
		Format: r.URL.Query().Get("format"),
		Group:  r.URL.Query().Get("group"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+res.Filename)
	_, _ = w.Write(res.Data)
}

// GET /api/admin/audit?limit=N
func (rt *Router) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := rt.Admin.RecentAudit(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	type outEntry struct {
		Time   time.Time `json:"time"`
		Actor  string    `json:"actor"`
		Action string    `json:"action"`
		Target string    `json:"target,omitempty"`
		Note   string    `json:"note,omitempty"`
	}
	out := make([]outEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, outEntry{Time: e.Time, Actor: e.Actor, Action: e.Action, Target: e.Target, Note: e.Note})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

// POST /api/admin/mode/restricted
func (rt *Router) handleRestrictedMode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	c, _ := middleware.ClaimsFromContext(r.Context())
	var req struct {
		Confirm string `json:"confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := rt.Mode.ActivateRestrictedMode(c.Email, req.Confirm); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "restricted": true})
}

// GET /api/admin/mode
func (rt *Router) handleMode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	mode, err := rt.Mode.Mode()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"restricted":   mode.Restricted,
		"activated_by": mode.ActivatedBy,
		"activated_at": mode.ActivatedAt,
	})
}
