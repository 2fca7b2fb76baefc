package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/farellandr/ticketgate/internal/apperr"
	"github.com/farellandr/ticketgate/internal/auth"
	"github.com/farellandr/ticketgate/internal/checkin"
	"github.com/farellandr/ticketgate/internal/events"
	"github.com/farellandr/ticketgate/internal/helpers"
	"github.com/farellandr/ticketgate/internal/models"
	"github.com/farellandr/ticketgate/internal/payments"
	"github.com/farellandr/ticketgate/internal/registrations"
	"github.com/farellandr/ticketgate/internal/storage"
	"github.com/farellandr/ticketgate/internal/ticket"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := helpers.RegisterValidations(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type mockIssuer struct {
	IssuePaidFunc func(ctx context.Context, req ticket.PaidRequest) (*ticket.Result, error)
	IssueFreeFunc func(ctx context.Context, req ticket.FreeRequest) (*ticket.Result, error)
	ResendFunc    func(ctx context.Context, id uint64) (*ticket.Fulfillment, error)
}

func (m *mockIssuer) IssuePaid(ctx context.Context, req ticket.PaidRequest) (*ticket.Result, error) {
	return m.IssuePaidFunc(ctx, req)
}

func (m *mockIssuer) IssueFree(ctx context.Context, req ticket.FreeRequest) (*ticket.Result, error) {
	return m.IssueFreeFunc(ctx, req)
}

func (m *mockIssuer) Resend(ctx context.Context, id uint64) (*ticket.Fulfillment, error) {
	return m.ResendFunc(ctx, id)
}

func (m *mockIssuer) QRLink(reg *models.Registration) string {
	return "https://tickets.example/files/" + reg.RegistrationCode + ".png"
}

func (m *mockIssuer) QRImage(reg *models.Registration) ([]byte, error) {
	return []byte("\x89PNG-" + reg.RegistrationCode), nil
}

type mockRegistrations struct {
	rows map[string]*models.Registration
}

func (m *mockRegistrations) Get(_ context.Context, id uint64) (*models.Registration, error) {
	for _, r := range m.rows {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (m *mockRegistrations) GetByCode(_ context.Context, code string) (*models.Registration, error) {
	if r, ok := m.rows[code]; ok {
		return r, nil
	}
	return nil, apperr.ErrNotFound
}

func (m *mockRegistrations) Search(context.Context, registrations.SearchQuery) ([]models.Registration, error) {
	out := []models.Registration{}
	for _, r := range m.rows {
		out = append(out, *r)
	}
	return out, nil
}

func (m *mockRegistrations) StatsByEvent(context.Context) ([]registrations.EventStats, error) {
	return nil, nil
}

func (m *mockRegistrations) Ping(context.Context) error { return nil }

type mockGate struct {
	result *checkin.Result
	err    error
	got    checkin.Scan
	by     string
}

func (m *mockGate) CheckIn(_ context.Context, scan checkin.Scan, operator string) (*checkin.Result, error) {
	m.got, m.by = scan, operator
	return m.result, m.err
}

type mockOrders struct {
	err error
}

func (m *mockOrders) CreateOrder(_ context.Context, req payments.OrderRequest) (*payments.OrderResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &payments.OrderResult{
		Order:            payments.Order{ID: "order_1", Amount: req.AmountMinor, Currency: "INR"},
		GatewayPublicKey: "rzp_test_key",
	}, nil
}

type mockOperators struct{}

func (mockOperators) Authenticate(_ context.Context, email, password string) (*models.Operator, error) {
	if password != "correct-horse" {
		return nil, apperr.ErrUnauthorized
	}
	return &models.Operator{Email: email}, nil
}

type fixedTokens struct{}

func (fixedTokens) Issue(email string) (string, time.Time, error) {
	return "token-for-" + email, time.Unix(1700000000, 0).UTC(), nil
}

type denyAll struct{}

func (denyAll) Authorize(string, string, string) error { return storage.ErrInvalidSignature }

type mockEvents struct {
	upserted map[string]events.Patch
}

func (m *mockEvents) Get(_ context.Context, slug string) (*models.Event, error) {
	if slug == "hidden" {
		return &models.Event{Slug: slug}, nil
	}
	return nil, apperr.ErrNotFound
}

func (m *mockEvents) List(context.Context, events.ListOptions) ([]models.Event, error) {
	return []models.Event{{Slug: "friday-seminar", Active: true}}, nil
}

func (m *mockEvents) Upsert(_ context.Context, slug string, patch events.Patch) (*models.Event, error) {
	if m.upserted == nil {
		m.upserted = map[string]events.Patch{}
	}
	m.upserted[slug] = patch
	return &models.Event{Slug: slug, Active: true}, nil
}

func (m *mockEvents) SetImage(_ context.Context, slug, url string) (*models.Event, error) {
	return &models.Event{Slug: slug, ImageURL: url}, nil
}

func newTestRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if op := c.GetHeader("X-Test-Operator"); op != "" {
			c.Set("operator_email", op)
		}
	})
	r.POST("/v1/orders", h.CreateOrder)
	r.POST("/v1/registrations/verify", h.VerifyPayment)
	r.POST("/v1/registrations/free", h.RegisterFree)
	r.GET("/v1/tickets", h.GetTicket)
	r.GET("/v1/tickets/qr.png", h.GetTicketQR)
	r.POST("/v1/admin/checkin", h.CheckIn)
	r.POST("/v1/auth/login", h.Login)
	r.GET("/v1/events", h.ListEvents)
	r.GET("/v1/events/:slug", h.GetEvent)
	r.PUT("/v1/ops/events/:slug", h.UpsertEvent)
	r.POST("/v1/admin/registrations/:id/resend", h.ResendTicket)
	r.GET("/files/*path", h.ServeFile)
	return r
}

func do(t *testing.T, r http.Handler, method, target string, body any, headers ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s: %v", w.Body.String(), err)
		}
	}
	return w, out
}

func sampleRow() *models.Registration {
	return &models.Registration{ID: 7, RegistrationCode: "SEM-ABCD2345", EventSlug: "friday-seminar", StudentName: "Asha"}
}

func TestVerifyPayment(t *testing.T) {
	validBody := map[string]any{
		"gatewayOrderId":   "order_1",
		"gatewayPaymentId": "pay_1",
		"signature":        "abc",
		"registrant":       map[string]any{"name": "Asha", "email": "asha@example.com", "eventSlug": "friday-seminar"},
	}

	tests := []struct {
		name       string
		body       any
		issueErr   error
		wantStatus int
		wantOK     bool
	}{
		{"success", validBody, nil, http.StatusOK, true},
		{"rejected signature", validBody, fmt.Errorf("%w: signature mismatch", apperr.ErrPaymentRejected), http.StatusPaymentRequired, false},
		{"gateway down", validBody, fmt.Errorf("%w: timeout", apperr.ErrVerificationUnavailable), http.StatusServiceUnavailable, false},
		{"internal error masked", validBody, fmt.Errorf("db exploded"), http.StatusInternalServerError, false},
		{"missing payment id", map[string]any{"gatewayOrderId": "order_1", "signature": "abc", "registrant": validBody["registrant"]}, nil, http.StatusBadRequest, false},
		{"bad email", map[string]any{
			"gatewayOrderId": "order_1", "gatewayPaymentId": "pay_1", "signature": "abc",
			"registrant": map[string]any{"name": "Asha", "email": "nope"},
		}, nil, http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got ticket.PaidRequest
			issuer := &mockIssuer{IssuePaidFunc: func(_ context.Context, req ticket.PaidRequest) (*ticket.Result, error) {
				got = req
				if tt.issueErr != nil {
					return nil, tt.issueErr
				}
				return &ticket.Result{Registration: sampleRow(), Created: true}, nil
			}}
			r := newTestRouter(New(Deps{Issuer: issuer, Log: zerolog.Nop()}))

			w, body := do(t, r, http.MethodPost, "/v1/registrations/verify", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if body["ok"] != tt.wantOK {
				t.Errorf("ok = %v, want %v", body["ok"], tt.wantOK)
			}
			if tt.wantOK {
				if body["registrationCode"] != "SEM-ABCD2345" || body["id"] != float64(7) {
					t.Errorf("unexpected body %v", body)
				}
				if got.EventSlug != "friday-seminar" || got.Registrant.Email != "asha@example.com" {
					t.Errorf("request not forwarded: %+v", got)
				}
			}
			if tt.name == "internal error masked" && body["error"] == "db exploded" {
				t.Error("internal error text leaked")
			}
		})
	}
}

func TestRegisterFree(t *testing.T) {
	issuer := &mockIssuer{IssueFreeFunc: func(_ context.Context, req ticket.FreeRequest) (*ticket.Result, error) {
		if req.EventSlug != "open-day" {
			return nil, fmt.Errorf("%w: event requires payment", apperr.ErrValidation)
		}
		return &ticket.Result{Registration: sampleRow()}, nil
	}}
	r := newTestRouter(New(Deps{Issuer: issuer, Log: zerolog.Nop()}))

	w, body := do(t, r, http.MethodPost, "/v1/registrations/free", map[string]any{
		"eventSlug":  "open-day",
		"registrant": map[string]any{"name": "Asha", "email": "asha@example.com"},
	})
	if w.Code != http.StatusOK || body["ok"] != true || body["created"] != false {
		t.Fatalf("got %d %v", w.Code, body)
	}

	w, body = do(t, r, http.MethodPost, "/v1/registrations/free", map[string]any{
		"eventSlug":  "paid-talk",
		"registrant": map[string]any{"name": "Asha", "email": "asha@example.com"},
	})
	if w.Code != http.StatusBadRequest || body["ok"] != false {
		t.Fatalf("got %d %v", w.Code, body)
	}

	w, _ = do(t, r, http.MethodPost, "/v1/registrations/free", map[string]any{
		"eventSlug":  "Not A Slug",
		"registrant": map[string]any{"name": "Asha", "email": "asha@example.com"},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestCheckIn(t *testing.T) {
	tests := []struct {
		name        string
		status      checkin.Status
		wantCode    int
		wantAlready any
	}{
		{"first scan", checkin.StatusSuccess, http.StatusOK, false},
		{"second scan", checkin.StatusAlreadyUsed, http.StatusOK, true},
		{"other event", checkin.StatusWrongEvent, http.StatusConflict, nil},
		{"unknown", checkin.StatusNotFound, http.StatusNotFound, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := &mockGate{result: &checkin.Result{Status: tt.status, Registration: sampleRow()}}
			r := newTestRouter(New(Deps{Gate: gate, Log: zerolog.Nop()}))

			w, body := do(t, r, http.MethodPost, "/v1/admin/checkin",
				map[string]any{"code": "SEM-ABCD2345", "eventSlug": "friday-seminar"},
				"X-Test-Operator", "door@example.com")
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if body["already"] != tt.wantAlready {
				t.Errorf("already = %v, want %v", body["already"], tt.wantAlready)
			}
			if tt.status == checkin.StatusWrongEvent && body["wrongEvent"] != true {
				t.Errorf("wrongEvent flag missing: %v", body)
			}
			if gate.by != "door@example.com" || gate.got.Code != "SEM-ABCD2345" {
				t.Errorf("gate saw %+v by %q", gate.got, gate.by)
			}
		})
	}
}

func TestCheckIn_Payload(t *testing.T) {
	gate := &mockGate{result: &checkin.Result{Status: checkin.StatusSuccess, Registration: sampleRow()}}
	r := newTestRouter(New(Deps{Gate: gate, Log: zerolog.Nop()}))

	w, _ := do(t, r, http.MethodPost, "/v1/admin/checkin", map[string]any{"payload": `{"id":7,"code":"SEM-ABCD2345"}`})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if gate.got.ID != 7 || gate.got.Code != "SEM-ABCD2345" {
		t.Errorf("gate saw %+v", gate.got)
	}

	w, _ = do(t, r, http.MethodPost, "/v1/admin/checkin", map[string]any{"payload": "not a ticket"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unreadable payload status = %d, want 400", w.Code)
	}
}

func TestGetTicket(t *testing.T) {
	regs := &mockRegistrations{rows: map[string]*models.Registration{"SEM-ABCD2345": sampleRow()}}
	r := newTestRouter(New(Deps{Registrations: regs, Issuer: &mockIssuer{}, Log: zerolog.Nop()}))

	w, body := do(t, r, http.MethodGet, "/v1/tickets?code=sem-abcd2345&id=7", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}
	tk := body["ticket"].(map[string]any)
	if tk["qrUrl"] != "https://tickets.example/files/SEM-ABCD2345.png" {
		t.Errorf("qrUrl = %v", tk["qrUrl"])
	}

	if w, _ := do(t, r, http.MethodGet, "/v1/tickets?code=SEM-ABCD2345&id=8", nil); w.Code != http.StatusNotFound {
		t.Errorf("mismatched id status = %d, want 404", w.Code)
	}
	if w, _ := do(t, r, http.MethodGet, "/v1/tickets", nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing code status = %d, want 400", w.Code)
	}
	if w, _ := do(t, r, http.MethodGet, "/v1/tickets?id=7", nil); w.Code != http.StatusBadRequest {
		t.Errorf("id without code status = %d, want 400", w.Code)
	}

	w, _ = do(t, r, http.MethodGet, "/v1/tickets/qr.png?code=SEM-ABCD2345", nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/png" {
		t.Errorf("qr image: %d %s", w.Code, w.Header().Get("Content-Type"))
	}
}

func TestCreateOrder(t *testing.T) {
	r := newTestRouter(New(Deps{Orders: &mockOrders{}, Log: zerolog.Nop()}))
	w, body := do(t, r, http.MethodPost, "/v1/orders", map[string]any{"amountMinorUnits": 19900})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body["gatewayPublicKey"] != "rzp_test_key" {
		t.Errorf("body = %v", body)
	}

	r = newTestRouter(New(Deps{Orders: &mockOrders{err: fmt.Errorf("%w: 503", apperr.ErrOrderCreation)}, Log: zerolog.Nop()}))
	if w, _ := do(t, r, http.MethodPost, "/v1/orders", map[string]any{"amountMinorUnits": 19900}); w.Code != http.StatusBadGateway {
		t.Errorf("gateway failure status = %d, want 502", w.Code)
	}
}

func TestLogin(t *testing.T) {
	h := New(Deps{
		Operators: mockOperators{},
		Tokens:    fixedTokens{},
		Admins:    auth.ParseAllowList("boss@example.com"),
		Managers:  auth.ParseAllowList("boss@example.com,ops@example.com"),
		Log:       zerolog.Nop(),
	})
	r := newTestRouter(h)

	w, body := do(t, r, http.MethodPost, "/v1/auth/login", map[string]any{"email": "boss@example.com", "password": "correct-horse"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	roles := body["roles"].([]any)
	if len(roles) != 2 || body["token"] != "token-for-boss@example.com" {
		t.Errorf("body = %v", body)
	}

	w, _ = do(t, r, http.MethodPost, "/v1/auth/login", map[string]any{"email": "boss@example.com", "password": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestEvents(t *testing.T) {
	ev := &mockEvents{}
	r := newTestRouter(New(Deps{Events: ev, Log: zerolog.Nop()}))

	if w, body := do(t, r, http.MethodGet, "/v1/events", nil); w.Code != http.StatusOK || len(body["events"].([]any)) != 1 {
		t.Errorf("list: %d %v", w.Code, body)
	}
	if w, _ := do(t, r, http.MethodGet, "/v1/events/hidden", nil); w.Code != http.StatusNotFound {
		t.Errorf("inactive event status = %d, want 404", w.Code)
	}

	w, _ := do(t, r, http.MethodPut, "/v1/ops/events/open-day", map[string]any{"name": "Open Day", "priceMinorUnits": 0})
	if w.Code != http.StatusOK {
		t.Fatalf("upsert status = %d (%s)", w.Code, w.Body.String())
	}
	patch := ev.upserted["open-day"]
	if patch.Name == nil || *patch.Name != "Open Day" || patch.PriceMinor == nil || patch.Active != nil {
		t.Errorf("patch = %+v", patch)
	}

	if w, _ := do(t, r, http.MethodPut, "/v1/ops/events/Bad_Slug", map[string]any{"name": "x"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad slug status = %d", w.Code)
	}
	if w, _ := do(t, r, http.MethodPut, "/v1/ops/events/open-day", map[string]any{"priceMinorUnits": -5}); w.Code != http.StatusBadRequest {
		t.Errorf("negative price status = %d", w.Code)
	}
}

func TestResendTicket(t *testing.T) {
	issuer := &mockIssuer{ResendFunc: func(_ context.Context, id uint64) (*ticket.Fulfillment, error) {
		if id != 7 {
			return nil, apperr.ErrNotFound
		}
		return &ticket.Fulfillment{Registration: sampleRow(), QRIssued: true, EmailErr: fmt.Errorf("%w: 500", apperr.ErrEmail)}, nil
	}}
	r := newTestRouter(New(Deps{Issuer: issuer, Log: zerolog.Nop()}))

	w, body := do(t, r, http.MethodPost, "/v1/admin/registrations/7/resend", nil)
	if w.Code != http.StatusOK || body["ok"] != false || body["emailError"] == nil {
		t.Errorf("partial failure: %d %v", w.Code, body)
	}
	if w, _ := do(t, r, http.MethodPost, "/v1/admin/registrations/9/resend", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown row status = %d", w.Code)
	}
	if w, _ := do(t, r, http.MethodPost, "/v1/admin/registrations/abc/resend", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", w.Code)
	}
}

func TestServeFile(t *testing.T) {
	bucket, err := storage.NewDiskBucket(t.TempDir(), storage.NewSigner("https://tickets.example", "secret"))
	if err != nil {
		t.Fatal(err)
	}
	png := []byte("\x89PNG\r\n\x1a\n0000")
	if err := bucket.Put(context.Background(), "events/open-day/cover.png", png, "image/png"); err != nil {
		t.Fatal(err)
	}

	r := newTestRouter(New(Deps{Bucket: bucket, Files: storage.NewSigner("", "secret"), Log: zerolog.Nop()}))
	if w, _ := do(t, r, http.MethodGet, "/files/events/open-day/cover.png", nil); w.Code != http.StatusOK {
		t.Errorf("public object status = %d", w.Code)
	}
	if w, _ := do(t, r, http.MethodGet, "/files/events/open-day/missing.png", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing object status = %d", w.Code)
	}

	r = newTestRouter(New(Deps{Bucket: bucket, Files: denyAll{}, Log: zerolog.Nop()}))
	if w, _ := do(t, r, http.MethodGet, "/files/registrations/2026/SEM-1.png", nil); w.Code != http.StatusForbidden {
		t.Errorf("unsigned object status = %d", w.Code)
	}
}
