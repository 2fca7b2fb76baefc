package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGateway_CreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/orders" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "rzp_test_key" || pass != "secret" {
			t.Errorf("basic auth = %q/%q/%v", user, pass, ok)
		}

		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["amount"] != float64(49900) || body["currency"] != "INR" || body["receipt"] != "sem-1" {
			t.Errorf("body = %v", body)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"order_9A33XWu170gUtm","amount":49900,"currency":"INR","receipt":"sem-1","status":"created"}`))
	}))
	defer srv.Close()

	gw := NewGateway(GatewayConfig{BaseURL: srv.URL, KeyID: "rzp_test_key", KeySecret: "secret"})
	order, err := gw.CreateOrder(context.Background(), 49900, "INR", "sem-1")
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.ID != "order_9A33XWu170gUtm" || order.Amount != 49900 {
		t.Errorf("order = %+v", order)
	}
}

func TestGateway_FetchPaymentErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"server error", http.StatusBadGateway, ErrGatewayUnavailable},
		{"bad credentials", http.StatusUnauthorized, ErrGatewayUnavailable},
		{"rate limited", http.StatusTooManyRequests, ErrGatewayUnavailable},
		{"unknown payment", http.StatusBadRequest, ErrGatewayRejected},
		{"not found", http.StatusNotFound, ErrGatewayRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"nope"}}`))
			}))
			defer srv.Close()

			gw := NewGateway(GatewayConfig{BaseURL: srv.URL, KeyID: "k", KeySecret: "s"})
			_, err := gw.FetchPayment(context.Background(), "pay_1")
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGateway_FetchPaymentTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	gw := NewGateway(GatewayConfig{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	_, err := gw.FetchPayment(context.Background(), "pay_1")
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("err = %v, want ErrGatewayUnavailable", err)
	}
}

func TestGateway_FetchPaymentKeepsRaw(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/pay_29QQoUBi66xm2f" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"id":"pay_29QQoUBi66xm2f","order_id":"order_1","amount":49900,"currency":"INR","status":"captured","captured":true}`))
	}))
	defer srv.Close()

	gw := NewGateway(GatewayConfig{BaseURL: srv.URL})
	p, err := gw.FetchPayment(context.Background(), "pay_29QQoUBi66xm2f")
	if err != nil {
		t.Fatalf("FetchPayment: %v", err)
	}
	if p.Status != "captured" || p.OrderID != "order_1" || len(p.Raw) == 0 {
		t.Errorf("payment = %+v", p)
	}
}
