package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pageturnhq/bookstore-backend/internal/cancellations"
	"github.com/pageturnhq/bookstore-backend/internal/orders"
	"github.com/pageturnhq/bookstore-backend/internal/payments"
	pkgauth "github.com/pageturnhq/bookstore-backend/pkg/auth"
	"github.com/pageturnhq/bookstore-backend/pkg/config"
	"github.com/pageturnhq/bookstore-backend/pkg/enums"
	"github.com/pageturnhq/bookstore-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubOrdersService struct{}

func (stubOrdersService) CreateOrder(ctx context.Context, input orders.CreateOrderInput) (*orders.OrderResponse, error) {
	panic("unimplemented")
}

func (stubOrdersService) GetOrder(ctx context.Context, input orders.GetOrderInput) (*orders.OrderResponse, error) {
	panic("unimplemented")
}

func (stubOrdersService) ListOrders(ctx context.Context, input orders.ListOrdersInput) (*orders.OrderList, error) {
	return &orders.OrderList{}, nil
}

func (stubOrdersService) CancelOrder(ctx context.Context, input orders.CancelOrderInput) (*orders.OrderResponse, error) {
	panic("unimplemented")
}

func (stubOrdersService) UpdateOrderStatus(ctx context.Context, input orders.UpdateOrderStatusInput) (*orders.OrderResponse, error) {
	panic("unimplemented")
}

type stubPaymentsService struct{}

func (stubPaymentsService) CreatePayment(ctx context.Context, input payments.CreatePaymentInput) (*payments.PaymentResponse, error) {
	panic("unimplemented")
}

func (stubPaymentsService) GetPayment(ctx context.Context, input payments.GetPaymentInput) (*payments.PaymentResponse, error) {
	panic("unimplemented")
}

func (stubPaymentsService) GetPaymentByOrder(ctx context.Context, input payments.GetPaymentByOrderInput) (*payments.PaymentResponse, error) {
	panic("unimplemented")
}

func (stubPaymentsService) ListPayments(ctx context.Context, input payments.ListPaymentsInput) (*payments.PaymentList, error) {
	return &payments.PaymentList{}, nil
}

func (stubPaymentsService) ApplyGatewayOutcome(ctx context.Context, input payments.CallbackInput) (*payments.PaymentResponse, error) {
	return &payments.PaymentResponse{TransactionID: input.TransactionID}, nil
}

func (stubPaymentsService) SimulateCallback(ctx context.Context, input payments.SimulateCallbackInput) (*payments.PaymentResponse, error) {
	panic("unimplemented")
}

func (stubPaymentsService) ConfirmPayment(ctx context.Context, input payments.ConfirmPaymentInput) (*payments.PaymentResponse, error) {
	panic("unimplemented")
}

func (stubPaymentsService) CancelPayment(ctx context.Context, input payments.CancelPaymentInput) (*payments.PaymentResponse, error) {
	panic("unimplemented")
}

func (stubPaymentsService) Refund(ctx context.Context, input payments.RefundInput) (*payments.PaymentResponse, error) {
	panic("unimplemented")
}

func (stubPaymentsService) CleanupExpiredPayments(ctx context.Context) (int, error) {
	return 0, nil
}

type stubStatsService struct{}

func (stubStatsService) Collect(ctx context.Context) (*payments.Statistics, error) {
	return &payments.Statistics{}, nil
}

type stubCancellationsService struct{}

func (stubCancellationsService) RequestCancellation(ctx context.Context, input cancellations.RequestCancellationInput) (*cancellations.CancelRequestResponse, error) {
	panic("unimplemented")
}

func (stubCancellationsService) Resolve(ctx context.Context, input cancellations.ResolveInput) (*cancellations.CancelRequestResponse, error) {
	panic("unimplemented")
}

func (stubCancellationsService) ListPending(ctx context.Context, input cancellations.ListPendingInput) (*cancellations.CancelRequestList, error) {
	return &cancellations.CancelRequestList{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "test-secret",
			Issuer:            "bookstore-test",
			ExpirationMinutes: 60,
		},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(RouterParams{
		Config:        cfg,
		Logger:        logg,
		DBPinger:      stubPinger{},
		RedisPinger:   stubPinger{},
		Orders:        stubOrdersService{},
		Payments:      stubPaymentsService{},
		PaymentStats:  stubStatsService{},
		Cancellations: stubCancellationsService{},
	})
}

func buildToken(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()

	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID:   uuid.New(),
		Username: "reader",
		Role:     role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLiveIsPublic(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestPrivateGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestPrivateGroupSucceedsWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleUser))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with token got %d", resp.Code)
	}
}

func TestAdminGroupRequiresAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	nonAdmin := httptest.NewRequest(http.MethodGet, "/api/admin/v1/payments/statistics", nil)
	nonAdmin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleUser))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, nonAdmin)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin got %d", resp.Code)
	}

	admin := httptest.NewRequest(http.MethodGet, "/api/admin/v1/payments/statistics", nil)
	admin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleAdmin))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d", resp.Code)
	}
}

func TestAdminCleanupRequiresAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/payments/cleanup-expired", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleUser))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin cleanup got %d", resp.Code)
	}
}

func TestCallbackIsPublic(t *testing.T) {
	router := newTestRouter(testConfig())

	body := `{"transaction_id":"TXN_1_ABCDEF01","success":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/callback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for callback got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCallbackRejectsBadJSON(t *testing.T) {
	router := newTestRouter(testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/callback", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed callback got %d", resp.Code)
	}
}
