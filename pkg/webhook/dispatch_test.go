package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/saraivavision/clinic-gateway/pkg/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "webhook-test-secret"

type fakeProcessor struct {
	name       string
	kind       signature.Kind
	allowedIPs []string
	processErr error
	received   map[string]any
}

func (p *fakeProcessor) Name() string         { return p.name }
func (p *fakeProcessor) Kind() signature.Kind { return p.kind }
func (p *fakeProcessor) Secret() string       { return testSecret }
func (p *fakeProcessor) AllowedIPs() []string { return p.allowedIPs }

func (p *fakeProcessor) Process(_ context.Context, payload map[string]any) (any, error) {
	p.received = payload
	if p.processErr != nil {
		return nil, p.processErr
	}
	return map[string]any{"processed": true}, nil
}

type fakeEnqueuer struct {
	calls []string
}

func (e *fakeEnqueuer) Enqueue(_ context.Context, messageType, recipient, _ string, _ map[string]any) (string, error) {
	e.calls = append(e.calls, messageType+":"+recipient)
	return "msg-1", nil
}

func newTestRouter(t *testing.T, p Processor) (*gin.Engine, *Auditor) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := Config{}
	cfg.setDefaults()
	auditor := NewAuditor(cfg, zap.NewNop())
	dispatcher := NewDispatcher(cfg, signature.NewValidator(), auditor, zap.NewNop())

	engine := gin.New()
	engine.Any("/webhooks/"+p.Name(), dispatcher.Handler(p))
	return engine, auditor
}

func postSigned(engine *gin.Engine, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestValidHMACSignatureSucceeds(t *testing.T) {
	proc := &fakeProcessor{name: "test", kind: signature.KindHMAC}
	engine, _ := newTestRouter(t, proc)

	body := `{"event":"appointment.created","data":{"id":"a1"}}`
	rec := postSigned(engine, "/webhooks/test", body, map[string]string{
		"X-Webhook-Signature": signature.Sign(body, testSecret),
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "appointment.created", proc.received["event"])
}

func TestTamperedBodyRejected(t *testing.T) {
	proc := &fakeProcessor{name: "test", kind: signature.KindHMAC}
	engine, _ := newTestRouter(t, proc)

	body := `{"event":"appointment.created","data":{"id":"a1"}}`
	sig := signature.Sign(body, testSecret)
	rec := postSigned(engine, "/webhooks/test", body+" ", map[string]string{
		"X-Webhook-Signature": sig,
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeResponse(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "Assinatura inválida", resp.Error)
	assert.Nil(t, proc.received)
}

func TestMissingSignatureIsBadRequest(t *testing.T) {
	proc := &fakeProcessor{name: "test", kind: signature.KindHMAC}
	engine, _ := newTestRouter(t, proc)

	rec := postSigned(engine, "/webhooks/test", `{"event":"x"}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, proc.received)
}

func TestGitHubSignatureHeaderAccepted(t *testing.T) {
	proc := &fakeProcessor{name: "test", kind: signature.KindHMAC}
	engine, _ := newTestRouter(t, proc)

	body := `{"ref":"refs/heads/main"}`
	rec := postSigned(engine, "/webhooks/test", body, map[string]string{
		"X-Hub-Signature-256": "sha256=" + signature.Sign(body, testSecret),
	})

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStripeSignatureAccepted(t *testing.T) {
	proc := &fakeProcessor{name: "test", kind: signature.KindStripe}
	engine, _ := newTestRouter(t, proc)

	body := `{"type":"checkout.session.completed"}`
	ts := fmt.Sprintf("%d", time.Now().Unix())
	header := "t=" + ts + ",v1=" + signature.Sign(ts+"."+body, testSecret)

	rec := postSigned(engine, "/webhooks/test", body, map[string]string{
		"Stripe-Signature": header,
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = postSigned(engine, "/webhooks/test", body, map[string]string{
		"Stripe-Signature": "t=" + ts + ",v1=deadbeef",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNonPostMethodRejected(t *testing.T) {
	proc := &fakeProcessor{name: "test", kind: signature.KindNone}
	engine, _ := newTestRouter(t, proc)

	req := httptest.NewRequest(http.MethodGet, "/webhooks/test", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMalformedJSONRejected(t *testing.T) {
	proc := &fakeProcessor{name: "test", kind: signature.KindNone}
	engine, _ := newTestRouter(t, proc)

	rec := postSigned(engine, "/webhooks/test", `{"broken`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	assert.False(t, resp.Success)
}

func TestOversizedBodyRejectedBeforeParsing(t *testing.T) {
	proc := &fakeProcessor{name: "test", kind: signature.KindNone}
	gin.SetMode(gin.TestMode)

	cfg := Config{MaxBodyBytes: 64}
	cfg.setDefaults()
	auditor := NewAuditor(cfg, zap.NewNop())
	dispatcher := NewDispatcher(cfg, signature.NewValidator(), auditor, zap.NewNop())
	engine := gin.New()
	engine.Any("/webhooks/test", dispatcher.Handler(proc))

	body := `{"padding":"` + strings.Repeat("x", 100) + `"}`
	rec := postSigned(engine, "/webhooks/test", body, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, proc.received)
}

func TestIPAllowlist(t *testing.T) {
	proc := &fakeProcessor{name: "test", kind: signature.KindNone, allowedIPs: []string{"10.0.0.5"}}
	engine, _ := newTestRouter(t, proc)

	rec := postSigned(engine, "/webhooks/test", `{}`, map[string]string{
		"X-Forwarded-For": "10.0.0.5, 172.16.0.1",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = postSigned(engine, "/webhooks/test", `{}`, map[string]string{
		"X-Forwarded-For": "192.168.1.1",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postSigned(engine, "/webhooks/test", `{}`, map[string]string{
		"X-Real-IP": "10.0.0.5",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProcessErrorBecomesInternalError(t *testing.T) {
	proc := &fakeProcessor{name: "test", kind: signature.KindNone, processErr: errors.New("boom")}
	engine, _ := newTestRouter(t, proc)

	rec := postSigned(engine, "/webhooks/test", `{}`, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "boom", resp.Error)
}

func TestAppointmentProcessorQueuesConfirmation(t *testing.T) {
	enq := &fakeEnqueuer{}
	cfg := Config{Endpoints: map[string]EndpointConfig{"appointment": {Secret: testSecret}}}
	proc := NewAppointmentProcessor(cfg, enq, zap.NewNop())

	result, err := proc.Process(context.Background(), map[string]any{
		"event": "appointment.created",
		"data": map[string]any{
			"id":           "a1",
			"patientEmail": "pessoa@example.com",
		},
	})
	require.NoError(t, err)

	data, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, data["processed"])
	assert.Equal(t, "a1", data["appointmentId"])
	assert.Equal(t, []string{"email:pessoa@example.com"}, enq.calls)
}
