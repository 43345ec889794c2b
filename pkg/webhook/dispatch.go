package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/saraivavision/clinic-gateway/pkg/observability"
	"github.com/saraivavision/clinic-gateway/pkg/signature"
	"go.uber.org/zap"
)

const (
	headerSignature       = "X-Webhook-Signature"
	headerStripeSignature = "Stripe-Signature"
	headerHubSignature    = "X-Hub-Signature-256"
)

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Dispatcher validates inbound webhook requests and delegates verified
// payloads to the endpoint's processor.
type Dispatcher struct {
	validator *signature.Validator
	auditor   *Auditor
	maxBody   int64
	log       *zap.Logger
}

func NewDispatcher(cfg Config, validator *signature.Validator, auditor *Auditor, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		validator: validator,
		auditor:   auditor,
		maxBody:   cfg.MaxBodyBytes,
		log:       log,
	}
}

// Handler builds the gin handler for one processor. The handler accepts any
// method so that method validation stays inside the dispatch pipeline.
func (d *Dispatcher) Handler(p Processor) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		body, status, errMsg := d.readBody(c)
		var payload map[string]any
		if errMsg == "" {
			if err := json.Unmarshal(body, &payload); err != nil {
				status, errMsg = http.StatusBadRequest, "JSON inválido"
			}
		}
		if errMsg == "" {
			status, errMsg = d.validate(c, p, body)
		}

		var data any
		if errMsg == "" {
			err := observability.TraceFunc(c.Request.Context(), "webhook.process."+p.Name(), func(ctx context.Context) error {
				var err error
				data, err = p.Process(ctx, payload)
				return err
			})
			if err != nil {
				status, errMsg = http.StatusInternalServerError, err.Error()
			}
		}

		d.auditor.Record(Entry{
			Webhook:     p.Name(),
			Method:      c.Request.Method,
			SourceIP:    clientIP(c),
			UserAgent:   c.Request.UserAgent(),
			ContentType: c.ContentType(),
			Success:     errMsg == "",
			Error:       errMsg,
			BodyBytes:   len(body),
			Duration:    time.Since(start),
		})

		if errMsg != "" {
			c.JSON(status, response{Success: false, Error: errMsg})
			return
		}
		c.JSON(http.StatusOK, response{Success: true, Message: "webhook processado", Data: data})
	}
}

// readBody extracts the raw body under the configured size ceiling. The
// ceiling is enforced before JSON parsing so oversized payloads never get
// buffered into the decoder.
func (d *Dispatcher) readBody(c *gin.Context) ([]byte, int, string) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, d.maxBody+1))
	if err != nil {
		return nil, http.StatusBadRequest, "falha ao ler o corpo da requisição"
	}
	if int64(len(body)) > d.maxBody {
		return nil, http.StatusBadRequest, "payload muito grande"
	}
	return body, 0, ""
}

func (d *Dispatcher) validate(c *gin.Context, p Processor, body []byte) (int, string) {
	if c.Request.Method != http.MethodPost {
		return http.StatusMethodNotAllowed, "método não permitido"
	}

	if ips := p.AllowedIPs(); len(ips) > 0 {
		ip := clientIP(c)
		allowed := false
		for _, candidate := range ips {
			if candidate == ip {
				allowed = true
				break
			}
		}
		if !allowed {
			d.log.Warn("webhook request from unauthorized IP",
				zap.String("webhook", p.Name()),
				zap.String("ip", ip))
			return http.StatusUnauthorized, "IP não autorizado"
		}
	}

	switch p.Kind() {
	case signature.KindNone:
		return 0, ""
	case signature.KindStripe:
		header := c.GetHeader(headerStripeSignature)
		if header == "" {
			return http.StatusBadRequest, "Assinatura ausente"
		}
		if !d.validator.ValidateStripe(string(body), header, p.Secret()) {
			return http.StatusUnauthorized, "Assinatura inválida"
		}
	default:
		header := c.GetHeader(headerSignature)
		if header != "" {
			if !d.validator.ValidateHMAC(string(body), header, p.Secret()) {
				return http.StatusUnauthorized, "Assinatura inválida"
			}
			return 0, ""
		}
		header = c.GetHeader(headerHubSignature)
		if header == "" {
			return http.StatusBadRequest, "Assinatura ausente"
		}
		if !d.validator.ValidateGitHub(string(body), header, p.Secret()) {
			return http.StatusUnauthorized, "Assinatura inválida"
		}
	}
	return 0, ""
}

// clientIP resolves the sender address. Proxy headers take precedence over
// the socket address; the leftmost X-Forwarded-For entry is the original
// client in a standard proxy chain.
func clientIP(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if real := c.GetHeader("X-Real-IP"); real != "" {
		return strings.TrimSpace(real)
	}
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return host
}
