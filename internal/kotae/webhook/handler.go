// Package webhook implements the HTTP gateway adapter.
//
// A WhatsApp gateway (a QR-paired web client, or any other chat bridge that
// can make HTTP calls) forwards each inbound text message to
//
//	POST /webhook/messages
//	{"from": "15551234567", "text": "hi", "channel": "whatsapp"}
//
// and sends the "reply" field of the response back to the sender. The
// handler authenticates the caller (optional bearer token and/or
// HMAC-SHA256 signature), rate-limits per sender, and answers synchronously.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/bdobrica/kotae/common/spec/envelope"
	"github.com/bdobrica/kotae/common/trace"
	"github.com/bdobrica/kotae/internal/kotae/metrics"
	"github.com/bdobrica/kotae/internal/kotae/observability"
	"github.com/bdobrica/kotae/internal/kotae/responder"
)

// Path is the route the handler serves.
const Path = "/webhook/messages"

// DefaultRateLimit is the default number of messages accepted per sender
// per minute.
const DefaultRateLimit = 30

// maxBodyBytes caps request bodies. Chat messages are far smaller.
const maxBodyBytes = 64 * 1024

// SignatureHeader carries "sha256=<hex>" of the raw body.
const SignatureHeader = "X-Hub-Signature-256"

// TraceHeader lets the gateway propagate its own trace ID.
const TraceHeader = "X-Trace-Id"

var channelPattern = regexp.MustCompile(`^[a-z0-9_-]{1,32}$`)

// Responder is the part of *responder.Responder the handler needs.
type Responder interface {
	Respond(ctx context.Context, msg envelope.Message) responder.Result
}

// Config holds options for creating a Handler.
type Config struct {
	// Secret enables HMAC-SHA256 validation of the raw body when set.
	Secret string
	// Token enables "Authorization: Bearer <token>" validation when set.
	Token string
	// RateLimit is the number of messages accepted per sender per minute.
	// Zero uses DefaultRateLimit; negative disables limiting.
	RateLimit int
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Handler serves POST /webhook/messages.
type Handler struct {
	responder Responder
	secret    []byte
	token     string
	limiter   *rateLimiter
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

type inboundRequest struct {
	From    json.RawMessage `json:"from"`
	Text    json.RawMessage `json:"text"`
	Channel json.RawMessage `json:"channel"`
}

// Response is the JSON body returned for an accepted message.
type Response struct {
	Reply   string `json:"reply"`
	TraceID string `json:"trace_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New creates a Handler that answers messages with r.
func New(r Responder, cfg Config) *Handler {
	limit := cfg.RateLimit
	if limit == 0 {
		limit = DefaultRateLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	h := &Handler{
		responder: r,
		token:     cfg.Token,
		limiter:   newRateLimiter(limit, time.Minute),
		metrics:   cfg.Metrics,
		logger:    cfg.Logger.With("component", "webhook"),
	}
	if cfg.Secret != "" {
		h.secret = []byte(cfg.Secret)
	}
	return h
}

// RouteRegistrar is satisfied by *http.ServeMux and by app.HealthServer.
type RouteRegistrar interface {
	Handle(pattern string, handler http.Handler)
}

// RegisterRoutes mounts the handler on r.
func (h *Handler) RegisterRoutes(r RouteRegistrar) {
	r.Handle(Path, h)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.reject(w, "method", http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.reject(w, "too_large", http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		h.reject(w, "bad_request", http.StatusBadRequest, "failed to read request body")
		return
	}

	if h.token != "" && !validBearer(r.Header.Get("Authorization"), h.token) {
		h.reject(w, "unauthorized", http.StatusUnauthorized, "unauthorized")
		return
	}
	if h.secret != nil && !ValidateHMACSHA256(h.secret, body, r.Header.Get(SignatureHeader)) {
		h.reject(w, "signature", http.StatusUnauthorized, "invalid signature")
		return
	}

	msg, err := decodeMessage(body)
	if err != nil {
		h.logger.Info("webhook: malformed request", "err", err)
		h.reject(w, "bad_request", http.StatusBadRequest, err.Error())
		return
	}

	if !h.limiter.Allow(msg.SenderID) {
		h.logger.Info("webhook: rate limit exceeded", observability.Sender(msg.SenderID))
		h.reject(w, "rate_limit", http.StatusTooManyRequests, "too many requests")
		return
	}

	ctx := r.Context()
	if id := strings.TrimSpace(r.Header.Get(TraceHeader)); id != "" {
		ctx = trace.WithTraceID(ctx, id)
	}

	res := h.responder.Respond(ctx, msg)
	writeJSON(w, http.StatusOK, Response{Reply: res.Reply, TraceID: res.TraceID})
}

func (h *Handler) reject(w http.ResponseWriter, reason string, status int, msg string) {
	h.metrics.ObserveWebhookRejected(reason)
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeMessage parses the request body into an envelope. "from" may be a
// JSON string or number; "text" of any JSON type is coerced to a string.
func decodeMessage(body []byte) (envelope.Message, error) {
	var req inboundRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return envelope.Message{}, errors.New("invalid JSON body")
	}

	from := strings.TrimSpace(coerceText(req.From))
	if from == "" {
		return envelope.Message{}, errors.New(`"from" is required`)
	}

	channel := strings.ToLower(strings.TrimSpace(coerceText(req.Channel)))
	if !channelPattern.MatchString(channel) {
		channel = envelope.ChannelWebhook
	}

	msg := envelope.Message{
		Channel:    channel,
		SenderID:   from,
		Text:       coerceText(req.Text),
		ReceivedAt: time.Now().UTC(),
	}
	return msg, msg.Validate()
}

// coerceText turns a raw JSON value into message text: strings are decoded,
// null or absent becomes "", and anything else keeps its JSON spelling.
func coerceText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(trimmed)
}

func validBearer(header, token string) bool {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	got := strings.TrimSpace(header[len(prefix):])
	return subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1
}

// ValidateHMACSHA256 reports whether sigHeader ("sha256=<hex>") is the
// HMAC-SHA256 of body under secret. Comparison is constant-time.
func ValidateHMACSHA256(secret, body []byte, sigHeader string) bool {
	const prefix = "sha256="
	if !strings.HasPrefix(sigHeader, prefix) {
		return false
	}
	expected, err := hex.DecodeString(sigHeader[len(prefix):])
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}

// Sign returns the X-Hub-Signature-256 value for body. Gateways and tests
// use it to produce signed requests.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("webhook: failed to write response", "err", err)
	}
}
