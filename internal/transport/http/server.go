package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/qakkaio/qakka/internal/facade"
	"github.com/qakkaio/qakka/internal/message"
	"github.com/qakkaio/qakka/internal/metrics"
	"github.com/qakkaio/qakka/internal/queueregistry"
	"github.com/qakkaio/qakka/pkg/log"
	"github.com/qakkaio/qakka/pkg/qerrors"
	"github.com/qakkaio/qakka/pkg/timeid"
)

// Server exposes the facade over HTTP: the inbound cross-region forward
// endpoint plus the admin/CLI surface cmd/qakka drives, grounded on the
// teacher's api/router.go (n0rdy-forq) for route shape and error
// envelope style.
type Server struct {
	facade  *facade.Facade
	metrics *metrics.Metrics
	logger  log.Logger
}

// NewServer constructs a Server. m may be nil to skip registering /metrics.
func NewServer(f *facade.Facade, m *metrics.Metrics, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewLogger(log.WithLevel(log.InfoLevel))
	}
	return &Server{facade: f, metrics: m, logger: logger.WithComponent("http")}
}

// Router builds the chi mux, wrapped in otelhttp so every request carries
// a span, matching nuetzliches-hookaido's wrapTracingHandler pattern.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.healthz)
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/regions/{region}/forward", func(r chi.Router) {
			r.Post("/", s.forward)
		})

		r.Route("/queues", func(r chi.Router) {
			r.Get("/", s.listQueues)
			r.Post("/", s.createQueue)

			r.Route("/{queue}", func(r chi.Router) {
				r.Delete("/", s.deleteQueue)
				r.Post("/refresh", s.refreshQueue)
				r.Post("/shard-check", s.shardCheckQueue)
				r.Get("/depth", s.queueDepth)

				r.Route("/messages", func(r chi.Router) {
					r.Post("/", s.sendMessage)
					r.Get("/", s.getNextMessages)

					r.Route("/{queueMessageId}", func(r chi.Router) {
						r.Post("/ack", s.ackMessage)
						r.Post("/nack", s.nackMessage)
					})
				})

				r.Route("/deadletters", func(r chi.Router) {
					r.Get("/", s.listDeadLetters)
					r.Post("/{messageId}/requeue", s.requeueDeadLetter)
				})
			})
		})

		r.Get("/messages/{messageId}", s.loadMessage)
	})

	return otelhttp.NewHandler(r, "qakka")
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type forwardRequest struct {
	Queue       string `json:"queue"`
	MessageID   string `json:"messageId"`
	Blob        []byte `json:"blob"`
	ContentType string `json:"contentType"`
	DelayMs     int64  `json:"delayMs"`
}

// forward receives a message this process's region owns but that was
// produced in another process's region, per §4.5's send routing: "forward
// to a peer in destRegion via the inter-region transport; the peer
// performs the local write."
func (s *Server) forward(w http.ResponseWriter, r *http.Request) {
	region := chi.URLParam(r, "region")
	var req forwardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	_, err := uuid.Parse(req.MessageID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	body := message.Body{Blob: req.Blob, ContentType: req.ContentType}
	if _, err := s.facade.SendMessageToRegion(req.Queue, region, region, body, req.DelayMs); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listQueues(w http.ResponseWriter, _ *http.Request) {
	queues, err := s.facade.ListQueues()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, queues)
}

func (s *Server) createQueue(w http.ResponseWriter, r *http.Request) {
	var q queueregistry.Queue
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.facade.CreateQueue(q); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) deleteQueue(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "queue")
	if err := s.facade.DeleteQueue(name); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) refreshQueue(w http.ResponseWriter, _ *http.Request) {
	s.facade.Refresh()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) shardCheckQueue(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "queue")
	s.facade.ShardCheck(name)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) queueDepth(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "queue")
	depth, err := s.facade.GetQueueDepth(name)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"depth": depth})
}

type sendMessageRequest struct {
	SourceRegion string `json:"sourceRegion"`
	DestRegion   string `json:"destRegion"`
	Blob         []byte `json:"blob"`
	ContentType  string `json:"contentType"`
	DelayMs      int64  `json:"delayMs"`
}

type sendMessageResponse struct {
	MessageID string `json:"messageId"`
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	queue := chi.URLParam(r, "queue")
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	body := message.Body{Blob: req.Blob, ContentType: req.ContentType}
	messageID, err := s.facade.SendMessageToRegion(queue, req.SourceRegion, req.DestRegion, body, req.DelayMs)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sendMessageResponse{MessageID: messageID.String()})
}

type descriptorResponse struct {
	QueueMessageID string `json:"queueMessageId"`
	MessageID      string `json:"messageId"`
	ShardID        uint64 `json:"shardId"`
	QueuedAt       int64  `json:"queuedAt"`
	InflightAt     int64  `json:"inflightAt"`
	NReturned      uint32 `json:"nReturned"`
}

func (s *Server) getNextMessages(w http.ResponseWriter, r *http.Request) {
	queue := chi.URLParam(r, "queue")
	n := 1
	if v := r.URL.Query().Get("n"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}
	consumerID := r.URL.Query().Get("consumerId")
	descriptors := s.facade.GetNextMessages(queue, n, consumerID)
	out := make([]descriptorResponse, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, descriptorResponse{
			QueueMessageID: d.QueueMessageID.String(),
			MessageID:      d.MessageID.String(),
			ShardID:        d.ShardID,
			QueuedAt:       d.QueuedAt,
			InflightAt:     d.InflightAt,
			NReturned:      d.NReturned,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) ackMessage(w http.ResponseWriter, r *http.Request) {
	queue := chi.URLParam(r, "queue")
	qmid, err := parseQueueMessageID(chi.URLParam(r, "queueMessageId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.facade.AckMessage(queue, qmid); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) nackMessage(w http.ResponseWriter, r *http.Request) {
	queue := chi.URLParam(r, "queue")
	qmid, err := parseQueueMessageID(chi.URLParam(r, "queueMessageId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.facade.NackMessage(queue, qmid); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type bodyResponse struct {
	Blob        []byte `json:"blob"`
	ContentType string `json:"contentType"`
}

func (s *Server) loadMessage(w http.ResponseWriter, r *http.Request) {
	messageID, err := uuid.Parse(chi.URLParam(r, "messageId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	body, err := s.facade.LoadMessageData(messageID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, bodyResponse{Blob: body.Blob, ContentType: body.ContentType})
}

func (s *Server) listDeadLetters(w http.ResponseWriter, r *http.Request) {
	queue := chi.URLParam(r, "queue")
	region := r.URL.Query().Get("region")
	start := uint64(0)
	if v := r.URL.Query().Get("start"); v != "" {
		if parsed, err := strconv.ParseUint(v, 10, 64); err == nil {
			start = parsed
		}
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	entries, next, err := s.facade.ListDeadLetters(queue, region, start, limit)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries, "next": next})
}

type requeueDeadLetterRequest struct {
	Region      string `json:"region"`
	Blob        []byte `json:"blob"`
	ContentType string `json:"contentType"`
}

func (s *Server) requeueDeadLetter(w http.ResponseWriter, r *http.Request) {
	queue := chi.URLParam(r, "queue")
	messageID, err := uuid.Parse(chi.URLParam(r, "messageId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req requeueDeadLetterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	body := message.Body{Blob: req.Blob, ContentType: req.ContentType}
	if err := s.facade.RequeueDeadLetter(queue, req.Region, messageID, body); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseQueueMessageID(raw string) (timeid.ID, error) {
	return ulid.Parse(raw)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch qerrors.KindOf(err) {
	case qerrors.KindNotFound:
		return http.StatusNotFound
	case qerrors.KindConflict:
		return http.StatusConflict
	case qerrors.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
