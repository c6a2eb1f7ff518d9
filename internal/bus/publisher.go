package bus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"hopper/internal/config"
	"hopper/internal/logging"
	"hopper/internal/queue"
)

// JobEvent is the JSON payload published for each job transition.
type JobEvent struct {
	JobID        int64     `json:"job_id"`
	SourcePath   string    `json:"source_path"`
	OutputPath   string    `json:"output_path,omitempty"`
	Status       string    `json:"status"`
	Attempts     int       `json:"attempts"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	HappenedAt   time.Time `json:"happened_at"`
}

// Publisher pushes job transitions onto a message bus.
type Publisher interface {
	PublishJob(job *queue.Job)
	Close()
}

// Connect builds a publisher from configuration. An empty events URL yields
// a no-op publisher; a configured URL that cannot be reached is an error so
// misconfiguration surfaces at startup rather than as silently dropped
// events.
func Connect(cfg *config.Config, logger *slog.Logger) (Publisher, error) {
	url := strings.TrimSpace(cfg.Events.URL)
	if url == "" {
		return nopPublisher{}, nil
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	connectTimeout := time.Duration(cfg.Events.ConnectTimeout) * time.Second
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}

	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(connectTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("connect event bus %s: %w", url, err)
	}

	prefix := strings.TrimSpace(cfg.Events.SubjectPrefix)
	if prefix == "" {
		prefix = "hopper.jobs"
	}

	return &natsPublisher{
		conn:   conn,
		prefix: strings.TrimSuffix(prefix, "."),
		logger: logging.NewComponentLogger(logger, "bus"),
	}, nil
}

type natsPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

func (p *natsPublisher) PublishJob(job *queue.Job) {
	if job == nil {
		return
	}
	event := JobEvent{
		JobID:        job.ID,
		SourcePath:   job.SourcePath,
		OutputPath:   job.OutputPath,
		Status:       string(job.Status),
		Attempts:     job.Attempts,
		ErrorKind:    job.ErrorKind,
		ErrorMessage: job.ErrorMessage,
		HappenedAt:   time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("encode job event", logging.Error(err))
		return
	}
	subject := SubjectFor(p.prefix, job.Status)
	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.Warn("publish job event",
			logging.String("subject", subject),
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Error(err),
		)
	}
}

func (p *natsPublisher) Close() {
	_ = p.conn.Drain()
}

// SubjectFor maps a job status onto the bus subject hierarchy.
func SubjectFor(prefix string, status queue.Status) string {
	return prefix + "." + string(status)
}

type nopPublisher struct{}

func (nopPublisher) PublishJob(*queue.Job) {}

func (nopPublisher) Close() {}

// NewNop returns a publisher that drops everything. Used by tests and by
// commands that never publish.
func NewNop() Publisher {
	return nopPublisher{}
}
