// Package publish delivers closed interview reports outside of the chat.
package publish

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/multierr"

	"github.com/Black-Iron-Productions-LLC/hiring-bot/internal/core/hiring"
)

const publishTimeout = 5 * time.Second

// ReportMessage is json body of queued report
type ReportMessage struct {
	InterviewID    string    `json:"interview_id"`
	Specialization string    `json:"specialization"`
	CandidateRef   string    `json:"candidate_ref"`
	CandidateName  string    `json:"candidate_name,omitempty"`
	Hire           *bool     `json:"hire,omitempty"`
	Report         string    `json:"report"`
	ClosedAt       time.Time `json:"closed_at"`
}

func newReportMessage(r hiring.Report) ReportMessage {
	return ReportMessage{
		InterviewID:    r.InterviewID,
		Specialization: string(r.Specialization),
		CandidateRef:   r.CandidateRef,
		CandidateName:  r.CandidateName,
		Hire:           r.HireDecision,
		Report:         r.Markdown,
		ClosedAt:       r.ClosedAt,
	}
}

// Publisher is the part of amqp channel used by AMQPSink
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type AMQPSink struct {
	publisher Publisher
	queue     string
	closers   []func() error
}

// DialAMQP connects to broker and declares durable report queue
func DialAMQP(url, queue string) (*AMQPSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "can not connect to amqp broker")
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "can not open amqp channel")
	}

	q, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, multierr.Append(errors.Wrapf(err, "can not declare queue %q", queue), conn.Close())
	}

	s := NewAMQPSink(ch, q.Name)
	s.closers = []func() error{ch.Close, conn.Close}
	return s, nil
}

func NewAMQPSink(p Publisher, queue string) *AMQPSink {
	return &AMQPSink{publisher: p, queue: queue}
}

func (s *AMQPSink) PublishReport(ctx context.Context, r hiring.Report) error {
	body, err := json.Marshal(newReportMessage(r))
	if err != nil {
		return errors.Wrap(err, "can not marshal report")
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = s.publisher.PublishWithContext(ctx,
		"",      // exchange
		s.queue, // routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    r.InterviewID,
			Timestamp:    r.ClosedAt,
			Body:         body,
		},
	)
	return errors.Wrapf(err, "can not publish report of interview %s", r.InterviewID)
}

// Close releases channel and connection
func (s *AMQPSink) Close() error {
	var err error
	for _, c := range s.closers {
		err = multierr.Append(err, c())
	}
	return err
}
