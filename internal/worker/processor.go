package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yalahq/go-whatsapp-guestflow/internal/backend"
	"github.com/yalahq/go-whatsapp-guestflow/internal/conversation"
	"github.com/yalahq/go-whatsapp-guestflow/internal/gateway"
	"github.com/yalahq/go-whatsapp-guestflow/internal/session"
)

// ProcessorConfig wires the processor's collaborators.
type ProcessorConfig struct {
	Sessions       session.Store
	Backend        backend.Client
	Sender         gateway.Sender
	BackendTimeout time.Duration
	GatewayTimeout time.Duration
	Logger         *logrus.Logger
}

// Processor turns one accepted message into a conversation turn: load the
// session, plan, execute the declared backend call, fold its outcome back in,
// send the reply and persist the session.
type Processor struct {
	sessions       session.Store
	backend        backend.Client
	sender         gateway.Sender
	backendTimeout time.Duration
	gatewayTimeout time.Duration
	log            *logrus.Logger
}

// NewProcessor creates a processor with its collaborators injected.
func NewProcessor(cfg ProcessorConfig) *Processor {
	backendTimeout := cfg.BackendTimeout
	if backendTimeout <= 0 {
		backendTimeout = 15 * time.Second
	}
	gatewayTimeout := cfg.GatewayTimeout
	if gatewayTimeout <= 0 {
		gatewayTimeout = 20 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.New()
	}
	return &Processor{
		sessions:       cfg.Sessions,
		backend:        cfg.Backend,
		sender:         cfg.Sender,
		backendTimeout: backendTimeout,
		gatewayTimeout: gatewayTimeout,
		log:            log,
	}
}

// Process handles one task end to end. A send failure does not fail the turn:
// the session still advances and is persisted exactly once. A session load
// failure fails the turn without a reply; the message was already recorded as
// seen, so a provider redelivery will be dropped rather than double-processed.
func (p *Processor) Process(ctx context.Context, task Task) error {
	log := p.log.WithFields(logrus.Fields{
		"task_id":    task.ID,
		"subscriber": task.SubscriberID,
		"message_id": task.MessageID,
	})

	sess, err := p.sessions.Get(ctx, task.SubscriberID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	step := conversation.Plan(sess, task.Text)
	if step.Call != nil {
		result := p.execute(ctx, *step.Call, log)
		step = conversation.Complete(step.Session, *step.Call, result)
	}

	if step.Reply.Text != "" || step.Reply.DocumentLink != "" {
		p.send(ctx, task.SubscriberID, step.Reply, log)
	}

	if err := p.sessions.Put(ctx, step.Session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	log.WithField("state", step.Session.State).Debug("turn complete")
	return nil
}

// execute runs one declared backend call and maps its outcome into the
// machine's vocabulary. Transport and server failures come back as
// StatusError so the machine can apologize and keep the session usable.
func (p *Processor) execute(ctx context.Context, call conversation.Call, log *logrus.Entry) conversation.Result {
	ctx, cancel := context.WithTimeout(ctx, p.backendTimeout)
	defer cancel()

	switch call.Op {
	case conversation.OpVerifyEventCode:
		res, err := p.backend.VerifyEventCode(ctx, call.EventCode)
		if err != nil {
			return p.callFailed(call, err, log)
		}
		out := conversation.Result{Status: mapStatus(res.Status)}
		if res.Event != nil {
			out.Event = &conversation.EventDetails{Code: res.Event.Code, Name: res.Event.Name}
		}
		return out

	case conversation.OpRegisterGuest:
		res, err := p.backend.RegisterGuest(ctx, call.GuestName, call.Phone)
		if err != nil {
			return p.callFailed(call, err, log)
		}
		out := conversation.Result{Status: mapStatus(res.Status)}
		if res.Guest != nil {
			out.Guest = &conversation.GuestDetails{ID: res.Guest.ID, FullName: res.Guest.FullName}
		}
		return out

	case conversation.OpFetchBrochure:
		res, err := p.backend.FetchBrochure(ctx, call.EventCode)
		if err != nil {
			return p.callFailed(call, err, log)
		}
		return conversation.Result{Status: mapStatus(res.Status), MediaURL: res.MediaURL}

	case conversation.OpCreateDonation:
		res, err := p.backend.CreateDonation(ctx, call.EventCode, call.GuestID)
		if err != nil {
			return p.callFailed(call, err, log)
		}
		return conversation.Result{
			Status:      mapStatus(res.Status),
			CheckoutURL: res.CheckoutURL,
			Reference:   res.Reference,
		}

	case conversation.OpSubmitCondolence:
		res, err := p.backend.SubmitCondolence(ctx, call.EventCode, call.GuestID, call.Message)
		if err != nil {
			return p.callFailed(call, err, log)
		}
		return conversation.Result{Status: mapStatus(res.Status)}

	case conversation.OpFetchLocation:
		res, err := p.backend.FetchLocation(ctx, call.EventCode)
		if err != nil {
			return p.callFailed(call, err, log)
		}
		return conversation.Result{Status: mapStatus(res.Status), Lines: res.Lines}

	default:
		log.WithField("op", string(call.Op)).Error("unknown backend op")
		return conversation.Result{Status: conversation.StatusError}
	}
}

func (p *Processor) callFailed(call conversation.Call, err error, log *logrus.Entry) conversation.Result {
	log.WithField("op", string(call.Op)).WithError(err).Warn("backend call failed")
	return conversation.Result{Status: conversation.StatusError}
}

// send delivers the reply. A failed document send falls back to plain text so
// the guest is not left without the menu.
func (p *Processor) send(ctx context.Context, to string, reply conversation.Reply, log *logrus.Entry) {
	ctx, cancel := context.WithTimeout(ctx, p.gatewayTimeout)
	defer cancel()

	if reply.DocumentLink != "" {
		err := p.sender.SendDocument(ctx, to, reply.DocumentLink, reply.Text, reply.DocumentName)
		if err == nil {
			return
		}
		log.WithError(err).Warn("document send failed, falling back to text")
	}
	if reply.Text == "" {
		return
	}
	if err := p.sender.SendText(ctx, to, reply.Text); err != nil {
		log.WithError(err).Error("reply send failed")
	}
}

func mapStatus(status string) string {
	switch status {
	case backend.StatusFound, backend.StatusCreated, backend.StatusReady, backend.StatusOK:
		return conversation.StatusOK
	case backend.StatusNotFound, backend.StatusMissing:
		return conversation.StatusNotFound
	case backend.StatusUnavailable:
		return conversation.StatusUnavailable
	default:
		return conversation.StatusError
	}
}
