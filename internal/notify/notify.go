package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"pet-care-sync/internal/contracts"
	enginesync "pet-care-sync/internal/domain/sync"
	"pet-care-sync/internal/platform/logger"
)

// Push de cambios entre cuentas vía NATS: el backend publica un
// NotificationPayload en petcare.notify.<accountID> y el cliente de esa
// cuenta agenda un ciclo de sync. El canal es solo una señal de "algo
// cambió"; la corrección nunca depende de que llegue.

const subjectPrefix = "petcare.notify."

func SubjectFor(accountID string) string {
	return subjectPrefix + accountID
}

// Connect abre la conexión con retry acotado (el broker puede tardar en
// levantar en dev).
func Connect(url string, timeout time.Duration) (*nats.Conn, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		conn, err := nats.Connect(url)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		time.Sleep(500 * time.Millisecond)
	}
	return nil, fmt.Errorf("connect nats timeout after %s: %w", timeout, lastErr)
}

// Publisher implementa backend.Notifier sobre NATS.
type Publisher struct {
	conn *nats.Conn
	log  logger.Logger
}

func NewPublisher(conn *nats.Conn, log logger.Logger) *Publisher {
	return &Publisher{conn: conn, log: log}
}

func (p *Publisher) NotifyAccount(accountID string, payload contracts.NotificationPayload) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := p.conn.Publish(SubjectFor(accountID), data); err != nil {
		// Best-effort: el próximo sync periódico igual converge.
		p.log.Warn("notify publish failed", map[string]any{
			"account_id": accountID, "error": err.Error(),
		})
	}
}

// Triggerer agenda un ciclo de sync para una cuenta.
type Triggerer interface {
	Trigger(accountID string, p enginesync.Priority)
}

// Listener consume las notificaciones de la propia cuenta y las
// convierte en triggers de sync.
type Listener struct {
	accountID string
	trigger   Triggerer
	log       logger.Logger
	sub       *nats.Subscription
}

func NewListener(accountID string, trigger Triggerer, log logger.Logger) *Listener {
	return &Listener{accountID: accountID, trigger: trigger, log: log}
}

func (l *Listener) Start(conn *nats.Conn) error {
	sub, err := conn.Subscribe(SubjectFor(l.accountID), func(msg *nats.Msg) {
		l.handle(msg.Data)
	})
	if err != nil {
		return err
	}
	l.sub = sub
	return nil
}

func (l *Listener) Stop() {
	if l.sub != nil {
		_ = l.sub.Unsubscribe()
		l.sub = nil
	}
}

// handle decodifica el payload y agenda el sync. Un payload malformado
// se loggea y se descarta; jamás tumba el listener.
func (l *Listener) handle(data []byte) {
	var payload contracts.NotificationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		l.log.Warn("malformed notification dropped", map[string]any{"error": err.Error()})
		return
	}
	if payload.Type != "entity_update" {
		l.log.Warn("unknown notification type dropped", map[string]any{"type": payload.Type})
		return
	}

	prio := enginesync.PriorityNormal
	if payload.Priority == contracts.PriorityHigh {
		prio = enginesync.PriorityHigh
	}
	l.trigger.Trigger(l.accountID, prio)
}
