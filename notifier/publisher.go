package notifier

import (
	"sync"

	"github.com/TEENet-io/fiat-bridge-go/metrics"
	logger "github.com/sirupsen/logrus"
)

const DefaultChannelSize = 16

// Observer receives payout status messages on Ch until it is unregistered,
// then Ch is closed.
type Observer struct {
	id uint64
	Ch <-chan *PayoutStatusMessage
}

// PublisherService is a concurrent-safe fan-out of payout status changes.
// Delivery is best effort: no ack, no replay, and an observer whose channel
// is full misses the message. Notify never blocks.
type PublisherService struct {
	mu          sync.Mutex
	observers   map[uint64]chan *PayoutStatusMessage
	nextId      uint64
	channelSize int
	metrics     *metrics.Metrics
}

func NewPublisherService(channelSize int, m *metrics.Metrics) *PublisherService {
	if channelSize <= 0 {
		channelSize = DefaultChannelSize
	}
	if m == nil {
		m = metrics.New()
	}
	return &PublisherService{
		observers:   make(map[uint64]chan *PayoutStatusMessage),
		channelSize: channelSize,
		metrics:     m,
	}
}

// RegisterObserver adds an observer that receives only future messages.
func (p *PublisherService) RegisterObserver() *Observer {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextId++
	ch := make(chan *PayoutStatusMessage, p.channelSize)
	p.observers[p.nextId] = ch
	p.metrics.Observers.Set(float64(len(p.observers)))

	return &Observer{id: p.nextId, Ch: ch}
}

func (p *PublisherService) UnregisterObserver(o *Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, ok := p.observers[o.id]
	if !ok {
		return
	}
	delete(p.observers, o.id)
	close(ch)
	p.metrics.Observers.Set(float64(len(p.observers)))
}

func (p *PublisherService) NumObservers() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.observers)
}

// NotifyPayoutStatus pushes msg to every registered observer.
func (p *PublisherService) NotifyPayoutStatus(msg *PayoutStatusMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, observer := range p.observers {
		select {
		case observer <- msg:
			p.metrics.NotificationsSent.Inc()
		default:
			p.metrics.NotificationsDropped.Inc()
			logger.WithFields(logger.Fields{
				"observer": id,
				"payout":   msg.Id,
				"status":   msg.Status,
			}).Warn("observer channel full, message dropped")
		}
	}
}
