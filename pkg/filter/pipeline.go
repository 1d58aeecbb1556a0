package filter

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"gewebridge/pkg/logger"
	"gewebridge/pkg/message"
)

// InboundMessagesTotal counts inbound messages by verdict.
var InboundMessagesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gewebridge_inbound_messages_total",
		Help: "Total number of inbound gateway messages by filter verdict (count)",
	},
	[]string{"verdict"},
)

// Register adds the filter metrics to reg.
func Register(reg prometheus.Registerer) error {
	return reg.Register(InboundMessagesTotal)
}

type Pipeline struct {
	maxAge time.Duration
	now    func() time.Time
}

func NewPipeline(maxAge time.Duration) *Pipeline {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Pipeline{
		maxAge: maxAge,
		now:    time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

func (p *Pipeline) Evaluate(m *message.Message) Verdict {
	v := evaluate(m, p.now(), p.maxAge)
	InboundMessagesTotal.WithLabelValues(v.String()).Inc()

	if v != Forward && m != nil {
		logger.DebugCF("filter", "Inbound message dropped", map[string]interface{}{
			logger.FieldVerdict:  v.String(),
			logger.FieldSenderID: m.ActualSenderID,
			logger.FieldChatID:   m.SenderID,
			logger.FieldPreview:  truncate(m.Content, 50),
		})
	}
	return v
}

func truncate(s string, maxRunes int) string {
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return string(r[:maxRunes])
}
