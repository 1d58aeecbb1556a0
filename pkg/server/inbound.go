package server

import (
	"context"

	"gewebridge/pkg/filter"
	"gewebridge/pkg/logger"
	"gewebridge/pkg/message"
)

type Evaluator interface {
	Evaluate(m *message.Message) filter.Verdict
}

// Ingestor receives messages that passed the filter.
type Ingestor interface {
	Submit(ctx context.Context, m *message.Message) error
}

// Inbound is the Handler that turns callbacks into filtered messages.
type Inbound struct {
	filter Evaluator
	sink   Ingestor
}

func NewInbound(filter Evaluator, sink Ingestor) *Inbound {
	return &Inbound{filter: filter, sink: sink}
}

func (h *Inbound) HandleCallback(ctx context.Context, payload []byte) error {
	p, err := message.Parse(payload)
	if err != nil {
		return err
	}
	if p.IsSelfTest() {
		logger.InfoC("server", "Gateway self-test callback received")
		return nil
	}
	if !p.IsChatMessage() {
		logger.DebugCF("server", "Ignoring non-message notification", map[string]interface{}{
			"type_name": p.TypeName,
		})
		return nil
	}

	m, err := message.Normalize(p)
	if err != nil {
		return err
	}
	if v := h.filter.Evaluate(m); !v.Forwarded() {
		return nil
	}

	logger.InfoCF("server", "Inbound message accepted", map[string]interface{}{
		logger.FieldChatID:      m.SenderID,
		logger.FieldSenderID:    m.ActualSenderID,
		logger.FieldContentType: m.ContentType.String(),
		logger.FieldPreview:     preview([]byte(m.Content)),
	})
	return h.sink.Submit(ctx, m)
}
