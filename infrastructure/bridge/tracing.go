package bridge

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"treeview-ai/application/ports"
	"treeview-ai/domain/core/entities"
)

const tracerName = "treeview-ai.infrastructure.bridge"

type tracedSessions struct {
	inner  ports.SessionBridge
	tracer trace.Tracer
}

// TraceSessionBridge wraps inner so every call records a span.
func TraceSessionBridge(inner ports.SessionBridge) ports.SessionBridge {
	return &tracedSessions{inner: inner, tracer: otel.Tracer(tracerName)}
}

func (t *tracedSessions) GetSession(ctx context.Context, id string) (entities.Session, error) {
	ctx, span := t.tracer.Start(ctx, "SessionBridge.GetSession",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()

	s, err := t.inner.GetSession(ctx, id)
	if err != nil {
		fail(span, err)
		return s, err
	}
	span.SetAttributes(
		attribute.Int("graph.nodes", len(s.Graph.Nodes)),
		attribute.Int("graph.edges", len(s.Graph.Edges)))
	return s, nil
}

func (t *tracedSessions) SaveSession(ctx context.Context, id string, graph entities.Snapshot) (entities.Session, error) {
	ctx, span := t.tracer.Start(ctx, "SessionBridge.SaveSession",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("session.id", id),
			attribute.Int("graph.nodes", len(graph.Nodes)),
			attribute.Int("graph.edges", len(graph.Edges))))
	defer span.End()

	s, err := t.inner.SaveSession(ctx, id, graph)
	if err != nil {
		fail(span, err)
	}
	return s, err
}

type tracedChat struct {
	inner  ports.ChatBridge
	tracer trace.Tracer
}

// TraceChatBridge wraps inner so every call records a span.
func TraceChatBridge(inner ports.ChatBridge) ports.ChatBridge {
	return &tracedChat{inner: inner, tracer: otel.Tracer(tracerName)}
}

func (t *tracedChat) FetchHistory(ctx context.Context, sessionID string) ([]entities.Message, error) {
	ctx, span := t.tracer.Start(ctx, "ChatBridge.FetchHistory",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	msgs, err := t.inner.FetchHistory(ctx, sessionID)
	if err != nil {
		fail(span, err)
		return msgs, err
	}
	span.SetAttributes(attribute.Int("chat.messages", len(msgs)))
	return msgs, nil
}

func (t *tracedChat) SendMessage(ctx context.Context, sessionID, text string, graph entities.Snapshot) (entities.Message, error) {
	ctx, span := t.tracer.Start(ctx, "ChatBridge.SendMessage",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.Int("chat.message_length", len(text))))
	defer span.End()

	msg, err := t.inner.SendMessage(ctx, sessionID, text, graph)
	if err != nil {
		fail(span, err)
		return msg, err
	}
	span.SetAttributes(attribute.Int("chat.reply_bytes", len(msg.RawReply)))
	return msg, nil
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
