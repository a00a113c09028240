package server

import (
	"context"

	"go.uber.org/zap"

	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/matching"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/utils"
)

const traceContentLength = 80

// traceSink logs every streamed event at debug level.
func traceSink(log *zap.Logger) matching.Sink {
	return matching.SinkFunc(func(_ context.Context, ev matching.Event) error {
		if ce := log.Check(zap.DebugLevel, "session event"); ce != nil {
			fields := []zap.Field{zap.String("event", string(ev.Type()))}
			if msg, ok := ev.(matching.MessageEvent); ok {
				fields = append(fields,
					zap.String("speaker", string(msg.Role)),
					zap.String("content", utils.TruncateForLog(utils.CollapseSpaces(msg.Content), traceContentLength)),
				)
			}
			ce.Write(fields...)
		}
		return nil
	})
}
