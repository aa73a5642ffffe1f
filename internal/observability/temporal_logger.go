package observability

import (
	"fmt"

	"github.com/rs/zerolog"
)

// TemporalLogger bridges the Temporal SDK's keyval-style log.Logger onto the
// service's zerolog output so worker and client internals land in the same
// structured stream as application logs.
type TemporalLogger struct {
	logger zerolog.Logger
}

// NewTemporalLogger wraps logger, tagging every SDK record with
// "component":"temporal-sdk" so it can be filtered apart from pipeline logs.
func NewTemporalLogger(logger zerolog.Logger) *TemporalLogger {
	return &TemporalLogger{logger: logger.With().Str("component", "temporal-sdk").Logger()}
}

func (l *TemporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug().Fields(fieldsFromKeyvals(keyvals)).Msg(msg)
}

func (l *TemporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info().Fields(fieldsFromKeyvals(keyvals)).Msg(msg)
}

func (l *TemporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn().Fields(fieldsFromKeyvals(keyvals)).Msg(msg)
}

func (l *TemporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error().Fields(fieldsFromKeyvals(keyvals)).Msg(msg)
}

// fieldsFromKeyvals folds the SDK's alternating key-value slice into a field
// map. Non-string keys are stringified rather than dropped; a trailing
// unpaired value is ignored.
func fieldsFromKeyvals(keyvals []interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(keyvals)/2)
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keyvals[i])
		}
		m[key] = keyvals[i+1]
	}
	return m
}
