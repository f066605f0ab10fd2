package output

import "github.com/rs/zerolog"

// LogEmitter records events in the structured log file.
type LogEmitter struct {
	logger zerolog.Logger
}

func NewLogEmitter(logger zerolog.Logger) *LogEmitter {
	return &LogEmitter{logger: logger}
}

func (e *LogEmitter) Emit(event Event) error {
	var entry *zerolog.Event
	switch event.Level {
	case LevelError:
		entry = e.logger.Error()
	case LevelWarn:
		entry = e.logger.Warn()
	default:
		entry = e.logger.Info()
	}
	entry = entry.Str("event", string(event.Event))
	if event.Host != "" {
		entry = entry.Str("host", event.Host)
	}
	if len(event.Details) > 0 {
		entry = entry.Fields(event.Details)
	}
	entry.Msg(event.Message)
	return nil
}
