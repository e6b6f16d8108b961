package ui

import (
	"github.com/rs/zerolog"

	"github.com/jfmyers9/cloudmusic/internal/protocol"
	"github.com/jfmyers9/cloudmusic/internal/queue"
)

// Log writes every call as a debug event. It backs headless instances.
type Log struct {
	logger zerolog.Logger
}

func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger.With().Str("component", "ui").Logger()}
}

func (l *Log) PlayState(playing bool) {
	l.logger.Debug().Bool("playing", playing).Msg("play state")
}

func (l *Log) Song(s Song) {
	ev := l.logger.Debug().Bool("loading", s.Loading)
	if s.Entry != nil {
		ev = ev.Str("id", s.Entry.ID).Str("name", s.Entry.Name)
	}
	ev.Msg("song")
}

func (l *Log) Lyric(line string) {
	l.logger.Debug().Str("line", line).Msg("lyric")
}

func (l *Log) Like(like bool) {
	l.logger.Debug().Bool("like", like).Msg("like")
}

func (l *Log) Previous(fm bool) {
	l.logger.Debug().Bool("fm", fm).Msg("previous")
}

func (l *Log) Repeat(on bool) {
	l.logger.Debug().Bool("repeat", on).Msg("repeat")
}

func (l *Log) Volume(level int) {
	l.logger.Debug().Int("level", level).Msg("volume")
}

func (l *Log) Speed(speed float64) {
	l.logger.Debug().Float64("speed", speed).Msg("speed")
}

func (l *Log) Metadata(e *queue.Entry) {
	if e == nil {
		l.logger.Debug().Msg("metadata cleared")
		return
	}
	l.logger.Debug().
		Str("id", e.ID).
		Str("name", e.Name).
		Str("artist", e.Artist()).
		Str("album", e.Album).
		Msg("metadata")
}

func (l *Log) Master(is bool) {
	l.logger.Info().Bool("master", is).Msg("master changed")
}

func (l *Log) Accounts(profiles []protocol.Profile) {
	l.logger.Debug().Int("count", len(profiles)).Msg("accounts")
}

func (l *Log) Queue(entries []queue.Entry, headID string) {
	l.logger.Debug().Int("len", len(entries)).Str("head", headID).Msg("queue")
}

func (l *Log) Library(folder string, entries []queue.Entry) {
	l.logger.Debug().Str("folder", folder).Int("files", len(entries)).Msg("library")
}

func (l *Log) Wasm(msg protocol.Message) {
	l.logger.Debug().Str("tag", string(msg.Tag())).Msg("wasm")
}

func (l *Log) Command(name string) {
	l.logger.Debug().Str("command", name).Msg("command")
}
