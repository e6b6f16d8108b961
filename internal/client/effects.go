package client

import (
	"context"
	"time"

	"github.com/jfmyers9/cloudmusic/internal/config"
	"github.com/jfmyers9/cloudmusic/internal/protocol"
	"github.com/jfmyers9/cloudmusic/internal/queue"
	"github.com/jfmyers9/cloudmusic/internal/state"
	"github.com/jfmyers9/cloudmusic/internal/ui"
)

// recommendMethod is the remote call the recommend recovery mode makes.
const recommendMethod = "recommendSongs"

// apply executes effects in order. It runs on the dispatch goroutine.
func (i *Instance) apply(effs []state.Effect) {
	for _, e := range effs {
		switch e := e.(type) {
		case state.Refresh:
			i.refresh(e.Element)
		case state.Persist:
			if i.kv == nil {
				continue
			}
			if err := i.kv.Set(i.ctx, e.Key, e.Value); err != nil {
				i.logger.Warn().Err(err).Str("key", e.Key).Msg("failed to persist state")
			}
		case state.Send:
			if _, ok := e.Msg.(protocol.ClearPending); ok {
				i.corr.ClearAll()
			}
			i.send(e.Msg)
		case state.SendLater:
			msg := e.Msg
			time.AfterFunc(e.Delay, func() {
				i.post(func() { i.send(msg) })
			})
		case state.Recover:
			i.recoverQueue(e.Mode)
		}
	}
}

func (i *Instance) refresh(el state.Element) {
	s := i.store
	switch el {
	case state.ElemSong:
		i.ui.Song(ui.Song{Entry: s.PlayItem(), Loading: s.Loading()})
	case state.ElemLike:
		i.ui.Like(s.Like())
	case state.ElemPrevious:
		i.ui.Previous(s.FM())
	case state.ElemRepeat:
		i.ui.Repeat(s.Repeat())
	case state.ElemLyric:
		if !s.ShowLyric() {
			i.ui.Lyric("")
		}
	case state.ElemVolume:
		i.ui.Volume(s.Volume())
	case state.ElemSpeed:
		i.ui.Speed(s.Speed())
	case state.ElemMetadata:
		i.ui.Metadata(s.PlayItem())
	case state.ElemMaster:
		i.ui.Master(s.IsMaster())
	}
}

func (i *Instance) recoverQueue(mode string) {
	switch mode {
	case config.QueueInitRestore:
		i.logger.Info().Msg("restoring retained queue")
		i.send(protocol.Retain{})
	case config.QueueInitRecommend:
		uid, ok := i.accounts.First()
		if !ok {
			i.logger.Debug().Msg("no account to recommend for")
			return
		}
		go i.recommend(i.ctx, uid)
	}
}

func (i *Instance) recommend(ctx context.Context, uid int64) {
	p, err := i.corr.Call(recommendMethod, uid)
	if err != nil {
		i.logger.Warn().Err(err).Msg("recommendation request failed")
		return
	}
	var songs []queue.Entry
	if err := p.Decode(ctx, &songs); err != nil {
		i.logger.Warn().Err(err).Msg("recommendation request failed")
		return
	}
	i.logger.Info().Int("songs", len(songs)).Msg("replacing queue with recommendations")
	i.send(protocol.New{Items: songs})
}
