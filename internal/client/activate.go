package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/jfmyers9/cloudmusic/internal/ipc"
)

// activate connects to the background process, spawning one when none
// answers. Each step is chosen by the connection Machine.
func (i *Instance) activate(ctx context.Context) error {
	action, err := i.machine.Fire(ipc.EventStart)
	for err == nil {
		switch action {
		case ipc.ActionProbe:
			_, cerr := i.channel.Connect(ctx, 0, i.onReply, i.onMessage)
			switch {
			case cerr == nil:
				action, err = i.machine.Fire(ipc.EventProbeOK)
			case ctx.Err() != nil:
				return ctx.Err()
			default:
				i.logger.Info().Msg("no background process, spawning one")
				action, err = i.machine.Fire(ipc.EventProbeFailed)
			}

		case ipc.ActionSpawn:
			if i.spawner == nil {
				return fmt.Errorf("%w: no spawner configured", ipc.ErrConnectionFailure)
			}
			// The fresh process has no queue for us; that init step is
			// consumed here.
			i.do(func() {
				i.apply(i.store.SetFirst(true))
				i.apply(i.store.DownInit())
			})
			if serr := i.spawner.Spawn(); serr != nil {
				return fmt.Errorf("spawn background process: %w", serr)
			}
			action, err = i.machine.Fire(ipc.EventSpawned)

		case ipc.ActionRetry:
			if _, cerr := i.channel.Connect(ctx, ipc.Unlimited, i.onReply, i.onMessage); cerr != nil {
				if errors.Is(cerr, context.Canceled) || errors.Is(cerr, context.DeadlineExceeded) {
					return ctx.Err()
				}
				return cerr
			}
			action, err = i.machine.Fire(ipc.EventRetryOK)

		case ipc.ActionReady:
			if i.machine.Spawned() {
				i.do(func() { i.apply(i.store.SetMaster(true)) })
			}
			i.logger.Info().Bool("spawned", i.machine.Spawned()).Msg("connected to background process")
			return nil

		default:
			return fmt.Errorf("activate: unexpected action %s", action)
		}
	}
	return err
}
