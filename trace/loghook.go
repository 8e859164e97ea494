package trace

import (
	"log"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/cachesim/cache"
)

// LogHook is a hook that writes one line per cache event to a logger.
type LogHook struct {
	logger *log.Logger
	seq    uint64
}

// NewLogHook creates a LogHook writing to logger.
func NewLogHook(logger *log.Logger) *LogHook {
	return &LogHook{logger: logger}
}

// Func implements sim.Hook.
func (h *LogHook) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case cache.HookPosAccess:
		h.seq++
		res := ctx.Detail.(cache.AccessResult)
		h.logger.Printf("access, %d, %s, 0x%08x, %d, 0x%x, %s\n",
			h.seq,
			res.Event.Kind,
			res.Event.Address,
			res.Addr.SetIndex,
			res.Addr.Tag,
			outcome(res),
		)
	case cache.HookPosEvict:
		res := ctx.Detail.(cache.AccessResult)
		h.logger.Printf("evict, %d, %s, %d, 0x%x, %t\n",
			h.seq+1,
			res.Stream,
			res.Addr.SetIndex,
			res.Victim.Tag,
			res.Victim.Dirty,
		)
	case cache.HookPosIgnoredAccess:
		evt := ctx.Item.(cache.Event)
		h.logger.Printf("ignored, %s, 0x%08x\n", evt.Kind, evt.Address)
	case cache.HookPosFlush:
		fl := ctx.Detail.(cache.FlushedLine)
		h.logger.Printf("flush, %s, %d, 0x%x\n", fl.Stream, fl.SetIndex, fl.Line.Tag)
	}
}

func outcome(res cache.AccessResult) string {
	switch {
	case res.Hit:
		return "hit"
	case res.Bypassed:
		return "bypass"
	case res.Evicted:
		return "replace"
	default:
		return "miss"
	}
}
