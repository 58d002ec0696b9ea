package nodes

import (
	"errors"

	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/protocol"
)

// GlobalKeyConnectors holds a BotLookup for nodes that address other bots.
const GlobalKeyConnectors = "connectors"

var (
	ErrNoBot     = errors.New("no bot adapter in run state")
	ErrNoMessage = errors.New("trigger is not a chat message")
)

// BotLookup resolves adapters by id.
type BotLookup interface {
	Get(id string) (protocol.BotAdapter, bool)
}

// Bot returns the adapter the run was started for.
func Bot(nctx *models.NodeContext) (protocol.BotAdapter, error) {
	if nctx == nil || nctx.State == nil {
		return nil, ErrNoBot
	}

	v, _ := nctx.State.Get(models.GlobalKeyBot)

	bot, ok := v.(protocol.BotAdapter)
	if !ok || bot == nil {
		return nil, ErrNoBot
	}

	return bot, nil
}

// BotByID looks id up through the run's connectors, falling back to the run's bot.
func BotByID(nctx *models.NodeContext, id string) (protocol.BotAdapter, error) {
	if id != "" && nctx != nil && nctx.State != nil {
		if v, ok := nctx.State.Get(GlobalKeyConnectors); ok {
			if lookup, ok := v.(BotLookup); ok {
				if bot, ok := lookup.Get(id); ok {
					return bot, nil
				}
			}
		}
	}

	return Bot(nctx)
}

// TriggerMessage returns the chat message that started the run.
func TriggerMessage(nctx *models.NodeContext) (*models.ChatMessage, error) {
	if nctx == nil || nctx.State == nil {
		return nil, ErrNoMessage
	}

	v, _ := nctx.State.Get(models.GlobalKeyTrigger)

	msg, ok := v.(*models.ChatMessage)
	if !ok || msg == nil {
		return nil, ErrNoMessage
	}

	return msg, nil
}
