// Package send provides the nodes that reply through a bot adapter:
// send-text answers the triggering chat, send-message composes segments for
// any target.
package send

import (
	"context"
	"fmt"

	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/protocol"
	"github.com/dukex/renflow/pkg/template"
)

// ActionSendMessage is the gateway action both nodes call.
const ActionSendMessage = "send_msg"

const sentMessage = "message sent"

func scopeOf(nctx *models.NodeContext, input any) template.Scope {
	scope := template.Scope{Input: input}
	if nctx != nil {
		scope.State = nctx.State
	}

	return scope
}

// deliver calls send_msg and requires a zero retcode.
func deliver(ctx context.Context, bot protocol.BotAdapter, params models.APIParams) error {
	resp, err := bot.Call(ctx, &models.APIRequest{Action: ActionSendMessage, Params: params})
	if err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}

	if !resp.OK() {
		if resp == nil {
			return fmt.Errorf("send message failed: empty response")
		}

		return fmt.Errorf("send message failed: retcode %d, message %q", resp.RetCode, resp.Message)
	}

	return nil
}
