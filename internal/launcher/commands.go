package launcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/laudenbachm/mbbs-launcher/internal/model"
	"github.com/laudenbachm/mbbs-launcher/internal/notify"
)

// Control actions. A request for action is sent to <prefix>.cmd.<action>.
const (
	ActionCancel    = "cancel"
	ActionCancelAll = "cancel-all"
	ActionLaunch    = "launch"
	ActionStop      = "stop"
	ActionStatus    = "status"
)

// Actions lists every action ServeCommands answers
var Actions = []string{ActionCancel, ActionCancelAll, ActionLaunch, ActionStop, ActionStatus}

var (
	// ErrUnknownAction is returned for actions the launcher does not serve
	ErrUnknownAction = errors.New("unknown command action")

	// ErrCommandFailed is returned by SendCommand when the launcher refused
	// or failed the request
	ErrCommandFailed = errors.New("command failed")
)

const commandTimeout = 10 * time.Second

// CommandRequest is the payload of a control request
type CommandRequest struct {
	ProgramID string `json:"program_id,omitempty"`
}

// CommandReply is the launcher's answer to a control request
type CommandReply struct {
	OK      bool                 `json:"ok"`
	Error   string               `json:"error,omitempty"`
	Message string               `json:"message,omitempty"`
	Result  *model.LaunchResult  `json:"result,omitempty"`
	Killed  int                  `json:"killed,omitempty"`
	States  []model.ProgramState `json:"states,omitempty"`
}

// CommandSubject returns the subject a control action is served on
func CommandSubject(prefix, action string) string {
	if prefix == "" {
		prefix = notify.DefaultSubjectPrefix
	}
	return prefix + ".cmd." + action
}

// ServeCommands answers control requests from other processes on core NATS
// request/reply. It must be called before Run; the subscriptions are dropped
// when the launcher shuts down.
func (a *App) ServeCommands(nc *nats.Conn, prefix string) error {
	subs := make([]*nats.Subscription, 0, len(Actions))
	for _, action := range Actions {
		action := action
		subject := CommandSubject(prefix, action)

		sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
			a.handleCommand(action, msg)
		})
		if err != nil {
			for _, s := range subs {
				s.Unsubscribe()
			}
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		subs = append(subs, sub)
	}

	if err := nc.Flush(); err != nil {
		for _, s := range subs {
			s.Unsubscribe()
		}
		return fmt.Errorf("failed to register command subscriptions: %w", err)
	}

	a.commandSubs = append(a.commandSubs, subs...)
	a.logger.Info("Serving commands", zap.String("subject", CommandSubject(prefix, "*")))
	return nil
}

func (a *App) handleCommand(action string, msg *nats.Msg) {
	var req CommandRequest
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			a.logger.Warn("Invalid command request",
				zap.String("action", action),
				zap.Error(err))
			a.respond(msg, CommandReply{Error: fmt.Sprintf("invalid request: %v", err)})
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	reply := a.Execute(ctx, action, req.ProgramID)
	a.logger.Info("Handled command",
		zap.String("action", action),
		zap.String("program_id", req.ProgramID),
		zap.Bool("ok", reply.OK),
		zap.String("error", reply.Error))
	a.respond(msg, reply)
}

func (a *App) respond(msg *nats.Msg, reply CommandReply) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(reply)
	if err != nil {
		a.logger.Error("Failed to marshal command reply", zap.Error(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		a.logger.Error("Failed to send command reply", zap.Error(err))
	}
}

// Execute runs one control action against the launcher
func (a *App) Execute(ctx context.Context, action, programID string) CommandReply {
	switch action {
	case ActionCancel:
		if err := a.monitor.CancelPendingLaunch(programID); err != nil {
			return failedReply(err)
		}
		return CommandReply{OK: true, Message: fmt.Sprintf("Cancelled launch of %s", programID)}

	case ActionCancelAll:
		active := len(a.scheduler.ActiveIDs())
		a.scheduler.CancelAll()
		return CommandReply{OK: true, Message: fmt.Sprintf("Cancelled %d pending launch(es)", active)}

	case ActionLaunch:
		result, err := a.monitor.LaunchNow(ctx, programID)
		if err != nil {
			reply := failedReply(err)
			if result.ProgramID != "" {
				reply.Result = &result
			}
			return reply
		}
		return CommandReply{OK: true, Result: &result, Message: fmt.Sprintf("%s: %s", result.Name, result.Outcome)}

	case ActionStop:
		killed, err := a.monitor.StopNow(ctx, programID)
		if err != nil {
			return failedReply(err)
		}
		return CommandReply{OK: true, Killed: killed, Message: fmt.Sprintf("Stopped %d process(es)", killed)}

	case ActionStatus:
		return CommandReply{OK: true, States: a.monitor.Snapshot(ctx)}
	}
	return failedReply(fmt.Errorf("%w: %s", ErrUnknownAction, action))
}

func failedReply(err error) CommandReply {
	return CommandReply{Error: err.Error()}
}

// SendCommand sends a control request to a running launcher and waits for the
// reply. nats.ErrNoResponders is wrapped when no launcher is listening.
func SendCommand(nc *nats.Conn, prefix, action, programID string, timeout time.Duration) (*CommandReply, error) {
	data, err := json.Marshal(CommandRequest{ProgramID: programID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal command: %w", err)
	}

	msg, err := nc.Request(CommandSubject(prefix, action), data, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to send %s command: %w", action, err)
	}

	var reply CommandReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return nil, fmt.Errorf("failed to decode %s reply: %w", action, err)
	}
	if !reply.OK {
		return &reply, fmt.Errorf("%w: %s", ErrCommandFailed, reply.Error)
	}
	return &reply, nil
}
