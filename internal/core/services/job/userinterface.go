package job

import (
	"context"
	"time"

	"github.com/zclconf/go-cty/cty"

	"gitlab.com/autoserver-2025.net/internal/anyvalue"
	"gitlab.com/autoserver-2025.net/internal/domain"
	"gitlab.com/autoserver-2025.net/internal/procedure"
	"gitlab.com/autoserver-2025.net/internal/protocol"
)

func (j *Job) UpdateInstructionStatus(instr *procedure.Instruction) {
	j.publishInstruction(instr)
}

func (j *Job) OnBreakpointChange(instr *procedure.Instruction, active bool) {
	j.logger.Debug("Breakpoint changed", "job", j.index, "instruction", j.idx.FindIndex(instr), "active", active)
	j.publishInstruction(instr)
}

func (j *Job) BreakpointHit(instr *procedure.Instruction) {
	index := j.idx.FindIndex(instr)
	j.logger.Info("Breakpoint hit", "job", j.index, "instruction", index)
	j.publisher.Publish(protocol.BreakpointName(j.prefix), protocol.EncodeBreakpointHit(index))
}

func (j *Job) VariableUpdated(name string, value cty.Value, connected bool) {
	index, ok := j.idx.VariableIndex(name)
	if !ok {
		j.logger.Warn("Update of unindexed variable", "job", j.index, "variable", name)
		return
	}
	j.publisher.Publish(protocol.VariableName(j.prefix, index), protocol.EncodeVariable(value, connected))
}

func (j *Job) Message(text string) {
	j.publisher.Publish(protocol.MessageName(j.prefix), protocol.EncodeLogEntry(domain.LogEntry{
		Index:     j.msgCount.Add(1),
		Timestamp: time.Now(),
		Severity:  domain.SeverityInfo,
		Message:   text,
	}))
}

func (j *Job) Log(severity int, message string) {
	j.publisher.Publish(protocol.LogName(j.prefix), protocol.EncodeLogEntry(domain.LogEntry{
		Index:     j.logCount.Add(1),
		Timestamp: time.Now(),
		Severity:  severity,
		Message:   message,
	}))
}

func (j *Job) PutValue(value cty.Value, description string) bool {
	return j.publisher.Publish(protocol.OutputValueName(j.prefix), protocol.EncodeOutputValue(domain.OutputValue{
		Index:       j.outputCount.Add(1),
		Description: description,
		Value:       value,
	}))
}

// GetUserValue asks for a value shaped like value.
func (j *Job) GetUserValue(ctx context.Context, value cty.Value, description string) (cty.Value, bool) {
	metadata := cty.ObjectVal(map[string]cty.Value{
		"text": cty.StringVal(description),
	})
	reply, ok := j.askUser(ctx, domain.InputRequestValue, metadata, value)
	if !ok || !reply.Result {
		return cty.NilVal, false
	}
	return reply.Value, true
}

// GetUserChoice asks for one of options; the reply carries the selected position.
func (j *Job) GetUserChoice(ctx context.Context, options []string, metadata cty.Value) (int, bool) {
	opts := make([]cty.Value, len(options))
	for i, opt := range options {
		opts[i] = cty.StringVal(opt)
	}
	input := cty.ListValEmpty(cty.String)
	if len(opts) > 0 {
		input = cty.ListVal(opts)
	}

	reply, ok := j.askUser(ctx, domain.InputRequestChoice, metadata, input)
	if !ok || !reply.Result {
		return -1, false
	}
	selected, ok := anyvalue.AsUint32(reply.Value)
	if !ok || int(selected) >= len(options) {
		j.logger.Warn("Invalid choice reply", "job", j.index)
		return -1, false
	}
	return int(selected), true
}

// askUser publishes a request under INPUTREQ and blocks until it is answered,
// times out or ctx ends. Only one request is outstanding at a time.
func (j *Job) askUser(ctx context.Context, kind domain.InputRequestType, metadata, input cty.Value) (domain.UserInputReply, bool) {
	j.inputMu.Lock()
	defer j.inputMu.Unlock()

	id := j.nextRequestID()
	j.rendezvous.InitNewRequest(id)
	stop := context.AfterFunc(ctx, func() { j.rendezvous.Interrupt(id) })
	defer stop()

	name := protocol.InputRequestName(j.prefix)
	j.publisher.Publish(name, protocol.EncodeUserInputRequest(domain.UserInputRequest{
		ID:       id,
		Type:     kind,
		Metadata: metadata,
		Input:    input,
	}))
	defer j.publisher.Publish(name, anyvalue.Empty)

	j.logger.Debug("Waiting for user input", "job", j.index, "request", id, "type", kind.String())
	var (
		received bool
		reply    domain.UserInputReply
	)
	if j.inputTimeout > 0 {
		received, reply = j.rendezvous.WaitForReplyTimeout(id, j.inputTimeout.Seconds())
	} else {
		received, reply = j.rendezvous.WaitForReply(id)
	}
	// late replies to an interrupted or timed out request are refused
	j.rendezvous.InitNewRequest(0)
	if !received {
		j.logger.Debug("No user input received", "job", j.index, "request", id)
	}
	return reply, received
}

// nextRequestID increments the request counter, skipping 0 on wraparound.
func (j *Job) nextRequestID() uint64 {
	for {
		if id := j.requestID.Add(1); id != 0 {
			return id
		}
	}
}
