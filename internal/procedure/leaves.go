package procedure

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/zclconf/go-cty/cty"

	"gitlab.com/autoserver-2025.net/internal/anyvalue"
	"gitlab.com/autoserver-2025.net/internal/domain"
)

type constant domain.ExecutionStatus

func (c constant) execute(context.Context, *execution, *Instruction) domain.ExecutionStatus {
	return domain.ExecutionStatus(c)
}

// wait succeeds after timeout; a cancelled context leaves it unfinished.
type wait struct {
	timeout time.Duration
}

func newWait(attrs attributes) (behavior, error) {
	raw, ok := attrs.get("timeout")
	if !ok {
		return wait{}, nil
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || secs < 0 {
		return nil, fmt.Errorf("timeout: invalid value %q", raw)
	}
	return wait{timeout: time.Duration(secs * float64(time.Second))}, nil
}

func (w wait) execute(ctx context.Context, _ *execution, _ *Instruction) domain.ExecutionStatus {
	if w.timeout == 0 {
		return domain.StatusSuccess
	}
	timer := time.NewTimer(w.timeout)
	defer timer.Stop()
	select {
	case <-timer.C:
		return domain.StatusSuccess
	case <-ctx.Done():
		return domain.StatusNotFinished
	}
}

type copyVar struct {
	input, output string
}

func newCopy(attrs attributes) (behavior, error) {
	in, err := attrs.require("input")
	if err != nil {
		return nil, err
	}
	out, err := attrs.require("output")
	if err != nil {
		return nil, err
	}
	return copyVar{input: in, output: out}, nil
}

func (c copyVar) execute(_ context.Context, ex *execution, _ *Instruction) domain.ExecutionStatus {
	v, ok := ex.workspace.GetValue(c.input)
	if !ok {
		ex.ui.Log(domain.SeverityError, "Copy: unknown variable "+c.input)
		return domain.StatusFailure
	}
	if !ex.workspace.SetValue(c.output, v) {
		ex.ui.Log(domain.SeverityError, "Copy: unknown variable "+c.output)
		return domain.StatusFailure
	}
	return domain.StatusSuccess
}

type increment struct {
	varName string
}

func newIncrement(attrs attributes) (behavior, error) {
	name, err := attrs.require("varName")
	if err != nil {
		return nil, err
	}
	return increment{varName: name}, nil
}

func (inc increment) execute(_ context.Context, ex *execution, _ *Instruction) domain.ExecutionStatus {
	v, ok := ex.workspace.GetValue(inc.varName)
	if !ok || v.IsNull() || v.Type() != cty.Number {
		ex.ui.Log(domain.SeverityError, "Increment: variable is not a number: "+inc.varName)
		return domain.StatusFailure
	}
	ex.workspace.SetValue(inc.varName, v.Add(cty.NumberIntVal(1)))
	return domain.StatusSuccess
}

// condition evaluates a boolean expression over the workspace variables.
type condition struct {
	source  string
	program *vm.Program
}

func newCondition(attrs attributes) (behavior, error) {
	src, err := attrs.require("expression")
	if err != nil {
		return nil, err
	}
	program, err := expr.Compile(src, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("expression: %w", err)
	}
	return condition{source: src, program: program}, nil
}

func (c condition) execute(_ context.Context, ex *execution, _ *Instruction) domain.ExecutionStatus {
	env, err := ex.workspace.nativeValues()
	if err != nil {
		ex.ui.Log(domain.SeverityError, "Condition: "+err.Error())
		return domain.StatusFailure
	}
	out, err := expr.Run(c.program, env)
	if err != nil {
		ex.ui.Log(domain.SeverityError, fmt.Sprintf("Condition %q: %v", c.source, err))
		return domain.StatusFailure
	}
	if ok, _ := out.(bool); ok {
		return domain.StatusSuccess
	}
	return domain.StatusFailure
}

type message struct {
	text string
}

func newMessage(attrs attributes) (behavior, error) {
	text, err := attrs.require("text")
	if err != nil {
		return nil, err
	}
	return message{text: text}, nil
}

func (m message) execute(_ context.Context, ex *execution, _ *Instruction) domain.ExecutionStatus {
	ex.ui.Message(m.text)
	return domain.StatusSuccess
}

var severityNames = map[string]int{
	"emergency": domain.SeverityEmergency,
	"alert":     domain.SeverityAlert,
	"critical":  domain.SeverityCritical,
	"error":     domain.SeverityError,
	"warning":   domain.SeverityWarning,
	"notice":    domain.SeverityNotice,
	"info":      domain.SeverityInfo,
	"debug":     domain.SeverityDebug,
	"trace":     domain.SeverityTrace,
}

type logMessage struct {
	message  string
	severity int
}

func newLog(attrs attributes) (behavior, error) {
	msg, err := attrs.require("message")
	if err != nil {
		return nil, err
	}
	severity := domain.SeverityInfo
	if raw, ok := attrs.get("severity"); ok {
		s, known := severityNames[strings.ToLower(raw)]
		if !known {
			return nil, fmt.Errorf("severity: unknown level %q", raw)
		}
		severity = s
	}
	return logMessage{message: msg, severity: severity}, nil
}

func (l logMessage) execute(_ context.Context, ex *execution, _ *Instruction) domain.ExecutionStatus {
	ex.ui.Log(l.severity, l.message)
	return domain.StatusSuccess
}

type output struct {
	fromVar, description string
}

func newOutput(attrs attributes) (behavior, error) {
	from, err := attrs.require("fromVar")
	if err != nil {
		return nil, err
	}
	desc, _ := attrs.get("description")
	return output{fromVar: from, description: desc}, nil
}

func (o output) execute(_ context.Context, ex *execution, _ *Instruction) domain.ExecutionStatus {
	v, ok := ex.workspace.GetValue(o.fromVar)
	if !ok {
		ex.ui.Log(domain.SeverityError, "Output: unknown variable "+o.fromVar)
		return domain.StatusFailure
	}
	if !ex.ui.PutValue(v, o.description) {
		return domain.StatusFailure
	}
	return domain.StatusSuccess
}

// input asks the user for a new value of outputVar, shaped like its current value.
type input struct {
	outputVar, description string
}

func newInput(attrs attributes) (behavior, error) {
	out, err := attrs.require("outputVar")
	if err != nil {
		return nil, err
	}
	desc, _ := attrs.get("description")
	return input{outputVar: out, description: desc}, nil
}

func (in input) execute(ctx context.Context, ex *execution, _ *Instruction) domain.ExecutionStatus {
	current, ok := ex.workspace.GetValue(in.outputVar)
	if !ok {
		ex.ui.Log(domain.SeverityError, "Input: unknown variable "+in.outputVar)
		return domain.StatusFailure
	}
	v, ok := ex.ui.GetUserValue(ctx, current, in.description)
	if ctx.Err() != nil {
		return domain.StatusNotFinished
	}
	if !ok || anyvalue.IsEmpty(v) {
		return domain.StatusFailure
	}
	if !ex.workspace.SetValue(in.outputVar, v) {
		return domain.StatusFailure
	}
	return domain.StatusSuccess
}

// choice asks the user to pick one of a comma separated list of options and
// stores the selected position in outputVar.
type choice struct {
	options     []string
	outputVar   string
	description string
}

func newChoice(attrs attributes) (behavior, error) {
	raw, err := attrs.require("options")
	if err != nil {
		return nil, err
	}
	out, err := attrs.require("outputVar")
	if err != nil {
		return nil, err
	}
	desc, _ := attrs.get("description")

	var options []string
	for _, opt := range strings.Split(raw, ",") {
		options = append(options, strings.TrimSpace(opt))
	}
	return choice{options: options, outputVar: out, description: desc}, nil
}

func (c choice) execute(ctx context.Context, ex *execution, _ *Instruction) domain.ExecutionStatus {
	metadata := cty.ObjectVal(map[string]cty.Value{
		"text": cty.StringVal(c.description),
	})
	selected, ok := ex.ui.GetUserChoice(ctx, c.options, metadata)
	if ctx.Err() != nil {
		return domain.StatusNotFinished
	}
	if !ok || selected < 0 || selected >= len(c.options) {
		return domain.StatusFailure
	}
	if !ex.workspace.SetValue(c.outputVar, cty.NumberIntVal(int64(selected))) {
		return domain.StatusFailure
	}
	return domain.StatusSuccess
}
